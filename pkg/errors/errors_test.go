package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeEmptyMask, "no foreground in %s", "logo.png")

	if err.Code != ErrCodeEmptyMask {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeEmptyMask)
	}

	if err.Message != "no foreground in logo.png" {
		t.Errorf("Message = %v, want %v", err.Message, "no foreground in logo.png")
	}

	expected := "EMPTY_MASK: no foreground in logo.png"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrCodeWrite, cause, "save stamp.stl")

	if err.Code != ErrCodeWrite {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeWrite)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidImage, "test"),
			code:     ErrCodeInvalidImage,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidImage, "test"),
			code:     ErrCodeWrite,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeConversion, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeConversion,
			expected: true,
		},
		{
			name:     "fmt wrapped",
			err:      fmt.Errorf("preprocess: %w", New(ErrCodeEmptyMask, "inner")),
			code:     ErrCodeEmptyMask,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeWrite, "test"),
			expected: ErrCodeWrite,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidInput, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEnsureCode(t *testing.T) {
	if EnsureCode(nil, ErrCodeConversion, "x") != nil {
		t.Error("EnsureCode(nil) should return nil")
	}

	typed := New(ErrCodeEmptyMask, "empty")
	if got := EnsureCode(typed, ErrCodeConversion, "x"); got != typed {
		t.Errorf("EnsureCode should keep typed errors, got %v", got)
	}

	plain := errors.New("boom")
	got := EnsureCode(plain, ErrCodeConversion, "extrude")
	if !Is(got, ErrCodeConversion) {
		t.Errorf("EnsureCode should wrap plain errors, got %v", got)
	}
	if !errors.Is(got, plain) {
		t.Error("EnsureCode should preserve the cause")
	}
}

func TestIsConversionFailure(t *testing.T) {
	for _, code := range []Code{ErrCodeInvalidImage, ErrCodeEmptyMask, ErrCodeWrite, ErrCodeConversion} {
		if !IsConversionFailure(New(code, "x")) {
			t.Errorf("IsConversionFailure(%s) = false, want true", code)
		}
	}
	if IsConversionFailure(New(ErrCodeInvalidConfig, "x")) {
		t.Error("IsConversionFailure(INVALID_CONFIG) = true, want false")
	}
	if IsConversionFailure(errors.New("plain")) {
		t.Error("IsConversionFailure(plain) = true, want false")
	}
}
