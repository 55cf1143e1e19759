package errors

import (
	"strings"
	"testing"
)

func TestValidateUploadFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		code    Code
	}{
		{"png", "logo.png", false, ""},
		{"jpeg upper", "LOGO.JPEG", false, ""},
		{"jpg with dots", "acme.v2.jpg", false, ""},

		{"empty", "", true, ErrCodeInvalidPath},
		{"too long", strings.Repeat("a", 300) + ".png", true, ErrCodeInvalidPath},
		{"path", "uploads/logo.png", true, ErrCodeInvalidPath},
		{"traversal", "..png", true, ErrCodeInvalidPath},
		{"backslash", "c:\\logo.png", true, ErrCodeInvalidPath},
		{"hidden", ".logo.png", true, ErrCodeInvalidPath},
		{"control", "lo\x01go.png", true, ErrCodeInvalidPath},
		{"stl", "model.stl", true, ErrCodeInvalidFormat},
		{"no extension", "logo", true, ErrCodeInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUploadFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateUploadFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, tt.code) {
				t.Errorf("ValidateUploadFilename(%q) code = %s, want %s", tt.input, GetCode(err), tt.code)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "uploads/logo.png", false},
		{"valid nested", "jobs/2026/10/stamp.stl", false},
		{"valid filename only", "stamp.stl", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 600)), true},
		{"absolute path", "/etc/passwd", true},
		{"path traversal", "../../../etc/passwd", true},
		{"path traversal middle", "foo/../bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateJobID(t *testing.T) {
	if err := ValidateJobID("3f2b8a4e-1c2d-4e5f-8a9b-0c1d2e3f4a5b"); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	for _, id := range []string{"", "42", "3F2B8A4E-1C2D-4E5F-8A9B-0C1D2E3F4A5B", "../etc"} {
		if err := ValidateJobID(id); err == nil {
			t.Errorf("ValidateJobID(%q) should fail", id)
		}
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidImage,
		ErrCodeEmptyMask,
		ErrCodeWrite,
		ErrCodeConversion,
		ErrCodeInvalidInput,
		ErrCodeInvalidConfig,
		ErrCodeInvalidFormat,
		ErrCodeInvalidPath,
		ErrCodeNotFound,
		ErrCodeFileNotFound,
		ErrCodeJobNotFound,
		ErrCodeStorage,
		ErrCodeTimeout,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
