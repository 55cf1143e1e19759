package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/stampforge/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if got := Default().Geometry.TotalHeight(); got != 7 {
		t.Errorf("TotalHeight() = %g, want 7", got)
	}
}

func TestDecodeOverlaysDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
[geometry]
target_size = 40.0

[output]
format = "ascii"
`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Geometry.TargetSize != 40 {
		t.Errorf("TargetSize = %g, want 40", cfg.Geometry.TargetSize)
	}
	if cfg.Output.Format != FormatASCII {
		t.Errorf("Format = %q, want ascii", cfg.Output.Format)
	}
	if cfg.Geometry.ReliefHeight != DefaultReliefHeight {
		t.Errorf("ReliefHeight = %g, want default %g", cfg.Geometry.ReliefHeight, DefaultReliefHeight)
	}
	if cfg.Preprocess != Default().Preprocess {
		t.Error("untouched table should keep defaults")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"syntax", "[geometry\n"},
		{"unknown key", "[geometry]\nsize = 3\n"},
		{"even block", "[preprocess]\nthreshold_block = 40\n"},
		{"zero target", "[geometry]\ntarget_size = 0.0\n"},
		{"bad format", "[output]\nformat = \"obj\"\n"},
		{"search below template", "[preprocess]\ndenoise_template = 9\ndenoise_search = 7\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.toml))
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Decode() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stampforge.toml")
	if err := os.WriteFile(path, []byte("[geometry]\nbase_padding = 1.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Geometry.BasePadding != 1.5 {
		t.Errorf("BasePadding = %g, want 1.5", cfg.Geometry.BasePadding)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("Load(missing) error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	want := Default()
	want.Geometry.TargetSize = 25
	var buf bytes.Buffer
	if err := want.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestHash(t *testing.T) {
	a, b := Default(), Default()
	if a.Hash() != b.Hash() {
		t.Error("equal configs should hash equally")
	}
	if len(a.Hash()) != 64 {
		t.Errorf("Hash() length = %d, want 64", len(a.Hash()))
	}
	b.Geometry.ReliefHeight = 4
	if a.Hash() == b.Hash() {
		t.Error("different configs should hash differently")
	}
}
