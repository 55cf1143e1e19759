// Package config holds the tunable parameters of the stamp pipeline.
//
// A [Config] is a plain value. It is built once from [Default], optionally
// overlaid with a TOML file via [Load], and then passed by value to every
// stage. Nothing mutates it after validation.
//
// Example file:
//
//	[preprocess]
//	working_resolution = 800
//
//	[geometry]
//	target_size = 40.0
//	relief_height = 3.0
//
//	[output]
//	format = "ascii"
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stampforge/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultWorkingResolution = 1000
	DefaultCLAHEClipLimit    = 3.0
	DefaultCLAHETiles        = 8
	DefaultDenoiseStrength   = 30.0
	DefaultDenoiseTemplate   = 7
	DefaultDenoiseSearch     = 21
	DefaultBlurSigma         = 1.1
	DefaultThresholdBlock    = 41
	DefaultThresholdOffset   = 5
	DefaultMorphKernel       = 3

	DefaultPrintResolution = 1000
	DefaultTargetSize      = 60.0 // mm along the longest side
	DefaultBaseThickness   = 2.0
	DefaultReliefHeight    = 5.0
	DefaultBasePadding     = 3.0

	DefaultFormat = FormatBinary
)

// Output formats.
const (
	FormatBinary = "binary"
	FormatASCII  = "ascii"
)

// =============================================================================
// Config
// =============================================================================

// Config is the complete pipeline configuration.
type Config struct {
	Preprocess Preprocess `toml:"preprocess" json:"preprocess"`
	Geometry   Geometry   `toml:"geometry" json:"geometry"`
	Output     Output     `toml:"output" json:"output"`
}

// Preprocess controls the image-to-mask stage.
type Preprocess struct {
	WorkingResolution int     `toml:"working_resolution" json:"working_resolution"`
	CLAHEClipLimit    float64 `toml:"clahe_clip_limit" json:"clahe_clip_limit"`
	CLAHETiles        int     `toml:"clahe_tiles" json:"clahe_tiles"`
	DenoiseStrength   float64 `toml:"denoise_strength" json:"denoise_strength"`
	DenoiseTemplate   int     `toml:"denoise_template" json:"denoise_template"` // odd
	DenoiseSearch     int     `toml:"denoise_search" json:"denoise_search"`     // odd
	BlurSigma         float64 `toml:"blur_sigma" json:"blur_sigma"`
	ThresholdBlock    int     `toml:"threshold_block" json:"threshold_block"` // odd, >= 3
	ThresholdOffset   int     `toml:"threshold_offset" json:"threshold_offset"`
	MorphKernel       int     `toml:"morph_kernel" json:"morph_kernel"`
}

// Geometry controls the mask transform and extrusion, in millimetres.
type Geometry struct {
	PrintResolution int     `toml:"print_resolution" json:"print_resolution"`
	TargetSize      float64 `toml:"target_size" json:"target_size"`
	BaseThickness   float64 `toml:"base_thickness" json:"base_thickness"`
	ReliefHeight    float64 `toml:"relief_height" json:"relief_height"`
	BasePadding     float64 `toml:"base_padding" json:"base_padding"`
}

// Output controls the STL encoding.
type Output struct {
	Format string `toml:"format" json:"format"`
}

// TotalHeight is the Z extent of the finished stamp.
func (g Geometry) TotalHeight() float64 { return g.BaseThickness + g.ReliefHeight }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Preprocess: Preprocess{
			WorkingResolution: DefaultWorkingResolution,
			CLAHEClipLimit:    DefaultCLAHEClipLimit,
			CLAHETiles:        DefaultCLAHETiles,
			DenoiseStrength:   DefaultDenoiseStrength,
			DenoiseTemplate:   DefaultDenoiseTemplate,
			DenoiseSearch:     DefaultDenoiseSearch,
			BlurSigma:         DefaultBlurSigma,
			ThresholdBlock:    DefaultThresholdBlock,
			ThresholdOffset:   DefaultThresholdOffset,
			MorphKernel:       DefaultMorphKernel,
		},
		Geometry: Geometry{
			PrintResolution: DefaultPrintResolution,
			TargetSize:      DefaultTargetSize,
			BaseThickness:   DefaultBaseThickness,
			ReliefHeight:    DefaultReliefHeight,
			BasePadding:     DefaultBasePadding,
		},
		Output: Output{Format: DefaultFormat},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load reads a TOML file on top of [Default] and validates the result.
// Keys missing from the file keep their default values; unknown keys are
// rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Config{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
	}
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open config")
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads TOML from r on top of [Default] and validates the result.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q", undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Hash returns a stable digest of every parameter that affects the output.
func (c Config) Hash() string {
	var buf bytes.Buffer
	_ = c.Encode(&buf)
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks every field and returns the first violation.
func (c Config) Validate() error {
	p, g := c.Preprocess, c.Geometry
	switch {
	case p.WorkingResolution < 1:
		return invalid("preprocess.working_resolution must be positive, got %d", p.WorkingResolution)
	case !(p.CLAHEClipLimit > 0):
		return invalid("preprocess.clahe_clip_limit must be positive, got %g", p.CLAHEClipLimit)
	case p.CLAHETiles < 1:
		return invalid("preprocess.clahe_tiles must be positive, got %d", p.CLAHETiles)
	case p.DenoiseStrength < 0:
		return invalid("preprocess.denoise_strength must not be negative, got %g", p.DenoiseStrength)
	case !oddAtLeast(p.DenoiseTemplate, 1):
		return invalid("preprocess.denoise_template must be odd, got %d", p.DenoiseTemplate)
	case !oddAtLeast(p.DenoiseSearch, p.DenoiseTemplate):
		return invalid("preprocess.denoise_search must be odd and >= denoise_template, got %d", p.DenoiseSearch)
	case p.BlurSigma < 0:
		return invalid("preprocess.blur_sigma must not be negative, got %g", p.BlurSigma)
	case !oddAtLeast(p.ThresholdBlock, 3):
		return invalid("preprocess.threshold_block must be odd and >= 3, got %d", p.ThresholdBlock)
	case p.MorphKernel < 1:
		return invalid("preprocess.morph_kernel must be positive, got %d", p.MorphKernel)
	case g.PrintResolution < 1:
		return invalid("geometry.print_resolution must be positive, got %d", g.PrintResolution)
	case !(g.TargetSize > 0):
		return invalid("geometry.target_size must be positive, got %g", g.TargetSize)
	case !(g.BaseThickness > 0):
		return invalid("geometry.base_thickness must be positive, got %g", g.BaseThickness)
	case !(g.ReliefHeight > 0):
		return invalid("geometry.relief_height must be positive, got %g", g.ReliefHeight)
	case g.BasePadding < 0:
		return invalid("geometry.base_padding must not be negative, got %g", g.BasePadding)
	case c.Output.Format != FormatBinary && c.Output.Format != FormatASCII:
		return invalid("output.format must be %q or %q, got %q", FormatBinary, FormatASCII, c.Output.Format)
	}
	return nil
}

func oddAtLeast(n, min int) bool { return n >= min && n%2 == 1 }

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeInvalidConfig, format, args...)
}
