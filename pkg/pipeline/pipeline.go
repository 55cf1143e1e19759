// Package pipeline provides the image → STL conversion used by the CLI and
// the conversion service.
//
// # Architecture
//
// A conversion runs five stages strictly in order:
//
//  1. Preprocess: decode the image and extract a clean foreground mask
//  2. Transform: mirror and scale the logo and derive the padded base
//  3. Extrude: turn base and logo masks into closed slabs
//  4. Assemble: stack the slabs and encode the STL
//  5. Write: store the STL atomically at the output path
//
// The context is checked between stages. Every failure carries one of the
// codes INVALID_IMAGE, EMPTY_MASK, WRITE_ERROR or CONVERSION_ERROR, and no
// output file exists unless the conversion succeeded.
//
// # Usage
//
// The one-shot entry point uses default configuration and no cache:
//
//	err := pipeline.GenerateSolid(ctx, "logo.png", "logo.stl")
//
// A Runner adds caching, logging and per-call options:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.GenerateSolid(ctx, "logo.png", "logo.stl", pipeline.Options{
//	    Config: cfg,
//	})
package pipeline

import (
	"time"

	"github.com/matzehuels/stampforge/pkg/config"
	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/mesh"
	"github.com/matzehuels/stampforge/pkg/preprocess"
	"github.com/matzehuels/stampforge/pkg/stamp"
)

// Stage names reported to logs and observability hooks.
const (
	StagePreprocess = "preprocess"
	StageTransform  = "transform"
	StageExtrude    = "extrude"
	StageAssemble   = "assemble"
	StageWrite      = "write"
)

// Stages lists every stage in execution order.
var Stages = []string{StagePreprocess, StageTransform, StageExtrude, StageAssemble, StageWrite}

// =============================================================================
// Options
// =============================================================================

// Options controls a single conversion.
type Options struct {
	// Config holds every tunable parameter. The zero value means
	// config.Default().
	Config config.Config

	// Backend names the preprocessing implementation; empty selects the
	// pure Go backend.
	Backend string

	// Refresh skips the cache lookup but still stores the new result.
	Refresh bool

	// DebugDir, when set, receives PNGs of every intermediate.
	DebugDir string
}

// normalize fills defaults and validates.
func (o *Options) normalize() error {
	if o.Config == (config.Config{}) {
		o.Config = config.Default()
	}
	if o.Backend == "" {
		o.Backend = preprocess.DefaultBackend
	}
	return o.Config.Validate()
}

// =============================================================================
// Result
// =============================================================================

// Result describes a finished conversion.
type Result struct {
	// STL is the encoded solid.
	STL []byte

	// InputHash is the SHA-256 of the input image bytes.
	InputHash string

	// Intermediates, nil when the result came from the cache.
	Stages *preprocess.Stages
	Layers *stamp.Layers
	Base   *mesh.Slab
	Relief *mesh.Slab

	Triangles int
	CacheHit  bool
	Stats     Stats

	// DebugFiles lists the diagnostics written to Options.DebugDir.
	DebugFiles []string
}

// Stats holds per-stage timings.
type Stats struct {
	Durations map[string]time.Duration
	Total     time.Duration
}

// Failure codes a conversion can return.
var FailureCodes = []errors.Code{
	errors.ErrCodeInvalidImage,
	errors.ErrCodeEmptyMask,
	errors.ErrCodeWrite,
	errors.ErrCodeConversion,
}
