package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stampforge/pkg/cache"
	"github.com/matzehuels/stampforge/pkg/diagnostics"
	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/mesh"
	"github.com/matzehuels/stampforge/pkg/observability"
	"github.com/matzehuels/stampforge/pkg/preprocess"
	"github.com/matzehuels/stampforge/pkg/stamp"
)

const cacheKeyType = "stl"

// GenerateSolid converts the image at inputPath into a stamp STL at
// outputPath using the default configuration and no cache.
//
// On success outputPath holds a complete, non-empty STL. On failure the
// returned error carries INVALID_IMAGE, EMPTY_MASK, WRITE_ERROR or
// CONVERSION_ERROR and outputPath is untouched.
func GenerateSolid(ctx context.Context, inputPath, outputPath string) error {
	r := NewRunner(nil, nil, log.New(io.Discard))
	_, err := r.GenerateSolid(ctx, inputPath, outputPath, Options{})
	return err
}

// Runner encapsulates pipeline execution with caching.
// The CLI and the conversion service share it.
//
// The Runner is stateless except for the cache and logger, so multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// GenerateSolid reads inputPath, converts it and writes the STL to
// outputPath atomically.
func (r *Runner) GenerateSolid(ctx context.Context, inputPath, outputPath string, opts Options) (*Result, error) {
	start := time.Now()
	input, err := os.ReadFile(inputPath)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeInvalidImage, err, "read %s", inputPath)
		observability.Pipeline().OnConvertComplete(ctx, inputPath, 0, time.Since(start), err)
		return nil, err
	}

	result, err := r.Convert(ctx, input, opts)
	if err == nil {
		err = r.stage(ctx, result, StageWrite, func() error {
			return mesh.WriteSTL(outputPath, result.STL)
		})
	}
	if err != nil {
		observability.Pipeline().OnConvertComplete(ctx, inputPath, 0, time.Since(start), err)
		return result, err
	}

	result.Stats.Total = time.Since(start)
	observability.Pipeline().OnConvertComplete(ctx, inputPath, result.Triangles, result.Stats.Total, nil)
	r.Logger.Info("wrote stamp",
		"output", outputPath,
		"triangles", result.Triangles,
		"bytes", len(result.STL),
		"cached", result.CacheHit,
		"duration", result.Stats.Total)
	return result, nil
}

// Convert turns encoded image bytes into an encoded STL without touching
// the filesystem, except for optional diagnostics. A partially filled
// Result is returned alongside stage failures so callers can inspect the
// intermediates.
func (r *Runner) Convert(ctx context.Context, input []byte, opts Options) (*Result, error) {
	if err := opts.normalize(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConversion, err, "invalid configuration")
	}
	cfg := opts.Config
	start := time.Now()

	result := &Result{
		InputHash: cache.Hash(input),
		Stats:     Stats{Durations: make(map[string]time.Duration, len(Stages))},
	}
	key := r.Keyer.ArtifactKey(result.InputHash, cache.ArtifactKeyOpts{
		ConfigHash: cfg.Hash(),
		Backend:    opts.Backend,
	})

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, n, ok := r.cached(ctx, key); ok {
			result.STL, result.Triangles, result.CacheHit = data, n, true
			result.Stats.Total = time.Since(start)
			r.Logger.Debug("cache hit", "key", key)
			return result, nil
		}
	}

	backend, err := preprocess.Lookup(opts.Backend)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConversion, err, "select backend")
	}

	// Diagnostics are written on the way out, successful or not.
	if opts.DebugDir != "" {
		defer func() {
			files, err := diagnostics.Dump(opts.DebugDir, result.Stages, result.Layers)
			if err != nil {
				r.Logger.Warn("failed to write diagnostics", "dir", opts.DebugDir, "error", err)
			}
			result.DebugFiles = files
		}()
	}

	err = r.stage(ctx, result, StagePreprocess, func() error {
		img, err := preprocess.Decode(bytes.NewReader(input))
		if err != nil {
			return err
		}
		stages, err := backend(ctx, img, cfg.Preprocess)
		result.Stages = stages
		if err != nil {
			return err
		}
		b := img.Bounds()
		r.Logger.Info("extracted foreground",
			"input", b.Size(),
			"working", stages.Mask.Bounds().Size(),
			"foreground", stages.Mask.Count(),
			"duration", time.Since(start))
		return nil
	})
	if err != nil {
		return result, err
	}

	err = r.stage(ctx, result, StageTransform, func() error {
		layers, err := stamp.Transform(result.Stages.Mask, cfg.Geometry)
		if err != nil {
			return err
		}
		result.Layers = layers
		r.Logger.Info("derived layers",
			"size", layers.Logo.Bounds().Size(),
			"scale", layers.Scale,
			"padding", layers.PaddingCells,
			"base", layers.Base.Count(),
			"logo", layers.Logo.Count())
		return nil
	})
	if err != nil {
		return result, err
	}

	err = r.stage(ctx, result, StageExtrude, func() error {
		g, l := cfg.Geometry, result.Layers
		base, err := mesh.Extrude(l.Base, 0, g.BaseThickness, l.Scale)
		if err != nil {
			return err
		}
		relief, err := mesh.Extrude(l.Logo, g.BaseThickness, g.TotalHeight(), l.Scale)
		if err != nil {
			return err
		}
		result.Base, result.Relief = base, relief
		r.Logger.Info("extruded slabs",
			"base", len(base.Triangles),
			"relief", len(relief.Triangles),
			"walls", base.Walls+relief.Walls)
		return nil
	})
	if err != nil {
		return result, err
	}

	err = r.stage(ctx, result, StageAssemble, func() error {
		solid := mesh.Assemble(result.Base, result.Relief)
		data, err := mesh.Marshal(solid, mesh.Format(cfg.Output.Format))
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return errors.New(errors.ErrCodeConversion, "encoder produced no data")
		}
		result.STL, result.Triangles = data, solid.Len()
		return nil
	})
	if err != nil {
		return result, err
	}

	if err := r.Cache.Set(ctx, key, result.STL, cache.ArtifactTTL); err != nil {
		r.Logger.Warn("failed to cache result", "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, cacheKeyType, len(result.STL))
	}
	result.Stats.Total = time.Since(start)
	return result, nil
}

// stage runs fn as the named stage: it checks ctx first, reports timings to
// the hooks and normalizes the error code.
func (r *Runner) stage(ctx context.Context, result *Result, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeConversion, err, "%s not started", name)
	}

	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, name)
	r.Logger.Debug("stage started", "stage", name)

	start := time.Now()
	err := fn()
	d := time.Since(start)
	if result != nil {
		result.Stats.Durations[name] = d
	}

	if err != nil && !errors.IsConversionFailure(err) {
		err = errors.Wrap(errors.ErrCodeConversion, err, "%s", name)
	}
	hooks.OnStageComplete(ctx, name, d, err)
	if err != nil {
		r.Logger.Debug("stage failed", "stage", name, "error", err)
		return err
	}
	r.Logger.Debug("stage finished", "stage", name, "duration", d)
	return nil
}

// cached returns a usable cache entry and its triangle count.
func (r *Runner) cached(ctx context.Context, key string) ([]byte, int, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache lookup failed", "error", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
		return nil, 0, false
	}
	n, ok := triangleCount(data)
	if !ok {
		_ = r.Cache.Delete(ctx, key)
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
		return nil, 0, false
	}
	observability.Cache().OnCacheHit(ctx, cacheKeyType)
	return data, n, true
}

// triangleCount validates a cached STL and returns its triangle count.
func triangleCount(data []byte) (int, bool) {
	if len(data) >= 84 {
		n := int(binary.LittleEndian.Uint32(data[80:84]))
		if len(data) == 84+50*n && n > 0 {
			return n, true
		}
	}
	s, err := mesh.ReadSTL(bytes.NewReader(data))
	if err != nil || s.Len() == 0 {
		return 0, false
	}
	return s.Len(), true
}
