package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stampforge/pkg/cache"
	"github.com/matzehuels/stampforge/pkg/config"
	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/mesh"
	"github.com/matzehuels/stampforge/pkg/observability"
)

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func quietRunner(c cache.Cache) *Runner {
	return NewRunner(c, nil, log.New(io.Discard))
}

// writePNG draws a white canvas with every pixel inside returns true set black.
func writePNG(t *testing.T, w, h int, inside func(x, y int) bool) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255)
			if inside != nil && inside(x, y) {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	path := filepath.Join(t.TempDir(), "logo.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func circle(cx, cy, r int) func(x, y int) bool {
	return func(x, y int) bool {
		dx, dy := x-cx, y-cy
		return dx*dx+dy*dy <= r*r
	}
}

func square(x0, y0, x1, y1 int) func(x, y int) bool {
	return func(x, y int) bool {
		return x >= x0 && x < x1 && y >= y0 && y < y1
	}
}

func TestGenerateSolidCircle(t *testing.T) {
	in := writePNG(t, 500, 500, circle(250, 250, 100))
	out := filepath.Join(t.TempDir(), "stamp.stl")

	result, err := quietRunner(nil).GenerateSolid(context.Background(), in, out, Options{})
	if err != nil {
		t.Fatalf("GenerateSolid: %v", err)
	}

	for name, slab := range map[string]*mesh.Slab{"base": result.Base, "relief": result.Relief} {
		want := 4*slab.Cells + 2*slab.Walls
		if len(slab.Triangles) != want {
			t.Errorf("%s: %d triangles, want 4*%d + 2*%d = %d",
				name, len(slab.Triangles), slab.Cells, slab.Walls, want)
		}
	}
	if result.Base.Cells != result.Layers.Base.Count() {
		t.Errorf("base cells = %d, mask has %d", result.Base.Cells, result.Layers.Base.Count())
	}
	if result.Relief.Walls != result.Layers.Logo.BoundaryEdges() {
		t.Errorf("relief walls = %d, mask has %d boundary edges",
			result.Relief.Walls, result.Layers.Logo.BoundaryEdges())
	}
	if result.Triangles != len(result.Base.Triangles)+len(result.Relief.Triangles) {
		t.Errorf("Triangles = %d, want base+relief", result.Triangles)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	solid, err := mesh.ReadSTL(f)
	if err != nil {
		t.Fatalf("ReadSTL: %v", err)
	}
	if solid.Len() != result.Triangles {
		t.Errorf("file has %d triangles, result reports %d", solid.Len(), result.Triangles)
	}

	report := solid.Inspect()
	const eps = 1e-4
	top := config.Default().Geometry.TotalHeight()
	if report.Min.Z < -eps || report.Max.Z > top+eps {
		t.Errorf("Z range [%g, %g] outside [0, %g]", report.Min.Z, report.Max.Z, top)
	}
	if report.OpenEdges != 0 {
		t.Errorf("%d open edges", report.OpenEdges)
	}
	size := report.Size()
	if longest := max(size.X, size.Y); longest > config.Default().Geometry.TargetSize+eps {
		t.Errorf("planar extent %g exceeds target size", longest)
	}

	for _, stage := range Stages[:len(Stages)-1] {
		if _, ok := result.Stats.Durations[stage]; !ok {
			t.Errorf("no duration recorded for %s", stage)
		}
	}
}

func TestGenerateSolidPackageLevel(t *testing.T) {
	in := writePNG(t, 120, 120, square(40, 40, 80, 80))
	out := filepath.Join(t.TempDir(), "stamp.stl")
	if err := GenerateSolid(context.Background(), in, out); err != nil {
		t.Fatalf("GenerateSolid: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() <= 84 {
		t.Errorf("output has %d bytes", info.Size())
	}
}

func TestGenerateSolidNotAnImage(t *testing.T) {
	in := filepath.Join(t.TempDir(), "notes.png")
	if err := os.WriteFile(in, []byte("definitely not a png"), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "stamp.stl")

	err := GenerateSolid(context.Background(), in, out)
	if !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Fatalf("error = %v, want INVALID_IMAGE", err)
	}
	if exists(out) {
		t.Error("output file created for a failed conversion")
	}
}

func TestGenerateSolidMissingInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stamp.stl")
	err := GenerateSolid(context.Background(), filepath.Join(t.TempDir(), "nope.png"), out)
	if !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Fatalf("error = %v, want INVALID_IMAGE", err)
	}
	if exists(out) {
		t.Error("output file created for a failed conversion")
	}
}

func TestGenerateSolidAllWhite(t *testing.T) {
	in := writePNG(t, 100, 80, nil)
	out := filepath.Join(t.TempDir(), "stamp.stl")

	err := GenerateSolid(context.Background(), in, out)
	if !errors.Is(err, errors.ErrCodeEmptyMask) {
		t.Fatalf("error = %v, want EMPTY_MASK", err)
	}
	if exists(out) {
		t.Error("output file created for a failed conversion")
	}
}

func TestGenerateSolidUnwritableOutput(t *testing.T) {
	in := writePNG(t, 120, 120, square(40, 40, 80, 80))
	out := filepath.Join(t.TempDir(), "missing", "stamp.stl")

	err := GenerateSolid(context.Background(), in, out)
	if !errors.Is(err, errors.ErrCodeWrite) {
		t.Fatalf("error = %v, want WRITE_ERROR", err)
	}
	if exists(out) {
		t.Error("output file exists after a failed write")
	}
}

func TestConvertCancelled(t *testing.T) {
	in := writePNG(t, 120, 120, square(40, 40, 80, 80))
	data, err := os.ReadFile(in)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = quietRunner(nil).Convert(ctx, data, Options{})
	if !errors.Is(err, errors.ErrCodeConversion) {
		t.Fatalf("error = %v, want CONVERSION_ERROR", err)
	}
}

func TestConvertInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Geometry.TargetSize = -1
	_, err := quietRunner(nil).Convert(context.Background(), []byte("x"), Options{Config: cfg})
	if !errors.IsConversionFailure(err) {
		t.Fatalf("error = %v, want one of %v", err, FailureCodes)
	}
}

func TestConvertUnknownBackend(t *testing.T) {
	_, err := quietRunner(nil).Convert(context.Background(), []byte("x"), Options{Backend: "nope"})
	if !errors.Is(err, errors.ErrCodeConversion) {
		t.Fatalf("error = %v, want CONVERSION_ERROR", err)
	}
}

func TestConvertASCII(t *testing.T) {
	in := writePNG(t, 120, 120, square(40, 40, 80, 80))
	data, err := os.ReadFile(in)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Output.Format = config.FormatASCII

	result, err := quietRunner(nil).Convert(context.Background(), data, Options{Config: cfg})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if string(result.STL[:6]) != "solid " {
		t.Errorf("ASCII output starts with %q", result.STL[:6])
	}
}

func TestRunnerCacheHit(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := quietRunner(fc)
	in := writePNG(t, 120, 120, square(40, 40, 80, 80))
	dir := t.TempDir()

	first, err := runner.GenerateSolid(context.Background(), in, filepath.Join(dir, "a.stl"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Error("first run reported a cache hit")
	}

	second, err := runner.GenerateSolid(context.Background(), in, filepath.Join(dir, "b.stl"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Error("second run missed the cache")
	}
	if second.Triangles != first.Triangles {
		t.Errorf("cached triangles = %d, want %d", second.Triangles, first.Triangles)
	}

	a, _ := os.ReadFile(filepath.Join(dir, "a.stl"))
	b, _ := os.ReadFile(filepath.Join(dir, "b.stl"))
	if string(a) != string(b) {
		t.Error("cached output differs from computed output")
	}

	third, err := runner.GenerateSolid(context.Background(), in, filepath.Join(dir, "c.stl"), Options{Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheHit {
		t.Error("refresh run reported a cache hit")
	}
}

func TestConvertDebugDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")
	in := writePNG(t, 100, 80, nil)
	data, err := os.ReadFile(in)
	if err != nil {
		t.Fatal(err)
	}

	result, err := quietRunner(nil).Convert(context.Background(), data, Options{DebugDir: dir})
	if !errors.Is(err, errors.ErrCodeEmptyMask) {
		t.Fatalf("error = %v, want EMPTY_MASK", err)
	}
	if len(result.DebugFiles) == 0 {
		t.Error("no diagnostics written for a failed conversion")
	}
}

type stageRecorder struct {
	mu       sync.Mutex
	started  []string
	finished []string
	done     int
}

func (r *stageRecorder) OnStageStart(_ context.Context, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, stage)
}

func (r *stageRecorder) OnStageComplete(_ context.Context, stage string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, stage)
}

func (r *stageRecorder) OnConvertComplete(context.Context, string, int, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
}

func TestStageHooksFireInOrder(t *testing.T) {
	rec := &stageRecorder{}
	observability.SetPipelineHooks(rec)
	t.Cleanup(observability.Reset)

	in := writePNG(t, 120, 120, square(40, 40, 80, 80))
	if err := GenerateSolid(context.Background(), in, filepath.Join(t.TempDir(), "s.stl")); err != nil {
		t.Fatal(err)
	}

	if len(rec.started) != len(Stages) {
		t.Fatalf("started %v, want %v", rec.started, Stages)
	}
	for i, s := range Stages {
		if rec.started[i] != s || rec.finished[i] != s {
			t.Errorf("stage %d: started %q finished %q, want %q", i, rec.started[i], rec.finished[i], s)
		}
	}
	if rec.done != 1 {
		t.Errorf("OnConvertComplete fired %d times", rec.done)
	}
}
