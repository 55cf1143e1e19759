package preprocess

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/matzehuels/stampforge/pkg/config"
	"github.com/matzehuels/stampforge/pkg/errors"
)

func uniform(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func fillRect(g *image.Gray, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

func TestRunAllWhiteIsEmpty(t *testing.T) {
	_, err := Run(uniform(80, 60, 255), config.Default().Preprocess)
	if !errors.Is(err, errors.ErrCodeEmptyMask) {
		t.Fatalf("Run() error = %v, want EMPTY_MASK", err)
	}
}

func TestRunDarkSquare(t *testing.T) {
	img := uniform(120, 120, 255)
	fillRect(img, image.Rect(40, 40, 80, 80), 0)

	s, err := Run(img, config.Default().Preprocess)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Downscaled {
		t.Error("small image should not be downscaled")
	}
	if s.Mask.Count() == 0 {
		t.Fatal("expected foreground")
	}
	if !s.Mask.At(41, 60) {
		t.Error("inner edge of the square should be foreground")
	}
	keep := image.Rect(30, 30, 90, 90)
	for _, p := range s.Mask.Cells() {
		if !p.In(keep) {
			t.Fatalf("foreground at %v outside the square", p)
		}
	}
	for _, g := range []*image.Gray{s.Gray, s.Equalized, s.Denoised, s.Blurred} {
		if g.Rect != image.Rect(0, 0, 120, 120) {
			t.Errorf("stage bounds = %v", g.Rect)
		}
	}
}

func TestDownscale(t *testing.T) {
	tests := []struct {
		name         string
		w, h, limit  int
		wantW, wantH int
	}{
		{"wide", 2000, 500, 1000, 1000, 250},
		{"tall", 300, 900, 600, 200, 600},
		{"small", 300, 200, 1000, 300, 200},
		{"exact", 1000, 10, 1000, 1000, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, scaled := Downscale(uniform(tt.w, tt.h, 9), tt.limit)
			if got.Rect.Dx() != tt.wantW || got.Rect.Dy() != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", got.Rect.Dx(), got.Rect.Dy(), tt.wantW, tt.wantH)
			}
			if scaled != (tt.wantW != tt.w) {
				t.Errorf("scaled = %v", scaled)
			}
			if got.GrayAt(0, 0).Y != 9 {
				t.Errorf("box filter changed a uniform value to %d", got.GrayAt(0, 0).Y)
			}
		})
	}
}

func TestCLAHEKeepsUniformImagesUniform(t *testing.T) {
	sizes := []image.Point{{50, 30}, {1000, 667}, {64, 64}, {9, 17}}
	for _, size := range sizes {
		for _, v := range []uint8{0, 100, 128, 255} {
			out := CLAHE(uniform(size.X, size.Y, v), 3, 8)
			first := out.Pix[0]
			for i, p := range out.Pix {
				if p != first {
					t.Fatalf("%v value %d: pixel %d = %d, want %d", size, v, i, p, first)
				}
			}
			if v == 255 && first != 255 {
				t.Errorf("%v: white mapped to %d", size, first)
			}
		}
	}
}

func TestPadReflect(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(src.Pix, []uint8{1, 2, 3, 4, 5, 6})
	got := padReflect(src, 5, 3)
	want := []uint8{
		1, 2, 3, 2, 1,
		4, 5, 6, 5, 4,
		1, 2, 3, 2, 1,
	}
	for i := range want {
		if got.Pix[i] != want[i] {
			t.Fatalf("padded = %v, want %v", got.Pix, want)
		}
	}
	if padReflect(src, 3, 2) != src {
		t.Error("padding to the same size should return the input")
	}
}

func TestCLAHETinyImage(t *testing.T) {
	out := CLAHE(uniform(3, 2, 50), 3, 8)
	if out.Rect.Dx() != 3 || out.Rect.Dy() != 2 {
		t.Errorf("bounds = %v", out.Rect)
	}
}

func TestDenoise(t *testing.T) {
	img := uniform(40, 40, 200)
	out, err := Denoise(context.Background(), img, 30, 7, 21)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Pix, img.Pix) {
		t.Error("uniform image should be unchanged")
	}

	noisy := uniform(40, 40, 200)
	noisy.SetGray(20, 20, color.Gray{Y: 150})
	out, err = Denoise(context.Background(), noisy, 30, 7, 21)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.GrayAt(20, 20).Y; got <= 150 {
		t.Errorf("outlier = %d, want pulled toward 200", got)
	}
}

func TestDenoiseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Denoise(ctx, uniform(30, 30, 0), 30, 7, 21)
	if err != context.Canceled {
		t.Errorf("Denoise() error = %v, want context.Canceled", err)
	}
}

func TestAdaptiveThresholdPolarity(t *testing.T) {
	img := uniform(60, 60, 255)
	fillRect(img, image.Rect(20, 0, 23, 60), 0)
	m := AdaptiveThreshold(img, 41, 5)
	if !m.At(21, 30) {
		t.Error("dark stripe should be foreground")
	}
	if m.At(5, 30) || m.At(40, 30) {
		t.Error("white paper should be background")
	}
	if AdaptiveThreshold(uniform(60, 60, 0), 41, 5).Count() != 0 {
		t.Error("uniform black has no local contrast and should be background")
	}
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, uniform(7, 5, 10)); err != nil {
		t.Fatal(err)
	}
	img, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 7 || img.Bounds().Dy() != 5 {
		t.Errorf("bounds = %v", img.Bounds())
	}

	_, err = Decode(bytes.NewReader([]byte("definitely not an image")))
	if !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Errorf("Decode(garbage) error = %v, want INVALID_IMAGE", err)
	}
}

func TestGrayFlattensTransparencyOnWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(1, 0, color.NRGBA{A: 255})
	g := Gray(img)
	if g.GrayAt(0, 0).Y != 255 {
		t.Errorf("transparent pixel = %d, want 255", g.GrayAt(0, 0).Y)
	}
	if g.GrayAt(1, 0).Y != 0 {
		t.Errorf("opaque black pixel = %d, want 0", g.GrayAt(1, 0).Y)
	}
}

func TestLookup(t *testing.T) {
	if _, err := Lookup(""); err != nil {
		t.Errorf("Lookup(default) = %v", err)
	}
	if _, err := Lookup("bogus"); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("Lookup(bogus) error = %v, want UNSUPPORTED", err)
	}
}
