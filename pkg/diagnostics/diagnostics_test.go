package diagnostics

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/stampforge/pkg/mask"
	"github.com/matzehuels/stampforge/pkg/preprocess"
	"github.com/matzehuels/stampforge/pkg/stamp"
)

func TestDump(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 16, 8))
	for i := range g.Pix {
		g.Pix[i] = uint8(i)
	}
	m := mask.Parse("#.", ".#")
	s := &preprocess.Stages{Gray: g, Equalized: g, Denoised: g, Blurred: g, Binary: m, Mask: m}
	l := &stamp.Layers{Logo: m, Base: m, Scale: 1, PaddingCells: 1}

	dir := filepath.Join(t.TempDir(), "debug")
	paths, err := Dump(dir, s, l)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(paths) != 9 {
		t.Errorf("wrote %d files, want 9", len(paths))
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			t.Errorf("stat %s: %v", p, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", p)
		}
	}
}

func TestDumpPartial(t *testing.T) {
	l := &stamp.Layers{Logo: mask.Parse("#"), Base: mask.Parse("#")}
	paths, err := Dump(t.TempDir(), nil, l)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Errorf("wrote %d files, want 2", len(paths))
	}
}

func TestWriteHistogramNeedsExtension(t *testing.T) {
	err := WriteHistogram(filepath.Join(t.TempDir(), "plot"), "x")
	if err == nil {
		t.Error("expected an error for a path without extension")
	}
}
