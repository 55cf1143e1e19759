// Package stamp derives the two layers of a stamp from a foreground mask:
// the mirrored logo that becomes the relief, and the padded base plate that
// carries it.
package stamp

import (
	"math"

	"github.com/matzehuels/stampforge/pkg/config"
	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/mask"
)

// Layers are the masks and physical scale of one stamp.
type Layers struct {
	// Logo is the mirrored foreground at print resolution.
	Logo *mask.Mask

	// Base is Logo grown by PaddingCells and closed, so it contains every
	// Logo cell and bridges gaps narrower than the padding.
	Base *mask.Mask

	// Scale is millimetres per cell. The longer side of the mask spans
	// exactly the configured target size.
	Scale float64

	PaddingCells int
}

// Transform prepares the logo and base masks for extrusion.
//
// A mask larger than the print resolution is reduced with a bilinear filter
// and re-binarized; smaller masks keep their size. The logo is mirrored
// horizontally so the printed stamp prints the right way round.
//
// Interior holes wider than about PaddingCells survive the closing, so the
// base may contain through-holes under such regions.
func Transform(m *mask.Mask, cfg config.Geometry) (*Layers, error) {
	if !(cfg.TargetSize > 0) {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "target size must be positive, got %g", cfg.TargetSize)
	}
	if m.Empty() {
		return nil, errors.New(errors.ErrCodeEmptyMask, "mask has no foreground")
	}

	logo := m
	if w, h := fit(m.Width(), m.Height(), cfg.PrintResolution); w != m.Width() || h != m.Height() {
		logo = m.Resize(w, h)
		if logo.Empty() {
			return nil, errors.New(errors.ErrCodeEmptyMask, "foreground vanished when resizing to %dx%d", w, h)
		}
	}
	logo = logo.FlipH()

	scale := cfg.TargetSize / float64(max(logo.Width(), logo.Height()))
	k := PaddingCells(cfg.BasePadding, scale)

	return &Layers{
		Logo:         logo,
		Base:         logo.Dilate(k).Close(k),
		Scale:        scale,
		PaddingCells: k,
	}, nil
}

// PaddingCells converts a physical padding to a kernel size in cells.
// The result is at least one.
func PaddingCells(padding, scale float64) int {
	return max(1, int(math.Round(padding/scale)))
}

// fit returns the size of a w×h grid shrunk so that its longer side is at
// most limit, preserving the aspect ratio.
func fit(w, h, limit int) (int, int) {
	longest := max(w, h)
	if limit <= 0 || longest <= limit {
		return w, h
	}
	f := float64(limit) / float64(longest)
	return max(1, int(math.Round(float64(w)*f))), max(1, int(math.Round(float64(h)*f)))
}
