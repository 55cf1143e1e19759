// Package diagnostics writes the intermediates of a conversion to disk so a
// poor result can be traced to the stage that caused it.
package diagnostics

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/fsutil"
	"github.com/matzehuels/stampforge/pkg/preprocess"
	"github.com/matzehuels/stampforge/pkg/stamp"
)

// HistogramFile is the name of the intensity plot written by [Dump].
const HistogramFile = "histogram.png"

// Series is one named intensity histogram.
type Series struct {
	Name string
	Hist [256]float64 // probability per gray level
}

// Dump writes every available stage image into dir, creating it if needed,
// and returns the written paths. Either argument may be nil.
func Dump(dir string, s *preprocess.Stages, l *stamp.Layers) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeWrite, err, "create %s", dir)
	}

	type named struct {
		name string
		img  image.Image
	}
	var imgs []named
	if s != nil {
		imgs = append(imgs,
			named{"01-gray.png", s.Gray},
			named{"02-clahe.png", s.Equalized},
			named{"03-denoised.png", s.Denoised},
			named{"04-blurred.png", s.Blurred},
		)
		if s.Binary != nil {
			imgs = append(imgs, named{"05-threshold.png", s.Binary.ToGray()})
		}
		if s.Mask != nil {
			imgs = append(imgs, named{"06-mask.png", s.Mask.ToGray()})
		}
	}
	if l != nil {
		imgs = append(imgs,
			named{"07-logo.png", l.Logo.ToGray()},
			named{"08-base.png", l.Base.ToGray()},
		)
	}

	var written []string
	for _, n := range imgs {
		if n.img == nil {
			continue
		}
		path := filepath.Join(dir, n.name)
		if err := imaging.Save(n.img, path); err != nil {
			return written, errors.Wrap(errors.ErrCodeWrite, err, "save %s", path)
		}
		written = append(written, path)
	}

	if s != nil && s.Gray != nil && s.Equalized != nil {
		path := filepath.Join(dir, HistogramFile)
		err := WriteHistogram(path, "Intensity",
			Series{Name: "input", Hist: imaging.Histogram(s.Gray)},
			Series{Name: "CLAHE", Hist: imaging.Histogram(s.Equalized)},
		)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteHistogram plots the series as lines over gray levels 0..255 and
// saves the chart to path. The format follows the file extension.
func WriteHistogram(path, title string, series ...Series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "gray level"
	p.Y.Label.Text = "fraction of pixels"
	p.X.Min, p.X.Max = 0, 255

	for i, s := range series {
		xys := make(plotter.XYs, len(s.Hist))
		for v, f := range s.Hist {
			xys[v] = plotter.XY{X: float64(v), Y: f}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("histogram %s: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	format := filepath.Ext(path)
	if format == "" {
		return errors.New(errors.ErrCodeInvalidPath, "no image extension on %s", path)
	}
	w, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, format[1:])
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "plot %s", path)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return errors.Wrap(errors.ErrCodeWrite, err, "render %s", path)
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeWrite, err, "save %s", path)
	}
	return nil
}
