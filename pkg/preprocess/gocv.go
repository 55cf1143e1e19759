//go:build gocv

package preprocess

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"github.com/matzehuels/stampforge/pkg/config"
	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/mask"
)

func init() {
	Backends["opencv"] = OpenCV
}

// OpenCV runs the preprocessing steps through OpenCV. Results differ from
// the native backend only by rounding and border handling.
func OpenCV(ctx context.Context, img image.Image, cfg config.Preprocess) (*Stages, error) {
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidImage, "image has zero area")
	}

	s := &Stages{}
	full, err := gocv.ImageGrayToMatGray(Gray(img))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "load into OpenCV")
	}
	defer full.Close()

	gray := full
	if longest := max(gray.Cols(), gray.Rows()); cfg.WorkingResolution > 0 && longest > cfg.WorkingResolution {
		f := float64(cfg.WorkingResolution) / float64(longest)
		small := gocv.NewMat()
		defer small.Close()
		gocv.Resize(full, &small, image.Point{}, f, f, gocv.InterpolationArea)
		gray, s.Downscaled = small, true
	}
	if s.Gray, err = toGray(gray); err != nil {
		return nil, err
	}

	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe := gocv.NewCLAHEWithParams(cfg.CLAHEClipLimit, image.Pt(cfg.CLAHETiles, cfg.CLAHETiles))
	defer clahe.Close()
	clahe.Apply(gray, &equalized)
	if s.Equalized, err = toGray(equalized); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.FastNlMeansDenoisingWithParams(equalized, &denoised, float32(cfg.DenoiseStrength), cfg.DenoiseTemplate, cfg.DenoiseSearch)
	if s.Denoised, err = toGray(denoised); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(denoised, &blurred, image.Pt(5, 5), cfg.BlurSigma, cfg.BlurSigma, gocv.BorderDefault)
	if s.Blurred, err = toGray(blurred); err != nil {
		return nil, err
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.AdaptiveThreshold(blurred, &binary, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv,
		cfg.ThresholdBlock, float32(cfg.ThresholdOffset))
	bin, err := toGray(binary)
	if err != nil {
		return nil, err
	}
	s.Binary = mask.FromGray(bin, mask.Threshold)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.MorphKernel, cfg.MorphKernel))
	defer kernel.Close()
	opened, closed := gocv.NewMat(), gocv.NewMat()
	defer opened.Close()
	defer closed.Close()
	gocv.MorphologyEx(binary, &opened, gocv.MorphOpen, kernel)
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)
	final, err := toGray(closed)
	if err != nil {
		return nil, err
	}
	s.Mask = mask.FromGray(final, mask.Threshold)

	if s.Mask.Empty() {
		return s, errors.New(errors.ErrCodeEmptyMask, "no foreground survived thresholding")
	}
	return s, nil
}

func toGray(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read OpenCV matrix")
	}
	return Gray(img), nil
}
