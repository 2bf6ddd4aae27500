package core

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"sona-picture-processing/internal/algorithms"
)

var ErrLayerSize = errors.New("algorithm changed the image size; it cannot be limited to regions")

// Layer is one algorithm application blended over the working image,
// optionally only inside marked regions.
type Layer struct {
	Algorithm  string
	Parameters map[string]interface{}
	// Regions limits the edit; nil or empty applies it everywhere.
	Regions *Regions
	// Opacity is the weight of the processed image, 0 to 1.
	Opacity float64
}

// ApplyLayer applies l as a single undoable edit.
func (p *Pipeline) ApplyLayer(ctx context.Context, l Layer) (map[string]float64, error) {
	if l.Opacity < 0 || l.Opacity > 1 {
		return nil, fmt.Errorf("opacity %.2f out of range [0, 1]", l.Opacity)
	}
	params := NormalizeParams(l.Parameters)
	regions := 0
	if l.Regions != nil {
		regions = l.Regions.Len()
	}
	journalParams := map[string]interface{}{"params": params, "opacity": l.Opacity, "regions": regions}

	return p.run(ctx, PageEditor, l.Algorithm, journalParams, func(current gocv.Mat) (gocv.Mat, error) {
		processed, err := algorithms.Apply(l.Algorithm, current, params)
		if err != nil {
			return gocv.NewMat(), err
		}
		defer processed.Close()
		return blendLayer(current, processed, l.Opacity, l.Regions)
	})
}

// blendLayer mixes overlay into a copy of base with the given opacity,
// restricted to the regions' mask when there are any.
func blendLayer(base, overlay gocv.Mat, opacity float64, regions *Regions) (gocv.Mat, error) {
	if base.Cols() != overlay.Cols() || base.Rows() != overlay.Rows() {
		return gocv.NewMat(), ErrLayerSize
	}

	matched := overlay.Clone()
	defer matched.Close()
	if overlay.Channels() != base.Channels() {
		if err := matchChannels(overlay, &matched, base.Channels()); err != nil {
			return gocv.NewMat(), err
		}
	}

	blended := gocv.NewMat()
	if err := gocv.AddWeighted(base, 1.0-opacity, matched, opacity, 0, &blended); err != nil {
		blended.Close()
		return gocv.NewMat(), err
	}
	if regions == nil || regions.Len() == 0 {
		return blended, nil
	}
	defer blended.Close()

	mask := regions.Mask(base.Cols(), base.Rows())
	defer mask.Close()
	result := base.Clone()
	blended.CopyToWithMask(&result, mask)
	return result, nil
}

func matchChannels(src gocv.Mat, dst *gocv.Mat, channels int) error {
	var code gocv.ColorConversionCode
	switch {
	case src.Channels() == 1 && channels == 3:
		code = gocv.ColorGrayToBGR
	case src.Channels() == 1 && channels == 4:
		code = gocv.ColorGrayToBGRA
	case src.Channels() == 3 && channels == 1:
		code = gocv.ColorBGRToGray
	case src.Channels() == 4 && channels == 3:
		code = gocv.ColorBGRAToBGR
	case src.Channels() == 3 && channels == 4:
		code = gocv.ColorBGRToBGRA
	default:
		return fmt.Errorf("cannot blend %d channels over %d", src.Channels(), channels)
	}
	return gocv.CvtColor(src, dst, code)
}
