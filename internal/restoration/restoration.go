// Package restoration repairs damaged regions of an image from a mask
package restoration

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"
)

// ErrEmptyMask is returned when the mask marks no pixels for repair.
var ErrEmptyMask = errors.New("mask marks no pixels to restore")

// Method is the inpainting algorithm
type Method string

const (
	Telea        Method = "telea"
	NavierStokes Method = "ns"
)

func ParseMethod(name string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(name))); m {
	case "":
		return Telea, nil
	case Telea, NavierStokes:
		return m, nil
	}
	return "", fmt.Errorf("unknown inpaint method %q (want telea or ns)", name)
}

type Options struct {
	Method Method  `yaml:"method"`
	Radius float64 `yaml:"radius"`
}

func DefaultOptions() Options {
	return Options{Method: Telea, Radius: 3}
}

// Inpaint fills the pixels where mask is non-zero from their surroundings.
// The mask may be colour or any size; it is reduced to one channel and
// resized to the image.
func Inpaint(mat, mask gocv.Mat, opts Options) (gocv.Mat, error) {
	if mat.Empty() {
		return gocv.NewMat(), errors.New("input image is empty")
	}
	if mask.Empty() {
		return gocv.NewMat(), errors.New("mask image is empty")
	}

	algo := gocv.Telea
	switch opts.Method {
	case Telea, "":
	case NavierStokes:
		algo = gocv.NS
	default:
		return gocv.NewMat(), fmt.Errorf("unknown inpaint method %q", opts.Method)
	}
	radius := opts.Radius
	if radius <= 0 {
		radius = DefaultOptions().Radius
	}

	src := toInpaintable(mat)
	defer src.Close()

	binary := PrepareMask(mask, src.Cols(), src.Rows())
	defer binary.Close()
	if gocv.CountNonZero(binary) == 0 {
		return gocv.NewMat(), ErrEmptyMask
	}

	out := gocv.NewMat()
	gocv.Inpaint(src, binary, &out, float32(radius), algo)
	if out.Empty() {
		out.Close()
		return gocv.NewMat(), errors.New("inpainting produced an empty image")
	}
	return out, nil
}

// PrepareMask returns a single-channel 8-bit mask of cols x rows where every
// non-zero input pixel becomes 255.
func PrepareMask(mask gocv.Mat, cols, rows int) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	switch mask.Channels() {
	case 3:
		gocv.CvtColor(mask, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(mask, &gray, gocv.ColorBGRAToGray)
	default:
		mask.ConvertTo(&gray, gocv.MatTypeCV8U)
	}

	if gray.Cols() != cols || gray.Rows() != rows {
		resized := gocv.NewMat()
		gocv.Resize(gray, &resized, image.Pt(cols, rows), 0, 0, gocv.InterpolationNearestNeighbor)
		gray.Close()
		gray = resized
	}

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary)
	return binary
}

// OpenCV inpainting takes 8-bit gray or BGR input.
func toInpaintable(mat gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	switch {
	case mat.Channels() == 4:
		gocv.CvtColor(mat, &out, gocv.ColorBGRAToBGR)
	case mat.Type() != gocv.MatTypeCV8UC1 && mat.Type() != gocv.MatTypeCV8UC3:
		mat.ConvertTo(&out, gocv.MatTypeCV8U)
	default:
		mat.CopyTo(&out)
	}
	return out
}
