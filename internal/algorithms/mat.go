package algorithms

import (
	"fmt"

	"gocv.io/x/gocv"
)

// MaxDimension is the largest width or height accepted for an image.
const MaxDimension = 16384

// ToGray returns a new single-channel copy of input. The caller owns the result.
func ToGray(input gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch input.Channels() {
	case 1:
		input.CopyTo(&gray)
	case 4:
		gocv.CvtColor(input, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(input, &gray, gocv.ColorBGRToGray)
	}
	return gray
}

// ToBGR returns a new three-channel copy of input. The caller owns the result.
func ToBGR(input gocv.Mat) gocv.Mat {
	bgr := gocv.NewMat()
	switch input.Channels() {
	case 1:
		gocv.CvtColor(input, &bgr, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(input, &bgr, gocv.ColorBGRAToBGR)
	default:
		input.CopyTo(&bgr)
	}
	return bgr
}

// FromBytes wraps a pixel buffer in a new Mat of the given shape.
func FromBytes(rows, cols int, mt gocv.MatType, data []byte) (gocv.Mat, error) {
	mat, err := gocv.NewMatFromBytes(rows, cols, mt, data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build result image: %w", err)
	}
	// NewMatFromBytes may alias data; clone so the Mat owns its pixels.
	owned := mat.Clone()
	mat.Close()
	return owned, nil
}

func checkInput(input gocv.Mat) error {
	if input.Empty() {
		return ErrEmptyInput
	}
	return nil
}

func resultOrError(name string, output gocv.Mat) (gocv.Mat, error) {
	if output.Empty() {
		output.Close()
		return gocv.NewMat(), fmt.Errorf("%s produced an empty image", name)
	}
	return output, nil
}
