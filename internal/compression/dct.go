package compression

import (
	"errors"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// CompressDCT keeps the low-frequency top-left block of each channel's DCT,
// keepFraction of each axis, and transforms back. OpenCV's DCT needs even
// sizes, so odd images are padded by replication and cropped afterwards.
func CompressDCT(mat gocv.Mat, keepFraction float64) (gocv.Mat, error) {
	if mat.Empty() {
		return gocv.NewMat(), errors.New("input image is empty")
	}
	if keepFraction <= 0 || keepFraction > 1 {
		return gocv.NewMat(), errors.New("keep fraction must be in (0, 1]")
	}

	channels := gocv.Split(mat)
	defer closeAll(channels)

	out := make([]gocv.Mat, 0, len(channels))
	defer func() { closeAll(out) }()
	for _, ch := range channels {
		out = append(out, dctChannel(ch, keepFraction))
	}

	merged := gocv.NewMat()
	gocv.Merge(out, &merged)
	if merged.Empty() {
		merged.Close()
		return gocv.NewMat(), errors.New("dct compression produced an empty image")
	}
	return merged, nil
}

func dctChannel(ch gocv.Mat, keepFraction float64) gocv.Mat {
	rows, cols := ch.Rows(), ch.Cols()

	samples := gocv.NewMat()
	defer samples.Close()
	ch.ConvertToWithParams(&samples, gocv.MatTypeCV32F, 1.0/255, 0)

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(samples, &padded, 0, rows%2, 0, cols%2, gocv.BorderReplicate, zeroColor)

	coeffs := gocv.NewMat()
	defer coeffs.Close()
	gocv.DCT(padded, &coeffs, 0)

	keepRows := max(1, int(math.Floor(float64(padded.Rows())*keepFraction)))
	keepCols := max(1, int(math.Floor(float64(padded.Cols())*keepFraction)))
	block := image.Rect(0, 0, keepCols, keepRows)

	kept := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), padded.Rows(), padded.Cols(), gocv.MatTypeCV32F)
	defer kept.Close()
	src := coeffs.Region(block)
	dst := kept.Region(block)
	src.CopyTo(&dst)
	src.Close()
	dst.Close()

	back := gocv.NewMat()
	defer back.Close()
	gocv.DCT(kept, &back, gocv.DftInverse)

	restored := gocv.NewMat()
	defer restored.Close()
	back.ConvertToWithParams(&restored, gocv.MatTypeCV8U, 255, 0)

	crop := restored.Region(image.Rect(0, 0, cols, rows))
	defer crop.Close()
	return crop.Clone()
}

// retainedCoefficients counts the coefficients CompressDCT keeps for mat.
func retainedCoefficients(rows, cols, channels int, keepFraction float64) int {
	r := rows + rows%2
	c := cols + cols%2
	keepRows := max(1, int(math.Floor(float64(r)*keepFraction)))
	keepCols := max(1, int(math.Floor(float64(c)*keepFraction)))
	return keepRows * keepCols * channels
}

func closeAll(mats []gocv.Mat) {
	for _, m := range mats {
		m.Close()
	}
}
