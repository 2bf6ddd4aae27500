package stitching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestStitchNeedsTwoImages(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 0), 10, 10, gocv.MatTypeCV8UC3)
	defer img.Close()

	_, err := Stitch(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrNeedMoreImages)

	_, err = Stitch([]gocv.Mat{img}, DefaultOptions())
	assert.ErrorIs(t, err, ErrNeedMoreImages)
}

func TestStitchRejectsEmptyImage(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 0), 10, 10, gocv.MatTypeCV8UC3)
	defer img.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := Stitch([]gocv.Mat{img, empty}, DefaultOptions())
	assert.ErrorContains(t, err, "image 2 is empty")
}

func TestStitchFeaturelessImagesFails(t *testing.T) {
	a := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 50, 50, 0), 60, 60, gocv.MatTypeCV8UC3)
	defer a.Close()
	b := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 50, 50, 0), 60, 60, gocv.MatTypeCV8UC3)
	defer b.Close()

	_, err := Stitch([]gocv.Mat{a, b}, DefaultOptions())
	assert.ErrorContains(t, err, "stitching failed")
}

func TestPrepareLimitsWidth(t *testing.T) {
	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(9, 0, 0, 0), 100, 400, gocv.MatTypeCV8U)
	defer gray.Close()

	out := prepare(gray, 200)
	defer out.Close()
	assert.Equal(t, 200, out.Cols())
	assert.Equal(t, 50, out.Rows())
	assert.Equal(t, 3, out.Channels())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Panorama, m)

	m, err = ParseMode("Scans")
	require.NoError(t, err)
	assert.Equal(t, Scans, m)

	_, err = ParseMode("cylinder")
	assert.Error(t, err)
}
