package matching

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func textured(size int) gocv.Mat {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 30, 30, 0), size, size, gocv.MatTypeCV8UC3)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for i := 0; i < 6; i++ {
		x := 20 + i*45
		y := 30 + (i%3)*70
		gocv.Rectangle(&img, image.Rect(x, y, x+30, y+25), white, -1)
		gocv.Circle(&img, image.Pt(x+10, y+50), 8, color.RGBA{R: 200, G: 80, B: 20, A: 255}, -1)
	}
	return img
}

func TestMatchSelf(t *testing.T) {
	img := textured(300)
	defer img.Close()

	res, err := Match(img, img, DefaultOptions())
	require.NoError(t, err)
	defer res.Close()

	assert.Positive(t, res.Matches)
	assert.LessOrEqual(t, res.Drawn, 10)
	assert.Equal(t, res.QueryKeypoints, res.TrainKeypoints)
	assert.Zero(t, res.BestDistance)
	assert.Equal(t, 600, res.Image.Cols())
	assert.Contains(t, res.Summary(), "matches")
}

func TestMatchWithoutFeatures(t *testing.T) {
	flat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 100, 100, gocv.MatTypeCV8UC3)
	defer flat.Close()
	img := textured(300)
	defer img.Close()

	_, err := Match(flat, img, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoFeatures)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = Match(empty, img, DefaultOptions())
	assert.Error(t, err)
}
