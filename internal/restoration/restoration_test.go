package restoration

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestInpaintFillsScratch(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 120, 150, 0), 40, 40, gocv.MatTypeCV8UC3)
	defer img.Close()
	gocv.Line(&img, image.Pt(0, 20), image.Pt(39, 20), color.RGBA{R: 255, G: 255, B: 255, A: 255}, 1)

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 40, 40, gocv.MatTypeCV8U)
	defer mask.Close()
	gocv.Line(&mask, image.Pt(0, 20), image.Pt(39, 20), color.RGBA{R: 255, G: 255, B: 255, A: 255}, 1)

	for _, method := range []Method{Telea, NavierStokes} {
		out, err := Inpaint(img, mask, Options{Method: method, Radius: 3})
		require.NoError(t, err, method)

		px := out.GetVecbAt(20, 20)
		assert.InDelta(t, 90, int(px[0]), 10, method)
		assert.InDelta(t, 150, int(px[2]), 10, method)
		out.Close()
	}
}

func TestPrepareMaskResizesColourMask(t *testing.T) {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 7, 0), 10, 10, gocv.MatTypeCV8UC3)
	defer mask.Close()

	out := PrepareMask(mask, 20, 30)
	defer out.Close()
	assert.Equal(t, 1, out.Channels())
	assert.Equal(t, 20, out.Cols())
	assert.Equal(t, 30, out.Rows())
	assert.Equal(t, uint8(255), out.GetUCharAt(0, 0))
}

func TestInpaintErrors(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 1, 1, 0), 8, 8, gocv.MatTypeCV8UC3)
	defer img.Close()
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 8, 8, gocv.MatTypeCV8U)
	defer blank.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := Inpaint(img, blank, DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyMask)

	_, err = Inpaint(img, empty, DefaultOptions())
	assert.ErrorContains(t, err, "mask image is empty")

	_, err = Inpaint(empty, blank, DefaultOptions())
	assert.ErrorContains(t, err, "input image is empty")

	_, err = Inpaint(img, img, Options{Method: "fmm"})
	assert.ErrorContains(t, err, "unknown inpaint method")
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, Telea, m)

	m, err = ParseMethod("NS")
	require.NoError(t, err)
	assert.Equal(t, NavierStokes, m)

	_, err = ParseMethod("patch")
	assert.Error(t, err)
}
