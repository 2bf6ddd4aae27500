package background

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// halfAndHalf is dark on the left half and bright on the right.
func halfAndHalf(t *testing.T) gocv.Mat {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 30, 30, 0), 20, 20, gocv.MatTypeCV8UC3)
	right := img.Region(image.Rect(10, 0, 20, 20))
	right.SetTo(gocv.NewScalar(210, 210, 210, 0))
	right.Close()
	return img
}

func pixel(m gocv.Mat, row, col int) gocv.Vecb {
	return m.GetVecbAt(row, col)
}

func TestRemoveThreshold(t *testing.T) {
	img := halfAndHalf(t)
	defer img.Close()

	out, err := Remove(img, DefaultOptions())
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 3, out.Channels())
	assert.Equal(t, gocv.Vecb{30, 30, 30}, pixel(out, 5, 2))
	assert.Equal(t, gocv.Vecb{255, 255, 255}, pixel(out, 5, 15))
}

func TestRemoveKMeans(t *testing.T) {
	img := halfAndHalf(t)
	defer img.Close()

	out, err := Remove(img, Options{Method: KMeans, WhiteLevel: 200})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, gocv.Vecb{30, 30, 30}, pixel(out, 3, 3))
	assert.Equal(t, gocv.Vecb{255, 255, 255}, pixel(out, 3, 17))
}

func TestRemoveTransparent(t *testing.T) {
	img := halfAndHalf(t)
	defer img.Close()

	opts := DefaultOptions()
	opts.Transparent = true
	out, err := Remove(img, opts)
	require.NoError(t, err)
	defer out.Close()

	require.Equal(t, 4, out.Channels())
	assert.Equal(t, uint8(255), pixel(out, 0, 0)[3])
	assert.Equal(t, uint8(0), pixel(out, 0, 19)[3])
}

func TestTransparentRespectsWhiteLevel(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(220, 220, 190, 0), 4, 4, gocv.MatTypeCV8UC3)
	defer img.Close()

	opaque, err := Transparent(img, 200)
	require.NoError(t, err)
	defer opaque.Close()
	assert.Equal(t, uint8(255), pixel(opaque, 1, 1)[3])

	cleared, err := Transparent(img, 180)
	require.NoError(t, err)
	defer cleared.Close()
	assert.Equal(t, uint8(0), pixel(cleared, 1, 1)[3])
	assert.Equal(t, uint8(190), pixel(cleared, 1, 1)[2])
}

func TestRemoveErrors(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := Remove(empty, DefaultOptions())
	assert.Error(t, err)

	img := halfAndHalf(t)
	defer img.Close()
	_, err = Remove(img, Options{Method: "magic"})
	assert.ErrorContains(t, err, "unknown background method")
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" KMeans ")
	require.NoError(t, err)
	assert.Equal(t, KMeans, m)

	_, err = ParseMethod("grabcut")
	assert.Error(t, err)
}

func TestRemoveAcceptsGrayAndBGRA(t *testing.T) {
	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 0, 0, 0), 8, 8, gocv.MatTypeCV8U)
	defer gray.Close()
	out, err := Remove(gray, DefaultOptions())
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, 3, out.Channels())
	assert.Equal(t, gocv.Vecb{30, 30, 30}, pixel(out, 4, 4))

	bgra := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(210, 210, 210, 255), 8, 8, gocv.MatTypeCV8UC4)
	defer bgra.Close()
	out2, err := Remove(bgra, DefaultOptions())
	require.NoError(t, err)
	defer out2.Close()
	assert.Equal(t, 3, out2.Channels())
	assert.Equal(t, gocv.Vecb{255, 255, 255}, pixel(out2, 4, 4))
}
