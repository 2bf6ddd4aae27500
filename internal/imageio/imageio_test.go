package imageio

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"golang.org/x/image/tiff"
)

func newLoader() *ImageLoader {
	logger, _ := test.NewNullLogger()
	return NewImageLoader(logger, 72)
}

func solid(rows, cols int, b, g, r float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func TestSaveLoadPNG(t *testing.T) {
	il := newLoader()
	img := solid(12, 20, 10, 20, 30)
	defer img.Close()

	path := filepath.Join(t.TempDir(), "nested", "out.png")
	require.NoError(t, il.Save(img, path))

	loaded, err := il.Load(path)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Equal(t, 20, loaded.Cols())
	assert.Equal(t, 12, loaded.Rows())
	assert.Equal(t, gocv.Vecb{10, 20, 30}, loaded.GetVecbAt(3, 3))
}

func TestSaveJPEGDropsAlpha(t *testing.T) {
	il := newLoader()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), 8, 8, gocv.MatTypeCV8UC4)
	defer img.Close()

	path := filepath.Join(t.TempDir(), "out.jpg")
	require.NoError(t, il.Save(img, path))

	loaded, err := il.Load(path)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Equal(t, 3, loaded.Channels())
}

func TestUnsupportedFormats(t *testing.T) {
	il := newLoader()
	img := solid(2, 2, 0, 0, 0)
	defer img.Close()

	_, err := il.Load("picture.gif")
	assert.ErrorContains(t, err, "unsupported image format")
	assert.ErrorContains(t, il.Save(img, filepath.Join(t.TempDir(), "x.webp")), "unsupported image format")

	empty := gocv.NewMat()
	defer empty.Close()
	assert.Error(t, il.Save(empty, filepath.Join(t.TempDir(), "x.png")))

	assert.True(t, IsReadable("scan.PDF"))
	assert.False(t, IsWritable("scan.pdf"))
}

func TestLoadBytesTIFF(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, src, nil))

	mat, err := newLoader().LoadBytes(buf.Bytes(), "in.tiff")
	require.NoError(t, err)
	defer mat.Close()
	assert.Equal(t, 6, mat.Cols())
	assert.Equal(t, gocv.Vecb{50, 100, 200}, mat.GetVecbAt(1, 1)[:3])
}

func TestLoadBytesGarbage(t *testing.T) {
	_, err := newLoader().LoadBytes([]byte("not an image"), "junk")
	assert.Error(t, err)

	_, err = newLoader().LoadBytes(nil, "nothing")
	assert.ErrorContains(t, err, "empty")
}

func TestLoadAllKeepsOrder(t *testing.T) {
	il := newLoader()
	dir := t.TempDir()
	var paths []string
	for i, width := range []int{5, 7, 9} {
		img := solid(4, width, float64(i), 0, 0)
		path := filepath.Join(dir, ResultName("part", "png"))
		require.NoError(t, il.Save(img, path))
		img.Close()
		paths = append(paths, path)
	}

	mats, err := il.LoadAll(context.Background(), paths, 2)
	require.NoError(t, err)
	require.Len(t, mats, 3)
	for i, m := range mats {
		assert.Equal(t, 5+2*i, m.Cols())
		m.Close()
	}

	_, err = il.LoadAll(context.Background(), append(paths, filepath.Join(dir, "missing.png")), 2)
	assert.Error(t, err)
}

func TestDataURIRoundTrip(t *testing.T) {
	img := solid(3, 3, 1, 2, 3)
	defer img.Close()

	uri, err := DataURI(img)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	back, err := DecodeDataURI(uri)
	require.NoError(t, err)
	defer back.Close()
	assert.Equal(t, gocv.Vecb{1, 2, 3}, back.GetVecbAt(1, 1))

	_, err = DecodeDataURI("data:image/jpeg;base64,AAAA")
	assert.Error(t, err)
}

func TestThumbnail(t *testing.T) {
	img := solid(100, 400, 0, 0, 0)
	defer img.Close()

	thumb, err := Thumbnail(img, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, thumb.Bounds().Dx())
	assert.Equal(t, 16, thumb.Bounds().Dy())

	small := solid(10, 10, 0, 0, 0)
	defer small.Close()
	same, err := Thumbnail(small, 64)
	require.NoError(t, err)
	assert.Equal(t, 10, same.Bounds().Dx())
}

func TestFromImageTransparency(t *testing.T) {
	opaque := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 255
	}
	m, err := FromImage(opaque)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Channels())
	m.Close()

	transparent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	m, err = FromImage(transparent)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Channels())
	m.Close()
}

func TestResultName(t *testing.T) {
	name := ResultName("gaussian", "jpg")
	assert.Regexp(t, `^gaussian-[0-9a-f-]{36}\.jpg$`, name)
	assert.NotEqual(t, name, ResultName("gaussian", "jpg"))
	assert.True(t, strings.HasPrefix(ResultName("", ""), "result-"))
}
