package compression

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func stripes(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC3)
	for y := 0; y < rows; y++ {
		for x := cols / 2; x < cols; x++ {
			m.SetUCharAt(y, x*3, 200)
			m.SetUCharAt(y, x*3+2, 50)
		}
	}
	return m
}

func TestRLERoundTrip(t *testing.T) {
	img := stripes(9, 7)
	defer img.Close()

	encoded, err := EncodeRLE(img)
	require.NoError(t, err)
	assert.Len(t, encoded.Channels, 3)

	decoded, err := DecodeRLE(encoded)
	require.NoError(t, err)
	defer decoded.Close()
	assert.Equal(t, img.ToBytes(), decoded.ToBytes())
	assert.Equal(t, img.Type(), decoded.Type())
}

func TestRLEUniformChannelIsOneRun(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(42, 0, 0, 0), 10, 10, gocv.MatTypeCV8U)
	defer img.Close()

	encoded, err := EncodeRLE(img)
	require.NoError(t, err)
	require.Len(t, encoded.Channels, 1)
	assert.Equal(t, []Run{{Value: 42, Count: 100}}, encoded.Channels[0])
	assert.Equal(t, 1, encoded.RunCount())
}

func TestRLEBytesRoundTrip(t *testing.T) {
	img := stripes(5, 6)
	defer img.Close()

	encoded, err := EncodeRLE(img)
	require.NoError(t, err)

	data := encoded.Bytes()
	assert.Len(t, data, encoded.EncodedSize())

	parsed, err := ParseRLE(data)
	require.NoError(t, err)
	assert.Equal(t, encoded, parsed)

	_, err = ParseRLE(data[:len(data)-1])
	assert.ErrorIs(t, err, ErrCorruptStream)
}

func TestDecodeRejectsWrongPixelCount(t *testing.T) {
	_, err := DecodeRLE(RLEImage{Rows: 2, Cols: 2, Channels: [][]Run{{{Value: 1, Count: 3}}}})
	assert.ErrorIs(t, err, ErrCorruptStream)

	_, err = DecodeRLE(RLEImage{Rows: 2, Cols: 2, Channels: [][]Run{{{Value: 1, Count: 5}}}})
	assert.ErrorIs(t, err, ErrCorruptStream)
}

func TestParseRejectsHostileStreams(t *testing.T) {
	header := func(rows, cols, channels uint64) []byte {
		var b []byte
		b = binary.AppendUvarint(b, rows)
		b = binary.AppendUvarint(b, cols)
		return binary.AppendUvarint(b, channels)
	}

	// 1<<40 x 1<<40 would overflow the sample buffer.
	huge := header(1<<40, 1<<40, 1)
	huge = binary.AppendUvarint(huge, 1)
	huge = append(huge, 7)
	huge = binary.AppendUvarint(huge, 1)
	_, err := ParseRLE(huge)
	assert.ErrorIs(t, err, ErrCorruptStream)

	// In-range size whose runs do not cover every pixel.
	short := header(100, 100, 1)
	short = binary.AppendUvarint(short, 1)
	short = append(short, 7)
	short = binary.AppendUvarint(short, 10)
	_, err = DecodeStream(short)
	assert.ErrorIs(t, err, ErrCorruptStream)

	// Runs that sum past the pixel count.
	long := header(2, 2, 1)
	long = binary.AppendUvarint(long, 2)
	long = append(long, 7)
	long = binary.AppendUvarint(long, 3)
	long = append(long, 8)
	long = binary.AppendUvarint(long, 3)
	_, err = ParseRLE(long)
	assert.ErrorIs(t, err, ErrCorruptStream)

	_, err = DecodeRLE(RLEImage{Rows: 1 << 20, Cols: 1 << 20, Channels: [][]Run{{{Value: 1, Count: 1}}}})
	assert.ErrorIs(t, err, ErrCorruptStream)
}

func TestCompressDCTKeepsShapeForOddSizes(t *testing.T) {
	img := stripes(15, 21)
	defer img.Close()

	out, err := CompressDCT(img, 0.25)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, 15, out.Rows())
	assert.Equal(t, 21, out.Cols())
	assert.Equal(t, 3, out.Channels())

	_, err = CompressDCT(img, 0)
	assert.Error(t, err)
}

func TestCompressDCTUniformIsLossless(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(120, 120, 120, 0), 8, 8, gocv.MatTypeCV8UC3)
	defer img.Close()

	out, err := CompressDCT(img, 0.25)
	require.NoError(t, err)
	defer out.Close()
	for _, v := range out.ToBytes() {
		assert.InDelta(t, 120, int(v), 1)
	}
}

func TestCompress(t *testing.T) {
	img := stripes(16, 16)
	defer img.Close()

	rle, err := Compress(img, RLE, DefaultOptions())
	require.NoError(t, err)
	defer rle.Close()
	assert.True(t, math.IsInf(rle.PSNR, 1))
	assert.Equal(t, 16*16*3, rle.RawSize)
	assert.Greater(t, rle.Ratio, 1.0)
	assert.NotEmpty(t, rle.JPEG)
	assert.Contains(t, rle.Summary(), "RLE")
	assert.Contains(t, rle.Summary(), "PSNR inf")
	assert.Equal(t, len(rle.Stream), rle.StreamSize)

	restored, err := DecodeStream(rle.Stream)
	require.NoError(t, err)
	defer restored.Close()
	assert.Equal(t, img.ToBytes(), restored.ToBytes())

	dct, err := Compress(img, DCT, DefaultOptions())
	require.NoError(t, err)
	defer dct.Close()
	assert.Equal(t, 4*4*3*4, dct.StreamSize)
	assert.Nil(t, dct.Stream)
	assert.False(t, math.IsInf(dct.PSNR, 1))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("DCT")
	require.NoError(t, err)
	assert.Equal(t, DCT, m)

	_, err = ParseMethod("zip")
	assert.Error(t, err)
}
