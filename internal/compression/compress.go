// Lossless (run-length) and lossy (DCT) image compression with size and
// quality reporting
package compression

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"gocv.io/x/gocv"

	"sona-picture-processing/internal/metrics"
)

// Method selects the compression scheme
type Method string

const (
	RLE Method = "rle"
	DCT Method = "dct"
)

var zeroColor = color.RGBA{}

// ParseMethod accepts "rle" or "dct" in any case.
func ParseMethod(name string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(name))); m {
	case RLE, DCT:
		return m, nil
	}
	return "", fmt.Errorf("unknown compression method %q (want rle or dct)", name)
}

// Options tunes Compress
type Options struct {
	Quality      int     `yaml:"jpeg_quality"`
	KeepFraction float64 `yaml:"dct_keep_fraction"`
}

func DefaultOptions() Options {
	return Options{Quality: 85, KeepFraction: 0.25}
}

// Result describes one compression run. The caller must Close it.
type Result struct {
	Method Method
	// Image is the decompressed image.
	Image gocv.Mat
	// JPEG is Image encoded at the requested quality, for download.
	JPEG []byte
	// Stream is the serialized run-length stream; nil for DCT.
	Stream []byte
	// RawSize is rows*cols*channels of the input.
	RawSize int
	// StreamSize is the RLE stream length, or 4 bytes per retained DCT coefficient.
	StreamSize int
	Ratio      float64
	PSNR       float64
	SSIM       float64
}

func (r *Result) Close() {
	r.Image.Close()
}

// Summary is a one-line human readable report.
func (r Result) Summary() string {
	psnr := "inf"
	if !math.IsInf(r.PSNR, 1) {
		psnr = fmt.Sprintf("%.2f dB", r.PSNR)
	}
	return fmt.Sprintf("%s: %s -> %s (%.2fx), jpeg %s, PSNR %s, SSIM %.4f",
		strings.ToUpper(string(r.Method)),
		humanize.Bytes(uint64(r.RawSize)),
		humanize.Bytes(uint64(r.StreamSize)),
		r.Ratio,
		humanize.Bytes(uint64(len(r.JPEG))),
		psnr, r.SSIM)
}

// Compress runs method over mat and scores the decompressed image against it.
func Compress(mat gocv.Mat, method Method, opts Options) (Result, error) {
	if mat.Empty() {
		return Result{}, fmt.Errorf("compress: input image is empty")
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultOptions().Quality
	}
	if opts.KeepFraction <= 0 || opts.KeepFraction > 1 {
		opts.KeepFraction = DefaultOptions().KeepFraction
	}

	res := Result{
		Method:  method,
		RawSize: mat.Rows() * mat.Cols() * mat.Channels(),
	}

	switch method {
	case RLE:
		encoded, err := EncodeRLE(mat)
		if err != nil {
			return Result{}, fmt.Errorf("rle encode: %w", err)
		}
		res.Stream = encoded.Bytes()
		decoded, err := DecodeStream(res.Stream)
		if err != nil {
			return Result{}, fmt.Errorf("rle decode: %w", err)
		}
		res.Image = decoded
		res.StreamSize = len(res.Stream)
	case DCT:
		out, err := CompressDCT(mat, opts.KeepFraction)
		if err != nil {
			return Result{}, fmt.Errorf("dct: %w", err)
		}
		res.Image = out
		res.StreamSize = 4 * retainedCoefficients(mat.Rows(), mat.Cols(), mat.Channels(), opts.KeepFraction)
	default:
		return Result{}, fmt.Errorf("unknown compression method %q", method)
	}

	if res.StreamSize > 0 {
		res.Ratio = float64(res.RawSize) / float64(res.StreamSize)
	}

	jpeg, err := EncodeJPEG(res.Image, opts.Quality)
	if err != nil {
		res.Close()
		return Result{}, err
	}
	res.JPEG = jpeg

	evaluator := metrics.NewEvaluator()
	if res.PSNR, err = evaluator.CalculatePSNR(mat, res.Image); err != nil {
		res.Close()
		return Result{}, fmt.Errorf("psnr: %w", err)
	}
	if res.SSIM, err = evaluator.CalculateSSIM(mat, res.Image); err != nil {
		res.Close()
		return Result{}, fmt.Errorf("ssim: %w", err)
	}
	return res, nil
}

// EncodeJPEG encodes mat as JPEG at quality (1..100). Alpha is dropped.
func EncodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	src := mat
	if mat.Channels() == 4 {
		src = gocv.NewMat()
		defer src.Close()
		gocv.CvtColor(mat, &src, gocv.ColorBGRAToBGR)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, src, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
