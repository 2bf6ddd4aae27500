// Background removal by intensity threshold or two-cluster k-means, with an
// optional white-to-transparent pass
package background

import (
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"sona-picture-processing/internal/algorithms"
)

// Method selects how the background is found
type Method string

const (
	// Threshold treats every pixel at or above mid-gray as background.
	Threshold Method = "threshold"
	// KMeans splits colours into two clusters and treats the brighter one as background.
	KMeans Method = "kmeans"
)

func ParseMethod(name string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(name))); m {
	case Threshold, KMeans:
		return m, nil
	}
	return "", fmt.Errorf("unknown background method %q (want threshold or kmeans)", name)
}

// Options tunes Remove
type Options struct {
	Method Method `yaml:"method"`
	// Transparent turns near-white pixels transparent after removal.
	Transparent bool `yaml:"transparent"`
	// WhiteLevel is the per-channel level at or above which a pixel counts as white.
	WhiteLevel int `yaml:"white_level"`
}

func DefaultOptions() Options {
	return Options{Method: Threshold, Transparent: false, WhiteLevel: 200}
}

const (
	truncLevel      = 127
	backgroundLevel = 126

	kmeansClusters = 2
	kmeansAttempts = 10
	kmeansMaxIter  = 100
	kmeansEpsilon  = 0.2
)

// Remove paints the background white, keeping foreground pixels. The result is
// BGR, or BGRA when opts.Transparent is set.
func Remove(mat gocv.Mat, opts Options) (gocv.Mat, error) {
	if mat.Empty() {
		return gocv.NewMat(), errors.New("input image is empty")
	}

	bgr := algorithms.ToBGR(mat)
	defer bgr.Close()

	var (
		out gocv.Mat
		err error
	)
	switch opts.Method {
	case Threshold, "":
		out, err = removeThreshold(bgr)
	case KMeans:
		out, err = removeKMeans(bgr)
	default:
		return gocv.NewMat(), fmt.Errorf("unknown background method %q", opts.Method)
	}
	if err != nil {
		return gocv.NewMat(), err
	}
	if !opts.Transparent {
		return out, nil
	}

	defer out.Close()
	return Transparent(out, opts.WhiteLevel)
}

func removeThreshold(bgr gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	baseline := gocv.NewMat()
	defer baseline.Close()
	gocv.Threshold(gray, &baseline, truncLevel, 255, gocv.ThresholdTrunc)

	background := gocv.NewMat()
	defer background.Close()
	gocv.Threshold(baseline, &background, backgroundLevel, 255, gocv.ThresholdBinary)

	foregroundMask := gocv.NewMat()
	defer foregroundMask.Close()
	gocv.Threshold(baseline, &foregroundMask, backgroundLevel, 255, gocv.ThresholdBinaryInv)

	foreground := gocv.NewMat()
	defer foreground.Close()
	gocv.BitwiseAndWithMask(bgr, bgr, &foreground, foregroundMask)

	backgroundBGR := gocv.NewMat()
	defer backgroundBGR.Close()
	gocv.CvtColor(background, &backgroundBGR, gocv.ColorGrayToBGR)

	out := gocv.NewMat()
	gocv.Add(backgroundBGR, foreground, &out)
	if out.Empty() {
		out.Close()
		return gocv.NewMat(), errors.New("threshold removal produced an empty image")
	}
	return out, nil
}

func removeKMeans(bgr gocv.Mat) (gocv.Mat, error) {
	pixels := bgr.Rows() * bgr.Cols()
	if pixels < kmeansClusters {
		return gocv.NewMat(), fmt.Errorf("k-means needs at least %d pixels", kmeansClusters)
	}

	samples := bgr.ToBytes()
	rows := bgr.Reshape(1, pixels)
	defer rows.Close()
	data := gocv.NewMat()
	defer data.Close()
	rows.ConvertTo(&data, gocv.MatTypeCV32F)

	labels := gocv.NewMat()
	defer labels.Close()
	centers := gocv.NewMat()
	defer centers.Close()
	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, kmeansMaxIter, kmeansEpsilon)
	gocv.KMeans(data, kmeansClusters, &labels, criteria, kmeansAttempts, gocv.KMeansRandomCenters, &centers)

	assigned, err := labels.DataPtrInt32()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("k-means labels: %w", err)
	}
	if len(assigned) != pixels || centers.Rows() < kmeansClusters {
		return gocv.NewMat(), errors.New("k-means did not converge")
	}

	backgroundCluster := int32(0)
	if clusterMean(centers, 1) > clusterMean(centers, 0) {
		backgroundCluster = 1
	}

	out := make([]byte, len(samples))
	for i, label := range assigned {
		px := out[i*3 : i*3+3]
		if label == backgroundCluster {
			px[0], px[1], px[2] = 255, 255, 255
			continue
		}
		copy(px, samples[i*3:i*3+3])
	}
	return algorithms.FromBytes(bgr.Rows(), bgr.Cols(), gocv.MatTypeCV8UC3, out)
}

func clusterMean(centers gocv.Mat, row int) float64 {
	sum := 0.0
	for c := 0; c < centers.Cols(); c++ {
		sum += float64(centers.GetFloatAt(row, c))
	}
	return sum / float64(centers.Cols())
}

// Transparent returns a BGRA copy of mat where every pixel whose B, G and R
// are all at least whiteLevel has alpha 0.
func Transparent(mat gocv.Mat, whiteLevel int) (gocv.Mat, error) {
	if mat.Empty() {
		return gocv.NewMat(), errors.New("input image is empty")
	}
	level := uint8(min(max(whiteLevel, 0), 255))

	bgr := algorithms.ToBGR(mat)
	defer bgr.Close()

	samples := bgr.ToBytes()
	pixels := len(samples) / 3
	out := make([]byte, pixels*4)
	for i := 0; i < pixels; i++ {
		b, g, r := samples[i*3], samples[i*3+1], samples[i*3+2]
		out[i*4], out[i*4+1], out[i*4+2] = b, g, r
		if b >= level && g >= level && r >= level {
			out[i*4+3] = 0
		} else {
			out[i*4+3] = 255
		}
	}
	return algorithms.FromBytes(bgr.Rows(), bgr.Cols(), gocv.MatTypeCV8UC4, out)
}
