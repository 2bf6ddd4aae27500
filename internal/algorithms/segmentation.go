// Thresholding and binarization
package algorithms

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// GlobalThreshold binarizes the grayscale image at a fixed level
type GlobalThreshold struct{ descriptor }

func NewGlobalThreshold() *GlobalThreshold {
	return &GlobalThreshold{descriptor{
		name:        "Threshold",
		description: "Global binary threshold of the grayscale image",
		params: []ParameterInfo{
			floatInfo("threshold", 0, 255, 127, "Threshold level"),
			floatInfo("max_value", 0, 255, 255, "Value assigned above the threshold"),
			boolInfo("invert", false, "Swap foreground and background"),
		},
	}}
}

func (g *GlobalThreshold) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	gray := ToGray(input)
	defer gray.Close()

	typ := gocv.ThresholdBinary
	if boolParam(params, "invert", false) {
		typ = gocv.ThresholdBinaryInv
	}

	output := gocv.NewMat()
	gocv.Threshold(gray, &output,
		float32(floatParam(params, "threshold", 127)),
		float32(floatParam(params, "max_value", 255)), typ)
	return resultOrError(g.name, output)
}

// AdaptiveThreshold thresholds each pixel against its neighbourhood
type AdaptiveThreshold struct{ descriptor }

func NewAdaptiveThreshold() *AdaptiveThreshold {
	return &AdaptiveThreshold{descriptor{
		name:        "Adaptive Threshold",
		description: "Threshold against the local mean or Gaussian-weighted mean",
		params: []ParameterInfo{
			enumInfo("method", []string{"mean", "gaussian"}, "mean", "Adaptive method"),
			intInfo("block_size", 3, 101, 11, "Size of neighborhood area"),
			floatInfo("C", -20, 20, 2, "Constant subtracted from the mean"),
		},
	}}
}

func (a *AdaptiveThreshold) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	gray := ToGray(input)
	defer gray.Close()

	method := gocv.AdaptiveThresholdMean
	if stringParam(params, "method", "mean") == "gaussian" {
		method = gocv.AdaptiveThresholdGaussian
	}
	block := max(oddKernel(intParam(params, "block_size", 11)), 3)

	output := gocv.NewMat()
	gocv.AdaptiveThreshold(gray, &output, 255, method, gocv.ThresholdBinary, block, float32(floatParam(params, "C", 2)))
	return resultOrError(a.name, output)
}

// MultiOtsu implements Otsu thresholding with two or three output levels
type MultiOtsu struct{ descriptor }

func NewMultiOtsu() *MultiOtsu {
	return &MultiOtsu{descriptor{
		name:        "Otsu Threshold",
		description: "Otsu binarization; three levels adds a second threshold over the upper class",
		params: []ParameterInfo{
			intInfo("levels", 2, 3, 2, "Number of output levels (2 = classic binary Otsu)"),
		},
	}}
}

func (m *MultiOtsu) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	gray := ToGray(input)
	defer gray.Close()

	samples := gray.ToBytes()
	hist := normalizedHistogram(samples)

	thresholds := []int{otsuThreshold(hist)}
	if intParam(params, "levels", 2) == 3 {
		thresholds = append(thresholds, secondOtsuThreshold(hist, thresholds[0]))
	}

	out := make([]byte, len(samples))
	for i, v := range samples {
		level := 0
		for _, t := range thresholds {
			if int(v) > t {
				level++
			}
		}
		out[i] = uint8(level * 255 / len(thresholds))
	}

	output, err := FromBytes(gray.Rows(), gray.Cols(), gocv.MatTypeCV8U, out)
	if err != nil {
		return gocv.NewMat(), err
	}
	return resultOrError(m.name, output)
}

func normalizedHistogram(samples []byte) []float64 {
	hist := make([]float64, 256)
	for _, v := range samples {
		hist[v]++
	}
	total := float64(len(samples))
	for i := range hist {
		hist[i] /= total
	}
	return hist
}

// otsuThreshold maximizes the between-class variance over hist.
func otsuThreshold(hist []float64) int {
	sum := 0.0
	for i, p := range hist {
		sum += float64(i) * p
	}

	var sumB, wB, best float64
	level := 0
	for t, p := range hist {
		wB += p
		if wB == 0 {
			continue
		}
		wF := 1 - wB
		if wF <= 1e-12 {
			break
		}

		sumB += float64(t) * p
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = t
		}
	}
	return level
}

// secondOtsuThreshold splits the class above first with another Otsu pass.
func secondOtsuThreshold(hist []float64, first int) int {
	upper := make([]float64, len(hist)-first-1)
	total := 0.0
	for i := range upper {
		upper[i] = hist[first+1+i]
		total += upper[i]
	}
	if total == 0 {
		return 255
	}
	for i := range upper {
		upper[i] /= total
	}
	return first + 1 + otsuThreshold(upper)
}

// LocalThreshold binarizes with Niblack or Sauvola local statistics
type LocalThreshold struct {
	descriptor
	sauvola bool
}

func NewNiblack() *LocalThreshold {
	return &LocalThreshold{descriptor: descriptor{
		name:        "Niblack",
		description: "Local threshold T = mean + k*std over a sliding window",
		params: []ParameterInfo{
			intInfo("window_size", 3, 101, 15, "Local window size for statistics calculation"),
			floatInfo("k", -1, 1, -0.2, "Niblack parameter (negative values preserve more text)"),
		},
	}}
}

func NewSauvola() *LocalThreshold {
	return &LocalThreshold{sauvola: true, descriptor: descriptor{
		name:        "Sauvola",
		description: "Local threshold T = mean * (1 + k*(std/R - 1)) over a sliding window",
		params: []ParameterInfo{
			intInfo("window_size", 3, 101, 15, "Local window size for statistics calculation"),
			floatInfo("k", 0, 1, 0.5, "Sauvola parameter"),
			floatInfo("R", 1, 255, 128, "Dynamic range of standard deviation"),
		},
	}}
}

func (l *LocalThreshold) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	gray := ToGray(input)
	defer gray.Close()

	mean, sqMean, err := localMoments(gray, oddKernel(intParam(params, "window_size", 15)))
	if err != nil {
		return gocv.NewMat(), err
	}

	k := floatParam(params, "k", -0.2)
	if l.sauvola {
		k = floatParam(params, "k", 0.5)
	}
	r := floatParam(params, "R", 128)

	samples := gray.ToBytes()
	out := make([]byte, len(samples))
	for i, v := range samples {
		m := float64(mean[i])
		std := math.Sqrt(math.Max(float64(sqMean[i])-m*m, 0))

		t := m + k*std
		if l.sauvola {
			t = m * (1 + k*(std/r-1))
		}
		if float64(v) > t {
			out[i] = 255
		}
	}

	output, err := FromBytes(gray.Rows(), gray.Cols(), gocv.MatTypeCV8U, out)
	if err != nil {
		return gocv.NewMat(), err
	}
	return resultOrError(l.name, output)
}

// localMoments returns the windowed mean and mean of squares of gray, row-major.
func localMoments(gray gocv.Mat, window int) ([]float32, []float32, error) {
	samples := gocv.NewMat()
	defer samples.Close()
	gray.ConvertTo(&samples, gocv.MatTypeCV32F)

	squares := gocv.NewMat()
	defer squares.Close()
	gocv.Multiply(samples, samples, &squares)

	size := image.Pt(window, window)
	mean := gocv.NewMat()
	defer mean.Close()
	gocv.Blur(samples, &mean, size)
	sqMean := gocv.NewMat()
	defer sqMean.Close()
	gocv.Blur(squares, &sqMean, size)

	m, err := mean.DataPtrFloat32()
	if err != nil {
		return nil, nil, err
	}
	sq, err := sqMean.DataPtrFloat32()
	if err != nil {
		return nil, nil, err
	}
	// Copy out of Mat memory before the deferred Close runs.
	return append([]float32(nil), m...), append([]float32(nil), sq...), nil
}
