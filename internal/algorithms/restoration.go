// Restoration filters
package algorithms

import (
	"math"

	"gocv.io/x/gocv"
)

// Wiener is the adaptive local-statistics Wiener filter, applied per channel
type Wiener struct{ descriptor }

func NewWiener() *Wiener {
	return &Wiener{descriptor{
		name:        "Wiener Filter",
		description: "Adaptive noise removal from local mean and variance",
		params: []ParameterInfo{
			intInfo("size", 3, 31, 5, "Window size"),
			floatInfo("noise", 0, 10000, 0, "Noise variance (0 estimates it as the mean local variance)"),
		},
	}}
}

func (w *Wiener) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	window := oddKernel(intParam(params, "size", 5))
	noise := floatParam(params, "noise", 0)

	channels := gocv.Split(input)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	filtered := make([]gocv.Mat, 0, len(channels))
	defer func() {
		for _, ch := range filtered {
			ch.Close()
		}
	}()

	for _, ch := range channels {
		out, err := wienerChannel(ch, window, noise)
		if err != nil {
			return gocv.NewMat(), err
		}
		filtered = append(filtered, out)
	}

	output := gocv.NewMat()
	gocv.Merge(filtered, &output)
	return resultOrError(w.name, output)
}

func wienerChannel(ch gocv.Mat, window int, noise float64) (gocv.Mat, error) {
	mean, sqMean, err := localMoments(ch, window)
	if err != nil {
		return gocv.NewMat(), err
	}

	variance := make([]float64, len(mean))
	total := 0.0
	for i := range mean {
		m := float64(mean[i])
		variance[i] = math.Max(float64(sqMean[i])-m*m, 0)
		total += variance[i]
	}
	if noise <= 0 && len(variance) > 0 {
		noise = total / float64(len(variance))
	}

	samples := ch.ToBytes()
	out := make([]byte, len(samples))
	for i, v := range samples {
		m := float64(mean[i])
		gain := 0.0
		if variance[i] > noise {
			gain = (variance[i] - noise) / variance[i]
		}
		out[i] = uint8(clamp(math.Round(m+gain*(float64(v)-m)), 0, 255))
	}
	return FromBytes(ch.Rows(), ch.Cols(), gocv.MatTypeCV8U, out)
}
