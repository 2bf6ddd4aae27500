// Histogram and tone-curve enhancement
package algorithms

import (
	"math"

	"gocv.io/x/gocv"
)

// HistogramEqualization equalizes the gray image, or the luma of a colour image
type HistogramEqualization struct{ descriptor }

func NewHistogramEqualization() *HistogramEqualization {
	return &HistogramEqualization{descriptor{
		name:        "Histogram Equalization",
		description: "Spread intensities over the full range; colour images are equalized on luma only",
	}}
}

func (h *HistogramEqualization) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	output := gocv.NewMat()
	if input.Channels() == 1 {
		gocv.EqualizeHist(input, &output)
		return resultOrError(h.name, output)
	}

	bgr := ToBGR(input)
	defer bgr.Close()
	yuv := gocv.NewMat()
	defer yuv.Close()
	gocv.CvtColor(bgr, &yuv, gocv.ColorBGRToYUV)

	planes := gocv.Split(yuv)
	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()
	luma := gocv.NewMat()
	gocv.EqualizeHist(planes[0], &luma)
	planes[0].Close()
	planes[0] = luma

	gocv.Merge(planes, &yuv)
	gocv.CvtColor(yuv, &output, gocv.ColorYUVToBGR)
	return resultOrError(h.name, output)
}

// ContrastStretching maps the [low, high] percentile range onto 0..255
type ContrastStretching struct{ descriptor }

func NewContrastStretching() *ContrastStretching {
	return &ContrastStretching{descriptor{
		name:        "Contrast Stretching",
		description: "Linearly stretch the percentile range to the full intensity range",
		params: []ParameterInfo{
			floatInfo("low", 0, 50, 2, "Lower percentile"),
			floatInfo("high", 50, 100, 98, "Upper percentile"),
		},
	}}
}

func (c *ContrastStretching) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	samples := input.ToBytes()
	lo := percentile(samples, floatParam(params, "low", 2))
	hi := percentile(samples, floatParam(params, "high", 98))

	output := gocv.NewMat()
	if hi-lo < 1e-9 {
		input.CopyTo(&output)
		return resultOrError(c.name, output)
	}

	alpha := 255 / (hi - lo)
	input.ConvertToWithParams(&output, gocv.MatTypeCV8U, float32(alpha), float32(-lo*alpha))
	return resultOrError(c.name, output)
}

// percentile interpolates linearly between closest ranks of the 8-bit samples.
func percentile(samples []byte, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var hist [256]int
	for _, v := range samples {
		hist[v]++
	}

	rank := clamp(p, 0, 100) / 100 * float64(len(samples)-1)
	below := int(math.Floor(rank))
	frac := rank - float64(below)

	lower := valueAtRank(&hist, below)
	if frac == 0 {
		return float64(lower)
	}
	upper := valueAtRank(&hist, below+1)
	return float64(lower) + frac*float64(upper-lower)
}

func valueAtRank(hist *[256]int, rank int) int {
	seen := 0
	for v, n := range hist {
		seen += n
		if seen > rank {
			return v
		}
	}
	return 255
}

// Gamma applies a power-law tone curve through a lookup table
type Gamma struct{ descriptor }

func NewGamma() *Gamma {
	return &Gamma{descriptor{
		name:        "Gamma Correction",
		description: "out = 255 * (in/255)^(1/gamma); gamma above 1 brightens",
		params: []ParameterInfo{
			floatInfo("gamma", 0.1, 5, 1, "Gamma value"),
		},
	}}
}

func (g *Gamma) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	table, err := FromBytes(1, 256, gocv.MatTypeCV8U, gammaTable(floatParam(params, "gamma", 1)))
	if err != nil {
		return gocv.NewMat(), err
	}
	defer table.Close()

	output := gocv.NewMat()
	gocv.LUT(input, table, &output)
	return resultOrError(g.name, output)
}

func gammaTable(gamma float64) []byte {
	inv := 1 / gamma
	table := make([]byte, 256)
	for i := range table {
		table[i] = uint8(clamp(math.Round(255*math.Pow(float64(i)/255, inv)), 0, 255))
	}
	return table
}
