// Point operations on colour and intensity
package algorithms

import (
	"image/color"

	"gocv.io/x/gocv"
)

// Grayscale converts a colour image to a single intensity channel
type Grayscale struct{ descriptor }

func NewGrayscale() *Grayscale {
	return &Grayscale{descriptor{
		name:        "Grayscale",
		description: "Convert the image to a single luminance channel",
	}}
}

func (g *Grayscale) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}
	return resultOrError(g.name, ToGray(input))
}

// Negative inverts intensities. By default the image is reduced to grayscale first.
type Negative struct{ descriptor }

func NewNegative() *Negative {
	return &Negative{descriptor{
		name:        "Negative",
		description: "Invert pixel intensities",
		params: []ParameterInfo{
			boolInfo("preserve_color", false, "Invert every colour channel instead of the grayscale image"),
		},
	}}
}

func (n *Negative) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	src := input.Clone()
	if !boolParam(params, "preserve_color", false) {
		src.Close()
		src = ToGray(input)
	}
	defer src.Close()

	output := gocv.NewMat()
	gocv.BitwiseNot(src, &output)
	return resultOrError(n.name, output)
}

// ColorScale multiplies each colour channel by its own factor
type ColorScale struct{ descriptor }

func NewColorScale() *ColorScale {
	return &ColorScale{descriptor{
		name:        "Color Manipulation",
		description: "Scale the red, green and blue channels independently",
		params: []ParameterInfo{
			floatInfo("r", 0, 3, 1, "Red channel factor"),
			floatInfo("g", 0, 3, 1, "Green channel factor"),
			floatInfo("b", 0, 3, 1, "Blue channel factor"),
		},
	}}
}

func (c *ColorScale) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	bgr := ToBGR(input)
	defer bgr.Close()

	factors := []float64{
		floatParam(params, "b", 1),
		floatParam(params, "g", 1),
		floatParam(params, "r", 1),
	}

	channels := gocv.Split(bgr)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	scaled := make([]gocv.Mat, len(channels))
	for i, ch := range channels {
		scaled[i] = gocv.NewMat()
		ch.ConvertToWithParams(&scaled[i], gocv.MatTypeCV8U, float32(factors[i]), 0)
	}
	defer func() {
		for _, ch := range scaled {
			ch.Close()
		}
	}()

	output := gocv.NewMat()
	gocv.Merge(scaled, &output)
	return resultOrError(c.name, output)
}

// Brightness multiplies every sample by a factor
type Brightness struct{ descriptor }

func NewBrightness() *Brightness {
	return &Brightness{descriptor{
		name:        "Brightness",
		description: "Multiply pixel values by a brightness factor",
		params: []ParameterInfo{
			floatInfo("factor", 0, 3, 1, "Brightness factor (1 keeps the image unchanged)"),
		},
	}}
}

func (b *Brightness) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	output := gocv.NewMat()
	input.ConvertToWithParams(&output, gocv.MatTypeCV8U, float32(floatParam(params, "factor", 1)), 0)
	return resultOrError(b.name, output)
}

// Contrast stretches samples away from (or toward) the global mean
type Contrast struct{ descriptor }

func NewContrast() *Contrast {
	return &Contrast{descriptor{
		name:        "Contrast",
		description: "Scale the distance of every sample from the image mean",
		params: []ParameterInfo{
			floatInfo("factor", 0, 3, 1, "Contrast factor (1 keeps the image unchanged)"),
		},
	}}
}

func (c *Contrast) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	factor := floatParam(params, "factor", 1)
	mean := meanIntensity(input)

	// (x - mean) * factor + mean == factor*x + (1-factor)*mean
	output := gocv.NewMat()
	input.ConvertToWithParams(&output, gocv.MatTypeCV8U, float32(factor), float32((1-factor)*mean))
	return resultOrError(c.name, output)
}

// meanIntensity averages every sample of every channel.
func meanIntensity(input gocv.Mat) float64 {
	s := input.Mean()
	values := []float64{s.Val1, s.Val2, s.Val3, s.Val4}
	channels := clamp(input.Channels(), 1, 4)

	sum := 0.0
	for i := 0; i < channels; i++ {
		sum += values[i]
	}
	return sum / float64(channels)
}

// ColorFilter colorizes the grayscale image between two tones
type ColorFilter struct{ descriptor }

var colorFilterTones = map[string][2]color.RGBA{
	"sepia":     {{R: 0x70, G: 0x42, B: 0x14, A: 0xff}, {R: 0xC0, G: 0xA0, B: 0x80, A: 0xff}},
	"cyanotype": {{R: 0x00, G: 0x2B, B: 0x5B, A: 0xff}, {R: 0x8C, G: 0xF0, B: 0xE8, A: 0xff}},
}

func NewColorFilter() *ColorFilter {
	return &ColorFilter{descriptor{
		name:        "Color Filter",
		description: "Sepia or cyanotype toning",
		params: []ParameterInfo{
			enumInfo("filter", []string{"sepia", "cyanotype"}, "sepia", "Tone to apply"),
		},
	}}
}

func (c *ColorFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	tones := colorFilterTones[stringParam(params, "filter", "sepia")]
	dark, light := tones[0], tones[1]

	gray := ToGray(input)
	defer gray.Close()

	samples := gray.ToBytes()
	out := make([]byte, len(samples)*3)
	for i, v := range samples {
		t := float64(v) / 255
		out[i*3] = lerp(dark.B, light.B, t)
		out[i*3+1] = lerp(dark.G, light.G, t)
		out[i*3+2] = lerp(dark.R, light.R, t)
	}

	output, err := FromBytes(gray.Rows(), gray.Cols(), gocv.MatTypeCV8UC3, out)
	if err != nil {
		return gocv.NewMat(), err
	}
	return resultOrError(c.name, output)
}

func lerp(from, to uint8, t float64) uint8 {
	return uint8(clamp(float64(from)+(float64(to)-float64(from))*t+0.5, 0, 255))
}

// Border pads the image with a solid frame
type Border struct{ descriptor }

func NewBorder() *Border {
	return &Border{descriptor{
		name:        "Border",
		description: "Add a constant colour border around the image",
		params: []ParameterInfo{
			intInfo("thickness", 1, 200, 10, "Border width in pixels"),
			intInfo("r", 0, 255, 0, "Border red"),
			intInfo("g", 0, 255, 0, "Border green"),
			intInfo("b", 0, 255, 0, "Border blue"),
		},
	}}
}

func (b *Border) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	t := intParam(params, "thickness", 10)
	fill := color.RGBA{
		R: uint8(clamp(intParam(params, "r", 0), 0, 255)),
		G: uint8(clamp(intParam(params, "g", 0), 0, 255)),
		B: uint8(clamp(intParam(params, "b", 0), 0, 255)),
		A: 255,
	}

	output := gocv.NewMat()
	gocv.CopyMakeBorder(input, &output, t, t, t, t, gocv.BorderConstant, fill)
	return resultOrError(b.name, output)
}
