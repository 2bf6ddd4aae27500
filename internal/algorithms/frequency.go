// Frequency-domain operations on the grayscale image
package algorithms

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// FFTSpectrum renders the centred log-magnitude spectrum
type FFTSpectrum struct{ descriptor }

func NewFFTSpectrum() *FFTSpectrum {
	return &FFTSpectrum{descriptor{
		name:        "Fourier Transform",
		description: "Centred log-magnitude spectrum, 20*log(|F|+1), normalized for display",
	}}
}

func (f *FFTSpectrum) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	spectrum := forwardDFT(input)
	defer spectrum.Close()

	magnitude := complexMagnitude(spectrum)
	defer magnitude.Close()

	magnitude.AddFloat(1)
	logMag := gocv.NewMat()
	defer logMag.Close()
	gocv.Log(magnitude, &logMag)
	logMag.MultiplyFloat(20)

	shifted := fftShift(logMag)
	defer shifted.Close()

	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.Normalize(shifted, &normalized, 0, 255, gocv.NormMinMax)

	output := gocv.NewMat()
	normalized.ConvertTo(&output, gocv.MatTypeCV8U)
	return resultOrError(f.name, output)
}

// FrequencyPass keeps (low pass) or removes (high pass) a centred disc of the spectrum
type FrequencyPass struct {
	descriptor
	high bool
}

func NewFrequencyPass(high bool) *FrequencyPass {
	d := descriptor{
		name:        "Low Pass Filter",
		description: "Keep frequencies inside the radius around the spectrum centre",
		params: []ParameterInfo{
			intInfo("radius", 1, 1024, 30, "Cut-off radius in frequency samples"),
		},
	}
	if high {
		d.name = "High Pass Filter"
		d.description = "Remove frequencies inside the radius around the spectrum centre"
	}
	return &FrequencyPass{descriptor: d, high: high}
}

func (f *FrequencyPass) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	spectrum := forwardDFT(input)
	defer spectrum.Close()
	shifted := fftShift(spectrum)
	defer shifted.Close()

	mask := discMask(shifted.Rows(), shifted.Cols(), intParam(params, "radius", 30), f.high)
	defer mask.Close()

	parts := gocv.Split(shifted)
	for i := range parts {
		filtered := gocv.NewMat()
		gocv.Multiply(parts[i], mask, &filtered)
		parts[i].Close()
		parts[i] = filtered
	}
	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(parts, &merged)
	for _, p := range parts {
		p.Close()
	}

	unshifted := ifftShift(merged)
	defer unshifted.Close()

	back := gocv.NewMat()
	defer back.Close()
	gocv.DFT(unshifted, &back, gocv.DftInverse|gocv.DftScale)

	magnitude := complexMagnitude(back)
	defer magnitude.Close()

	output := gocv.NewMat()
	magnitude.ConvertTo(&output, gocv.MatTypeCV8U)
	return resultOrError(f.name, output)
}

// forwardDFT returns the two-channel complex spectrum of the grayscale image.
func forwardDFT(input gocv.Mat) gocv.Mat {
	gray := ToGray(input)
	defer gray.Close()

	samples := gocv.NewMat()
	defer samples.Close()
	gray.ConvertTo(&samples, gocv.MatTypeCV32F)

	spectrum := gocv.NewMat()
	gocv.DFT(samples, &spectrum, gocv.DftComplexOutput)
	return spectrum
}

func complexMagnitude(spectrum gocv.Mat) gocv.Mat {
	parts := gocv.Split(spectrum)
	defer func() {
		for _, p := range parts {
			p.Close()
		}
	}()

	magnitude := gocv.NewMat()
	gocv.Magnitude(parts[0], parts[1], &magnitude)
	return magnitude
}

// discMask is 1 inside the centred disc and 0 outside, inverted when outside is set.
func discMask(rows, cols, radius int, outside bool) gocv.Mat {
	fill, disc := 0.0, uint8(255)
	if outside {
		fill, disc = 255, 0
	}

	mask8 := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(fill, fill, fill, fill), rows, cols, gocv.MatTypeCV8U)
	defer mask8.Close()
	gocv.Circle(&mask8, image.Pt(cols/2, rows/2), radius, color.RGBA{R: disc, G: disc, B: disc, A: 255}, -1)

	mask := gocv.NewMat()
	mask8.ConvertToWithParams(&mask, gocv.MatTypeCV32F, 1.0/255, 0)
	return mask
}

// fftShift moves the zero frequency to the centre.
func fftShift(src gocv.Mat) gocv.Mat {
	return roll(src, src.Cols()/2, src.Rows()/2)
}

// ifftShift undoes fftShift, including for odd sizes.
func ifftShift(src gocv.Mat) gocv.Mat {
	return roll(src, src.Cols()-src.Cols()/2, src.Rows()-src.Rows()/2)
}

// roll cyclically shifts src by dx columns and dy rows.
func roll(src gocv.Mat, dx, dy int) gocv.Mat {
	cols, rows := src.Cols(), src.Rows()
	dx = ((dx % cols) + cols) % cols
	dy = ((dy % rows) + rows) % rows

	out := gocv.NewMatWithSize(rows, cols, src.Type())
	type span struct{ from, to, size int }
	xs := []span{{0, dx, cols - dx}, {cols - dx, 0, dx}}
	ys := []span{{0, dy, rows - dy}, {rows - dy, 0, dy}}

	for _, y := range ys {
		for _, x := range xs {
			if x.size == 0 || y.size == 0 {
				continue
			}
			from := src.Region(image.Rect(x.from, y.from, x.from+x.size, y.from+y.size))
			to := out.Region(image.Rect(x.to, y.to, x.to+x.size, y.to+y.size))
			from.CopyTo(&to)
			from.Close()
			to.Close()
		}
	}
	return out
}
