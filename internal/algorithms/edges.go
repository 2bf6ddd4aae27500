// Edge detectors. Every detector works on the grayscale image.
package algorithms

import (
	"gocv.io/x/gocv"
)

// Sobel computes the gradient magnitude, optionally binarized
type Sobel struct{ descriptor }

func NewSobel() *Sobel {
	return &Sobel{descriptor{
		name:        "Sobel Filter",
		description: "Gradient magnitude from horizontal and vertical Sobel derivatives",
		params: []ParameterInfo{
			intInfo("kernel_size", 1, 7, 3, "Derivative aperture (1, 3, 5 or 7)"),
			floatInfo("threshold", 0, 255, 0, "Binarize the magnitude at this level (0 keeps the raw magnitude)"),
		},
	}}
}

func (s *Sobel) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	gray := ToGray(input)
	defer gray.Close()

	k := oddKernel(intParam(params, "kernel_size", 3))
	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV32F, 1, 0, k, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV32F, 0, 1, k, 1, 0, gocv.BorderDefault)

	magnitude := gocv.NewMat()
	defer magnitude.Close()
	gocv.Magnitude(gx, gy, &magnitude)

	output := gocv.NewMat()
	gocv.ConvertScaleAbs(magnitude, &output, 1, 0)

	if t := floatParam(params, "threshold", 0); t > 0 {
		binary := gocv.NewMat()
		gocv.Threshold(output, &binary, float32(t), 255, gocv.ThresholdBinary)
		output.Close()
		output = binary
	}
	return resultOrError(s.name, output)
}

// Canny runs the Canny detector
type Canny struct{ descriptor }

func NewCanny() *Canny {
	return &Canny{descriptor{
		name:        "Canny Filter",
		description: "Canny edge detection with hysteresis thresholds",
		params: []ParameterInfo{
			floatInfo("low", 0, 500, 100, "Lower hysteresis threshold"),
			floatInfo("high", 0, 500, 200, "Upper hysteresis threshold"),
		},
	}}
}

func (c *Canny) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	gray := ToGray(input)
	defer gray.Close()

	low := floatParam(params, "low", 100)
	high := floatParam(params, "high", 200)
	if low > high {
		low, high = high, low
	}

	output := gocv.NewMat()
	gocv.Canny(gray, &output, float32(low), float32(high))
	return resultOrError(c.name, output)
}

// Laplacian takes the absolute second derivative
type Laplacian struct{ descriptor }

func NewLaplacian() *Laplacian {
	return &Laplacian{descriptor{
		name:        "Laplacian Filter",
		description: "Absolute Laplacian of the grayscale image",
		params: []ParameterInfo{
			intInfo("kernel_size", 1, 7, 1, "Aperture size"),
		},
	}}
}

func (l *Laplacian) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	gray := ToGray(input)
	defer gray.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV32F, oddKernel(intParam(params, "kernel_size", 1)), 1, 0, gocv.BorderDefault)

	output := gocv.NewMat()
	gocv.ConvertScaleAbs(lap, &output, 1, 0)
	return resultOrError(l.name, output)
}
