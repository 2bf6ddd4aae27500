// Filter algorithms for noise reduction and enhancement
package algorithms

import (
	"image"

	"gocv.io/x/gocv"
)

// MeanFilter is a normalized box blur
type MeanFilter struct{ descriptor }

func NewMeanFilter() *MeanFilter {
	return &MeanFilter{descriptor{
		name:        "Mean Filter",
		description: "Normalized box blur",
		params: []ParameterInfo{
			intInfo("kernel_size", 1, 31, 5, "Size of the averaging window"),
		},
	}}
}

func (m *MeanFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	k := intParam(params, "kernel_size", 5)
	output := gocv.NewMat()
	gocv.Blur(input, &output, image.Pt(k, k))
	return resultOrError(m.name, output)
}

// GaussianFilter implements Gaussian blur filter
type GaussianFilter struct{ descriptor }

// NewGaussianFilter creates a new Gaussian filter algorithm
func NewGaussianFilter() *GaussianFilter {
	return &GaussianFilter{descriptor{
		name:        "Gaussian Filter",
		description: "Gaussian blur for general noise reduction",
		params: []ParameterInfo{
			intInfo("kernel_size", 1, 31, 5, "Size of the Gaussian kernel (must be odd)"),
			floatInfo("sigma", 0, 10, 1, "Standard deviation (0 derives it from the kernel size)"),
		},
	}}
}

func (g *GaussianFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	k := oddKernel(intParam(params, "kernel_size", 5))
	sigma := floatParam(params, "sigma", 1)

	output := gocv.NewMat()
	gocv.GaussianBlur(input, &output, image.Pt(k, k), sigma, sigma, gocv.BorderDefault)
	return resultOrError(g.name, output)
}

// MedianFilter implements median filter
type MedianFilter struct{ descriptor }

// NewMedianFilter creates a new median filter algorithm
func NewMedianFilter() *MedianFilter {
	return &MedianFilter{descriptor{
		name:        "Median Filter",
		description: "Median filter to remove salt-and-pepper noise",
		params: []ParameterInfo{
			intInfo("kernel_size", 3, 15, 3, "Size of the median filter kernel (must be odd)"),
		},
	}}
}

func (m *MedianFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	output := gocv.NewMat()
	gocv.MedianBlur(input, &output, oddKernel(intParam(params, "kernel_size", 3)))
	return resultOrError(m.name, output)
}

// BilateralFilter smooths while keeping edges
type BilateralFilter struct{ descriptor }

func NewBilateralFilter() *BilateralFilter {
	return &BilateralFilter{descriptor{
		name:        "Bilateral Filter",
		description: "Edge-preserving smoothing",
		params: []ParameterInfo{
			intInfo("d", 1, 25, 9, "Diameter of each pixel neighborhood"),
			floatInfo("sigma_color", 1, 200, 75, "Filter sigma in the color space"),
			floatInfo("sigma_space", 1, 200, 75, "Filter sigma in the coordinate space"),
		},
	}}
}

func (b *BilateralFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	// OpenCV only accepts 1 or 3 channel 8-bit input here.
	src := input
	if input.Channels() == 4 {
		src = ToBGR(input)
		defer src.Close()
	}

	output := gocv.NewMat()
	gocv.BilateralFilter(src, &output,
		intParam(params, "d", 9),
		floatParam(params, "sigma_color", 75),
		floatParam(params, "sigma_space", 75))
	return resultOrError(b.name, output)
}

// Sharpen convolves with a 3x3 sharpening kernel
type Sharpen struct{ descriptor }

var sharpenKernel = []float32{
	0, -1, 0,
	-1, 5, -1,
	0, -1, 0,
}

func NewSharpen() *Sharpen {
	return &Sharpen{descriptor{
		name:        "Sharpen",
		description: "Emphasize detail with a Laplacian sharpening kernel",
	}}
}

func (s *Sharpen) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for i, v := range sharpenKernel {
		kernel.SetFloatAt(i/3, i%3, v)
	}

	output := gocv.NewMat()
	gocv.Filter2D(input, &output, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
	return resultOrError(s.name, output)
}
