// Concrete implementations of quality metrics
package metrics

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// alignChannels returns copies of a and b in a shared channel layout: unchanged
// when the channel counts agree, otherwise both reduced to grayscale.
func alignChannels(a, b gocv.Mat) (gocv.Mat, gocv.Mat, error) {
	if a.Empty() || b.Empty() {
		return gocv.NewMat(), gocv.NewMat(), ErrEmptyImage
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return gocv.NewMat(), gocv.NewMat(), ErrSizeMismatch
	}
	if a.Channels() == b.Channels() {
		return a.Clone(), b.Clone(), nil
	}
	return toGray(a), toGray(b), nil
}

func toGray(input gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch input.Channels() {
	case 1:
		input.CopyTo(&gray)
	case 4:
		gocv.CvtColor(input, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(input, &gray, gocv.ColorBGRToGray)
	}
	return gray
}

// meanOf averages the per-channel means of m.
func meanOf(m gocv.Mat) float64 {
	s := m.Mean()
	values := []float64{s.Val1, s.Val2, s.Val3, s.Val4}
	n := min(max(m.Channels(), 1), 4)
	sum := 0.0
	for _, v := range values[:n] {
		sum += v
	}
	return sum / float64(n)
}

func meanSquaredError(a, b gocv.Mat) float64 {
	fa := gocv.NewMat()
	defer fa.Close()
	a.ConvertTo(&fa, gocv.MatTypeCV32F)
	fb := gocv.NewMat()
	defer fb.Close()
	b.ConvertTo(&fb, gocv.MatTypeCV32F)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(fa, fb, &diff)
	sq := gocv.NewMat()
	defer sq.Close()
	gocv.Multiply(diff, diff, &sq)
	return meanOf(sq)
}

// PSNR implements Peak Signal-to-Noise Ratio metric
type PSNR struct{}

func NewPSNR() *PSNR {
	return &PSNR{}
}

// Calculate returns +Inf for identical images.
func (p *PSNR) Calculate(original, processed gocv.Mat) (float64, error) {
	a, b, err := alignChannels(original, processed)
	defer a.Close()
	defer b.Close()
	if err != nil {
		return 0, err
	}

	mse := meanSquaredError(a, b)
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 20 * math.Log10(255/math.Sqrt(mse)), nil
}

func (p *PSNR) GetName() string              { return "PSNR" }
func (p *PSNR) GetDescription() string       { return "Peak Signal-to-Noise Ratio in dB" }
func (p *PSNR) GetRange() (float64, float64) { return 0, 100 }
func (p *PSNR) IsHigherBetter() bool         { return true }

// SSIM implements Structural Similarity Index metric on the luminance
type SSIM struct{}

func NewSSIM() *SSIM {
	return &SSIM{}
}

const (
	ssimC1 = 6.5025  // (0.01 * 255)^2
	ssimC2 = 58.5225 // (0.03 * 255)^2
)

func (s *SSIM) Calculate(original, processed gocv.Mat) (float64, error) {
	if original.Empty() || processed.Empty() {
		return 0, ErrEmptyImage
	}
	if original.Rows() != processed.Rows() || original.Cols() != processed.Cols() {
		return 0, ErrSizeMismatch
	}

	gray1 := toGray(original)
	defer gray1.Close()
	gray2 := toGray(processed)
	defer gray2.Close()

	f1 := gocv.NewMat()
	defer f1.Close()
	gray1.ConvertTo(&f1, gocv.MatTypeCV32F)
	f2 := gocv.NewMat()
	defer f2.Close()
	gray2.ConvertTo(&f2, gocv.MatTypeCV32F)

	var closers []gocv.Mat
	defer func() {
		for _, m := range closers {
			m.Close()
		}
	}()
	mat := func() gocv.Mat {
		m := gocv.NewMat()
		closers = append(closers, m)
		return m
	}
	blur := func(src gocv.Mat) gocv.Mat {
		dst := mat()
		gocv.GaussianBlur(src, &dst, image.Pt(11, 11), 1.5, 1.5, gocv.BorderDefault)
		return dst
	}
	mul := func(a, b gocv.Mat) gocv.Mat {
		dst := mat()
		gocv.Multiply(a, b, &dst)
		return dst
	}
	sub := func(a, b gocv.Mat) gocv.Mat {
		dst := mat()
		gocv.Subtract(a, b, &dst)
		return dst
	}
	add := func(a, b gocv.Mat) gocv.Mat {
		dst := mat()
		gocv.Add(a, b, &dst)
		return dst
	}

	mu1 := blur(f1)
	mu2 := blur(f2)
	mu1Sq := mul(mu1, mu1)
	mu2Sq := mul(mu2, mu2)
	mu1Mu2 := mul(mu1, mu2)

	sigma1Sq := sub(blur(mul(f1, f1)), mu1Sq)
	sigma2Sq := sub(blur(mul(f2, f2)), mu2Sq)
	sigma12 := sub(blur(mul(f1, f2)), mu1Mu2)

	// (2*mu1mu2 + C1) * (2*sigma12 + C2)
	num1 := mu1Mu2.Clone()
	closers = append(closers, num1)
	num1.MultiplyFloat(2)
	num1.AddFloat(ssimC1)
	num2 := sigma12.Clone()
	closers = append(closers, num2)
	num2.MultiplyFloat(2)
	num2.AddFloat(ssimC2)

	// (mu1^2 + mu2^2 + C1) * (sigma1^2 + sigma2^2 + C2)
	den1 := add(mu1Sq, mu2Sq)
	den1.AddFloat(ssimC1)
	den2 := add(sigma1Sq, sigma2Sq)
	den2.AddFloat(ssimC2)

	ssimMap := mat()
	gocv.Divide(mul(num1, num2), mul(den1, den2), &ssimMap)
	return meanOf(ssimMap), nil
}

func (s *SSIM) GetName() string { return "SSIM" }
func (s *SSIM) GetDescription() string {
	return "Structural Similarity Index - measures perceptual quality"
}
func (s *SSIM) GetRange() (float64, float64) { return 0, 1 }
func (s *SSIM) IsHigherBetter() bool         { return true }

// MSE implements Mean Squared Error metric
type MSE struct{}

func NewMSE() *MSE {
	return &MSE{}
}

func (m *MSE) Calculate(original, processed gocv.Mat) (float64, error) {
	a, b, err := alignChannels(original, processed)
	defer a.Close()
	defer b.Close()
	if err != nil {
		return 0, err
	}
	return meanSquaredError(a, b), nil
}

func (m *MSE) GetName() string              { return "MSE" }
func (m *MSE) GetDescription() string       { return "Mean Squared Error between images" }
func (m *MSE) GetRange() (float64, float64) { return 0, 65025 }
func (m *MSE) IsHigherBetter() bool         { return false }

// FMeasure scores a binarization against the Otsu binarization of its input
type FMeasure struct{}

func NewFMeasure() *FMeasure {
	return &FMeasure{}
}

func (f *FMeasure) Calculate(original, processed gocv.Mat) (float64, error) {
	if original.Empty() || processed.Empty() {
		return 0, ErrEmptyImage
	}
	if original.Rows() != processed.Rows() || original.Cols() != processed.Cols() {
		return 0, ErrSizeMismatch
	}

	ref := binarize(original)
	defer ref.Close()
	got := binarize(processed)
	defer got.Close()

	// 255 is foreground.
	var tp, fp, fn float64
	refBytes, gotBytes := ref.ToBytes(), got.ToBytes()
	for i := range refBytes {
		r, g := refBytes[i] > 127, gotBytes[i] > 127
		switch {
		case r && g:
			tp++
		case !r && g:
			fp++
		case r && !g:
			fn++
		}
	}

	if tp == 0 {
		return 0, nil
	}
	precision := tp / (tp + fp)
	recall := tp / (tp + fn)
	return 2 * precision * recall / (precision + recall), nil
}

// binarize keeps images that are already 0/255 and Otsu-thresholds the rest.
func binarize(input gocv.Mat) gocv.Mat {
	gray := toGray(input)
	binary := true
	for _, v := range gray.ToBytes() {
		if v != 0 && v != 255 {
			binary = false
			break
		}
	}
	if binary {
		return gray
	}
	defer gray.Close()

	out := gocv.NewMat()
	gocv.Threshold(gray, &out, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)
	return out
}

func (f *FMeasure) GetName() string              { return "F-Measure" }
func (f *FMeasure) GetDescription() string       { return "F-measure for binarization quality assessment" }
func (f *FMeasure) GetRange() (float64, float64) { return 0, 1 }
func (f *FMeasure) IsHigherBetter() bool         { return true }

// ContrastRatio compares the intensity standard deviation after and before
type ContrastRatio struct{}

func NewContrastRatio() *ContrastRatio {
	return &ContrastRatio{}
}

func (c *ContrastRatio) Calculate(original, processed gocv.Mat) (float64, error) {
	if original.Empty() || processed.Empty() {
		return 0, ErrEmptyImage
	}

	before := intensityStdDev(original)
	if before == 0 {
		return 1.0, nil
	}
	return intensityStdDev(processed) / before, nil
}

func intensityStdDev(input gocv.Mat) float64 {
	gray := toGray(input)
	defer gray.Close()

	samples := gray.ToBytes()
	if len(samples) == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, v := range samples {
		f := float64(v)
		sum += f
		sumSq += f * f
	}
	n := float64(len(samples))
	mean := sum / n
	return math.Sqrt(math.Max(sumSq/n-mean*mean, 0))
}

func (c *ContrastRatio) GetName() string              { return "Contrast Ratio" }
func (c *ContrastRatio) GetDescription() string       { return "Ratio of contrast preservation" }
func (c *ContrastRatio) GetRange() (float64, float64) { return 0, 2 }
func (c *ContrastRatio) IsHigherBetter() bool         { return true }

// Sharpness compares the variance of the Laplacian after and before
type Sharpness struct{}

func NewSharpness() *Sharpness {
	return &Sharpness{}
}

func (s *Sharpness) Calculate(original, processed gocv.Mat) (float64, error) {
	if original.Empty() || processed.Empty() {
		return 0, ErrEmptyImage
	}

	before, err := laplacianVariance(original)
	if err != nil {
		return 0, err
	}
	if before == 0 {
		return 1.0, nil
	}
	after, err := laplacianVariance(processed)
	if err != nil {
		return 0, err
	}
	return after / before, nil
}

func laplacianVariance(input gocv.Mat) (float64, error) {
	gray := toGray(input)
	defer gray.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV32F, 1, 1, 0, gocv.BorderDefault)

	values, err := lap.DataPtrFloat32()
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	var sum, sumSq float64
	for _, v := range values {
		f := float64(v)
		sum += f
		sumSq += f * f
	}
	n := float64(len(values))
	mean := sum / n
	return math.Max(sumSq/n-mean*mean, 0), nil
}

func (s *Sharpness) GetName() string              { return "Sharpness" }
func (s *Sharpness) GetDescription() string       { return "Edge preservation measure" }
func (s *Sharpness) GetRange() (float64, float64) { return 0, 2 }
func (s *Sharpness) IsHigherBetter() bool         { return true }
