package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func gradient(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m.SetUCharAt(y, x, uint8((x*7+y*3)%256))
		}
	}
	return m
}

func TestPSNRIdenticalIsInfinite(t *testing.T) {
	img := gradient(32, 32)
	defer img.Close()

	psnr, err := NewPSNR().Calculate(img, img)
	require.NoError(t, err)
	assert.True(t, math.IsInf(psnr, 1))

	ssim, err := NewSSIM().Calculate(img, img)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ssim, 1e-4)
}

func TestMSEAndPSNR(t *testing.T) {
	a := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 0, 0, 0), 8, 8, gocv.MatTypeCV8U)
	defer a.Close()
	b := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(110, 0, 0, 0), 8, 8, gocv.MatTypeCV8U)
	defer b.Close()

	mse, err := NewMSE().Calculate(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 100, mse, 1e-6)

	psnr, err := NewPSNR().Calculate(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 20*math.Log10(255/10.0), psnr, 1e-6)
}

func TestMismatchedSizes(t *testing.T) {
	a := gradient(8, 8)
	defer a.Close()
	b := gradient(8, 9)
	defer b.Close()

	_, err := NewPSNR().Calculate(a, b)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	_, err = NewSSIM().Calculate(a, b)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = NewMSE().Calculate(a, empty)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestFMeasurePerfectBinarization(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 4, 4, gocv.MatTypeCV8U)
	defer img.Close()
	img.SetUCharAt(1, 1, 255)
	img.SetUCharAt(2, 2, 255)

	f, err := NewFMeasure().Calculate(img, img)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, f, 1e-9)
}

func TestEvaluateStepAddsSpecificMetric(t *testing.T) {
	img := gradient(16, 16)
	defer img.Close()
	e := NewEvaluator()

	m := e.EvaluateStep(img, img, "otsu")
	assert.Contains(t, m, "psnr")
	assert.Contains(t, m, "ssim")
	assert.Contains(t, m, "f_measure")

	m = e.EvaluateStep(img, img, "gaussian")
	assert.InDelta(t, 1.0, m["contrast_preservation"], 1e-9)
}

func TestGenerateReport(t *testing.T) {
	img := gradient(16, 16)
	defer img.Close()

	report := NewEvaluator().GenerateReport(img, img)
	assert.Equal(t, "excellent", report.Analysis.QualityLevel)
	assert.Empty(t, report.Analysis.Issues)
	assert.NotEmpty(t, report.Timestamp)
}

func TestQualityLevel(t *testing.T) {
	assert.Equal(t, "excellent", QualityLevel(95))
	assert.Equal(t, "good", QualityLevel(80))
	assert.Equal(t, "fair", QualityLevel(60))
	assert.Equal(t, "poor", QualityLevel(10))
}
