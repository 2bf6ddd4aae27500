// Two-image arithmetic, bitwise and blending operators
package operators

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"

	"sona-picture-processing/internal/algorithms"
)

// Operator names a two-image (or, for Not, one-image) operation
type Operator string

const (
	Add      Operator = "add"
	Subtract Operator = "subtract"
	Multiply Operator = "multiply"
	Divide   Operator = "divide"
	And      Operator = "and"
	Or       Operator = "or"
	Xor      Operator = "xor"
	Not      Operator = "not"
	Blend    Operator = "blend"
	Overlay  Operator = "overlay"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrMissingOperand  = errors.New("operator needs two images")
)

// divideEpsilon keeps the divisor away from zero.
const divideEpsilon = 1e-5

// All lists operators in the order the operators page offers them.
func All() []Operator {
	return []Operator{Add, Subtract, Multiply, Divide, And, Or, Xor, Not, Blend, Overlay}
}

// Parse accepts an operator name in any case.
func Parse(name string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range All() {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownOperator, name)
}

// Unary reports whether the operator ignores the second image.
func (o Operator) Unary() bool {
	return o == Not
}

// Options tunes the blend and divide operators
type Options struct {
	Alpha      float64 `yaml:"alpha"`
	Beta       float64 `yaml:"beta"`
	Gamma      float64 `yaml:"gamma"`
	Brightness float64 `yaml:"brightness"`
}

func DefaultOptions() Options {
	return Options{Alpha: 0.5, Beta: 0.5, Gamma: 0, Brightness: 3}
}

// Apply runs op on a and b. b is resized to a's size and both are brought to
// three channels first. The result is always BGR.
func Apply(op Operator, a, b gocv.Mat, opts Options) (gocv.Mat, error) {
	if a.Empty() {
		return gocv.NewMat(), algorithms.ErrEmptyInput
	}
	if op.Unary() {
		return bitwise(op, a, a)
	}
	if b.Empty() {
		return gocv.NewMat(), fmt.Errorf("%s: %w", op, ErrMissingOperand)
	}

	first := algorithms.ToBGR(a)
	defer first.Close()
	second := matchTo(first, b)
	defer second.Close()

	output := gocv.NewMat()
	switch op {
	case Add:
		gocv.Add(first, second, &output)
	case Subtract:
		gocv.Subtract(first, second, &output)
	case Multiply:
		gocv.Multiply(first, second, &output)
	case Divide:
		output.Close()
		return divide(first, second, opts.Brightness)
	case And, Or, Xor:
		output.Close()
		return bitwise(op, first, second)
	case Blend:
		gocv.AddWeighted(first, opts.Alpha, second, opts.Beta, opts.Gamma, &output)
	case Overlay:
		output.Close()
		return overlay(first, second)
	default:
		output.Close()
		return gocv.NewMat(), fmt.Errorf("%w: %s", ErrUnknownOperator, op)
	}
	return result(op, output)
}

// matchTo returns b as a BGR image of ref's size.
func matchTo(ref, b gocv.Mat) gocv.Mat {
	bgr := algorithms.ToBGR(b)
	if bgr.Rows() == ref.Rows() && bgr.Cols() == ref.Cols() {
		return bgr
	}
	defer bgr.Close()

	resized := gocv.NewMat()
	gocv.Resize(bgr, &resized, image.Pt(ref.Cols(), ref.Rows()), 0, 0, gocv.InterpolationLinear)
	return resized
}

// divide is a float division followed by min-max normalization and a
// brightness gain, since raw ratios are mostly near black.
func divide(a, b gocv.Mat, brightness float64) (gocv.Mat, error) {
	fa := gocv.NewMat()
	defer fa.Close()
	a.ConvertTo(&fa, gocv.MatTypeCV32FC3)

	fb := gocv.NewMat()
	defer fb.Close()
	b.ConvertTo(&fb, gocv.MatTypeCV32FC3)
	fb.AddFloat(divideEpsilon)

	ratio := gocv.NewMat()
	defer ratio.Close()
	gocv.Divide(fa, fb, &ratio)

	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.Normalize(ratio, &normalized, 0, 255, gocv.NormMinMax)

	scaled := gocv.NewMat()
	defer scaled.Close()
	normalized.ConvertTo(&scaled, gocv.MatTypeCV8UC3)

	output := gocv.NewMat()
	gocv.ConvertScaleAbs(scaled, &output, brightness, 0)
	return result(Divide, output)
}

// bitwise works on the grayscale images and returns the result as BGR.
func bitwise(op Operator, a, b gocv.Mat) (gocv.Mat, error) {
	ga := algorithms.ToGray(a)
	defer ga.Close()
	gb := algorithms.ToGray(b)
	defer gb.Close()
	if gb.Rows() != ga.Rows() || gb.Cols() != ga.Cols() {
		resized := gocv.NewMat()
		gocv.Resize(gb, &resized, image.Pt(ga.Cols(), ga.Rows()), 0, 0, gocv.InterpolationLinear)
		gb.Close()
		gb = resized
	}

	gray := gocv.NewMat()
	defer gray.Close()
	switch op {
	case And:
		gocv.BitwiseAnd(ga, gb, &gray)
	case Or:
		gocv.BitwiseOr(ga, gb, &gray)
	case Xor:
		gocv.BitwiseXor(ga, gb, &gray)
	case Not:
		gocv.BitwiseNot(ga, &gray)
	}

	output := gocv.NewMat()
	gocv.CvtColor(gray, &output, gocv.ColorGrayToBGR)
	return result(op, output)
}

// overlay pastes b over a, weighting each pixel by b's luminance.
func overlay(a, b gocv.Mat) (gocv.Mat, error) {
	fa := gocv.NewMat()
	defer fa.Close()
	a.ConvertTo(&fa, gocv.MatTypeCV32FC3)

	fb := gocv.NewMat()
	defer fb.Close()
	b.ConvertTo(&fb, gocv.MatTypeCV32FC3)

	luma := algorithms.ToGray(b)
	defer luma.Close()
	weight := gocv.NewMat()
	defer weight.Close()
	luma.ConvertToWithParams(&weight, gocv.MatTypeCV32F, 1.0/255, 0)

	weights := gocv.NewMat()
	defer weights.Close()
	gocv.Merge([]gocv.Mat{weight, weight, weight}, &weights)

	// a + (b - a) * w
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(fb, fa, &diff)
	weighted := gocv.NewMat()
	defer weighted.Close()
	gocv.Multiply(diff, weights, &weighted)
	sum := gocv.NewMat()
	defer sum.Close()
	gocv.Add(fa, weighted, &sum)

	output := gocv.NewMat()
	sum.ConvertTo(&output, gocv.MatTypeCV8UC3)
	return result(Overlay, output)
}

func result(op Operator, output gocv.Mat) (gocv.Mat, error) {
	if output.Empty() {
		output.Close()
		return gocv.NewMat(), fmt.Errorf("%s produced an empty image", op)
	}
	return output, nil
}
