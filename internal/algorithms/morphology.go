// Morphological operations algorithms
package algorithms

import (
	"image"

	"gocv.io/x/gocv"
)

// morphology runs one OpenCV morphological operation with a rectangular kernel
type morphology struct {
	descriptor
	op gocv.MorphType
}

func newMorphology(name, description string, op gocv.MorphType) morphology {
	return morphology{
		descriptor: descriptor{
			name:        name,
			description: description,
			params: []ParameterInfo{
				intInfo("kernel_size", 1, 31, 5, "Size of the rectangular structuring element"),
				intInfo("iterations", 1, 10, 1, "Number of iterations"),
			},
		},
		op: op,
	}
}

func (m *morphology) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	k := intParam(params, "kernel_size", 5)
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(k, k))
	defer kernel.Close()

	output := input.Clone()
	for i := 0; i < intParam(params, "iterations", 1); i++ {
		next := gocv.NewMat()
		gocv.MorphologyEx(output, &next, m.op, kernel)
		output.Close()
		output = next
	}
	return resultOrError(m.name, output)
}

// Erosion implements morphological erosion
type Erosion struct{ morphology }

// NewErosion creates a new erosion algorithm
func NewErosion() *Erosion {
	return &Erosion{newMorphology("Erosion", "Morphological erosion to remove small noise", gocv.MorphErode)}
}

// Dilation implements morphological dilation
type Dilation struct{ morphology }

func NewDilation() *Dilation {
	return &Dilation{newMorphology("Dilation", "Morphological dilation to fill small gaps", gocv.MorphDilate)}
}

// Opening is erosion followed by dilation
type Opening struct{ morphology }

func NewOpening() *Opening {
	return &Opening{newMorphology("Opening", "Erosion followed by dilation, removes small bright specks", gocv.MorphOpen)}
}

// Closing is dilation followed by erosion
type Closing struct{ morphology }

func NewClosing() *Closing {
	return &Closing{newMorphology("Closing", "Dilation followed by erosion, closes small dark holes", gocv.MorphClose)}
}
