// Geometric transforms
package algorithms

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Scale resizes with Lanczos interpolation
type Scale struct{ descriptor }

func NewScale() *Scale {
	return &Scale{descriptor{
		name:        "Scaling",
		description: "Resize the image with Lanczos interpolation",
		params: []ParameterInfo{
			intInfo("width", 0, 16384, 0, "Target width (0 keeps the current width)"),
			intInfo("height", 0, 16384, 0, "Target height (0 keeps the current height)"),
			boolInfo("keep_aspect", true, "Fit inside width x height without distorting or enlarging"),
		},
	}}
}

func (s *Scale) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	w, h := scaledSize(input.Cols(), input.Rows(),
		intParam(params, "width", 0), intParam(params, "height", 0),
		boolParam(params, "keep_aspect", true))

	output := gocv.NewMat()
	if w == input.Cols() && h == input.Rows() {
		input.CopyTo(&output)
		return resultOrError(s.name, output)
	}
	gocv.Resize(input, &output, image.Pt(w, h), 0, 0, gocv.InterpolationLanczos4)
	return resultOrError(s.name, output)
}

// scaledSize resolves the target box. With keepAspect the image is fitted inside
// the box and never enlarged.
func scaledSize(cols, rows, width, height int, keepAspect bool) (int, int) {
	if width <= 0 {
		width = cols
	}
	if height <= 0 {
		height = rows
	}
	if !keepAspect {
		return width, height
	}

	ratio := math.Min(float64(width)/float64(cols), float64(height)/float64(rows))
	if ratio >= 1 {
		return cols, rows
	}
	w := int(math.Round(float64(cols) * ratio))
	h := int(math.Round(float64(rows) * ratio))
	return max(w, 1), max(h, 1)
}

// Translate shifts the image on a canvas grown by the offset
type Translate struct{ descriptor }

func NewTranslate() *Translate {
	return &Translate{descriptor{
		name:        "Translation",
		description: "Shift the image; the canvas grows by the absolute offset",
		params: []ParameterInfo{
			intInfo("dx", -4096, 4096, 0, "Horizontal offset"),
			intInfo("dy", -4096, 4096, 0, "Vertical offset"),
		},
	}}
}

func (t *Translate) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	dx := intParam(params, "dx", 0)
	dy := intParam(params, "dy", 0)
	cols := input.Cols() + abs(dx)
	rows := input.Rows() + abs(dy)

	output := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, input.Type())
	x, y := max(0, dx), max(0, dy)

	roi := output.Region(image.Rect(x, y, x+input.Cols(), y+input.Rows()))
	input.CopyTo(&roi)
	roi.Close()

	return resultOrError(t.name, output)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Crop keeps a rectangular window
type Crop struct{ descriptor }

func NewCrop() *Crop {
	return &Crop{descriptor{
		name:        "Crop",
		description: "Keep the window starting at (x, y) of the given size",
		params: []ParameterInfo{
			intInfo("x", 0, 16384, 0, "First column"),
			intInfo("y", 0, 16384, 0, "First row"),
			intInfo("width", 1, 16384, 100, "Window width"),
			intInfo("height", 1, 16384, 100, "Window height"),
		},
	}}
}

func (c *Crop) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	x := intParam(params, "x", 0)
	y := intParam(params, "y", 0)
	rect := image.Rect(x, y, x+intParam(params, "width", 100), y+intParam(params, "height", 100)).
		Intersect(image.Rect(0, 0, input.Cols(), input.Rows()))
	if rect.Empty() {
		return gocv.NewMat(), fmt.Errorf("crop window lies outside the %dx%d image", input.Cols(), input.Rows())
	}

	roi := input.Region(rect)
	defer roi.Close()
	return resultOrError(c.name, roi.Clone())
}

// Flip mirrors the image
type Flip struct{ descriptor }

func NewFlip() *Flip {
	return &Flip{descriptor{
		name:        "Flip",
		description: "Mirror horizontally, vertically or both",
		params: []ParameterInfo{
			enumInfo("direction", []string{"horizontal", "vertical", "diagonal"}, "horizontal", "Flip axis"),
		},
	}}
}

func (f *Flip) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	code := 1
	switch stringParam(params, "direction", "horizontal") {
	case "vertical":
		code = 0
	case "diagonal":
		code = -1
	}

	output := gocv.NewMat()
	gocv.Flip(input, &output, code)
	return resultOrError(f.name, output)
}

// Rotate turns the image counter-clockwise, expanding the canvas to fit
type Rotate struct{ descriptor }

func NewRotate() *Rotate {
	return &Rotate{descriptor{
		name:        "Rotation",
		description: "Rotate counter-clockwise by an arbitrary angle without clipping",
		params: []ParameterInfo{
			floatInfo("angle", -360, 360, 90, "Angle in degrees"),
		},
	}}
}

func (r *Rotate) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if err := checkInput(input); err != nil {
		return gocv.NewMat(), err
	}

	angle := floatParam(params, "angle", 90)
	w, h := float64(input.Cols()), float64(input.Rows())
	rad := angle * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	newW := int(math.Round(h*sin + w*cos))
	newH := int(math.Round(h*cos + w*sin))

	center := image.Pt(input.Cols()/2, input.Rows()/2)
	m := gocv.GetRotationMatrix2D(center, angle, 1.0)
	defer m.Close()

	// Move the rotated centre to the centre of the expanded canvas.
	m.SetDoubleAt(0, 2, m.GetDoubleAt(0, 2)+float64(newW)/2-float64(center.X))
	m.SetDoubleAt(1, 2, m.GetDoubleAt(1, 2)+float64(newH)/2-float64(center.Y))

	output := gocv.NewMat()
	gocv.WarpAffine(input, &output, m, image.Pt(newW, newH))
	return resultOrError(r.name, output)
}
