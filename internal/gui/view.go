// Image view widget with optional region marking
package gui

import (
	"image"
	"image/color"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"sona-picture-processing/internal/core"
)

// Marking tools
const (
	ToolNone   = "none"
	ToolRect   = "rectangle"
	ToolStroke = "brush"
)

var (
	regionColor  = color.RGBA{R: 255, G: 0, B: 0, A: 160}
	currentColor = color.RGBA{R: 0, G: 255, B: 0, A: 160}
)

// ImageView shows an image scaled to fit. With regions attached, dragging
// marks rectangles or brush strokes in image coordinates.
type ImageView struct {
	widget.BaseWidget

	regions *core.Regions
	logger  logrus.FieldLogger

	image   *canvas.Image
	overlay *canvas.Raster
	minSize fyne.Size

	imageSize image.Point
	tool      string
	brush     int
	drawing   bool
	points    []image.Point
	cursor    fyne.Position

	onRegionsChanged func(int)
}

// NewImageView creates a read-only view.
func NewImageView(minSize fyne.Size) *ImageView {
	v := &ImageView{
		tool:    ToolNone,
		brush:   9,
		minSize: minSize,
		logger:  logrus.New(),
	}
	v.image = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	v.image.FillMode = canvas.ImageFillContain
	v.overlay = canvas.NewRaster(v.drawOverlay)
	v.ExtendBaseWidget(v)
	return v
}

// NewMarkingView creates a view that records marks into regions.
func NewMarkingView(minSize fyne.Size, regions *core.Regions, logger logrus.FieldLogger) *ImageView {
	v := NewImageView(minSize)
	v.regions = regions
	v.logger = logger
	v.tool = ToolRect
	return v
}

func (v *ImageView) CreateRenderer() fyne.WidgetRenderer {
	return &imageViewRenderer{view: v}
}

// SetImage replaces the displayed image; nil shows an empty view.
func (v *ImageView) SetImage(img image.Image) {
	if img == nil {
		img = image.NewRGBA(image.Rect(0, 0, 1, 1))
		v.imageSize = image.Point{}
	} else {
		v.imageSize = img.Bounds().Size()
	}
	v.image.Image = img
	v.image.Refresh()
	v.overlay.Refresh()
}

func (v *ImageView) SetTool(tool string) {
	v.tool = tool
	v.logger.WithField("tool", tool).Debug("Marking tool changed")
}

func (v *ImageView) SetBrush(width int) {
	v.brush = max(width, 1)
}

func (v *ImageView) SetRegionsChangedCallback(callback func(int)) {
	v.onRegionsChanged = callback
}

// RefreshRegions redraws the marks after the region set changed elsewhere.
func (v *ImageView) RefreshRegions() {
	v.overlay.Refresh()
	v.notify()
}

func (v *ImageView) marking() bool {
	return v.regions != nil && v.tool != ToolNone && v.imageSize.X > 0
}

func (v *ImageView) Dragged(event *fyne.DragEvent) {
	if !v.marking() {
		return
	}
	p := v.toImage(event.Position, v.Size())
	if !v.drawing {
		v.drawing = true
		start := event.Position.Subtract(event.Dragged)
		v.points = []image.Point{v.toImage(start, v.Size())}
	}
	v.cursor = event.Position
	if v.tool == ToolStroke {
		v.points = append(v.points, p)
	}
	v.overlay.Refresh()
}

func (v *ImageView) DragEnd() {
	if !v.drawing {
		return
	}
	v.drawing = false
	defer func() {
		v.points = nil
		v.overlay.Refresh()
	}()

	var id string
	switch v.tool {
	case ToolRect:
		end := v.toImage(v.cursor, v.Size())
		id = v.regions.AddRect(image.Rectangle{Min: v.points[0], Max: end})
	case ToolStroke:
		id = v.regions.AddStroke(v.points, v.brush)
	}
	if id == "" {
		return
	}
	v.logger.WithField("region", id).Debug("Region marked")
	v.notify()
}

func (v *ImageView) notify() {
	if v.onRegionsChanged != nil && v.regions != nil {
		v.onRegionsChanged(v.regions.Len())
	}
}

// fit returns the scale and offset of an image shown with ImageFillContain
// in an area of w by h.
func (v *ImageView) fit(w, h float64) (scale, offX, offY float64) {
	if v.imageSize.X == 0 || v.imageSize.Y == 0 {
		return 1, 0, 0
	}
	scale = math.Min(w/float64(v.imageSize.X), h/float64(v.imageSize.Y))
	offX = (w - float64(v.imageSize.X)*scale) / 2
	offY = (h - float64(v.imageSize.Y)*scale) / 2
	return scale, offX, offY
}

func (v *ImageView) toImage(pos fyne.Position, size fyne.Size) image.Point {
	scale, offX, offY := v.fit(float64(size.Width), float64(size.Height))
	x := (float64(pos.X) - offX) / scale
	y := (float64(pos.Y) - offY) / scale
	x = math.Max(0, math.Min(x, float64(v.imageSize.X-1)))
	y = math.Max(0, math.Min(y, float64(v.imageSize.Y-1)))
	return image.Pt(int(x), int(y))
}

func (v *ImageView) toScreen(p image.Point, w, h int) image.Point {
	scale, offX, offY := v.fit(float64(w), float64(h))
	return image.Pt(int(float64(p.X)*scale+offX), int(float64(p.Y)*scale+offY))
}

func (v *ImageView) drawOverlay(w, h int) image.Image {
	overlay := image.NewRGBA(image.Rect(0, 0, w, h))
	if v.regions == nil || v.imageSize.X == 0 {
		return overlay
	}

	for _, r := range v.regions.All() {
		switch r.Kind {
		case core.RegionRect:
			v.drawRect(overlay, image.Rectangle{Min: r.Points[0], Max: r.Points[1]}, regionColor, w, h)
		case core.RegionPolygon:
			v.drawPath(overlay, r.Points, true, regionColor, w, h)
		case core.RegionStroke:
			v.drawPath(overlay, r.Points, false, regionColor, w, h)
		}
	}

	if v.drawing && len(v.points) > 0 {
		switch v.tool {
		case ToolRect:
			end := v.toImage(v.cursor, v.Size())
			v.drawRect(overlay, image.Rectangle{Min: v.points[0], Max: end}.Canon(), currentColor, w, h)
		case ToolStroke:
			v.drawPath(overlay, v.points, false, currentColor, w, h)
		}
	}
	return overlay
}

func (v *ImageView) drawRect(overlay *image.RGBA, rect image.Rectangle, col color.RGBA, w, h int) {
	a := v.toScreen(rect.Min, w, h)
	b := v.toScreen(rect.Max, w, h)
	corners := []image.Point{a, {X: b.X, Y: a.Y}, b, {X: a.X, Y: b.Y}}
	for i := range corners {
		drawLine(overlay, corners[i], corners[(i+1)%len(corners)], col)
	}
}

func (v *ImageView) drawPath(overlay *image.RGBA, points []image.Point, closed bool, col color.RGBA, w, h int) {
	if len(points) == 1 {
		p := v.toScreen(points[0], w, h)
		overlay.Set(p.X, p.Y, col)
		return
	}
	for i := 0; i+1 < len(points); i++ {
		drawLine(overlay, v.toScreen(points[i], w, h), v.toScreen(points[i+1], w, h), col)
	}
	if closed && len(points) >= 3 {
		drawLine(overlay, v.toScreen(points[len(points)-1], w, h), v.toScreen(points[0], w, h), col)
	}
}

// drawLine is Bresenham's line; points outside overlay are skipped.
func drawLine(overlay *image.RGBA, p1, p2 image.Point, col color.RGBA) {
	bounds := overlay.Bounds()
	dx := abs(p2.X - p1.X)
	dy := abs(p2.Y - p1.Y)
	sx, sy := -1, -1
	if p1.X < p2.X {
		sx = 1
	}
	if p1.Y < p2.Y {
		sy = 1
	}
	err := dx - dy
	x, y := p1.X, p1.Y
	for {
		if image.Pt(x, y).In(bounds) {
			overlay.Set(x, y, col)
		}
		if x == p2.X && y == p2.Y {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type imageViewRenderer struct {
	view *ImageView
}

func (r *imageViewRenderer) Layout(size fyne.Size) {
	r.view.image.Resize(size)
	r.view.overlay.Resize(size)
}

func (r *imageViewRenderer) MinSize() fyne.Size {
	return r.view.minSize
}

func (r *imageViewRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.view.image, r.view.overlay}
}

func (r *imageViewRenderer) Refresh() {
	r.view.image.Refresh()
	r.view.overlay.Refresh()
}

func (r *imageViewRenderer) Destroy() {}
