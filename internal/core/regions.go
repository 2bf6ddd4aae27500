// Damaged-region marking for the restoration page; the marked regions are
// rasterized into an inpainting mask
package core

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

// RegionKind is the shape of a marked region
type RegionKind int

const (
	RegionRect RegionKind = iota
	RegionPolygon
	// RegionStroke is an open polyline painted with a brush width.
	RegionStroke
)

func (k RegionKind) String() string {
	switch k {
	case RegionRect:
		return "rect"
	case RegionPolygon:
		return "polygon"
	case RegionStroke:
		return "stroke"
	}
	return fmt.Sprintf("RegionKind(%d)", int(k))
}

// Region is one marked area in image coordinates
type Region struct {
	ID     string
	Kind   RegionKind
	Points []image.Point
	Bounds image.Rectangle
	Width  int
}

func (r Region) clone() Region {
	r.Points = append([]image.Point(nil), r.Points...)
	return r
}

var maskColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Regions collects marked areas in insertion order
type Regions struct {
	mu      sync.RWMutex
	regions []Region
	nextID  int
}

func NewRegions() *Regions {
	return &Regions{nextID: 1}
}

func (rs *Regions) add(kind RegionKind, points []image.Point, width int) string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	id := fmt.Sprintf("%s_%d", kind, rs.nextID)
	rs.nextID++
	rs.regions = append(rs.regions, Region{
		ID:     id,
		Kind:   kind,
		Points: append([]image.Point(nil), points...),
		Bounds: boundsOf(points, width),
		Width:  width,
	})
	return id
}

// AddRect marks rect. Empty rectangles are ignored and return "".
func (rs *Regions) AddRect(rect image.Rectangle) string {
	rect = rect.Canon()
	if rect.Empty() {
		return ""
	}
	return rs.add(RegionRect, []image.Point{rect.Min, rect.Max}, 0)
}

// AddPolygon marks a filled polygon of at least three points.
func (rs *Regions) AddPolygon(points []image.Point) string {
	if len(points) < 3 {
		return ""
	}
	return rs.add(RegionPolygon, points, 0)
}

// AddStroke marks a brush stroke through points.
func (rs *Regions) AddStroke(points []image.Point, width int) string {
	if len(points) == 0 {
		return ""
	}
	return rs.add(RegionStroke, points, max(width, 1))
}

func (rs *Regions) Remove(id string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for i, r := range rs.regions {
		if r.ID == id {
			rs.regions = append(rs.regions[:i], rs.regions[i+1:]...)
			return true
		}
	}
	return false
}

// Undo removes the most recently added region.
func (rs *Regions) Undo() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.regions) == 0 {
		return false
	}
	rs.regions = rs.regions[:len(rs.regions)-1]
	return true
}

func (rs *Regions) Clear() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.regions = nil
}

func (rs *Regions) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.regions)
}

func (rs *Regions) All() []Region {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Region, len(rs.regions))
	for i, r := range rs.regions {
		out[i] = r.clone()
	}
	return out
}

// Snapshot returns an independent copy holding the current regions with
// their IDs.
func (rs *Regions) Snapshot() *Regions {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := &Regions{nextID: rs.nextID, regions: make([]Region, len(rs.regions))}
	for i, r := range rs.regions {
		out.regions[i] = r.clone()
	}
	return out
}

// RemoveAll drops every region of other by ID and returns how many were found.
func (rs *Regions) RemoveAll(other *Regions) int {
	removed := 0
	for _, r := range other.All() {
		if rs.Remove(r.ID) {
			removed++
		}
	}
	return removed
}

// Mask rasterizes every region into a width x height single-channel mask,
// 255 inside a region and 0 elsewhere.
func (rs *Regions) Mask(width, height int) gocv.Mat {
	mask := gocv.Zeros(height, width, gocv.MatTypeCV8UC1)
	frame := image.Rect(0, 0, width, height)

	for _, r := range rs.All() {
		switch r.Kind {
		case RegionRect:
			rect := image.Rectangle{Min: r.Points[0], Max: r.Points[1]}.Intersect(frame)
			if rect.Empty() {
				continue
			}
			roi := mask.Region(rect)
			roi.SetTo(gocv.NewScalar(255, 0, 0, 0))
			roi.Close()
		case RegionPolygon:
			pv := gocv.NewPointsVectorFromPoints([][]image.Point{r.Points})
			gocv.FillPoly(&mask, pv, maskColor)
			pv.Close()
		case RegionStroke:
			if len(r.Points) == 1 {
				gocv.Circle(&mask, r.Points[0], (r.Width+1)/2, maskColor, -1)
				continue
			}
			pv := gocv.NewPointsVectorFromPoints([][]image.Point{r.Points})
			gocv.Polylines(&mask, pv, false, maskColor, r.Width)
			pv.Close()
		}
	}
	return mask
}

// Contains reports whether p lies inside any region's bounds or, for
// polygons, inside the polygon itself.
func (rs *Regions) Contains(p image.Point) bool {
	for _, r := range rs.All() {
		if !p.In(r.Bounds) {
			continue
		}
		if r.Kind != RegionPolygon || pointInPolygon(p, r.Points) {
			return true
		}
	}
	return false
}

func boundsOf(points []image.Point, width int) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}

	b := image.Rectangle{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min.X = min(b.Min.X, p.X)
		b.Min.Y = min(b.Min.Y, p.Y)
		b.Max.X = max(b.Max.X, p.X)
		b.Max.Y = max(b.Max.Y, p.Y)
	}
	pad := (width + 1) / 2
	return image.Rect(b.Min.X-pad, b.Min.Y-pad, b.Max.X+pad+1, b.Max.Y+pad+1)
}

// pointInPolygon casts a ray to the right and counts edge crossings.
func pointInPolygon(p image.Point, polygon []image.Point) bool {
	x, y := float64(p.X), float64(p.Y)
	inside := false

	j := len(polygon) - 1
	for i := range polygon {
		xi, yi := float64(polygon[i].X), float64(polygon[i].Y)
		xj, yj := float64(polygon[j].X), float64(polygon[j].Y)
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}
