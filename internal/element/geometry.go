package element

import (
	"math"
	"strings"
	"unicode/utf8"
)

// MinTolerance is the smallest hit radius used by the eraser, in canvas units.
const MinTolerance = 5.0

// Rect: axis-aligned bounding box
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Tolerance: hit radius for an element, never thinner than its stroke
func (e Element) Tolerance() float64 {
	return math.Max(MinTolerance, e.StrokeWidth)
}

// fontSize: text scales with stroke width, 12px floor
func (e Element) fontSize() float64 {
	sw := e.StrokeWidth
	if sw == 0 {
		sw = 2
	}
	return math.Max(12, sw*8)
}

// Bounds: normalized bounding box of the element
func (e Element) Bounds() Rect {
	switch {
	case e.Type == Pencil && len(e.Points) > 0:
		minX, minY := e.Points[0].X, e.Points[0].Y
		maxX, maxY := minX, minY
		for _, p := range e.Points[1:] {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
		pad := e.StrokeWidth
		return Rect{X: minX - pad, Y: minY - pad, Width: maxX - minX + pad*2, Height: maxY - minY + pad*2}

	case e.Type == Text && e.Text != "":
		// Estimated from character count, there is no font metrics server side
		size := e.fontSize()
		lines := strings.Split(e.Text, "\n")
		longest := 0
		for _, l := range lines {
			if n := utf8.RuneCountInString(l); n > longest {
				longest = n
			}
		}
		return Rect{X: e.X, Y: e.Y, Width: float64(longest) * size * 0.6, Height: float64(len(lines)) * size * 1.2}
	}

	return Rect{
		X:      math.Min(e.X, e.X+e.Width),
		Y:      math.Min(e.Y, e.Y+e.Height),
		Width:  math.Abs(e.Width),
		Height: math.Abs(e.Height),
	}
}

// HitTest: reports whether p lies on the element within tolerance
func (e Element) HitTest(p Point, tolerance float64) bool {
	if e.Degenerate() {
		return false
	}
	b := e.Bounds()

	switch e.Type {
	case Rectangle, Diamond, Text, Image:
		return p.X >= b.X-tolerance && p.X <= b.X+b.Width+tolerance &&
			p.Y >= b.Y-tolerance && p.Y <= b.Y+b.Height+tolerance

	case Circle:
		rx := b.Width/2 + tolerance
		ry := b.Height/2 + tolerance
		if rx <= 0 || ry <= 0 {
			return false
		}
		dx := (p.X - (b.X + b.Width/2)) / rx
		dy := (p.Y - (b.Y + b.Height/2)) / ry
		return dx*dx+dy*dy <= 1

	case Line, Arrow:
		start := Point{X: e.X, Y: e.Y}
		end := Point{X: e.X + e.Width, Y: e.Y + e.Height}
		return SegmentDistance(p, start, end) <= tolerance

	case Pencil:
		return PolylineDistance(p, e.Points) <= tolerance
	}
	return false
}

// Hit: HitTest with the element's own tolerance
func (e Element) Hit(p Point) bool {
	return e.HitTest(p, e.Tolerance())
}

// SegmentDistance: shortest distance from p to segment ab
func SegmentDistance(p, a, b Point) float64 {
	cx := b.X - a.X
	cy := b.Y - a.Y
	lenSq := cx*cx + cy*cy
	if lenSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}

	t := ((p.X-a.X)*cx + (p.Y-a.Y)*cy) / lenSq
	t = math.Max(0, math.Min(1, t))

	return math.Hypot(p.X-(a.X+t*cx), p.Y-(a.Y+t*cy))
}

// PolylineDistance: shortest distance from p to any segment of the path
func PolylineDistance(p Point, path []Point) float64 {
	switch len(path) {
	case 0:
		return math.Inf(1)
	case 1:
		return math.Hypot(p.X-path[0].X, p.Y-path[0].Y)
	}

	best := math.Inf(1)
	for i := 1; i < len(path); i++ {
		if d := SegmentDistance(p, path[i-1], path[i]); d < best {
			best = d
		}
	}
	return best
}
