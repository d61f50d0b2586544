// Package overlay draws the replayed pointer onto captured frames
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
)

// CursorState represents the visual state of the cursor
type CursorState int

const (
	CursorDefault CursorState = iota
	CursorPressed             // a button is held (drag in progress)
	CursorText                // keyboard input is being sent
)

// CursorPosition is the pointer as it should appear on one frame
type CursorPosition struct {
	X     int
	Y     int
	State CursorState
	Click bool         // draw a click ripple
	Trail *image.Point // drag origin; draws a trail to (X, Y)
	Known bool         // false until the pointer has been placed
}

var (
	outlineColor = color.RGBA{0, 0, 0, 255}
	fillColor    = color.RGBA{255, 255, 255, 255}
	pressedFill  = color.RGBA{255, 214, 102, 255}
	rippleColor  = color.RGBA{66, 133, 244, 110}
	trailColor   = color.RGBA{66, 133, 244, 200}
	textBadge    = color.RGBA{52, 168, 83, 220}
)

// arrow is the cursor outline relative to its hotspot
var arrow = []image.Point{
	{0, 0}, {0, 16}, {4, 12}, {7, 18}, {10, 17}, {7, 11}, {12, 11},
}

// Apply draws positions[i] onto frames[i]. Frames are copied, never modified.
func Apply(frames []image.Image, positions []CursorPosition) ([]image.Image, error) {
	if len(frames) != len(positions) {
		return nil, fmt.Errorf("overlay: %d frames but %d cursor positions", len(frames), len(positions))
	}
	out := make([]image.Image, len(frames))
	for i, frame := range frames {
		out[i] = Draw(frame, positions[i])
	}
	return out, nil
}

// Draw returns a copy of frame with the cursor drawn on it
func Draw(frame image.Image, pos CursorPosition) *image.RGBA {
	bounds := frame.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, frame, bounds.Min, draw.Src)
	if !pos.Known {
		return dst
	}

	if pos.Trail != nil {
		thickLine(dst, pos.Trail.X, pos.Trail.Y, pos.X, pos.Y, trailColor)
	}
	if pos.Click {
		ripple(dst, pos.X, pos.Y, 15)
	}

	fill := fillColor
	if pos.State == CursorPressed {
		fill = pressedFill
	}
	drawArrow(dst, pos.X, pos.Y, fill)
	if pos.State == CursorText {
		// Small badge to the lower right marks keyboard activity.
		badge := image.Rect(pos.X+12, pos.Y+14, pos.X+18, pos.Y+20)
		draw.Draw(dst, badge.Intersect(bounds), &image.Uniform{textBadge}, image.Point{}, draw.Over)
	}
	return dst
}

func drawArrow(img *image.RGBA, x, y int, fill color.RGBA) {
	for dy := 0; dy <= 18; dy++ {
		for dx := 0; dx <= 12; dx++ {
			if insidePolygon(dx, dy, arrow) {
				blend(img, x+dx, y+dy, fill)
			}
		}
	}
	for i := range arrow {
		a, b := arrow[i], arrow[(i+1)%len(arrow)]
		line(img, x+a.X, y+a.Y, x+b.X, y+b.Y, outlineColor)
	}
}

// insidePolygon is an even-odd ray cast against poly
func insidePolygon(x, y int, poly []image.Point) bool {
	in := false
	fx, fy := float64(x)+0.5, float64(y)+0.5
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		pi, pj := poly[i], poly[j]
		if (float64(pi.Y) > fy) == (float64(pj.Y) > fy) {
			continue
		}
		cross := float64(pj.X-pi.X)*(fy-float64(pi.Y))/float64(pj.Y-pi.Y) + float64(pi.X)
		if fx < cross {
			in = !in
		}
	}
	return in
}

// line draws a line between two points using Bresenham's algorithm
func line(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		blend(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func thickLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	for _, o := range []image.Point{{0, 0}, {1, 0}, {0, 1}} {
		line(img, x1+o.X, y1+o.Y, x2+o.X, y2+o.Y, c)
	}
}

// ripple draws a translucent ring around a click point
func ripple(img *image.RGBA, x, y, radius int) {
	for dy := -radius - 1; dy <= radius+1; dy++ {
		for dx := -radius - 1; dx <= radius+1; dx++ {
			d := math.Hypot(float64(dx), float64(dy))
			if math.Abs(d-float64(radius)) <= 1.5 {
				blend(img, x+dx, y+dy, rippleColor)
			}
		}
	}
}

// blend composites c over the pixel at (x, y) when it is inside img
func blend(img *image.RGBA, x, y int, c color.RGBA) {
	if !(image.Point{x, y}).In(img.Bounds()) {
		return
	}
	if c.A == 255 {
		img.SetRGBA(x, y, c)
		return
	}
	bg := img.RGBAAt(x, y)
	a := uint32(c.A)
	mix := func(fg, bg uint8) uint8 {
		return uint8((uint32(fg)*a + uint32(bg)*(255-a)) / 255)
	}
	img.SetRGBA(x, y, color.RGBA{mix(c.R, bg.R), mix(c.G, bg.G), mix(c.B, bg.B), 255})
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
