package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"
)

// ParseColor reads #rgb or #rrggbb.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("overlay: unsupported color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("overlay: unsupported color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// DrawHighlight returns a copy of frame with box filled at opacity and
// outlined with a border of the given width, the way the live overlay
// renders it.
func DrawHighlight(frame image.Image, box image.Rectangle, c color.RGBA, opacity float64, border int) *image.RGBA {
	bounds := frame.Bounds()
	result := image.NewRGBA(bounds)

	// Copy original frame
	draw.Draw(result, bounds, frame, bounds.Min, draw.Src)

	box = box.Intersect(bounds)
	if box.Empty() {
		return result
	}

	if opacity > 0 {
		fill := image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: alpha(opacity)})
		draw.Draw(result, box, fill, image.Point{}, draw.Over)
	}

	// Border lines, innermost first
	for i := 0; i < border; i++ {
		x1, y1 := box.Min.X+i, box.Min.Y+i
		x2, y2 := box.Max.X-1-i, box.Max.Y-1-i
		if x1 > x2 || y1 > y2 {
			break
		}
		drawLine(result, x1, y1, x2, y1, c)
		drawLine(result, x2, y1, x2, y2, c)
		drawLine(result, x2, y2, x1, y2, c)
		drawLine(result, x1, y2, x1, y1, c)
	}

	return result
}

func alpha(opacity float64) uint8 {
	if opacity >= 1 {
		return 255
	}
	return uint8(opacity * 255)
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
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

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	bounds := img.Bounds()
	if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
		img.Set(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
