// Package canvas provides the annotation surface widget and its raster
// drawing primitives.
package canvas

import (
	"image"
	"image/color"
)

// digitPatterns contains 3x5 pixel patterns for digits 0-9.
// Each digit is represented as 5 rows of 3 bits.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// letterPatterns contains 3x5 pixel patterns for letters A-Z and common
// symbols.
var letterPatterns = map[rune][5]uint8{
	'A': {0b010, 0b101, 0b111, 0b101, 0b101},
	'B': {0b110, 0b101, 0b110, 0b101, 0b110},
	'C': {0b011, 0b100, 0b100, 0b100, 0b011},
	'D': {0b110, 0b101, 0b101, 0b101, 0b110},
	'E': {0b111, 0b100, 0b110, 0b100, 0b111},
	'F': {0b111, 0b100, 0b110, 0b100, 0b100},
	'G': {0b011, 0b100, 0b101, 0b101, 0b011},
	'H': {0b101, 0b101, 0b111, 0b101, 0b101},
	'I': {0b111, 0b010, 0b010, 0b010, 0b111},
	'J': {0b001, 0b001, 0b001, 0b101, 0b010},
	'K': {0b101, 0b101, 0b110, 0b101, 0b101},
	'L': {0b100, 0b100, 0b100, 0b100, 0b111},
	'M': {0b101, 0b111, 0b101, 0b101, 0b101},
	'N': {0b101, 0b111, 0b111, 0b101, 0b101},
	'O': {0b010, 0b101, 0b101, 0b101, 0b010},
	'P': {0b110, 0b101, 0b110, 0b100, 0b100},
	'Q': {0b010, 0b101, 0b101, 0b111, 0b011},
	'R': {0b110, 0b101, 0b110, 0b101, 0b101},
	'S': {0b011, 0b100, 0b010, 0b001, 0b110},
	'T': {0b111, 0b010, 0b010, 0b010, 0b010},
	'U': {0b101, 0b101, 0b101, 0b101, 0b111},
	'V': {0b101, 0b101, 0b101, 0b101, 0b010},
	'W': {0b101, 0b101, 0b101, 0b111, 0b101},
	'X': {0b101, 0b101, 0b010, 0b101, 0b101},
	'Y': {0b101, 0b101, 0b010, 0b010, 0b010},
	'Z': {0b111, 0b001, 0b010, 0b100, 0b111},
	'+': {0b000, 0b010, 0b111, 0b010, 0b000},
	'-': {0b000, 0b000, 0b111, 0b000, 0b000},
	'*': {0b000, 0b101, 0b010, 0b101, 0b000},
	'.': {0b000, 0b000, 0b000, 0b000, 0b010},
	':': {0b000, 0b010, 0b000, 0b010, 0b000},
	'/': {0b001, 0b001, 0b010, 0b100, 0b100},
	'(': {0b001, 0b010, 0b010, 0b010, 0b001},
	')': {0b100, 0b010, 0b010, 0b010, 0b100},
	'°': {0b010, 0b101, 0b010, 0b000, 0b000},
	' ': {0b000, 0b000, 0b000, 0b000, 0b000},
}

// getCharPattern returns the 3x5 pixel pattern for a character. Returns a
// zero pattern for unsupported characters.
func getCharPattern(ch rune) [5]uint8 {
	if ch >= '0' && ch <= '9' {
		return digitPatterns[ch-'0']
	}
	if ch >= 'a' && ch <= 'z' {
		ch = ch - 'a' + 'A'
	}
	if pattern, ok := letterPatterns[ch]; ok {
		return pattern
	}
	return [5]uint8{}
}

// glyphScale maps a font size in surface pixels to an integer glyph
// scale factor.
func glyphScale(fontSize float64) int {
	scale := int(fontSize / 6)
	if scale < 1 {
		scale = 1
	}
	if scale > 6 {
		scale = 6
	}
	return scale
}

// textWidth returns the rendered width of s at the given glyph scale.
func textWidth(s string, scale int) int {
	n := len([]rune(s))
	if n == 0 {
		return 0
	}
	return n*4*scale - scale // 3px glyph + 1px gap, no trailing gap
}

// textHeight returns the rendered glyph height at the given scale.
func textHeight(scale int) int {
	return 5 * scale
}

// drawString renders s left-anchored at (x, y) using the 3x5 glyph set.
func drawString(output *image.RGBA, s string, x, y int, col color.RGBA, scale int) {
	bounds := output.Bounds()
	for i, ch := range []rune(s) {
		pattern := getCharPattern(ch)
		charX := x + i*4*scale
		for row := 0; row < 5; row++ {
			for c := 0; c < 3; c++ {
				if (pattern[row] & (1 << (2 - c))) == 0 {
					continue
				}
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						px := charX + c*scale + dx
						py := y + row*scale + dy
						if px >= bounds.Min.X && px < bounds.Max.X &&
							py >= bounds.Min.Y && py < bounds.Max.Y {
							output.Set(px, py, col)
						}
					}
				}
			}
		}
	}
}

// drawStringCentered renders s centered on (centerX, centerY).
func drawStringCentered(output *image.RGBA, s string, centerX, centerY int, col color.RGBA, scale int) {
	drawString(output, s, centerX-textWidth(s, scale)/2, centerY-textHeight(scale)/2, col, scale)
}

// drawLine draws a line between two points using Bresenham's algorithm.
func drawLine(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	bounds := output.Bounds()

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

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
		for t := -thickness / 2; t <= thickness/2; t++ {
			for s := -thickness / 2; s <= thickness/2; s++ {
				px, py := x1+s, y1+t
				if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
					output.Set(px, py, col)
				}
			}
		}

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

// blendPixel alpha-blends col over the existing pixel.
func blendPixel(output *image.RGBA, x, y int, col color.RGBA, alpha float64) {
	bounds := output.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	if alpha >= 0.999 {
		output.Set(x, y, col)
		return
	}
	if alpha <= 0.001 {
		return
	}
	existing := output.RGBAAt(x, y)
	inv := 1 - alpha
	output.Set(x, y, color.RGBA{
		R: uint8(float64(col.R)*alpha + float64(existing.R)*inv),
		G: uint8(float64(col.G)*alpha + float64(existing.G)*inv),
		B: uint8(float64(col.B)*alpha + float64(existing.B)*inv),
		A: 255,
	})
}

// fillRectBlend fills a rectangle with alpha blending.
func fillRectBlend(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, alpha float64) {
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			blendPixel(output, x, y, col, alpha)
		}
	}
}

// drawCircleOutline draws a 2px ring, used for endpoint handles.
func drawCircleOutline(output *image.RGBA, cx, cy int, r float64, col color.RGBA) {
	bounds := output.Bounds()
	r2 := r * r
	inner2 := (r - 2) * (r - 2)

	for y := cy - int(r) - 1; y <= cy+int(r)+1; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := cx - int(r) - 1; x <= cx+int(r)+1; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			dx := float64(x - cx)
			dy := float64(y - cy)
			dist2 := dx*dx + dy*dy
			if dist2 <= r2 && dist2 >= inner2 {
				output.Set(x, y, col)
			}
		}
	}
}

// drawCrossMarker draws a small + marker, used for pending placement
// points.
func drawCrossMarker(output *image.RGBA, cx, cy, arm int, col color.RGBA) {
	drawLine(output, cx-arm, cy, cx+arm, cy, col, 1)
	drawLine(output, cx, cy-arm, cx, cy+arm, col, 1)
}

// drawDashedLine draws a dashed line, used for preview geometry.
func drawDashedLine(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA) {
	bounds := output.Bounds()

	dx := x2 - x1
	dy := y2 - y1
	adx, ady := dx, dy
	if adx < 0 {
		adx = -adx
	}
	if ady < 0 {
		ady = -ady
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := adx - ady
	step := 0

	for {
		if step%8 < 5 {
			if x1 >= bounds.Min.X && x1 < bounds.Max.X && y1 >= bounds.Min.Y && y1 < bounds.Max.Y {
				output.Set(x1, y1, col)
			}
		}
		step++

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -ady {
			err -= ady
			x1 += sx
		}
		if e2 < adx {
			err += adx
			y1 += sy
		}
	}
}
