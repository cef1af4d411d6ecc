package mood

import (
	"image/color"
	"math"
)

// Corner colors of the board gradient. The right edge bends through
// midYellow at the vertical midpoint.
var (
	cornerUL  = [3]float64{255, 0, 0}
	cornerUR  = [3]float64{255, 255, 0}
	cornerLL  = [3]float64{0, 0, 255}
	cornerLR  = [3]float64{0, 255, 0}
	midYellow = [3]float64{255, 255, 102}
)

// Sample returns the gradient color at (u, v) in [0,1]^2, u left to right,
// v top to bottom.
func Sample(u, v float64) color.RGBA {
	u = clamp(u, 0, 1)
	v = clamp(v, 0, 1)
	left := lerp3(cornerUL, cornerLL, v)
	var right [3]float64
	if v < 0.5 {
		right = lerp3(cornerUR, midYellow, v/0.5)
	} else {
		right = lerp3(midYellow, cornerLR, (v-0.5)/0.5)
	}
	c := lerp3(left, right, u)
	return color.RGBA{R: channel(c[0]), G: channel(c[1]), B: channel(c[2]), A: 0xff}
}

// TileColor samples the gradient at a grid position.
func TileColor(col, row, cols, rows int) color.RGBA {
	u := float64(col) / math.Max(1, float64(cols-1))
	v := float64(row) / math.Max(1, float64(rows-1))
	return Sample(u, v)
}

// TileColor returns the gradient color of t within g.
func (g *Grid) TileColor(t Tile) color.RGBA {
	return TileColor(t.Col, t.Row, g.NumCols(), g.NumRows())
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func lerp3(a, b [3]float64, t float64) [3]float64 {
	return [3]float64{lerp(a[0], b[0], t), lerp(a[1], b[1], t), lerp(a[2], b[2], t)}
}

// channel truncates like the canvas `|0` conversion.
func channel(v float64) uint8 {
	return uint8(clamp(v, 0, 255))
}
