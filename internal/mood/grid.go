package mood

import (
	"math"
	"sort"
)

const (
	DefaultPadding   = 12
	DefaultGutter    = 10
	DefaultHitRadius = 12
)

// Layout describes the canvas a grid is laid out on.
type Layout struct {
	Width   float64
	Height  float64
	Padding float64
	Gutter  float64
}

// DefaultLayout returns a square layout of the given size with the default
// padding and gutter.
func DefaultLayout(size float64) Layout {
	return Layout{Width: size, Height: size, Padding: DefaultPadding, Gutter: DefaultGutter}
}

// Tile is the rectangle of one anchor within the grid.
type Tile struct {
	Key    string
	Label  string
	Col    int
	Row    int
	X, Y   float64
	W, H   float64
	CX, CY float64
}

// Contains reports whether (x, y) is inside the tile, edges included.
func (t Tile) Contains(x, y float64) bool {
	return x >= t.X && x <= t.X+t.W && y >= t.Y && y <= t.Y+t.H
}

// Grid is the tile layout derived from a catalog for one canvas size.
// It is recomputed when the canvas or catalog changes and never mutated.
type Grid struct {
	Layout Layout
	Box    Box
	// Cols holds valence lines ascending, Rows arousal lines descending.
	Cols  []float64
	Rows  []float64
	TileW float64
	TileH float64
	Tiles []Tile
}

// NewGrid lays the catalog out on a uniform len(Cols) x len(Rows) grid.
// Anchors whose coordinates do not match a grid line are skipped.
func NewGrid(c *Catalog, layout Layout) *Grid {
	anchors := c.Anchors()
	vs := make([]float64, 0, len(anchors))
	as := make([]float64, 0, len(anchors))
	for _, a := range anchors {
		vs = append(vs, a.Valence)
		as = append(as, a.Arousal)
	}
	cols := uniqSorted(vs, func(a, b float64) bool { return a < b })
	rows := uniqSorted(as, func(a, b float64) bool { return a > b })

	box := NewBox(layout.Width, layout.Height, layout.Padding)
	g := &Grid{
		Layout: layout,
		Box:    box,
		Cols:   cols,
		Rows:   rows,
		TileW:  math.Max(0, (box.W-layout.Gutter*float64(len(cols)-1))/float64(len(cols))),
		TileH:  math.Max(0, (box.H-layout.Gutter*float64(len(rows)-1))/float64(len(rows))),
		Tiles:  make([]Tile, 0, len(anchors)),
	}
	for _, a := range anchors {
		col := indexOf(cols, a.Valence)
		row := indexOf(rows, a.Arousal)
		if col < 0 || row < 0 {
			continue
		}
		x := box.X + float64(col)*(g.TileW+layout.Gutter)
		y := box.Y + float64(row)*(g.TileH+layout.Gutter)
		g.Tiles = append(g.Tiles, Tile{
			Key:   a.Key,
			Label: a.Label,
			Col:   col,
			Row:   row,
			X:     x,
			Y:     y,
			W:     g.TileW,
			H:     g.TileH,
			CX:    x + g.TileW/2,
			CY:    y + g.TileH/2,
		})
	}
	return g
}

// NumCols returns the number of grid columns.
func (g *Grid) NumCols() int { return len(g.Cols) }

// NumRows returns the number of grid rows.
func (g *Grid) NumRows() int { return len(g.Rows) }

// ToPixel maps an affect point onto this grid's box.
func (g *Grid) ToPixel(valence, arousal float64) (float64, float64) {
	return ToPixel(valence, arousal, g.Box)
}

// ToAffect maps a pixel onto the affect plane, clamped.
func (g *Grid) ToAffect(x, y float64) (float64, float64) {
	return ToAffect(x, y, g.Box)
}

// TileAt returns the first tile containing (x, y).
func (g *Grid) TileAt(x, y float64) (Tile, bool) {
	for _, t := range g.Tiles {
		if t.Contains(x, y) {
			return t, true
		}
	}
	return Tile{}, false
}

// TileByKey returns the tile for an emotion key.
func (g *Grid) TileByKey(key string) (Tile, bool) {
	for _, t := range g.Tiles {
		if t.Key == key {
			return t, true
		}
	}
	return Tile{}, false
}

// DotHit is a dot found by DotAt together with its pixel position.
type DotHit struct {
	Index int
	Dot   Dot
	X, Y  float64
}

// DotAt returns the dot nearest to (x, y) within radius pixels. Dots are
// scanned last-drawn first and equal distances keep the later dot.
func (g *Grid) DotAt(x, y float64, dots []Dot, radius float64) (DotHit, bool) {
	var (
		best  DotHit
		found bool
		bestD float64
	)
	for i := len(dots) - 1; i >= 0; i-- {
		dx, dy := g.ToPixel(dots[i].Valence, dots[i].Arousal)
		d := math.Hypot(x-dx, y-dy)
		// NaN never hits
		if !(d <= radius) {
			continue
		}
		if !found || d < bestD {
			best = DotHit{Index: i, Dot: dots[i], X: dx, Y: dy}
			bestD = d
			found = true
		}
	}
	return best, found
}

func uniqSorted(in []float64, less func(a, b float64) bool) []float64 {
	s := make([]float64, len(in))
	copy(s, in)
	sort.Slice(s, func(i, j int) bool { return less(s[i], s[j]) })
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func indexOf(lines []float64, v float64) int {
	for i, l := range lines {
		if l == v {
			return i
		}
	}
	return -1
}
