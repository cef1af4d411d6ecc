// Package render turns a mood grid, a dot snapshot and a viewer's interaction
// state into an ordered list of draw operations, and replays that list onto
// SVG or PNG surfaces.
package render

import (
	"image/color"

	"moodmap/internal/mood"
)

// OpKind identifies the shape of a draw operation.
type OpKind uint8

const (
	OpRect OpKind = iota
	OpLine
	OpCircle
	OpText
	OpBubble
)

// Roles tag operations so surfaces can style or address them.
const (
	RoleTile      = "tile"
	RoleTileHover = "tile-hover"
	RoleTileLabel = "tile-label"
	RoleAxis      = "axis"
	RoleAxisLabel = "axis-label"
	RoleDot       = "dot"
	RoleDotSelf   = "dot-self"
	RoleRing      = "ring"
	RoleTooltip   = "tooltip"
	RolePreview   = "preview"
)

// Align is the horizontal text anchor.
type Align uint8

const (
	AlignStart Align = iota
	AlignMiddle
	AlignEnd
)

// Baseline is the vertical text anchor.
type Baseline uint8

const (
	BaselineMiddle Baseline = iota
	BaselineTop
	BaselineBottom
)

// Shadow is a drop shadow under a filled shape.
type Shadow struct {
	OffsetY float64
	Blur    float64
	Color   color.NRGBA
}

// Op is one draw operation. Which fields matter depends on Kind:
// rects use X,Y,W,H,R; lines X,Y,X2,Y2; circles X,Y,R; text and bubbles X,Y,Text.
type Op struct {
	Kind OpKind
	Role string
	Key  string

	X, Y   float64
	W, H   float64
	X2, Y2 float64
	R      float64
	// Scale grows the shape around its center; zero means 1.
	Scale float64

	Fill      color.NRGBA
	Stroke    color.NRGBA
	LineWidth float64
	Shadow    *Shadow

	Text     string
	FontSize float64
	Bold     bool
	Align    Align
	Baseline Baseline
}

// Frame is a complete redraw of the board.
type Frame struct {
	Width  float64
	Height float64
	Cursor string
	Ops    []Op
	// Pending is set while the label editor should be shown.
	Pending *mood.PendingSelection
}

// Surface receives draw operations.
type Surface interface {
	Draw(op Op)
}

// Replay draws every op in order. A nil surface is a no-op.
func (f Frame) Replay(s Surface) {
	if s == nil {
		return
	}
	for _, op := range f.Ops {
		s.Draw(op)
	}
}

// Count returns how many ops have the given role.
func (f Frame) Count(role string) int {
	n := 0
	for _, op := range f.Ops {
		if op.Role == role {
			n++
		}
	}
	return n
}

func nrgba(c color.RGBA, alpha float64) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(alpha*255 + 0.5)}
}

func gray(v uint8, alpha float64) color.NRGBA {
	return color.NRGBA{R: v, G: v, B: v, A: uint8(alpha*255 + 0.5)}
}
