package render

import (
	"image/color"
	"math"

	"moodmap/internal/mood"
)

const (
	selfRadius    = 9.5
	otherRadius   = 7.5
	previewRadius = 8.5
	hoverScale    = 1.04
	labelGap      = 20
	tooltipLift   = 16
)

var (
	axisColor      = color.NRGBA{0x9c, 0xa3, 0xaf, 0xff}
	inkColor       = color.NRGBA{0x11, 0x11, 0x11, 0xff}
	labelColor     = color.NRGBA{0x22, 0x22, 0x22, 0xff}
	outlineDot     = color.NRGBA{31, 41, 55, 140}
	outlinePreview = color.NRGBA{31, 41, 55, 115}
	bubbleEdge     = color.NRGBA{0x33, 0x33, 0x33, 0xff}
)

// Options are the capability flags of the board.
type Options struct {
	Layout mood.Layout
	// ShowLabels draws emotion names inside tiles.
	ShowLabels bool
	// EnableNotes opens a label editor on click instead of submitting at once.
	EnableNotes bool
	// HighlightSelf draws the viewer's own dot larger and stronger.
	HighlightSelf bool
	HitRadius     float64
}

// DefaultOptions returns the full-featured board at the given size.
func DefaultOptions(size float64) Options {
	return Options{
		Layout:        mood.DefaultLayout(size),
		ShowLabels:    true,
		EnableNotes:   true,
		HighlightSelf: true,
		HitRadius:     mood.DefaultHitRadius,
	}
}

// Renderer draws a catalog's grid. It holds no per-viewer state; everything
// that varies between redraws is passed to Render.
type Renderer struct {
	catalog *mood.Catalog
	grid    *mood.Grid
	opts    Options
}

// NewRenderer lays out the catalog once for the configured canvas.
func NewRenderer(c *mood.Catalog, opts Options) *Renderer {
	if opts.HitRadius <= 0 {
		opts.HitRadius = mood.DefaultHitRadius
	}
	return &Renderer{catalog: c, grid: mood.NewGrid(c, opts.Layout), opts: opts}
}

// Grid returns the tile layout.
func (r *Renderer) Grid() *mood.Grid { return r.grid }

// Catalog returns the emotion catalog.
func (r *Renderer) Catalog() *mood.Catalog { return r.catalog }

// Options returns the capability flags.
func (r *Renderer) Options() Options { return r.opts }

// Scene is the input of one redraw.
type Scene struct {
	Dots        []mood.Dot
	ViewerID    string
	Interaction Interaction
}

// Render produces the draw list for scene. Rendering is best effort and has
// no error conditions.
func (r *Renderer) Render(scene Scene) Frame {
	if r == nil {
		return Frame{}
	}
	g := r.grid
	f := Frame{
		Width:  g.Layout.Width,
		Height: g.Layout.Height,
		Cursor: "default",
		Ops:    make([]Op, 0, len(g.Tiles)*2+len(scene.Dots)+12),
	}
	in := scene.Interaction

	for _, t := range g.Tiles {
		f.Ops = append(f.Ops, Op{
			Kind:      OpRect,
			Role:      RoleTile,
			Key:       t.Key,
			X:         t.X,
			Y:         t.Y,
			W:         t.W,
			H:         t.H,
			R:         math.Min(t.W, t.H) * 0.2,
			Fill:      nrgba(g.TileColor(t), 0.18),
			Stroke:    gray(0, 0.15),
			LineWidth: 1,
		})
	}

	f.Ops = append(f.Ops, r.axes()...)

	if in.HoveredTile != "" {
		if t, ok := g.TileByKey(in.HoveredTile); ok {
			f.Ops = append(f.Ops, Op{
				Kind:      OpRect,
				Role:      RoleTileHover,
				Key:       t.Key,
				X:         t.X,
				Y:         t.Y,
				W:         t.W,
				H:         t.H,
				R:         math.Min(t.W, t.H) * 0.2,
				Scale:     hoverScale,
				Fill:      gray(255, 0.12),
				Stroke:    inkColor,
				LineWidth: 2,
			})
			f.Cursor = "pointer"
		}
	}

	if r.opts.ShowLabels {
		for _, t := range g.Tiles {
			f.Ops = append(f.Ops, Op{
				Kind:     OpText,
				Role:     RoleTileLabel,
				Key:      t.Key,
				X:        t.CX,
				Y:        t.CY,
				Text:     t.Label,
				FontSize: 13,
				Bold:     true,
				Fill:     labelColor,
				Align:    AlignMiddle,
			})
		}
	}

	for _, d := range scene.Dots {
		f.Ops = append(f.Ops, r.dot(d, scene.ViewerID))
	}

	if ref := in.HoveredDot; ref != nil {
		x, y, radius, label, ok := r.resolveDot(*ref, scene.Dots, scene.ViewerID)
		if ok {
			f.Ops = append(f.Ops, Op{
				Kind:      OpCircle,
				Role:      RoleRing,
				Key:       ref.OwnerID,
				X:         x,
				Y:         y,
				R:         radius + 3,
				Stroke:    inkColor,
				LineWidth: 2,
			})
			if label != "" {
				f.Ops = append(f.Ops, Op{
					Kind:      OpBubble,
					Role:      RoleTooltip,
					Key:       ref.OwnerID,
					X:         x,
					Y:         y - tooltipLift,
					Text:      label,
					FontSize:  12,
					Fill:      gray(255, 1),
					Stroke:    bubbleEdge,
					LineWidth: 1,
					Align:     AlignMiddle,
				})
			}
			f.Cursor = "pointer"
		}
	}

	if p := in.Pending; p != nil {
		f.Ops = append(f.Ops, Op{
			Kind:      OpCircle,
			Role:      RolePreview,
			Key:       p.EmotionKey,
			X:         p.X,
			Y:         p.Y,
			R:         previewRadius,
			Fill:      nrgba(r.colorAt(p.X, p.Y, mood.FallbackColor), 0.35),
			Stroke:    outlinePreview,
			LineWidth: 1,
			Shadow:    &Shadow{OffsetY: 1, Blur: 6, Color: gray(0, 0.20)},
		})
		pending := *p
		f.Pending = &pending
	}
	return f
}

func (r *Renderer) axes() []Op {
	g := r.grid
	cx, cy := g.Box.Center()
	half := 25.0
	if len(g.Tiles) > 0 {
		half = g.Tiles[0].W / 2
	}
	inset := half + labelGap
	axis := func(x1, y1, x2, y2 float64) Op {
		return Op{Kind: OpLine, Role: RoleAxis, X: x1, Y: y1, X2: x2, Y2: y2, Stroke: axisColor, LineWidth: 2}
	}
	label := func(text string, x, y float64, align Align, base Baseline) Op {
		return Op{
			Kind:     OpText,
			Role:     RoleAxisLabel,
			X:        x,
			Y:        y,
			Text:     text,
			FontSize: 12,
			Bold:     true,
			Fill:     inkColor,
			Align:    align,
			Baseline: base,
		}
	}
	return []Op{
		axis(cx, cy-inset, cx, cy+inset),
		axis(cx-inset, cy, cx+inset, cy),
		label("High Energy", cx, cy-inset-4, AlignMiddle, BaselineBottom),
		label("Low Energy", cx, cy+inset+4, AlignMiddle, BaselineTop),
		label("Negative", cx-inset-4, cy, AlignEnd, BaselineMiddle),
		label("Positive", cx+inset+4, cy, AlignStart, BaselineMiddle),
	}
}

func (r *Renderer) dot(d mood.Dot, viewerID string) Op {
	x, y := r.grid.ToPixel(d.Valence, d.Arousal)
	fallback := d.Color
	if fallback.A == 0 {
		fallback = mood.FallbackColor
	}
	mine := r.isMine(d, viewerID)
	op := Op{
		Kind:      OpCircle,
		Role:      RoleDot,
		Key:       d.OwnerID,
		X:         x,
		Y:         y,
		R:         otherRadius,
		Fill:      nrgba(r.colorAt(x, y, fallback), 0.40),
		Stroke:    outlineDot,
		LineWidth: 1,
		Shadow:    &Shadow{OffsetY: 1.5, Blur: 6, Color: gray(0, 0.25)},
	}
	if mine {
		op.Role = RoleDotSelf
		op.R = selfRadius
		op.Fill.A = 140 // alpha 0.55, as nrgba computes uint8(0.55*255 + 0.5)
		op.Shadow.Blur = 8
	}
	return op
}

// colorAt samples the gradient of the tile under (x, y).
func (r *Renderer) colorAt(x, y float64, fallback color.RGBA) color.RGBA {
	if t, ok := r.grid.TileAt(x, y); ok {
		return r.grid.TileColor(t)
	}
	return fallback
}

func (r *Renderer) isMine(d mood.Dot, viewerID string) bool {
	return r.opts.HighlightSelf && viewerID != "" && d.OwnerID == viewerID
}

func (r *Renderer) radiusFor(d mood.Dot, viewerID string) float64 {
	if r.isMine(d, viewerID) {
		return selfRadius
	}
	return otherRadius
}

// resolveDot finds the current position of a hovered dot. Owned dots follow
// their owner across snapshots; anonymous ones stay where they were hit.
func (r *Renderer) resolveDot(ref DotRef, dots []mood.Dot, viewerID string) (x, y, radius float64, label string, ok bool) {
	if ref.OwnerID == "" {
		return ref.X, ref.Y, otherRadius, ref.Label, true
	}
	for i := len(dots) - 1; i >= 0; i-- {
		if dots[i].OwnerID != ref.OwnerID {
			continue
		}
		x, y = r.grid.ToPixel(dots[i].Valence, dots[i].Arousal)
		return x, y, r.radiusFor(dots[i], viewerID), dots[i].Label, true
	}
	return 0, 0, 0, "", false
}
