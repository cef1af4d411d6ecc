package mood

import "image/color"

// Dot is the render-only projection of one participant's current mood.
type Dot struct {
	Valence float64
	Arousal float64
	Color   color.RGBA
	OwnerID string
	Label   string
}

// PendingSelection is an unconfirmed click waiting for an optional label.
type PendingSelection struct {
	EmotionKey string
	Valence    float64
	Arousal    float64
	// X and Y are the raw click position, used to anchor the label editor.
	X, Y float64
}

// Selection is emitted when the viewer confirms a mood.
type Selection struct {
	EmotionKey string
	Valence    float64
	Arousal    float64
	Label      string
}

// Select resolves a click at (x, y) into a pending selection. The affect
// coordinates come from the click itself, not from the tile's anchor.
func (g *Grid) Select(x, y float64) (PendingSelection, bool) {
	t, ok := g.TileAt(x, y)
	if !ok {
		return PendingSelection{}, false
	}
	v, a := g.ToAffect(x, y)
	return PendingSelection{EmotionKey: t.Key, Valence: v, Arousal: a, X: x, Y: y}, true
}

// Confirm turns a pending selection into a Selection with an optional label.
func (p PendingSelection) Confirm(label string) Selection {
	return Selection{
		EmotionKey: p.EmotionKey,
		Valence:    p.Valence,
		Arousal:    p.Arousal,
		Label:      label,
	}
}
