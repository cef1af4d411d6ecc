package render

import (
	"strings"

	"moodmap/internal/mood"
)

// Mode is the viewer's interaction state.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeHovering Mode = "hovering"
	ModeEditing  Mode = "editing"
)

// MaxNoteLen bounds the free-text label of a selection, in runes.
const MaxNoteLen = 60

// DotRef points at a hovered or tapped dot.
type DotRef struct {
	OwnerID string
	X, Y    float64
	Label   string
}

// Interaction is the per-viewer UI state between redraws. It is a value:
// every transition returns the next state and leaves the receiver untouched.
type Interaction struct {
	Mode        Mode
	HoveredTile string
	HoveredDot  *DotRef
	Pending     *mood.PendingSelection
}

// Idle is the initial and terminal state.
func Idle() Interaction {
	return Interaction{Mode: ModeIdle}
}

func (in Interaction) editing() bool {
	return in.Mode == ModeEditing && in.Pending != nil
}

// settle picks Idle or Hovering unless an edit is in progress.
func (in Interaction) settle() Interaction {
	if in.editing() {
		in.Mode = ModeEditing
		return in
	}
	in.Pending = nil
	if in.HoveredDot != nil {
		in.Mode = ModeHovering
	} else {
		in.Mode = ModeIdle
	}
	return in
}

// PointerMove updates hover state. Dots take precedence over tiles, so a
// tile is never lifted while the pointer is over a dot.
func (r *Renderer) PointerMove(in Interaction, dots []mood.Dot, x, y float64) Interaction {
	g := r.grid
	if hit, ok := g.DotAt(x, y, dots, r.opts.HitRadius); ok {
		in.HoveredDot = &DotRef{OwnerID: hit.Dot.OwnerID, X: hit.X, Y: hit.Y, Label: hit.Dot.Label}
		in.HoveredTile = ""
		return in.settle()
	}
	in.HoveredDot = nil
	in.HoveredTile = ""
	if t, ok := g.TileAt(x, y); ok {
		in.HoveredTile = t.Key
	}
	return in.settle()
}

// PointerLeave clears every hover affordance.
func (r *Renderer) PointerLeave(in Interaction) Interaction {
	in.HoveredDot = nil
	in.HoveredTile = ""
	return in.settle()
}

// PointerDown handles a click or tap. On a dot it shows the dot's ring and
// label. On a tile it opens the label editor, or, with notes disabled,
// returns the selection right away.
func (r *Renderer) PointerDown(in Interaction, dots []mood.Dot, x, y float64) (Interaction, mood.Selection, bool) {
	g := r.grid
	if hit, ok := g.DotAt(x, y, dots, r.opts.HitRadius); ok {
		in.HoveredDot = &DotRef{OwnerID: hit.Dot.OwnerID, X: hit.X, Y: hit.Y, Label: hit.Dot.Label}
		in.HoveredTile = ""
		return in.settle(), mood.Selection{}, false
	}
	pending, ok := g.Select(x, y)
	if !ok {
		return in, mood.Selection{}, false
	}
	if !r.opts.EnableNotes {
		return Idle(), pending.Confirm(""), true
	}
	return Interaction{Mode: ModeEditing, Pending: &pending}, mood.Selection{}, false
}

// Confirm closes the editor and emits the pending selection with an
// optional label.
func (r *Renderer) Confirm(in Interaction, label string) (Interaction, mood.Selection, bool) {
	if !in.editing() {
		return in, mood.Selection{}, false
	}
	note := ""
	if r.opts.EnableNotes {
		note = NormalizeNote(label)
	}
	return Idle(), in.Pending.Confirm(note), true
}

// Cancel discards any pending selection.
func (r *Renderer) Cancel(in Interaction) Interaction {
	in.Pending = nil
	if in.Mode == ModeEditing {
		in.Mode = ModeIdle
	}
	return in.settle()
}

// NormalizeNote trims a free-text label and bounds its length.
func NormalizeNote(s string) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > MaxNoteLen {
		s = strings.TrimSpace(string(runes[:MaxNoteLen]))
	}
	return s
}
