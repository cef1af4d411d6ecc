package mood

// Box is the padded drawing rectangle inside the canvas.
type Box struct {
	X, Y, W, H float64
}

// NewBox insets a width x height canvas by padding on every side.
func NewBox(width, height, padding float64) Box {
	w := width - 2*padding
	h := height - 2*padding
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return Box{X: padding, Y: padding, W: w, H: h}
}

// Center returns the box center in pixels.
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Contains reports whether (x, y) lies inside the box, edges included.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.W && y >= b.Y && y <= b.Y+b.H
}

// ToPixel maps valence left to right and arousal bottom to top.
func ToPixel(valence, arousal float64, box Box) (float64, float64) {
	x := (valence+1)/2*box.W + box.X
	y := (1-(arousal+1)/2)*box.H + box.Y
	return x, y
}

// ToAffect is the inverse of ToPixel. Results are clamped to [-1,1] so that
// pointer input outside the box still yields a valid mood.
func ToAffect(x, y float64, box Box) (float64, float64) {
	if box.W == 0 || box.H == 0 {
		return 0, 0
	}
	u := (x - box.X) / box.W
	v := (y - box.Y) / box.H
	return clamp(u*2-1, -1, 1), clamp((1-v)*2-1, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
