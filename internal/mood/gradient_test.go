package mood

import (
	"image/color"
	"testing"
)

func TestSample_Corners(t *testing.T) {
	cases := []struct {
		name string
		u, v float64
		want color.RGBA
	}{
		{"upper left", 0, 0, color.RGBA{255, 0, 0, 255}},
		{"upper right", 1, 0, color.RGBA{255, 255, 0, 255}},
		{"right midpoint", 1, 0.5, color.RGBA{255, 255, 102, 255}},
		{"lower left", 0, 1, color.RGBA{0, 0, 255, 255}},
		{"lower right", 1, 1, color.RGBA{0, 255, 0, 255}},
	}
	for _, tc := range cases {
		if got := Sample(tc.u, tc.v); got != tc.want {
			t.Errorf("%s: Sample(%g,%g) = %v, want %v", tc.name, tc.u, tc.v, got, tc.want)
		}
	}
}

func TestSample_Continuous(t *testing.T) {
	const steps = 100
	const maxDelta = 8
	for i := 0; i <= steps; i++ {
		for j := 0; j <= steps; j++ {
			u := float64(i) / steps
			v := float64(j) / steps
			c := Sample(u, v)
			if i < steps {
				if d := maxChannelDelta(c, Sample(float64(i+1)/steps, v)); d > maxDelta {
					t.Fatalf("horizontal jump %d at (%g,%g)", d, u, v)
				}
			}
			if j < steps {
				if d := maxChannelDelta(c, Sample(u, float64(j+1)/steps)); d > maxDelta {
					t.Fatalf("vertical jump %d at (%g,%g)", d, u, v)
				}
			}
		}
	}
}

func TestTileColor_MatchesSample(t *testing.T) {
	if got, want := TileColor(4, 0, 5, 5), Sample(1, 0); got != want {
		t.Errorf("TileColor(4,0) = %v, want %v", got, want)
	}
	if got, want := TileColor(2, 2, 5, 5), Sample(0.5, 0.5); got != want {
		t.Errorf("TileColor(2,2) = %v, want %v", got, want)
	}
	// single-column grids must not divide by zero
	_ = TileColor(0, 0, 1, 1)
}

func maxChannelDelta(a, b color.RGBA) int {
	d := 0
	for _, p := range [][2]uint8{{a.R, b.R}, {a.G, b.G}, {a.B, b.B}} {
		x := int(p[0]) - int(p[1])
		if x < 0 {
			x = -x
		}
		if x > d {
			d = x
		}
	}
	return d
}
