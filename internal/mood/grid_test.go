package mood

import (
	"math"
	"testing"
)

func TestToAffect_RoundTrip(t *testing.T) {
	box := NewBox(600, 600, DefaultPadding)
	for i := 0; i <= 40; i++ {
		for j := 0; j <= 40; j++ {
			v := -1 + float64(i)*0.05
			a := -1 + float64(j)*0.05
			x, y := ToPixel(v, a, box)
			gv, ga := ToAffect(x, y, box)
			if math.Abs(gv-v) > 1e-6 || math.Abs(ga-a) > 1e-6 {
				t.Fatalf("round trip (%g,%g) -> (%g,%g) -> (%g,%g)", v, a, x, y, gv, ga)
			}
		}
	}
}

func TestToAffect_ClampsTopLeftCorner(t *testing.T) {
	box := NewBox(600, 600, 12)
	v, a := ToAffect(12, 12, box)
	if math.Abs(v+1) > 1e-9 || math.Abs(a-1) > 1e-9 {
		t.Errorf("ToAffect(12,12) = (%g,%g), want (-1,1)", v, a)
	}
	v, a = ToAffect(-50, 900, box)
	if v != -1 || a != -1 {
		t.Errorf("ToAffect outside box = (%g,%g), want (-1,-1)", v, a)
	}
}

func TestToPixel_ArousalIsInverted(t *testing.T) {
	box := NewBox(600, 600, 12)
	_, top := ToPixel(0, 1, box)
	_, bottom := ToPixel(0, -1, box)
	if top >= bottom {
		t.Errorf("high arousal y=%g should be above low arousal y=%g", top, bottom)
	}
}

func TestNewGrid_DefaultCatalogScenario(t *testing.T) {
	g := NewGrid(DefaultCatalog(), Layout{Width: 600, Height: 600, Padding: 12, Gutter: 10})
	if g.NumCols() != 5 || g.NumRows() != 5 {
		t.Fatalf("grid %dx%d, want 5x5", g.NumCols(), g.NumRows())
	}
	wantCols := []float64{-0.9, -0.45, 0, 0.45, 0.9}
	wantRows := []float64{0.9, 0.45, 0, -0.45, -0.9}
	for i := range wantCols {
		if g.Cols[i] != wantCols[i] {
			t.Errorf("Cols[%d] = %g, want %g", i, g.Cols[i], wantCols[i])
		}
		if g.Rows[i] != wantRows[i] {
			t.Errorf("Rows[%d] = %g, want %g", i, g.Rows[i], wantRows[i])
		}
	}
	tile, ok := g.TileByKey("excited")
	if !ok {
		t.Fatal("no tile for excited")
	}
	if tile.Col != 4 || tile.Row != 0 {
		t.Errorf("excited at col=%d row=%d, want col=4 row=0", tile.Col, tile.Row)
	}
	if len(g.Tiles) != DefaultCatalog().Len() {
		t.Errorf("len(Tiles) = %d, want %d", len(g.Tiles), DefaultCatalog().Len())
	}
}

func TestNewGrid_TilesInsideBoxAndDisjoint(t *testing.T) {
	const eps = 1e-9
	for size := 100.0; size <= 1200; size += 37 {
		g := NewGrid(DefaultCatalog(), DefaultLayout(size))
		b := g.Box
		for _, tile := range g.Tiles {
			if tile.X < b.X-eps || tile.Y < b.Y-eps || tile.X+tile.W > b.X+b.W+eps || tile.Y+tile.H > b.Y+b.H+eps {
				t.Fatalf("size %g: tile %s %+v outside box %+v", size, tile.Key, tile, b)
			}
		}
		for i := range g.Tiles {
			for j := i + 1; j < len(g.Tiles); j++ {
				a, c := g.Tiles[i], g.Tiles[j]
				if a.X < c.X+c.W && c.X < a.X+a.W && a.Y < c.Y+c.H && c.Y < a.Y+a.H {
					t.Fatalf("size %g: tiles %s and %s overlap", size, a.Key, c.Key)
				}
			}
		}
	}
}

func TestGrid_TileAtCenter(t *testing.T) {
	g := NewGrid(DefaultCatalog(), DefaultLayout(560))
	for _, tile := range g.Tiles {
		got, ok := g.TileAt(tile.CX, tile.CY)
		if !ok {
			t.Fatalf("TileAt center of %s found nothing", tile.Key)
		}
		if got.Key != tile.Key {
			t.Errorf("TileAt center of %s = %s", tile.Key, got.Key)
		}
	}
}

func TestGrid_TileAtGutterIsEmpty(t *testing.T) {
	g := NewGrid(DefaultCatalog(), DefaultLayout(600))
	first, _ := g.TileByKey("hangry")
	if _, ok := g.TileAt(first.X+first.W+DefaultGutter/2, first.CY); ok {
		t.Error("gutter point should not hit a tile")
	}
	// center cell of the middle row is blank on the poster
	cx, cy := g.ToPixel(0, 0)
	if _, ok := g.TileAt(cx, cy); ok {
		t.Error("blank center cell should not hit a tile")
	}
}

func TestGrid_DotAt(t *testing.T) {
	g := NewGrid(DefaultCatalog(), DefaultLayout(600))
	dots := []Dot{{Valence: 0, Arousal: 0, OwnerID: "A"}}
	x, y := g.ToPixel(0, 0)

	hit, ok := g.DotAt(x, y, dots, DefaultHitRadius)
	if !ok {
		t.Fatal("DotAt exact pixel found nothing")
	}
	if hit.Dot.OwnerID != "A" {
		t.Errorf("DotAt owner %q, want A", hit.Dot.OwnerID)
	}
	if _, ok := g.DotAt(x+20, y, dots, DefaultHitRadius); ok {
		t.Error("DotAt 20px away should find nothing")
	}
}

func TestGrid_DotAtIgnoresNaN(t *testing.T) {
	g := NewGrid(DefaultCatalog(), DefaultLayout(600))
	dots := []Dot{{OwnerID: "A"}, {Valence: 0.5, OwnerID: "B"}}
	if hit, ok := g.DotAt(math.NaN(), 100, dots, DefaultHitRadius); ok {
		t.Errorf("NaN pointer hit %q", hit.Dot.OwnerID)
	}
	if _, ok := g.TileAt(math.NaN(), math.NaN()); ok {
		t.Error("NaN pointer found a tile")
	}
}

func TestGrid_DotAtPrefersNearest(t *testing.T) {
	g := NewGrid(DefaultCatalog(), DefaultLayout(600))
	x, y := g.ToPixel(0, 0)
	v, a := g.ToAffect(x+8, y)
	dots := []Dot{
		{Valence: 0, Arousal: 0, OwnerID: "near"},
		{Valence: v, Arousal: a, OwnerID: "far"},
	}
	hit, ok := g.DotAt(x+1, y, dots, DefaultHitRadius)
	if !ok || hit.Dot.OwnerID != "near" {
		t.Errorf("DotAt = %+v %v, want near", hit, ok)
	}
}

func TestGrid_DotAtTieGoesToLastDrawn(t *testing.T) {
	g := NewGrid(DefaultCatalog(), DefaultLayout(600))
	dots := []Dot{
		{Valence: 0.2, Arousal: 0.2, OwnerID: "first"},
		{Valence: 0.2, Arousal: 0.2, OwnerID: "second"},
	}
	x, y := g.ToPixel(0.2, 0.2)
	hit, ok := g.DotAt(x, y, dots, DefaultHitRadius)
	if !ok {
		t.Fatal("DotAt found nothing")
	}
	if hit.Dot.OwnerID != "second" || hit.Index != 1 {
		t.Errorf("DotAt = %s (index %d), want second (index 1)", hit.Dot.OwnerID, hit.Index)
	}
}

func TestGrid_SelectKeepsClickPrecision(t *testing.T) {
	g := NewGrid(DefaultCatalog(), DefaultLayout(600))
	tile, _ := g.TileByKey("excited")
	x, y := tile.X+5, tile.Y+7

	pending, ok := g.Select(x, y)
	if !ok {
		t.Fatal("Select on tile returned false")
	}
	sel := pending.Confirm("buzzing")
	wantV, wantA := g.ToAffect(x, y)
	if sel.EmotionKey != "excited" {
		t.Errorf("EmotionKey %q, want excited", sel.EmotionKey)
	}
	if sel.Valence != wantV || sel.Arousal != wantA {
		t.Errorf("selection (%g,%g), want click-derived (%g,%g)", sel.Valence, sel.Arousal, wantV, wantA)
	}
	if sel.Valence == 0.9 && sel.Arousal == 0.9 {
		t.Error("selection snapped to the anchor")
	}
	if sel.Label != "buzzing" {
		t.Errorf("Label %q, want buzzing", sel.Label)
	}

	if _, ok := g.Select(1, 1); ok {
		t.Error("Select outside tiles should return false")
	}
}
