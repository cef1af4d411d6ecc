package mood

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackColor is used for dots whose emotion key is unknown.
var FallbackColor = color.RGBA{0x3b, 0x82, 0xf6, 0xff}

// EmotionAnchor is a named emotion pinned to a fixed point of the affect plane.
type EmotionAnchor struct {
	Key     string
	Label   string
	Valence float64
	Arousal float64
	Color   color.RGBA
}

// Catalog is an immutable, ordered set of emotion anchors.
type Catalog struct {
	anchors []EmotionAnchor
	byKey   map[string]int
}

// NewCatalog validates anchors and builds a catalog. Keys must be unique and
// coordinates must lie in [-1,1].
func NewCatalog(anchors []EmotionAnchor) (*Catalog, error) {
	if len(anchors) == 0 {
		return nil, errors.New("catalog is empty")
	}
	c := &Catalog{
		anchors: make([]EmotionAnchor, 0, len(anchors)),
		byKey:   make(map[string]int, len(anchors)),
	}
	for _, a := range anchors {
		key := strings.TrimSpace(a.Key)
		if key == "" {
			return nil, errors.New("catalog entry without key")
		}
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate emotion key %q", key)
		}
		if a.Valence < -1 || a.Valence > 1 || a.Arousal < -1 || a.Arousal > 1 {
			return nil, fmt.Errorf("emotion %q: anchor (%g, %g) outside [-1,1]", key, a.Valence, a.Arousal)
		}
		a.Key = key
		if a.Label == "" {
			a.Label = key
		}
		c.byKey[key] = len(c.anchors)
		c.anchors = append(c.anchors, a)
	}
	return c, nil
}

// Anchors returns a copy of the anchors in authoring order.
func (c *Catalog) Anchors() []EmotionAnchor {
	out := make([]EmotionAnchor, len(c.anchors))
	copy(out, c.anchors)
	return out
}

// Len returns the number of anchors.
func (c *Catalog) Len() int {
	return len(c.anchors)
}

// Lookup returns the anchor for key.
func (c *Catalog) Lookup(key string) (EmotionAnchor, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return EmotionAnchor{}, false
	}
	return c.anchors[i], true
}

// ColorFor returns the display color for key, or FallbackColor.
func (c *Catalog) ColorFor(key string) color.RGBA {
	if a, ok := c.Lookup(key); ok {
		return a.Color
	}
	return FallbackColor
}

// Poster grid lines, left to right and top to bottom.
var (
	defaultCols = [5]float64{-0.9, -0.45, 0, 0.45, 0.9}
	defaultRows = [5]float64{0.9, 0.45, 0, -0.45, -0.9}
)

func anchor(key string, col, row int, hex string) EmotionAnchor {
	return EmotionAnchor{
		Key:     key,
		Label:   key,
		Valence: defaultCols[col],
		Arousal: defaultRows[row],
		Color:   mustHex(hex),
	}
}

// DefaultCatalog returns the built-in 5x5 poster catalog. The center cells of
// rows two to four are intentionally blank.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]EmotionAnchor{
		// high energy
		anchor("hangry", 0, 0, "#F28B82"),
		anchor("annoyed", 1, 0, "#FB923C"),
		anchor("caffeinated", 2, 0, "#FDE047"),
		anchor("goofy", 3, 0, "#FACC15"),
		anchor("excited", 4, 0, "#F59E0B"),

		anchor("overwhelmed", 0, 1, "#FDA4AF"),
		anchor("anxious", 1, 1, "#F43F5E"),
		anchor("motivated", 3, 1, "#22C55E"),
		anchor("inspired", 4, 1, "#10B981"),

		anchor("sad", 0, 2, "#A78BFA"),
		anchor("satisfied", 4, 2, "#84CC16"),

		anchor("lonely", 0, 3, "#818CF8"),
		anchor("bored", 1, 3, "#93C5FD"),
		anchor("curious", 3, 3, "#8B5CF6"),
		anchor("grateful", 4, 3, "#34D399"),

		// low energy
		anchor("tired", 0, 4, "#60A5FA"),
		anchor("sleepy", 1, 4, "#93C5FD"),
		anchor("empty", 2, 4, "#9CA3AF"),
		anchor("refreshed", 3, 4, "#4DB6AC"),
		anchor("peaceful", 4, 4, "#86EFAC"),
	})
	if err != nil {
		panic(err)
	}
	return c
}

type catalogFile struct {
	Emotions []struct {
		Key     string  `yaml:"key"`
		Label   string  `yaml:"label"`
		Valence float64 `yaml:"valence"`
		Arousal float64 `yaml:"arousal"`
		Color   string  `yaml:"color"`
	} `yaml:"emotions"`
}

// ParseCatalog decodes a YAML catalog:
//
//	emotions:
//	  - {key: calm, label: calm, valence: 0.5, arousal: -0.5, color: "#86EFAC"}
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	anchors := make([]EmotionAnchor, 0, len(f.Emotions))
	for _, e := range f.Emotions {
		c := FallbackColor
		if e.Color != "" {
			parsed, err := ParseHexColor(e.Color)
			if err != nil {
				return nil, fmt.Errorf("emotion %q: %w", e.Key, err)
			}
			c = parsed
		}
		anchors = append(anchors, EmotionAnchor{
			Key:     e.Key,
			Label:   e.Label,
			Valence: e.Valence,
			Arousal: e.Arousal,
			Color:   c,
		})
	}
	return NewCatalog(anchors)
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseHexColor parses #RGB or #RRGGBB.
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func mustHex(s string) color.RGBA {
	c, err := ParseHexColor(s)
	if err != nil {
		panic(err)
	}
	return c
}
