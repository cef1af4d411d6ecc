package render

import (
	"bufio"
	"context"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

const fontFamily = "Helvetica, Arial, sans-serif"

// SVG returns a templ component drawing f as inline SVG.
func SVG(f Frame, id string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return WriteSVG(w, f, id)
	})
}

// WriteSVG writes f as a standalone <svg> element. A nil writer is a no-op.
func WriteSVG(w io.Writer, f Frame, id string) error {
	if w == nil {
		return nil
	}
	bw := bufio.NewWriter(w)
	s := &svgSurface{w: bw, shadows: map[Shadow]string{}}

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" id="%s" class="moodmap" width="%s" height="%s" viewBox="0 0 %s %s" style="cursor:%s" data-pending="%t">`,
		templ.EscapeString(id), num(f.Width), num(f.Height), num(f.Width), num(f.Height), templ.EscapeString(f.Cursor), f.Pending != nil)
	s.writeDefs(f)
	bw.WriteString(`<rect class="surface" x="0" y="0" width="` + num(f.Width) + `" height="` + num(f.Height) + `" rx="24" fill="#fff"/>`)
	f.Replay(s)
	bw.WriteString(`</svg>`)
	return bw.Flush()
}

type svgSurface struct {
	w       *bufio.Writer
	shadows map[Shadow]string
}

func (s *svgSurface) writeDefs(f Frame) {
	var defs strings.Builder
	for _, op := range f.Ops {
		if op.Shadow == nil {
			continue
		}
		if _, ok := s.shadows[*op.Shadow]; ok {
			continue
		}
		id := "shadow-" + strconv.Itoa(len(s.shadows))
		s.shadows[*op.Shadow] = id
		sh := op.Shadow
		fmt.Fprintf(&defs, `<filter id="%s" x="-50%%" y="-50%%" width="200%%" height="200%%"><feDropShadow dx="0" dy="%s" stdDeviation="%s" flood-color="%s" flood-opacity="%s"/></filter>`,
			id, num(sh.OffsetY), num(sh.Blur/2), hex(sh.Color), alpha(sh.Color))
	}
	if defs.Len() > 0 {
		s.w.WriteString("<defs>" + defs.String() + "</defs>")
	}
}

func (s *svgSurface) Draw(op Op) {
	attrs := s.common(op)
	switch op.Kind {
	case OpRect:
		fmt.Fprintf(s.w, `<rect%s x="%s" y="%s" width="%s" height="%s" rx="%s"%s/>`,
			attrs, num(op.X), num(op.Y), num(op.W), num(op.H), num(op.R), scaleAttr(op, op.X+op.W/2, op.Y+op.H/2))
	case OpLine:
		fmt.Fprintf(s.w, `<line%s x1="%s" y1="%s" x2="%s" y2="%s" stroke-linecap="butt"/>`,
			attrs, num(op.X), num(op.Y), num(op.X2), num(op.Y2))
	case OpCircle:
		fmt.Fprintf(s.w, `<circle%s cx="%s" cy="%s" r="%s"%s/>`,
			attrs, num(op.X), num(op.Y), num(op.R), scaleAttr(op, op.X, op.Y))
	case OpText:
		fmt.Fprintf(s.w, `<text%s x="%s" y="%s" font-family="%s" font-size="%s" font-weight="%s" text-anchor="%s" dominant-baseline="%s">%s</text>`,
			attrs, num(op.X), num(op.Y), fontFamily, num(op.FontSize), weight(op), anchor(op.Align), baseline(op.Baseline), templ.EscapeString(op.Text))
	case OpBubble:
		w, h := bubbleSize(op.Text, op.FontSize)
		x, y := op.X-w/2, op.Y-h
		fmt.Fprintf(s.w, `<g class="%s" pointer-events="none"><rect x="%s" y="%s" width="%s" height="%s" rx="%s"%s%s/><text x="%s" y="%s" font-family="%s" font-size="%s" text-anchor="middle" dominant-baseline="central" fill="#111">%s</text></g>`,
			op.Role, num(x), num(y), num(w), num(h), num(h/2), paintAttr("fill", op.Fill), strokeAttr(op),
			num(op.X), num(y+h/2), fontFamily, num(op.FontSize), templ.EscapeString(op.Text))
	}
}

func (s *svgSurface) common(op Op) string {
	var b strings.Builder
	b.WriteString(` class="` + op.Role + `"`)
	if op.Key != "" {
		b.WriteString(` data-key="` + templ.EscapeString(op.Key) + `"`)
	}
	if op.Kind == OpBubble {
		return b.String()
	}
	if op.Kind != OpLine {
		b.WriteString(paintAttr("fill", op.Fill))
	}
	b.WriteString(strokeAttr(op))
	if op.Shadow != nil {
		b.WriteString(` filter="url(#` + s.shadows[*op.Shadow] + `)"`)
	}
	return b.String()
}

// bubbleSize estimates the pill around a tooltip; SVG text is not measured.
func bubbleSize(text string, size float64) (float64, float64) {
	return float64(len([]rune(text)))*size*0.55 + 20, size + 10
}

func paintAttr(name string, c color.NRGBA) string {
	if c.A == 0 {
		return ` ` + name + `="none"`
	}
	out := ` ` + name + `="` + hex(c) + `"`
	if c.A != 0xff {
		out += ` ` + name + `-opacity="` + alpha(c) + `"`
	}
	return out
}

func strokeAttr(op Op) string {
	if op.Stroke.A == 0 || op.LineWidth <= 0 {
		return ""
	}
	return paintAttr("stroke", op.Stroke) + ` stroke-width="` + num(op.LineWidth) + `"`
}

func scaleAttr(op Op, cx, cy float64) string {
	if op.Scale == 0 || op.Scale == 1 {
		return ""
	}
	return fmt.Sprintf(` transform="translate(%s %s) scale(%s) translate(%s %s)"`, num(cx), num(cy), num(op.Scale), num(-cx), num(-cy))
}

func weight(op Op) string {
	if op.Bold {
		return "bold"
	}
	return "normal"
}

func anchor(a Align) string {
	switch a {
	case AlignStart:
		return "start"
	case AlignEnd:
		return "end"
	default:
		return "middle"
	}
}

func baseline(b Baseline) string {
	switch b {
	case BaselineTop:
		return "hanging"
	case BaselineBottom:
		return "text-after-edge"
	default:
		return "central"
	}
}

func hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func alpha(c color.NRGBA) string {
	return strconv.FormatFloat(float64(c.A)/255, 'f', 2, 64)
}

func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
