package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Supersampling factor; the frame is drawn large and scaled down.
const pngScale = 2

// bezier constant for quarter circles
const kappa = 0.5522847498

var (
	regularFont *opentype.Font
	boldFont    *opentype.Font
)

func init() {
	var err error
	if regularFont, err = opentype.Parse(goregular.TTF); err != nil {
		panic(err)
	}
	if boldFont, err = opentype.Parse(gobold.TTF); err != nil {
		panic(err)
	}
}

// EncodePNG rasterizes f. A nil writer is a no-op.
func EncodePNG(w io.Writer, f Frame) error {
	if w == nil {
		return nil
	}
	width, height := int(math.Ceil(f.Width)), int(math.Ceil(f.Height))
	if width <= 0 || height <= 0 {
		return fmt.Errorf("encode png: empty frame %gx%g", f.Width, f.Height)
	}
	large := image.NewRGBA(image.Rect(0, 0, width*pngScale, height*pngScale))
	s := newRasterSurface(large, pngScale)
	defer s.close()

	s.fillPath(color.NRGBA{255, 255, 255, 255}, func(z *vector.Rasterizer) {
		s.roundRect(z, 0, 0, f.Width, f.Height, 24, 1)
	})
	f.Replay(s)

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(out, out.Bounds(), large, large.Bounds(), draw.Over, nil)
	if err := png.Encode(w, out); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

type faceKey struct {
	size float64
	bold bool
}

type rasterSurface struct {
	img   *image.RGBA
	scale float64
	z     *vector.Rasterizer
	faces map[faceKey]font.Face
}

func newRasterSurface(img *image.RGBA, scale float64) *rasterSurface {
	b := img.Bounds()
	return &rasterSurface{
		img:   img,
		scale: scale,
		z:     vector.NewRasterizer(b.Dx(), b.Dy()),
		faces: map[faceKey]font.Face{},
	}
}

func (s *rasterSurface) close() {
	for _, f := range s.faces {
		if f != nil {
			_ = f.Close()
		}
	}
}

func (s *rasterSurface) face(size float64, bold bool) font.Face {
	k := faceKey{size: size, bold: bold}
	if f, ok := s.faces[k]; ok {
		return f
	}
	fnt := regularFont
	if bold {
		fnt = boldFont
	}
	f, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size * s.scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		s.faces[k] = nil
		return nil
	}
	s.faces[k] = f
	return f
}

func (s *rasterSurface) Draw(op Op) {
	scale := op.Scale
	if scale == 0 {
		scale = 1
	}
	switch op.Kind {
	case OpRect:
		x, y, w, h, r := op.X, op.Y, op.W, op.H, op.R
		if scale != 1 {
			cx, cy := x+w/2, y+h/2
			w, h, r = w*scale, h*scale, r*scale
			x, y = cx-w/2, cy-h/2
		}
		s.shadow(op, func(z *vector.Rasterizer, grow, dy float64) {
			s.roundRect(z, x-grow, y-grow+dy, w+2*grow, h+2*grow, r+grow, 1)
		})
		s.fillPath(op.Fill, func(z *vector.Rasterizer) { s.roundRect(z, x, y, w, h, r, 1) })
		if s.stroked(op) {
			lw := op.LineWidth / 2
			s.fillPath(op.Stroke, func(z *vector.Rasterizer) {
				s.roundRect(z, x-lw, y-lw, w+2*lw, h+2*lw, r+lw, 1)
				s.roundRect(z, x+lw, y+lw, w-2*lw, h-2*lw, math.Max(0, r-lw), -1)
			})
		}
	case OpCircle:
		r := op.R * scale
		s.shadow(op, func(z *vector.Rasterizer, grow, dy float64) {
			s.circle(z, op.X, op.Y+dy, r+grow, 1)
		})
		s.fillPath(op.Fill, func(z *vector.Rasterizer) { s.circle(z, op.X, op.Y, r, 1) })
		if s.stroked(op) {
			lw := op.LineWidth / 2
			s.fillPath(op.Stroke, func(z *vector.Rasterizer) {
				s.circle(z, op.X, op.Y, r+lw, 1)
				s.circle(z, op.X, op.Y, math.Max(0, r-lw), -1)
			})
		}
	case OpLine:
		if s.stroked(op) {
			s.fillPath(op.Stroke, func(z *vector.Rasterizer) { s.line(z, op.X, op.Y, op.X2, op.Y2, op.LineWidth) })
		}
	case OpText:
		s.text(op.Text, op.X, op.Y, op.FontSize, op.Bold, op.Align, op.Baseline, op.Fill)
	case OpBubble:
		face := s.face(op.FontSize, false)
		w, h := bubbleSize(op.Text, op.FontSize)
		if face != nil {
			w = float64(font.MeasureString(face, op.Text))/64/s.scale + 20
		}
		x, y := op.X-w/2, op.Y-h
		s.fillPath(op.Fill, func(z *vector.Rasterizer) { s.roundRect(z, x, y, w, h, h/2, 1) })
		if s.stroked(op) {
			lw := op.LineWidth / 2
			s.fillPath(op.Stroke, func(z *vector.Rasterizer) {
				s.roundRect(z, x-lw, y-lw, w+2*lw, h+2*lw, h/2+lw, 1)
				s.roundRect(z, x+lw, y+lw, w-2*lw, h-2*lw, h/2-lw, -1)
			})
		}
		s.text(op.Text, op.X, y+h/2, op.FontSize, false, AlignMiddle, BaselineMiddle, inkColor)
	}
}

func (s *rasterSurface) stroked(op Op) bool {
	return op.Stroke.A != 0 && op.LineWidth > 0
}

// shadow approximates a blurred drop shadow with an offset, slightly grown
// copy of the shape at reduced opacity.
func (s *rasterSurface) shadow(op Op, shape func(z *vector.Rasterizer, grow, dy float64)) {
	if op.Shadow == nil || op.Fill.A == 0 {
		return
	}
	c := op.Shadow.Color
	c.A /= 2
	s.fillPath(c, func(z *vector.Rasterizer) { shape(z, op.Shadow.Blur/4, op.Shadow.OffsetY) })
}

func (s *rasterSurface) fillPath(c color.NRGBA, build func(z *vector.Rasterizer)) {
	if c.A == 0 {
		return
	}
	b := s.img.Bounds()
	s.z.Reset(b.Dx(), b.Dy())
	s.z.DrawOp = draw.Over
	build(s.z)
	s.z.Draw(s.img, b, image.NewUniform(c), image.Point{})
}

func (s *rasterSurface) pt(x, y float64) (float32, float32) {
	return float32(x * s.scale), float32(y * s.scale)
}

// circle adds a closed circle; dir -1 winds it backwards to cut a hole.
func (s *rasterSurface) circle(z *vector.Rasterizer, cx, cy, r float64, dir float64) {
	if r <= 0 {
		return
	}
	k := kappa * r
	z.MoveTo(s.pt(cx+r, cy))
	z.CubeTo(s.cube(cx+r, cy+dir*k, cx+k, cy+dir*r, cx, cy+dir*r))
	z.CubeTo(s.cube(cx-k, cy+dir*r, cx-r, cy+dir*k, cx-r, cy))
	z.CubeTo(s.cube(cx-r, cy-dir*k, cx-k, cy-dir*r, cx, cy-dir*r))
	z.CubeTo(s.cube(cx+k, cy-dir*r, cx+r, cy-dir*k, cx+r, cy))
	z.ClosePath()
}

// roundRect adds a closed rounded rectangle; dir -1 winds it backwards.
func (s *rasterSurface) roundRect(z *vector.Rasterizer, x, y, w, h, r float64, dir float64) {
	if w <= 0 || h <= 0 {
		return
	}
	r = math.Min(r, math.Min(w/2, h/2))
	if r < 0 {
		r = 0
	}
	k := (1 - kappa) * r
	if dir > 0 {
		z.MoveTo(s.pt(x+r, y))
		z.LineTo(s.pt(x+w-r, y))
		z.CubeTo(s.cube(x+w-k, y, x+w, y+k, x+w, y+r))
		z.LineTo(s.pt(x+w, y+h-r))
		z.CubeTo(s.cube(x+w, y+h-k, x+w-k, y+h, x+w-r, y+h))
		z.LineTo(s.pt(x+r, y+h))
		z.CubeTo(s.cube(x+k, y+h, x, y+h-k, x, y+h-r))
		z.LineTo(s.pt(x, y+r))
		z.CubeTo(s.cube(x, y+k, x+k, y, x+r, y))
	} else {
		z.MoveTo(s.pt(x+r, y))
		z.CubeTo(s.cube(x+k, y, x, y+k, x, y+r))
		z.LineTo(s.pt(x, y+h-r))
		z.CubeTo(s.cube(x, y+h-k, x+k, y+h, x+r, y+h))
		z.LineTo(s.pt(x+w-r, y+h))
		z.CubeTo(s.cube(x+w-k, y+h, x+w, y+h-k, x+w, y+h-r))
		z.LineTo(s.pt(x+w, y+r))
		z.CubeTo(s.cube(x+w, y+k, x+w-k, y, x+w-r, y))
	}
	z.ClosePath()
}

func (s *rasterSurface) line(z *vector.Rasterizer, x1, y1, x2, y2, width float64) {
	dx, dy := x2-x1, y2-y1
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	z.MoveTo(s.pt(x1+nx, y1+ny))
	z.LineTo(s.pt(x2+nx, y2+ny))
	z.LineTo(s.pt(x2-nx, y2-ny))
	z.LineTo(s.pt(x1-nx, y1-ny))
	z.ClosePath()
}

func (s *rasterSurface) cube(bx, by, cx, cy, dx, dy float64) (float32, float32, float32, float32, float32, float32) {
	ax, ay := s.pt(bx, by)
	bx2, by2 := s.pt(cx, cy)
	cx2, cy2 := s.pt(dx, dy)
	return ax, ay, bx2, by2, cx2, cy2
}

func (s *rasterSurface) text(text string, x, y, size float64, bold bool, align Align, base Baseline, c color.NRGBA) {
	face := s.face(size, bold)
	if face == nil || text == "" {
		return
	}
	px, py := x*s.scale, y*s.scale
	width := float64(font.MeasureString(face, text)) / 64
	switch align {
	case AlignMiddle:
		px -= width / 2
	case AlignEnd:
		px -= width
	}
	m := face.Metrics()
	ascent, descent := float64(m.Ascent)/64, float64(m.Descent)/64
	switch base {
	case BaselineTop:
		py += ascent
	case BaselineBottom:
		py -= descent
	default:
		py += (ascent - descent) / 2
	}
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(px * 64), Y: fixed.Int26_6(py * 64)},
	}
	d.DrawString(text)
}
