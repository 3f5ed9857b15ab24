package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/horizon"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type Params struct {
	BaseThickness        int
	OutsideFOVMultiplier int
	Color                color.RGBA
	// Label draws the fused angle in the top-left corner.
	Label bool
}

func DefaultParams() Params {
	return Params{
		BaseThickness:        2,
		OutsideFOVMultiplier: 8,
		Color:                color.RGBA{R: 255, A: 255},
		Label:                true,
	}
}

// Result is the annotated copy plus the geometry that was drawn.
type Result struct {
	Image      *image.RGBA
	Angle      float64 // after clamping to the field of view
	OutsideFOV bool
	Column     int
	Top        int
	Thickness  int
}

type Renderer struct {
	params Params
}

func NewRenderer(p Params) *Renderer {
	if p.BaseThickness < 1 {
		p.BaseThickness = 1
	}
	if p.OutsideFOVMultiplier < 1 {
		p.OutsideFOVMultiplier = 1
	}
	return &Renderer{params: p}
}

// Render draws a vertical marker for angle onto a copy of src. The marker runs from the bottom
// edge up to line (evaluated at the marker column) or to the top edge when line is nil.
func (r *Renderer) Render(src image.Image, angle float64, line *horizon.Line, hfov float64) Result {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)

	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	res := Result{Image: dst, Column: -1}
	if w == 0 || h == 0 || hfov <= 0 {
		return res
	}

	half := hfov / 2
	clamped := angle
	switch {
	case clamped > half:
		clamped, res.OutsideFOV = half, true
	case clamped < -half:
		clamped, res.OutsideFOV = -half, true
	}
	res.Angle = clamped

	x := int(float64(w)/2 + clamped*(float64(w)/hfov))
	x = clampInt(x, 0, w-1)
	res.Column = x

	if line != nil {
		res.Top = clampInt(int(line.At(float64(x))), 0, h-1)
	}

	res.Thickness = r.params.BaseThickness
	if res.OutsideFOV {
		res.Thickness *= r.params.OutsideFOVMultiplier
	}

	x0 := x - res.Thickness/2
	stroke := image.Rect(x0, res.Top, x0+res.Thickness, h).Intersect(dst.Rect)
	draw.Draw(dst, stroke, image.NewUniform(r.params.Color), image.Point{}, draw.Src)

	if r.params.Label {
		r.label(dst, fmt.Sprintf("%+.1f deg", angle))
	}
	return res
}

func (r *Renderer) label(dst *image.RGBA, text string) {
	face := basicfont.Face7x13
	const pad = 3
	dr := &font.Drawer{Dst: dst, Src: image.NewUniform(r.params.Color), Face: face}
	tw := dr.MeasureString(text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	bg := image.Rect(0, 0, tw+2*pad, ascent+face.Metrics().Descent.Ceil()+2*pad)
	draw.Draw(dst, bg.Intersect(dst.Rect), image.NewUniform(color.RGBA{A: 200}), image.Point{}, draw.Over)
	dr.Dot = fixed.P(pad, pad+ascent)
	dr.DrawString(text)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
