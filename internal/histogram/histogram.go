package histogram

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	Bins   = 256
	Width  = Bins
	Height = 120
)

var (
	Background = color.RGBA{A: 255}
	Bar        = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Counts is the intensity distribution of img.
func Counts(img *image.Gray) [Bins]float64 {
	var c [Bins]float64
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for _, v := range img.Pix[off : off+b.Dx()] {
			c[v]++
		}
	}
	return c
}

// Heights scales counts so the largest bin is Height pixels tall.
// ok is false when every bin is empty.
func Heights(counts [Bins]float64) (h [Bins]int, ok bool) {
	peak := floats.Max(counts[:])
	if peak <= 0 {
		return h, false
	}
	for i, c := range counts {
		h[i] = int(math.Round(c / peak * Height))
	}
	return h, true
}

// Compute rasterizes the histogram of img into a Width×Height image, one bar per bin.
// It returns nil for an empty image.
func Compute(img *image.Gray) *image.RGBA {
	heights, ok := Heights(Counts(img))
	if !ok {
		return nil
	}
	out := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(out, out.Rect, image.NewUniform(Background), image.Point{}, draw.Src)
	fill := image.NewUniform(Bar)
	for i, bh := range heights {
		if bh == 0 {
			continue
		}
		draw.Draw(out, image.Rect(i, Height-bh, i+1, Height), fill, image.Point{}, draw.Src)
	}
	return out
}
