// Package imagescore rates how much detail a frame carries by how well it compresses.
package imagescore

import (
	"context"
	"image"
	"image/draw"
	"io"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/filter"
	"github.com/pkg/errors"
)

// DefaultMinScore separates a blank or single-colour preview from a real picture.
// Uniform frames score well under 0.01, camera footage above 0.05.
const DefaultMinScore = 0.02

type ImageScorer interface {
	ScoreImage(ctx context.Context, img image.Image) (float64, error)
}

type discardCounter struct {
	count int
}

var _ io.Writer = &discardCounter{}

func (dc *discardCounter) Write(p []byte) (n int, err error) {
	dc.count += len(p)
	return len(p), nil
}

// grayPixels returns the luma plane of img, tightly packed.
func grayPixels(img image.Image) []byte {
	b := img.Bounds()
	g, ok := img.(*image.Gray)
	if !ok {
		g = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(g, g.Rect, img, b.Min, draw.Src)
		return g.Pix
	}
	if g.Stride == b.Dx() {
		return g.Pix[:b.Dx()*b.Dy()]
	}
	out := make([]byte, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := g.PixOffset(b.Min.X, y)
		out = append(out, g.Pix[i:i+b.Dx()]...)
	}
	return out
}

// Filter passes images scoring at least min.
func Filter(scorer ImageScorer, min float64) filter.FilterFunc {
	return func(ctx context.Context, img image.Image) (bool, error) {
		score, err := scorer.ScoreImage(ctx, img)
		if err != nil {
			return false, errors.Wrap(err, "ScoreImage")
		}
		return score >= min, nil
	}
}
