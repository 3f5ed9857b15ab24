package imagescore

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func uniform(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func noise(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(rng.Intn(256))
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestGzipScorer(t *testing.T) {
	ctx := context.Background()
	s := NewGzipScorer()

	blank, err := s.ScoreImage(ctx, uniform(256, 256, 0))
	require.NoError(t, err)
	require.Less(t, blank, DefaultMinScore)

	busy, err := s.ScoreImage(ctx, noise(256, 256))
	require.NoError(t, err)
	require.Greater(t, busy, 0.5)

	_, err = s.ScoreImage(ctx, image.NewGray(image.Rect(0, 0, 0, 0)))
	require.Error(t, err)
}

func TestGrayPixelsSubImage(t *testing.T) {
	img := uniform(8, 8, 1)
	img.SetGray(2, 2, color.Gray{Y: 9})
	sub := img.SubImage(image.Rect(2, 2, 5, 4)).(*image.Gray)
	require.Equal(t, []byte{9, 1, 1, 1, 1, 1}, grayPixels(sub))
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	f := Filter(NewGzipScorer(), DefaultMinScore)

	ok, err := f(ctx, uniform(256, 256, 128))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f(ctx, noise(256, 256))
	require.NoError(t, err)
	require.True(t, ok)
}
