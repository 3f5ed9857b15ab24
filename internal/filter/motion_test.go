package filter

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func halves(w, h int, leftBright bool) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bright := x < w/2
			if !leftBright {
				bright = !bright
			}
			v := uint8(20)
			if bright {
				v = 230
			}
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestMotion(t *testing.T) {
	ctx := context.Background()
	f := Motion(DefaultHashDim, DefaultMinDist)
	a, b := halves(64, 64, true), halves(64, 64, false)

	ok, err := f(ctx, a)
	require.NoError(t, err)
	require.True(t, ok, "first frame passes")

	ok, err = f(ctx, a)
	require.NoError(t, err)
	require.False(t, ok, "identical frame")

	ok, err = f(ctx, b)
	require.NoError(t, err)
	require.True(t, ok, "changed frame")
}

func TestFrozenWatch(t *testing.T) {
	ctx := context.Background()
	w := NewFrozenWatch(Motion(DefaultHashDim, DefaultMinDist), 3)
	a, b := halves(32, 32, true), halves(32, 32, false)

	seq := []struct {
		img  image.Image
		want Transition
	}{
		{a, NoChange},
		{a, NoChange},
		{a, NoChange},
		{a, BecameFrozen},
		{a, NoChange},
		{b, Resumed},
		{a, NoChange},
	}
	for i, s := range seq {
		got, err := w.Observe(ctx, s.img)
		require.NoError(t, err)
		require.Equal(t, s.want, got, "step %d", i)
	}
	require.Zero(t, w.Still())
}
