package horizon

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// split paints rows from edgeY downward with v.
func split(w, h, edgeY int, v uint8) *image.Gray {
	img := uniform(w, h, 0)
	for y := edgeY; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestDetectUniform(t *testing.T) {
	d := NewDetector(DefaultParams())
	for _, v := range []uint8{0, 128, 255} {
		require.Nil(t, d.Detect(uniform(64, 64, v)))
	}
}

func TestDetectHorizontalEdge(t *testing.T) {
	// the variance band around the edge spans rows 30..49; the mask keeps its two outer rows
	d := NewDetector(DefaultParams())
	line := d.Detect(split(200, 80, 40, 200))
	require.NotNil(t, line)
	assert.InDelta(t, 0, line.Slope, 1e-9)
	assert.InDelta(t, 49, line.Intercept, 1e-9)
	assert.InDelta(t, 49, line.At(123), 1e-9)
}

func TestDetectVerticalEdgeIsDegenerate(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 80, 200))
	for y := 0; y < 200; y++ {
		for x := 40; x < 80; x++ {
			img.SetGray(x, y, color.Gray{Y: 200})
		}
	}
	d := NewDetector(DefaultParams())
	require.Nil(t, d.Detect(img))
}

func TestDetectNotElongatedEnough(t *testing.T) {
	p := DefaultParams()
	p.ElongationThreshold = 1000
	d := NewDetector(p)
	require.Nil(t, d.Detect(split(200, 80, 40, 200)))
}

func TestVarianceMap(t *testing.T) {
	img := split(5, 4, 2, 10)
	v := varianceMap(img, 1)
	for _, x := range v {
		require.Zero(t, x)
	}
	v = varianceMap(img, 3)
	// row 1 sees rows 0..2, one of which is bright: p=1/3
	assert.InDelta(t, 100.0*(1.0/3)*(2.0/3), v[1*5+2], 1e-9)
	// row 0 window is clipped to rows 0..1, all dark
	assert.Zero(t, v[2])
}

func TestExternalContours(t *testing.T) {
	const w, h = 6, 5
	mask := make([]bool, w*h)
	set := func(x, y int) { mask[y*w+x] = true }
	// a 4x3 ring with a hole and a lone pixel
	for x := 0; x < 4; x++ {
		set(x, 0)
		set(x, 2)
	}
	set(0, 1)
	set(3, 1)
	set(5, 4)

	cs := externalContours(mask, w, h)
	require.Len(t, cs, 2)
	assert.Equal(t, image.Rect(0, 0, 4, 3), bounds(cs[0]))
	assert.Len(t, cs[0], 10)
	assert.Equal(t, []image.Point{{5, 4}}, cs[1])
}

func TestTraceLine(t *testing.T) {
	mask := []bool{true, true, true}
	cs := externalContours(mask, 3, 1)
	require.Len(t, cs, 1)
	assert.Equal(t, []image.Point{{0, 0}, {1, 0}, {2, 0}, {1, 0}}, cs[0])
}

func TestElongated(t *testing.T) {
	testCases := []struct {
		desc string
		pts  []image.Point
		want bool
	}{
		{desc: "empty", pts: nil, want: false},
		{desc: "single pixel", pts: []image.Point{{3, 3}}, want: false},
		{desc: "wide row", pts: []image.Point{{0, 0}, {20, 0}}, want: true},
		{desc: "tall column", pts: []image.Point{{0, 0}, {0, 20}}, want: true},
		{desc: "exactly ten", pts: []image.Point{{0, 0}, {9, 0}}, want: false},
		{desc: "square", pts: []image.Point{{0, 0}, {20, 20}}, want: false},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.want, elongated(tC.pts, 10))
		})
	}
}

func TestFitLine(t *testing.T) {
	require.Nil(t, fitLine(nil))
	require.Nil(t, fitLine([]image.Point{{1, 1}}))
	require.Nil(t, fitLine([]image.Point{{2, 1}, {2, 5}, {2, 9}}))

	var pts []image.Point
	for x := 0; x < 50; x++ {
		pts = append(pts, image.Pt(x, 3+x/2))
	}
	l := fitLine([]image.Point{{0, 10}, {10, 15}, {20, 20}})
	require.NotNil(t, l)
	assert.InDelta(t, 0.5, l.Slope, 1e-9)
	assert.InDelta(t, 10, l.Intercept, 1e-9)

	l = fitLine(pts)
	require.NotNil(t, l)
	assert.InDelta(t, 0.5, l.Slope, 0.02)
}
