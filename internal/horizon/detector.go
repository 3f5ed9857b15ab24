// Package horizon finds the lowest thin band of locally uniform texture in a frame
// and fits a straight line through it.
package horizon

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

type Params struct {
	// KernelSize is the side of the box filter used for the local variance map.
	KernelSize int
	// VarianceRelThreshold selects pixels whose variance is within rel*mean of the mean variance.
	VarianceRelThreshold float64
	// ElongationThreshold is the minimum bounding box aspect ratio a contour needs to count.
	ElongationThreshold float64
}

func DefaultParams() Params {
	return Params{
		KernelSize:           21,
		VarianceRelThreshold: 0.5,
		ElongationThreshold:  10,
	}
}

// Line is y = Slope*x + Intercept in frame coordinates.
type Line struct {
	Slope, Intercept float64
}

func (l Line) At(x float64) float64 { return l.Slope*x + l.Intercept }

type Detector struct {
	params Params
}

func NewDetector(p Params) *Detector {
	if p.KernelSize < 1 {
		p.KernelSize = 1
	}
	return &Detector{params: p}
}

// Detect returns the fitted boundary line or nil. It keeps no state between frames.
func (d *Detector) Detect(img *image.Gray) *Line {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	variance := varianceMap(img, d.params.KernelSize)
	mean := stat.Mean(variance, nil)
	if !(mean > 0) {
		// flat frame, nothing stands out
		return nil
	}
	limit := d.params.VarianceRelThreshold * mean
	mask := make([]bool, len(variance))
	for i, v := range variance {
		mask[i] = math.Abs(v-mean) < limit
	}

	var (
		best      []image.Point
		bestMeanY = math.Inf(-1)
	)
	for _, c := range externalContours(mask, w, h) {
		if !elongated(c, d.params.ElongationThreshold) {
			continue
		}
		var sum float64
		for _, p := range c {
			sum += float64(p.Y)
		}
		if my := sum / float64(len(c)); my > bestMeanY {
			best, bestMeanY = c, my
		}
	}
	if best == nil {
		return nil
	}
	return fitLine(best)
}

// varianceMap computes blur(I^2) - blur(I)^2 with a normalized k×k box filter.
// Windows are clipped at the frame border.
func varianceMap(img *image.Gray, k int) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := w + 1
	sum := make([]float64, stride*(h+1))
	sumSq := make([]float64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rowSum, rowSq float64
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x, px := range row {
			v := float64(px)
			rowSum += v
			rowSq += v * v
			i := (y+1)*stride + x + 1
			sum[i] = sum[i-stride] + rowSum
			sumSq[i] = sumSq[i-stride] + rowSq
		}
	}

	r := k / 2
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		y0, y1 := max(y-r, 0), min(y+r+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-r, 0), min(x+r+1, w)
			n := float64((y1 - y0) * (x1 - x0))
			a, bb, c, dd := y0*stride+x0, y0*stride+x1, y1*stride+x0, y1*stride+x1
			m := (sum[dd] - sum[bb] - sum[c] + sum[a]) / n
			m2 := (sumSq[dd] - sumSq[bb] - sumSq[c] + sumSq[a]) / n
			v := m2 - m*m
			if v < 0 {
				v = 0
			}
			out[y*w+x] = v
		}
	}
	return out
}

func elongated(c []image.Point, threshold float64) bool {
	if len(c) == 0 {
		return false
	}
	r := bounds(c)
	bw, bh := r.Dx(), r.Dy()
	if bw == 0 || bh == 0 {
		return false
	}
	ratio := float64(max(bw, bh)) / float64(min(bw, bh))
	return ratio > threshold
}

// bounds is the pixel extent of the points, so a single row of pixels is 1 high.
func bounds(c []image.Point) image.Rectangle {
	r := image.Rectangle{Min: c[0], Max: c[0].Add(image.Pt(1, 1))}
	for _, p := range c[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// fitLine is ordinary least squares of y on x.
func fitLine(pts []image.Point) *Line {
	if len(pts) < 2 {
		return nil
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = float64(p.X), float64(p.Y)
	}
	if stat.Variance(xs, nil) == 0 {
		// every x equal, the normal equations are singular
		return nil
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return nil
	}
	return &Line{Slope: beta, Intercept: alpha}
}
