package horizon

import "image"

// clockwise on screen (y grows downward), starting west
var moore = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

func mooreIndex(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return -1
}

// externalContours labels 8-connected regions of mask and traces the outer boundary of each.
// Holes inside a region are not reported.
func externalContours(mask []bool, w, h int) [][]image.Point {
	labels := make([]int32, len(mask))
	var (
		contours [][]image.Point
		next     int32
		queue    []int
	)
	for i, set := range mask {
		if !set || labels[i] != 0 {
			continue
		}
		next++
		labels[i] = next
		queue = append(queue[:0], i)
		for len(queue) > 0 {
			j := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := j%w, j/w
			for _, d := range moore {
				nx, ny := x+d.X, y+d.Y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				k := ny*w + nx
				if mask[k] && labels[k] == 0 {
					labels[k] = next
					queue = append(queue, k)
				}
			}
		}
		// i is the first pixel of the region in raster order, so its west side is outside
		contours = append(contours, trace(labels, w, h, image.Pt(i%w, i/w), next))
	}
	return contours
}

// trace follows the boundary of region id clockwise from start.
func trace(labels []int32, w, h int, start image.Point, id int32) []image.Point {
	inside := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && labels[p.Y*w+p.X] == id
	}

	contour := []image.Point{start}
	cur, back := start, 0
	limit := 4*len(labels) + 8
	for iter := 0; iter < limit; iter++ {
		dir := -1
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			if inside(cur.Add(moore[d])) {
				dir = d
				break
			}
		}
		if dir < 0 {
			// isolated pixel
			break
		}
		n := cur.Add(moore[dir])
		if cur == start && len(contour) > 1 && n == contour[1] {
			break
		}
		prev := cur.Add(moore[(dir+7)%8])
		back = mooreIndex(prev.Sub(n))
		cur = n
		contour = append(contour, cur)
	}
	if len(contour) > 1 && contour[len(contour)-1] == start {
		contour = contour[:len(contour)-1]
	}
	return contour
}
