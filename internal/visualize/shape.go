package visualize

import (
	"image"
	"math"
	"slices"
)

// Point is a 2D coordinate in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape summarises the foreground of a binary mask.
type Shape struct {
	Area        int             `json:"area"`
	Coverage    float64         `json:"coverage"`
	Bounds      image.Rectangle `json:"bounds"`
	Hull        []Point         `json:"hull,omitempty"`
	MinAreaRect []Point         `json:"min_area_rect,omitempty"`
}

// Describe measures the bright (>= 128) pixels of mask. The convex hull is
// taken over pixel corners and simplified with tolerance epsilon
// (0 keeps every hull vertex).
func Describe(mask *image.Gray, epsilon float64) Shape {
	b := mask.Bounds()
	s := Shape{}
	var corners []Point
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y < 128 {
				continue
			}
			s.Area++
			s.Bounds = s.Bounds.Union(image.Rect(x, y, x+1, y+1))
			if onBoundary(mask, x, y) {
				fx, fy := float64(x), float64(y)
				corners = append(corners,
					Point{fx, fy}, Point{fx + 1, fy}, Point{fx + 1, fy + 1}, Point{fx, fy + 1})
			}
		}
	}
	if n := b.Dx() * b.Dy(); n > 0 {
		s.Coverage = float64(s.Area) / float64(n)
	}
	if s.Area == 0 {
		return s
	}
	hull := ConvexHull(corners)
	s.Hull = SimplifyPolygon(hull, epsilon)
	s.MinAreaRect = MinimumAreaRectangle(hull)
	return s
}

// onBoundary reports whether the foreground pixel (x, y) touches the
// background or the image edge in its 4-neighbourhood.
func onBoundary(mask *image.Gray, x, y int) bool {
	for _, d := range [4]image.Point{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		p := image.Pt(x+d.X, y+d.Y)
		if !p.In(mask.Bounds()) || mask.GrayAt(p.X, p.Y).Y < 128 {
			return true
		}
	}
	return false
}

// SimplifyPolygon reduces a closed polygon with the Douglas-Peucker
// algorithm. The first and last input points are always kept.
func SimplifyPolygon(pts []Point, epsilon float64) []Point {
	if len(pts) <= 3 || epsilon <= 0 {
		return slices.Clone(pts)
	}
	keep := make([]bool, len(pts))
	keep[0] = true
	keep[len(pts)-1] = true
	douglasPeucker(pts, 0, len(pts)-1, epsilon, keep)

	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func douglasPeucker(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist, index := -1.0, -1
	for i := start + 1; i < end; i++ {
		if d := segmentDistance(pts[i], pts[start], pts[end]); d > maxDist {
			maxDist, index = d, i
		}
	}
	if maxDist > eps {
		keep[index] = true
		douglasPeucker(pts, start, index, eps, keep)
		douglasPeucker(pts, index, end, eps, keep)
	}
}

// segmentDistance is the distance from p to the line through a and b.
func segmentDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	return math.Abs((p.X-a.X)*vy-(p.Y-a.Y)*vx) / math.Hypot(vx, vy)
}

// ConvexHull returns the hull of pts in counter-clockwise order (monotone
// chain), without repeating the first point.
func ConvexHull(pts []Point) []Point {
	p := slices.Clone(pts)
	slices.SortFunc(p, func(a, b Point) int {
		if a.X != b.X {
			return cmpFloat(a.X, b.X)
		}
		return cmpFloat(a.Y, b.Y)
	})
	p = slices.Compact(p)
	if len(p) <= 2 {
		return p
	}

	hull := make([]Point, 0, 2*len(p))
	for _, pt := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p[i])
	}
	return hull[:len(hull)-1]
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// MinimumAreaRectangle returns the four corners of the smallest rotated
// rectangle enclosing pts, found by testing every hull edge direction.
func MinimumAreaRectangle(pts []Point) []Point {
	hull := ConvexHull(pts)
	switch len(hull) {
	case 0:
		return nil
	case 1:
		p := hull[0]
		return []Point{p, p, p, p}
	case 2:
		return []Point{hull[0], hull[1], hull[1], hull[0]}
	}

	bestArea := math.Inf(1)
	var u, v Point
	var minS, maxS, minT, maxT float64
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		l := math.Hypot(b.X-a.X, b.Y-a.Y)
		if l == 0 {
			continue
		}
		eu := Point{(b.X - a.X) / l, (b.Y - a.Y) / l}
		ev := Point{-eu.Y, eu.X}
		s0, s1 := math.Inf(1), math.Inf(-1)
		t0, t1 := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			s := p.X*eu.X + p.Y*eu.Y
			t := p.X*ev.X + p.Y*ev.Y
			s0, s1 = math.Min(s0, s), math.Max(s1, s)
			t0, t1 = math.Min(t0, t), math.Max(t1, t)
		}
		if area := (s1 - s0) * (t1 - t0); area < bestArea {
			bestArea = area
			u, v = eu, ev
			minS, maxS, minT, maxT = s0, s1, t0, t1
		}
	}
	corner := func(s, t float64) Point {
		return Point{X: u.X*s + v.X*t, Y: u.Y*s + v.Y*t}
	}
	return []Point{corner(minS, minT), corner(maxS, minT), corner(maxS, maxT), corner(minS, maxT)}
}
