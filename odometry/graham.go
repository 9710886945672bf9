package odometry

import (
	"math"
	"sort"
)

// Cross returns the z component of (a-o) x (b-o). Positive means o→a→b turns
// counter-clockwise.
func Cross(o, a, b Vertex) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// GrahamScan returns the convex hull of points in counter-clockwise order,
// starting from the lowest point (lowest x on ties). Inputs with fewer than
// three points are returned as a copy. The input slice is not modified.
//
// Points at equal polar angle around the pivot are ordered nearest first, and
// the sweep pops on a cross product <= 0, so collinear points are dropped
// from hull edges.
func GrahamScan(points []Vertex) []Vertex {
	pts := make([]Vertex, len(points))
	copy(pts, points)
	if len(pts) < 3 {
		return pts
	}

	bottom := 0
	for i := 1; i < len(pts); i++ {
		if pts[i].Y < pts[bottom].Y ||
			(pts[i].Y == pts[bottom].Y && pts[i].X < pts[bottom].X) {
			bottom = i
		}
	}
	pts[0], pts[bottom] = pts[bottom], pts[0]

	pivot := pts[0]
	rest := pts[1:]
	sort.SliceStable(rest, func(i, j int) bool {
		ai := math.Atan2(rest[i].Y-pivot.Y, rest[i].X-pivot.X)
		aj := math.Atan2(rest[j].Y-pivot.Y, rest[j].X-pivot.X)
		if ai != aj {
			return ai < aj
		}
		return sqDist(pivot, rest[i]) < sqDist(pivot, rest[j])
	})

	hull := make([]Vertex, 0, len(pts))
	hull = append(hull, pts[0], pts[1])
	for _, p := range pts[2:] {
		for len(hull) > 1 && Cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull
}

func sqDist(a, b Vertex) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	return dx*dx + dy*dy
}
