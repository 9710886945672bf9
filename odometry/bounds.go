package odometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// RoomBounds is a known room outline used to detect the robot leaving it.
type RoomBounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
	Vertices   []Vertex

	ring orb.Ring
}

// NewRoomBounds returns nil when vertices cannot form a polygon.
func NewRoomBounds(vertices []Vertex) *RoomBounds {
	if len(vertices) < 3 {
		return nil
	}

	ring := toRing(vertices)
	b := ring.Bound()
	vs := make([]Vertex, len(vertices))
	copy(vs, vertices)

	return &RoomBounds{
		MinX:     b.Min.X(),
		MaxX:     b.Max.X(),
		MinY:     b.Min.Y(),
		MaxY:     b.Max.Y(),
		Vertices: vs,
		ring:     ring,
	}
}

// Contains reports whether p lies inside the outline or on its boundary.
func (rb *RoomBounds) Contains(p Vertex) bool {
	return planar.RingContains(rb.ring, orb.Point{p.X, p.Y})
}

// Area returns the enclosed area of the polygon described by vertices, in
// square meters. Fewer than three vertices enclose nothing.
func Area(vertices []Vertex) float64 {
	if len(vertices) < 3 {
		return 0
	}
	return math.Abs(planar.Area(toRing(vertices)))
}

// toRing converts vertices to a closed orb ring.
func toRing(vertices []Vertex) orb.Ring {
	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		ring = append(ring, orb.Point{v.X, v.Y})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}
