package odometry

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/paulmach/orb"
)

// Strategy selects how a room polygon is derived from a path.
type Strategy int

const (
	// BoundingBox expands the axis-aligned bounds of the path by a margin.
	BoundingBox Strategy = iota
	// ConvexHull jitters every path point by up to a margin and wraps them.
	ConvexHull
	// WallDetection wraps only the points where the path turns sharply.
	WallDetection
)

var strategyNames = map[Strategy]string{
	BoundingBox:   "bounding-box",
	ConvexHull:    "convex-hull",
	WallDetection: "wall-detection",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy accepts the names produced by String.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown map strategy %q (want bounding-box, convex-hull or wall-detection)", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if _, ok := strategyNames[s]; !ok {
		return nil, fmt.Errorf("unknown map strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Jitter is the random source for convex-hull margin jitter. *rand.Rand
// satisfies it. Float64 returns a value in [0, 1).
type Jitter interface {
	Float64() float64
}

// Default polygon extraction parameters.
const (
	DefaultBoxMargin  = 0.5 // m
	DefaultHullMargin = 0.3 // m
)

// DefaultAngleThreshold is the minimum turn, in radians, that marks a wall point.
var DefaultAngleThreshold = math.Pi / 6

// Params configures ExtractPolygon.
type Params struct {
	BoxMargin      float64 // bounding-box margin, m
	HullMargin     float64 // convex-hull jitter amplitude, m
	AngleThreshold float64 // wall-detection turn threshold, rad
	Jitter         Jitter  // nil selects a time-seeded source
}

// DefaultParams returns the default margins with a time-seeded jitter source.
func DefaultParams() Params {
	return Params{
		BoxMargin:      DefaultBoxMargin,
		HullMargin:     DefaultHullMargin,
		AngleThreshold: DefaultAngleThreshold,
		Jitter:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p Params) jitter() Jitter {
	if p.Jitter != nil {
		return p.Jitter
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// ExtractPolygon derives a room polygon from path with the given strategy.
// It returns nil when the path has fewer than two points.
func ExtractPolygon(strategy Strategy, path []PathPoint, params Params) *RoomMapData {
	switch strategy {
	case ConvexHull:
		return ConvexHullMap(path, params.HullMargin, params.jitter())
	case WallDetection:
		return WallDetectionMap(path, params)
	default:
		return SimpleMap(path, params.BoxMargin)
	}
}

// SimpleMap returns the bounding box of path grown by margin on every side.
// Vertices run (min,min), (max,min), (max,max), (min,max).
func SimpleMap(path []PathPoint, margin float64) *RoomMapData {
	if len(path) < 2 {
		return nil
	}

	mp := make(orb.MultiPoint, len(path))
	for i, p := range path {
		mp[i] = orb.Point{p.X, p.Y}
	}
	b := mp.Bound()

	vertices := []Vertex{
		{X: b.Min.X() - margin, Y: b.Min.Y() - margin},
		{X: b.Max.X() + margin, Y: b.Min.Y() - margin},
		{X: b.Max.X() + margin, Y: b.Max.Y() + margin},
		{X: b.Min.X() - margin, Y: b.Max.Y() + margin},
	}
	return newRoomMapData(vertices, path)
}

// ConvexHullMap perturbs each path point by up to ±margin on both axes and
// returns the convex hull of the perturbed points. Paths shorter than three
// points fall back to SimpleMap with the same margin.
func ConvexHullMap(path []PathPoint, margin float64, jitter Jitter) *RoomMapData {
	if len(path) < 3 {
		return SimpleMap(path, margin)
	}
	if jitter == nil {
		jitter = Params{}.jitter()
	}

	expanded := make([]Vertex, len(path))
	for i, p := range path {
		expanded[i] = Vertex{
			X: p.X + (jitter.Float64()-0.5)*margin*2,
			Y: p.Y + (jitter.Float64()-0.5)*margin*2,
		}
	}

	return newRoomMapData(GrahamScan(expanded), path)
}

// WallDetectionMap keeps the interior path points where the heading changes
// by more than params.AngleThreshold and returns their convex hull.
//
// Paths shorter than three points fall back to SimpleMap(BoxMargin); fewer
// than three wall points fall back to ConvexHullMap(HullMargin).
func WallDetectionMap(path []PathPoint, params Params) *RoomMapData {
	if len(path) < 3 {
		return SimpleMap(path, params.BoxMargin)
	}

	wallPoints := DetectWallPoints(path, params.AngleThreshold)
	if len(wallPoints) < 3 {
		return ConvexHullMap(path, params.HullMargin, params.jitter())
	}

	data := newRoomMapData(GrahamScan(wallPoints), path)
	data.WallPoints = wallPoints
	return data
}

// DetectWallPoints returns the interior points of path whose turn angle,
// folded into [0, π], exceeds threshold.
func DetectWallPoints(path []PathPoint, threshold float64) []Vertex {
	var wallPoints []Vertex
	for i := 1; i < len(path)-1; i++ {
		prev, curr, next := path[i-1], path[i], path[i+1]

		angle1 := math.Atan2(curr.Y-prev.Y, curr.X-prev.X)
		angle2 := math.Atan2(next.Y-curr.Y, next.X-curr.X)

		diff := math.Abs(angle2 - angle1)
		turn := math.Min(diff, 2*math.Pi-diff)

		if turn > threshold {
			wallPoints = append(wallPoints, Vertex{X: curr.X, Y: curr.Y})
		}
	}
	return wallPoints
}

func newRoomMapData(vertices []Vertex, path []PathPoint) *RoomMapData {
	history := make([]PathPoint, len(path))
	copy(history, path)
	return &RoomMapData{
		Vertices:    vertices,
		SVGPath:     VerticesToSVGPath(vertices),
		WallHeight:  WallHeight,
		PathHistory: history,
	}
}
