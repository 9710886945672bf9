package odometry

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DefaultRoomName names exported rooms when the caller gives none.
const DefaultRoomName = "Mapped Room"

// Room is the room description consumed by the rendering and persistence
// layers. Field names follow their API.
type Room struct {
	Name          string            `json:"name"`
	SVGPath       string            `json:"svg_path"`
	Vertices      []Vertex          `json:"vertices"`
	WallHeight    float64           `json:"wall_height"`
	Installations []json.RawMessage `json:"installations"`
	PathHistory   []PathPoint       `json:"pathHistory"`
}

// VerticesToSVGPath renders vertices as closed SVG path data:
// "M x0,y0 L x1,y1 ... Z". An empty input yields "".
func VerticesToSVGPath(vertices []Vertex) string {
	if len(vertices) == 0 {
		return ""
	}

	var b strings.Builder
	for i, v := range vertices {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(formatCoord(v.X))
		b.WriteByte(',')
		b.WriteString(formatCoord(v.Y))
	}
	b.WriteString(" Z")
	return b.String()
}

// ExportRoom builds a Room from the convex-hull polygon of path. It returns
// nil when the path has fewer than two points.
func ExportRoom(name string, path []PathPoint, params Params) *Room {
	data := ConvexHullMap(path, params.HullMargin, params.jitter())
	if data == nil {
		return nil
	}
	return NewRoom(name, data)
}

// NewRoom wraps already extracted map data in the room format.
func NewRoom(name string, data *RoomMapData) *Room {
	if name == "" {
		name = DefaultRoomName
	}
	return &Room{
		Name:          name,
		SVGPath:       data.SVGPath,
		Vertices:      data.Vertices,
		WallHeight:    data.WallHeight,
		Installations: []json.RawMessage{},
		PathHistory:   data.PathHistory,
	}
}

// formatCoord prints the shortest decimal form of v, with -0 printed as 0.
func formatCoord(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
