package mapper

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"github.com/kwv/odomesh/odometry"
)

// PathSimplifyThreshold is the Douglas-Peucker tolerance, in meters, applied
// to the path before it is exported.
const PathSimplifyThreshold = 0.05

// Feature kinds, stored in the "kind" property.
const (
	FeatureKindRoom  = "room"
	FeatureKindPath  = "path"
	FeatureKindWalls = "walls"
)

// RoomFeatureCollection converts extracted map data to GeoJSON in room
// coordinates (meters). It holds the room polygon, the simplified path and,
// for wall detection, the detected wall points. It returns nil for nil data.
func RoomFeatureCollection(name string, data *odometry.RoomMapData, sessionID string) *geojson.FeatureCollection {
	if data == nil {
		return nil
	}
	if name == "" {
		name = odometry.DefaultRoomName
	}

	fc := geojson.NewFeatureCollection()

	if len(data.Vertices) >= 3 {
		room := geojson.NewFeature(orb.Polygon{closedRing(data.Vertices)})
		room.Properties["kind"] = FeatureKindRoom
		room.Properties["name"] = name
		room.Properties["wallHeight"] = data.WallHeight
		room.Properties["area"] = odometry.Area(data.Vertices)
		room.Properties["svgPath"] = data.SVGPath
		room.Properties["sessionId"] = sessionID
		fc.Append(room)
	}

	if len(data.PathHistory) >= 2 {
		line := make(orb.LineString, len(data.PathHistory))
		for i, p := range data.PathHistory {
			line[i] = orb.Point{p.X, p.Y}
		}
		var geom orb.Geometry = line
		if simplified, ok := simplify.DouglasPeucker(PathSimplifyThreshold).Simplify(line.Clone()).(orb.LineString); ok {
			geom = simplified
		}

		path := geojson.NewFeature(geom)
		path.Properties["kind"] = FeatureKindPath
		path.Properties["points"] = len(data.PathHistory)
		path.Properties["startedAt"] = data.PathHistory[0].Timestamp
		path.Properties["endedAt"] = data.PathHistory[len(data.PathHistory)-1].Timestamp
		fc.Append(path)
	}

	if len(data.WallPoints) > 0 {
		walls := make(orb.MultiPoint, len(data.WallPoints))
		for i, v := range data.WallPoints {
			walls[i] = orb.Point{v.X, v.Y}
		}
		f := geojson.NewFeature(walls)
		f.Properties["kind"] = FeatureKindWalls
		fc.Append(f)
	}

	return fc
}

// closedRing converts vertices to an orb ring whose last point repeats the first.
func closedRing(vertices []odometry.Vertex) orb.Ring {
	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		ring = append(ring, orb.Point{v.X, v.Y})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}
