package odometry

// Pose is a 2D position plus heading. The estimator reports x/y in
// centimeters; the path history stores meters. Theta is in radians.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// EncoderCounts holds cumulative pulse counts from the two wheel encoders.
// Only the delta between consecutive readings carries meaning.
type EncoderCounts struct {
	Left  int64 `json:"left"`
	Right int64 `json:"right"`
}

// PathPoint is one entry of the path history. Timestamp is Unix milliseconds.
type PathPoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Theta     float64 `json:"theta"`
	Timestamp int64   `json:"timestamp"`
}

// Vertex is a point in the room plane, in meters.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RoomMapData is the polygon extracted from a path, recomputed on demand.
type RoomMapData struct {
	Vertices    []Vertex    `json:"vertices"`
	SVGPath     string      `json:"svgPath"`
	WallHeight  float64     `json:"wallHeight"`
	PathHistory []PathPoint `json:"pathHistory"`
	WallPoints  []Vertex    `json:"wallPoints,omitempty"` // only set by wall detection
}

// Velocities are the instantaneous speeds derived from an encoder delta.
type Velocities struct {
	Linear  float64 `json:"linearVelocity"`  // cm/s
	Angular float64 `json:"angularVelocity"` // rad/s
}

// ErrorEstimate is the heuristic accumulated drift of the estimator.
type ErrorEstimate struct {
	EstimatedError float64 `json:"estimatedError"`
	TotalDistance  float64 `json:"totalDistance"`
	ErrorRate      float64 `json:"errorRate"`
}

// WallHeight is the fixed ceiling height, in meters, of every generated room.
const WallHeight = 2.6

// CentimetersPerMeter converts estimator output into path units.
const CentimetersPerMeter = 100.0
