package mapper

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/kwv/odomesh/odometry"
)

// Observation is the outcome of feeding one encoder reading to a Session.
type Observation struct {
	SessionID  string              `json:"sessionId"`
	Pose       odometry.Pose       `json:"pose"` // cm, rad; filtered when the filter is enabled
	Raw        odometry.Pose       `json:"raw"`  // estimator output
	Point      odometry.PathPoint  `json:"point"`
	Velocities odometry.Velocities `json:"velocities"` // since the previous reading
	Collision  bool                `json:"collision"`
	Count      int                 `json:"count"` // readings since the last reset
}

// Session owns the mapping state of one robot: the estimator, the optional
// pose filter, the path history and the optional room bounds. All methods are
// safe for concurrent use; the odometry types it wraps are not.
type Session struct {
	mu sync.Mutex

	id         string
	robotID    string
	estimator  *odometry.Estimator
	filter     *odometry.PoseFilter
	path       *odometry.PathAccumulator
	bounds     *odometry.RoomBounds
	strategy   odometry.Strategy
	params     odometry.Params
	roomName   string
	collision  bool
	count      int
	velocities odometry.Velocities
}

// NewSession builds a session from a validated configuration.
func NewSession(cfg *Config) (*Session, error) {
	estimator, err := odometry.NewEstimator(cfg.Robot.Odometry())
	if err != nil {
		return nil, fmt.Errorf("creating estimator: %w", err)
	}

	strategy, err := cfg.Mapping.GetStrategy()
	if err != nil {
		return nil, fmt.Errorf("mapping.strategy: %w", err)
	}

	var jitter odometry.Jitter
	if cfg.Mapping.Seed != 0 {
		jitter = rand.New(rand.NewSource(cfg.Mapping.Seed))
	}

	s := &Session{
		id:        uuid.NewString(),
		robotID:   cfg.Robot.ID,
		estimator: estimator,
		path:      odometry.NewPathAccumulator(cfg.Robot.MaxPathHistory),
		bounds:    odometry.NewRoomBounds(cfg.RoomBounds),
		strategy:  strategy,
		params:    cfg.Mapping.Params(jitter),
		roomName:  cfg.Mapping.RoomName,
	}
	if cfg.Filter.Enabled {
		s.filter = odometry.NewPoseFilter()
	}
	return s, nil
}

// ID returns the current session id. It changes on every Reset.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// RobotID returns the id of the robot this session maps.
func (s *Session) RobotID() string {
	return s.robotID
}

// Strategy returns the configured polygon extraction strategy used by Map.
// Room exports always use the convex hull.
func (s *Session) Strategy() odometry.Strategy {
	return s.strategy
}

// Observe feeds one cumulative encoder reading, stamped with the current
// time. reported is the robot's own pose estimate and may be nil.
// Velocities are measured against the previous reading's timestamp.
func (s *Session) Observe(counts odometry.EncoderCounts, reported *odometry.Pose) Observation {
	return s.observe(counts, reported, 0)
}

// Handle applies a decoded robot message. The bool is false when the message
// produced no observation.
func (s *Session) Handle(msg Message) (Observation, bool) {
	switch msg.Kind {
	case KindCounts:
		return s.observe(msg.Counts, msg.Reported, msg.Timestamp), true
	case KindReset:
		s.Reset()
	}
	return Observation{}, false
}

func (s *Session) observe(counts odometry.EncoderCounts, reported *odometry.Pose, timestamp int64) Observation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}
	if last, ok := s.path.Last(); ok {
		dt := float64(timestamp-last.Timestamp) / 1000
		s.velocities = s.estimator.CalculateVelocities(counts.Left, counts.Right, dt)
	} else {
		s.velocities = odometry.Velocities{}
	}

	prev := s.estimator.Pose()
	raw := s.estimator.Update(counts.Left, counts.Right)

	pose := raw
	if s.filter != nil {
		s.filter.Predict(raw.X-prev.X, raw.Y-prev.Y, wrapAngle(raw.Theta-prev.Theta))
		measurement := raw
		if reported != nil {
			measurement = *reported
		}
		s.filter.Update(measurement)
		pose = s.filter.State()
		pose.Theta = wrapAngle(pose.Theta)
	}

	x := pose.X / odometry.CentimetersPerMeter
	y := pose.Y / odometry.CentimetersPerMeter
	point := odometry.PathPoint{X: x, Y: y, Theta: pose.Theta, Timestamp: timestamp}
	s.path.Add(point)

	if s.bounds != nil {
		s.collision = !s.bounds.Contains(odometry.Vertex{X: point.X, Y: point.Y})
	}
	s.count++

	return Observation{
		SessionID:  s.id,
		Pose:       pose,
		Raw:        raw,
		Point:      point,
		Velocities: s.velocities,
		Collision:  s.collision,
		Count:      s.count,
	}
}

// Reset zeroes the estimator, the filter and the path, and starts a new
// session id. Room bounds are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.estimator.Reset()
	if s.filter != nil {
		s.filter.Reset()
	}
	s.path.Reset()
	s.collision = false
	s.count = 0
	s.velocities = odometry.Velocities{}
	s.id = uuid.NewString()
}

// Pose returns the latest pose in cm/rad, filtered when the filter is enabled.
func (s *Session) Pose() odometry.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter != nil {
		pose := s.filter.State()
		pose.Theta = wrapAngle(pose.Theta)
		return pose
	}
	return s.estimator.Pose()
}

// Path returns a copy of the path history, oldest first, in meters.
func (s *Session) Path() []odometry.PathPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path.Points()
}

// Count returns the number of readings observed since the last reset.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Velocities returns the speeds measured at the latest reading. The first
// reading of a session has none.
func (s *Session) Velocities() odometry.Velocities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.velocities
}

// Error returns the heuristic drift estimate.
func (s *Session) Error() odometry.ErrorEstimate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimator.EstimateError()
}

// Map extracts the room polygon from the current path. It returns nil while
// the path has fewer than two points.
func (s *Session) Map(strategy odometry.Strategy) *odometry.RoomMapData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return odometry.ExtractPolygon(strategy, s.path.Points(), s.params)
}

// Room exports the current path as a convex-hull room, whatever strategy is
// configured. An empty name selects the configured room name.
func (s *Session) Room(name string) *odometry.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return odometry.ExportRoom(s.nameOrDefault(name), s.path.Points(), s.params)
}

// Export extracts the polygon once with strategy and returns it both as a
// room and as GeoJSON tagged with the session it came from. Both are nil
// while the path has fewer than two points.
func (s *Session) Export(name string, strategy odometry.Strategy) (*odometry.Room, *geojson.FeatureCollection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := odometry.ExtractPolygon(strategy, s.path.Points(), s.params)
	if data == nil {
		return nil, nil
	}
	name = s.nameOrDefault(name)
	return odometry.NewRoom(name, data), RoomFeatureCollection(name, data, s.id)
}

// ExportRoom is Export with the convex hull room exports use.
func (s *Session) ExportRoom(name string) (*odometry.Room, *geojson.FeatureCollection) {
	return s.Export(name, odometry.ConvexHull)
}

func (s *Session) nameOrDefault(name string) string {
	if name == "" {
		return s.roomName
	}
	return name
}

// SetRoomBounds installs the outline used for collision checks. Fewer than
// three vertices clear it.
func (s *Session) SetRoomBounds(vertices []odometry.Vertex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bounds = odometry.NewRoomBounds(vertices)
	if s.bounds == nil {
		s.collision = false
	}
}

// RoomBounds returns the installed outline, or nil.
func (s *Session) RoomBounds() *odometry.RoomBounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

// Collision reports whether the latest path point lies outside the room bounds.
func (s *Session) Collision() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collision
}

// wrapAngle maps an angle to (-π, π].
func wrapAngle(a float64) float64 {
	a = math.Remainder(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// SaveRoom writes a room to disk as JSON.
func SaveRoom(path string, room *odometry.Room) error {
	data, err := json.MarshalIndent(room, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create room cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write room cache: %w", err)
	}
	return nil
}

// LoadRoom reads a room written by SaveRoom. A missing file is not an error;
// it returns nil, nil.
func LoadRoom(path string) (*odometry.Room, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read room cache: %w", err)
	}
	var room odometry.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("unmarshal room cache: %w", err)
	}
	return &room, nil
}
