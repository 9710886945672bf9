package odometry

import "time"

// PathAccumulator is an append-only path history bounded to a fixed number of
// points. Once full, each Add evicts the oldest point. Not safe for
// concurrent use.
type PathAccumulator struct {
	buf   []PathPoint
	start int // index of the oldest point once buf is full
	limit int

	// Now stamps points added through AddPose. Defaults to time.Now.
	Now func() time.Time
}

// NewPathAccumulator returns an empty accumulator holding at most limit
// points. A non-positive limit selects DefaultMaxPathHistory.
func NewPathAccumulator(limit int) *PathAccumulator {
	if limit <= 0 {
		limit = DefaultMaxPathHistory
	}
	return &PathAccumulator{limit: limit, Now: time.Now}
}

// Add appends p, evicting the oldest point if the cap is exceeded.
func (a *PathAccumulator) Add(p PathPoint) {
	if len(a.buf) < a.limit {
		a.buf = append(a.buf, p)
		return
	}
	a.buf[a.start] = p
	a.start = (a.start + 1) % a.limit
}

// AddPose appends a point stamped with the current time.
func (a *PathAccumulator) AddPose(x, y, theta float64) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	a.Add(PathPoint{X: x, Y: y, Theta: theta, Timestamp: now().UnixMilli()})
}

// Len returns the number of retained points.
func (a *PathAccumulator) Len() int {
	return len(a.buf)
}

// Cap returns the maximum number of retained points.
func (a *PathAccumulator) Cap() int {
	return a.limit
}

// Points returns the retained points, oldest first. The slice is a copy.
func (a *PathAccumulator) Points() []PathPoint {
	out := make([]PathPoint, 0, len(a.buf))
	out = append(out, a.buf[a.start:]...)
	out = append(out, a.buf[:a.start]...)
	return out
}

// Last returns the most recent point.
func (a *PathAccumulator) Last() (PathPoint, bool) {
	if len(a.buf) == 0 {
		return PathPoint{}, false
	}
	i := a.start - 1
	if i < 0 {
		i = len(a.buf) - 1
	}
	return a.buf[i], true
}

// Reset drops every point.
func (a *PathAccumulator) Reset() {
	a.buf = a.buf[:0]
	a.start = 0
}
