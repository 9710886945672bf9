package odometry

import "math"

// errorRate is the typical odometry drift, 2-5% of distance travelled.
const errorRate = 0.03

// Estimator integrates wheel-encoder counts into a pose using a
// differential-drive model. It is not safe for concurrent use; callers
// serialize Update.
type Estimator struct {
	config     Config
	cmPerPulse float64

	x, y, theta float64 // cm, cm, rad

	lastLeft  int64
	lastRight int64
}

// NewEstimator validates cfg and returns an estimator at the origin.
func NewEstimator(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{
		config:     cfg,
		cmPerPulse: cfg.CmPerPulse(),
	}
	e.Reset()
	return e, nil
}

// Config returns the geometry the estimator was built with.
func (e *Estimator) Config() Config {
	return e.config
}

// CmPerPulse returns the wheel travel per encoder pulse.
func (e *Estimator) CmPerPulse() float64 {
	return e.cmPerPulse
}

// Reset moves the estimator back to the origin and forgets the last counts.
func (e *Estimator) Reset() {
	e.x = 0
	e.y = 0
	e.theta = 0
	e.lastLeft = 0
	e.lastRight = 0
}

// Update consumes the latest cumulative counts and returns the new pose.
//
// The position step uses the heading after this update's rotation has been
// applied. Downstream consumers rely on that exact integration scheme.
func (e *Estimator) Update(left, right int64) Pose {
	distance, deltaTheta := e.step(left, right)

	e.theta += deltaTheta
	e.theta = normalizeTheta(e.theta)

	e.x += distance * math.Cos(e.theta)
	e.y += distance * math.Sin(e.theta)

	e.lastLeft = left
	e.lastRight = right

	return e.Pose()
}

// CalculateVelocities derives linear (cm/s) and angular (rad/s) velocity from
// the delta between counts and the last observed counts. It does not mutate
// the estimator.
func (e *Estimator) CalculateVelocities(left, right int64, deltaTime float64) Velocities {
	if deltaTime <= 0 {
		return Velocities{}
	}
	distance, deltaTheta := e.step(left, right)
	return Velocities{
		Linear:  distance / deltaTime,
		Angular: deltaTheta / deltaTime,
	}
}

// EstimateError applies the fixed drift heuristic to the straight-line
// distance from the origin.
func (e *Estimator) EstimateError() ErrorEstimate {
	total := math.Sqrt(e.x*e.x + e.y*e.y)
	return ErrorEstimate{
		EstimatedError: total * errorRate,
		TotalDistance:  total,
		ErrorRate:      errorRate,
	}
}

// Pose returns the current estimate in centimeters and radians.
func (e *Estimator) Pose() Pose {
	return Pose{X: e.x, Y: e.y, Theta: e.theta}
}

// LastCounts returns the counts consumed by the most recent Update.
func (e *Estimator) LastCounts() EncoderCounts {
	return EncoderCounts{Left: e.lastLeft, Right: e.lastRight}
}

// step returns the mean wheel travel and heading change for the given counts.
func (e *Estimator) step(left, right int64) (distance, deltaTheta float64) {
	deltaLeft := left - e.lastLeft
	deltaRight := right - e.lastRight

	distanceLeft := float64(deltaLeft) * e.cmPerPulse
	distanceRight := float64(deltaRight) * e.cmPerPulse

	distance = (distanceLeft + distanceRight) / 2.0
	deltaTheta = (distanceRight - distanceLeft) / e.config.Wheelbase
	return distance, deltaTheta
}

// maxUnwrapTurns bounds the one-turn-at-a-time loop below. Beyond it a
// subtraction of 2π may no longer change theta at all.
const maxUnwrapTurns = 1 << 20

// normalizeTheta folds theta back into (-π, π] one turn at a time. Only
// headings more than maxUnwrapTurns turns out are pre-reduced with
// math.Remainder.
func normalizeTheta(theta float64) float64 {
	if math.Abs(theta) > maxUnwrapTurns*2*math.Pi {
		theta = math.Remainder(theta, 2*math.Pi)
	}
	for theta > math.Pi {
		theta -= 2 * math.Pi
	}
	for theta <= -math.Pi {
		theta += 2 * math.Pi
	}
	return theta
}
