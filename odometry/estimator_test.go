package odometry

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	e, err := NewEstimator(DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestNewEstimator_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero wheelbase", func(c *Config) { c.Wheelbase = 0 }},
		{"negative wheelbase", func(c *Config) { c.Wheelbase = -15 }},
		{"zero pulses", func(c *Config) { c.EncoderPulsesPerRevolution = 0 }},
		{"zero wheel diameter", func(c *Config) { c.WheelDiameter = 0 }},
		{"infinite wheel diameter", func(c *Config) { c.WheelDiameter = math.Inf(1) }},
		{"NaN wheelbase", func(c *Config) { c.Wheelbase = math.NaN() }},
		{"zero path history", func(c *Config) { c.MaxPathHistory = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			e, err := NewEstimator(cfg)
			assert.Nil(t, e)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration), "error %v should wrap ErrInvalidConfiguration", err)
		})
	}
}

func TestEstimator_CmPerPulse(t *testing.T) {
	e := newTestEstimator(t)
	want := math.Pi * 6.5 / 20
	if !almostEqual(e.CmPerPulse(), want) {
		t.Errorf("CmPerPulse() = %v, want %v", e.CmPerPulse(), want)
	}
}

func TestEstimator_StraightLine(t *testing.T) {
	e := newTestEstimator(t)

	const delta = 10
	const steps = 25
	var pose Pose
	for i := 1; i <= steps; i++ {
		pose = e.Update(int64(i*delta), int64(i*delta))
		if pose.Theta != 0 {
			t.Fatalf("step %d: theta = %v, want 0", i, pose.Theta)
		}
	}

	wantX := steps * delta * e.CmPerPulse()
	if !almostEqual(pose.X, wantX) {
		t.Errorf("X = %v, want %v", pose.X, wantX)
	}
	if pose.Y != 0 {
		t.Errorf("Y = %v, want 0", pose.Y)
	}
}

func TestEstimator_Backward(t *testing.T) {
	e := newTestEstimator(t)

	pose := e.Update(-20, -20)
	want := -20 * e.CmPerPulse()
	if !almostEqual(pose.X, want) {
		t.Errorf("X = %v, want %v", pose.X, want)
	}
	assert.Equal(t, 0.0, pose.Theta)
}

func TestEstimator_PureRotation(t *testing.T) {
	e := newTestEstimator(t)

	const delta = 5
	pose := e.Update(-delta, delta)

	if !almostEqual(pose.X, 0) || !almostEqual(pose.Y, 0) {
		t.Errorf("position = (%v, %v), want (0, 0)", pose.X, pose.Y)
	}
	wantTheta := 2 * delta * e.CmPerPulse() / DefaultWheelbase
	if !almostEqual(pose.Theta, wantTheta) {
		t.Errorf("Theta = %v, want %v", pose.Theta, wantTheta)
	}
}

func TestEstimator_UsesPostUpdateHeading(t *testing.T) {
	e := newTestEstimator(t)

	pose := e.Update(0, 10)

	c := e.CmPerPulse()
	distance := 5 * c
	theta := 10 * c / DefaultWheelbase
	if !almostEqual(pose.Theta, theta) {
		t.Fatalf("Theta = %v, want %v", pose.Theta, theta)
	}
	if !almostEqual(pose.X, distance*math.Cos(theta)) {
		t.Errorf("X = %v, want %v", pose.X, distance*math.Cos(theta))
	}
	if !almostEqual(pose.Y, distance*math.Sin(theta)) {
		t.Errorf("Y = %v, want %v", pose.Y, distance*math.Sin(theta))
	}
}

func TestEstimator_ThetaStaysNormalized(t *testing.T) {
	e := newTestEstimator(t)
	rng := rand.New(rand.NewSource(1))

	var left, right int64
	for i := 0; i < 5000; i++ {
		left += int64(rng.Intn(81) - 40)
		right += int64(rng.Intn(81) - 40)
		pose := e.Update(left, right)
		if pose.Theta > math.Pi || pose.Theta <= -math.Pi {
			t.Fatalf("update %d: theta %v outside (-π, π]", i, pose.Theta)
		}
	}
}

func TestEstimator_LargeRotation(t *testing.T) {
	tests := []struct {
		name  string
		right int64
	}{
		{"several turns", 500},
		{"huge single step", 1 << 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEstimator(t)
			pose := e.Update(0, tt.right)
			if pose.Theta > math.Pi || pose.Theta <= -math.Pi {
				t.Errorf("theta %v outside (-π, π]", pose.Theta)
			}
		})
	}
}

func TestNormalizeTheta(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{7 * math.Pi / 2, -math.Pi / 2},
	}
	for _, tt := range tests {
		got := normalizeTheta(tt.in)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("normalizeTheta(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEstimator_HalfTurnClockwiseIsPositivePi(t *testing.T) {
	e, err := NewEstimator(Config{WheelDiameter: 1, Wheelbase: 2, EncoderPulsesPerRevolution: 1, MaxPathHistory: 10})
	require.NoError(t, err)

	pose := e.Update(2, 0)

	assert.Equal(t, math.Pi, pose.Theta, "-π folds to π")
	assert.InDelta(t, -math.Pi, pose.X, 1e-12)
	assert.InDelta(t, 0.0, pose.Y, 1e-12)
}

func TestEstimator_ResetIdempotence(t *testing.T) {
	e := newTestEstimator(t)
	e.Update(120, 80)
	e.Update(300, 310)

	e.Reset()
	e.Reset()
	pose := e.Update(0, 0)

	assert.Equal(t, Pose{}, pose)
	assert.Equal(t, EncoderCounts{}, e.LastCounts())
}

func TestEstimator_CalculateVelocities(t *testing.T) {
	e := newTestEstimator(t)
	e.Update(100, 100)

	t.Run("non-positive delta time", func(t *testing.T) {
		assert.Equal(t, Velocities{}, e.CalculateVelocities(200, 220, 0))
		assert.Equal(t, Velocities{}, e.CalculateVelocities(200, 220, -1))
	})

	t.Run("does not mutate last counts", func(t *testing.T) {
		before := e.LastCounts()
		posBefore := e.Pose()

		v := e.CalculateVelocities(110, 120, 0.5)

		c := e.CmPerPulse()
		wantLinear := (10*c + 20*c) / 2 / 0.5
		wantAngular := (20*c - 10*c) / DefaultWheelbase / 0.5
		if !almostEqual(v.Linear, wantLinear) {
			t.Errorf("Linear = %v, want %v", v.Linear, wantLinear)
		}
		if !almostEqual(v.Angular, wantAngular) {
			t.Errorf("Angular = %v, want %v", v.Angular, wantAngular)
		}
		assert.Equal(t, before, e.LastCounts())
		assert.Equal(t, posBefore, e.Pose())
	})
}

func TestEstimator_EstimateError(t *testing.T) {
	e := newTestEstimator(t)
	assert.Equal(t, ErrorEstimate{ErrorRate: 0.03}, e.EstimateError())

	pose := e.Update(100, 100)
	got := e.EstimateError()

	if !almostEqual(got.TotalDistance, math.Hypot(pose.X, pose.Y)) {
		t.Errorf("TotalDistance = %v, want %v", got.TotalDistance, math.Hypot(pose.X, pose.Y))
	}
	if !almostEqual(got.EstimatedError, got.TotalDistance*0.03) {
		t.Errorf("EstimatedError = %v, want %v", got.EstimatedError, got.TotalDistance*0.03)
	}
}
