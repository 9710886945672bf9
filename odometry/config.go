package odometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfiguration is returned when the robot geometry would make the
// kinematic model divide by zero or produce NaN.
var ErrInvalidConfiguration = errors.New("invalid odometry configuration")

const (
	DefaultWheelDiameter              = 6.5  // cm
	DefaultWheelbase                  = 15.0 // cm
	DefaultEncoderPulsesPerRevolution = 20
	DefaultMaxPathHistory             = 1000
)

// Config describes the robot geometry. It is fixed once an Estimator is built.
type Config struct {
	WheelDiameter              float64 `yaml:"wheelDiameter" json:"wheelDiameter"` // cm
	Wheelbase                  float64 `yaml:"wheelbase" json:"wheelbase"`         // cm, distance between wheels
	EncoderPulsesPerRevolution int     `yaml:"encoderPulsesPerRevolution" json:"encoderPulsesPerRevolution"`
	MaxPathHistory             int     `yaml:"maxPathHistory" json:"maxPathHistory"`
}

// DefaultConfig returns the geometry of the reference RC car.
func DefaultConfig() Config {
	return Config{
		WheelDiameter:              DefaultWheelDiameter,
		Wheelbase:                  DefaultWheelbase,
		EncoderPulsesPerRevolution: DefaultEncoderPulsesPerRevolution,
		MaxPathHistory:             DefaultMaxPathHistory,
	}
}

// Validate reports the first unusable value. The returned error wraps
// ErrInvalidConfiguration.
func (c Config) Validate() error {
	if !positiveFinite(c.WheelDiameter) {
		return fmt.Errorf("%w: wheelDiameter must be > 0, got %v", ErrInvalidConfiguration, c.WheelDiameter)
	}
	if !positiveFinite(c.Wheelbase) {
		return fmt.Errorf("%w: wheelbase must be > 0, got %v", ErrInvalidConfiguration, c.Wheelbase)
	}
	if c.EncoderPulsesPerRevolution <= 0 {
		return fmt.Errorf("%w: encoderPulsesPerRevolution must be > 0, got %d", ErrInvalidConfiguration, c.EncoderPulsesPerRevolution)
	}
	if c.MaxPathHistory < 1 {
		return fmt.Errorf("%w: maxPathHistory must be >= 1, got %d", ErrInvalidConfiguration, c.MaxPathHistory)
	}
	return nil
}

// CmPerPulse is the distance a wheel travels for one encoder pulse.
func (c Config) CmPerPulse() float64 {
	return math.Pi * c.WheelDiameter / float64(c.EncoderPulsesPerRevolution)
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
