package mapper

import (
	"fmt"
	"math"

	"github.com/kwv/odomesh/odometry"
)

// Config represents the full configuration file
type Config struct {
	MQTT       MQTTConfig        `yaml:"mqtt" json:"mqtt"`
	Robot      RobotConfig       `yaml:"robot" json:"robot"`
	Mapping    MappingConfig     `yaml:"mapping" json:"mapping"`
	Filter     FilterConfig      `yaml:"filter" json:"filter"`
	RoomBounds []odometry.Vertex `yaml:"roomBounds,omitempty" json:"roomBounds,omitempty"` // Optional known outline, meters
	RoomCache  string            `yaml:"roomCache,omitempty" json:"roomCache,omitempty"`   // Room JSON written on shutdown
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// RobotConfig describes the robot's drive geometry and where its encoder
// readings arrive.
type RobotConfig struct {
	ID                         string  `yaml:"id" json:"id"`
	Topic                      string  `yaml:"topic" json:"topic"`
	WheelDiameter              float64 `yaml:"wheelDiameter" json:"wheelDiameter"` // cm
	Wheelbase                  float64 `yaml:"wheelbase" json:"wheelbase"`         // cm
	EncoderPulsesPerRevolution int     `yaml:"encoderPulsesPerRevolution" json:"encoderPulsesPerRevolution"`
	MaxPathHistory             int     `yaml:"maxPathHistory" json:"maxPathHistory"`
}

// MappingConfig controls polygon extraction and room publishing.
type MappingConfig struct {
	Strategy       string  `yaml:"strategy" json:"strategy"`
	BoxMargin      float64 `yaml:"boxMargin" json:"boxMargin"`           // m
	HullMargin     float64 `yaml:"hullMargin" json:"hullMargin"`         // m
	AngleThreshold float64 `yaml:"angleThreshold" json:"angleThreshold"` // degrees
	RoomName       string  `yaml:"roomName,omitempty" json:"roomName,omitempty"`
	PublishEvery   int     `yaml:"publishEvery" json:"publishEvery"` // observations between room publishes, 0 disables
	Seed           int64   `yaml:"seed,omitempty" json:"seed,omitempty"`  // 0 seeds from the clock
}

// FilterConfig toggles the pose filter.
type FilterConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Defaults for values a config file may leave out.
const (
	DefaultRobotID       = "robot"
	DefaultPublishPrefix = "odomesh"
	DefaultClientID      = "odomesh"
	DefaultPublishEvery  = 25
	DefaultRoomCachePath = ".room-cache.json"

	DefaultAngleThresholdDegrees = 30.0
)

// DefaultConfig returns a configuration with every optional value filled in.
func DefaultConfig() *Config {
	odo := odometry.DefaultConfig()
	return &Config{
		MQTT: MQTTConfig{
			PublishPrefix: DefaultPublishPrefix,
			ClientID:      DefaultClientID,
		},
		Robot: RobotConfig{
			ID:                         DefaultRobotID,
			WheelDiameter:              odo.WheelDiameter,
			Wheelbase:                  odo.Wheelbase,
			EncoderPulsesPerRevolution: odo.EncoderPulsesPerRevolution,
			MaxPathHistory:             odo.MaxPathHistory,
		},
		Mapping: MappingConfig{
			Strategy:       odometry.ConvexHull.String(),
			BoxMargin:      odometry.DefaultBoxMargin,
			HullMargin:     odometry.DefaultHullMargin,
			AngleThreshold: DefaultAngleThresholdDegrees,
			RoomName:       odometry.DefaultRoomName,
			PublishEvery:   DefaultPublishEvery,
		},
		RoomCache: DefaultRoomCachePath,
	}
}

// Odometry returns the estimator configuration of the robot.
func (rc RobotConfig) Odometry() odometry.Config {
	return odometry.Config{
		WheelDiameter:              rc.WheelDiameter,
		Wheelbase:                  rc.Wheelbase,
		EncoderPulsesPerRevolution: rc.EncoderPulsesPerRevolution,
		MaxPathHistory:             rc.MaxPathHistory,
	}
}

// TopicOrDefault returns the configured encoder topic, or robots/<id>/odometry.
func (rc RobotConfig) TopicOrDefault() string {
	if rc.Topic != "" {
		return rc.Topic
	}
	return fmt.Sprintf("robots/%s/odometry", rc.ID)
}

// GetStrategy parses the configured strategy name.
func (mc MappingConfig) GetStrategy() (odometry.Strategy, error) {
	return odometry.ParseStrategy(mc.Strategy)
}

// Params converts the mapping block to extraction parameters. jitter may be
// nil, in which case every extraction draws from a fresh time-seeded source.
func (mc MappingConfig) Params(jitter odometry.Jitter) odometry.Params {
	return odometry.Params{
		BoxMargin:      mc.BoxMargin,
		HullMargin:     mc.HullMargin,
		AngleThreshold: mc.AngleThreshold * math.Pi / 180,
		Jitter:         jitter,
	}
}
