package mapper

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the configuration from a YAML file. Values the file
// leaves out keep their DefaultConfig value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks every field a session or transport depends on.
func (c *Config) Validate() error {
	if c.Robot.ID == "" {
		return fmt.Errorf("robot.id is required")
	}
	if err := c.Robot.Odometry().Validate(); err != nil {
		return fmt.Errorf("robot: %w", err)
	}

	if _, err := c.Mapping.GetStrategy(); err != nil {
		return fmt.Errorf("mapping.strategy: %w", err)
	}
	if !nonNegativeFinite(c.Mapping.BoxMargin) {
		return fmt.Errorf("mapping.boxMargin must be a non-negative number, got %v", c.Mapping.BoxMargin)
	}
	if !nonNegativeFinite(c.Mapping.HullMargin) {
		return fmt.Errorf("mapping.hullMargin must be a non-negative number, got %v", c.Mapping.HullMargin)
	}
	if !(c.Mapping.AngleThreshold > 0 && c.Mapping.AngleThreshold <= 180) {
		return fmt.Errorf("mapping.angleThreshold must be in (0, 180] degrees, got %v", c.Mapping.AngleThreshold)
	}
	if c.Mapping.PublishEvery < 0 {
		return fmt.Errorf("mapping.publishEvery must not be negative, got %d", c.Mapping.PublishEvery)
	}

	if n := len(c.RoomBounds); n > 0 && n < 3 {
		return fmt.Errorf("roomBounds needs at least 3 vertices, got %d", n)
	}
	for i, v := range c.RoomBounds {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
			return fmt.Errorf("roomBounds[%d] is not a finite point", i)
		}
	}

	return nil
}

func nonNegativeFinite(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}
