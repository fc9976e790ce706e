// Package sight decides whether a target is visible from an observer.
package sight

import (
	"errors"
	"fmt"
	"math"

	"github.com/kasuganosora/combatcore/game/geom"
)

var ErrInvalidConfig = errors.New("sight: invalid config")

// Obstruction answers line-of-sight raycasts against the obstruction layer.
type Obstruction interface {
	// Blocked reports whether anything on the layer lies between from and to.
	Blocked(from, to geom.Vec3) bool
}

// Pose is the observer's eye position and facing.
type Pose struct {
	Position geom.Vec3
	Forward  geom.Vec3
}

// Config holds detection parameters.
type Config struct {
	DetectionRange     float64 `mapstructure:"detection_range"`
	FieldOfViewDegrees float64 `mapstructure:"field_of_view"`
}

// Validate checks range >= 0 and fov in (0, 360]. NaN fails both.
func (c Config) Validate() error {
	if c.DetectionRange < 0 || math.IsNaN(c.DetectionRange) {
		return fmt.Errorf("%w: detection_range %v < 0", ErrInvalidConfig, c.DetectionRange)
	}
	if !(c.FieldOfViewDegrees > 0 && c.FieldOfViewDegrees <= 360) {
		return fmt.Errorf("%w: field_of_view %v not in (0,360]", ErrInvalidConfig, c.FieldOfViewDegrees)
	}
	return nil
}

// Sensor evaluates visibility once per tick. It keeps only the last result.
type Sensor struct {
	cfg         Config
	obstruction Obstruction
	lastVisible bool
}

// New creates a sensor. A nil obstruction means nothing ever blocks sight.
func New(cfg Config, obstruction Obstruction) (*Sensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sensor{cfg: cfg, obstruction: obstruction}, nil
}

// Evaluate runs the range, field-of-view and line-of-sight checks in order.
func (s *Sensor) Evaluate(self Pose, target geom.Vec3) bool {
	s.lastVisible = s.check(self, target)
	return s.lastVisible
}

func (s *Sensor) check(self Pose, target geom.Vec3) bool {
	toTarget := target.Sub(self.Position)
	dist := toTarget.Len()
	if dist > s.cfg.DetectionRange {
		return false
	}
	if geom.AngleDeg(self.Forward, toTarget) > s.cfg.FieldOfViewDegrees/2 {
		return false
	}
	if s.obstruction != nil && s.obstruction.Blocked(self.Position, target) {
		return false
	}
	return true
}

// LastVisible returns the result of the most recent Evaluate.
func (s *Sensor) LastVisible() bool { return s.lastVisible }

func (s *Sensor) Config() Config { return s.cfg }
