// Package calibrate resolves named screen anchors to coordinates.
package calibrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/itohio/emgkb/pkg/config"
)

// ErrCalibration is returned when an anchor cannot be resolved.
var ErrCalibration = errors.New("calibration failed")

// Point is a screen position in pixels.
type Point = config.Point

// Provider resolves anchors to screen coordinates.
type Provider interface {
	Resolve(anchor string) (Point, error)
}

// Static resolves anchors from a fixed table, usually the configuration file.
type Static struct {
	anchors map[string]Point
}

// NewStatic creates a provider over anchors. Names are matched case-sensitively
// after trimming spaces.
func NewStatic(anchors map[string]Point) *Static {
	m := make(map[string]Point, len(anchors))
	for name, p := range anchors {
		m[strings.TrimSpace(name)] = p
	}
	return &Static{anchors: m}
}

func (s *Static) Resolve(anchor string) (Point, error) {
	p, ok := s.anchors[strings.TrimSpace(anchor)]
	if !ok {
		return Point{}, fmt.Errorf("%w: anchor %q not found", ErrCalibration, anchor)
	}
	return p, nil
}

// ResolveFirst returns the first anchor in names that resolves, along with
// its name. It fails with ErrCalibration when none does.
func ResolveFirst(p Provider, names ...string) (string, Point, error) {
	if len(names) == 0 {
		return "", Point{}, fmt.Errorf("%w: no anchors given", ErrCalibration)
	}

	var errs []error
	for _, name := range names {
		pt, err := p.Resolve(name)
		if err == nil {
			return name, pt, nil
		}
		errs = append(errs, err)
	}
	return "", Point{}, fmt.Errorf("%w: none of %s resolved: %w", ErrCalibration, strings.Join(names, ", "), errors.Join(errs...))
}

// Calibration is the result of resolving the session's anchors.
type Calibration struct {
	Origin     Point
	OriginName string
	Open       *Point // nil when no open anchor is configured
}

// Resolve looks up the origin (with fallbacks) and the optional open anchor.
func Resolve(p Provider, cfg config.CalibrationConfig) (Calibration, error) {
	name, origin, err := ResolveFirst(p, cfg.OriginAnchors...)
	if err != nil {
		return Calibration{}, err
	}

	c := Calibration{Origin: origin, OriginName: name}
	if cfg.OpenAnchor != "" {
		open, err := p.Resolve(cfg.OpenAnchor)
		if err != nil {
			return Calibration{}, err
		}
		c.Open = &open
	}
	return c, nil
}
