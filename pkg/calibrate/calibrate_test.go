package calibrate

import (
	"testing"

	"github.com/itohio/emgkb/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_Resolve(t *testing.T) {
	s := NewStatic(map[string]Point{"q": {X: 105, Y: 290}, " keyboard ": {X: 1800, Y: 1050}})

	p, err := s.Resolve("q")
	require.NoError(t, err)
	assert.Equal(t, Point{X: 105, Y: 290}, p)

	p, err = s.Resolve("keyboard")
	require.NoError(t, err)
	assert.Equal(t, Point{X: 1800, Y: 1050}, p)

	_, err = s.Resolve("Q")
	assert.ErrorIs(t, err, ErrCalibration)
}

func TestResolveFirst_Fallback(t *testing.T) {
	s := NewStatic(map[string]Point{"q_cap": {X: 10, Y: 20}})

	name, p, err := ResolveFirst(s, "q", "q_cap")
	require.NoError(t, err)
	assert.Equal(t, "q_cap", name)
	assert.Equal(t, Point{X: 10, Y: 20}, p)

	_, _, err = ResolveFirst(s, "a", "b")
	assert.ErrorIs(t, err, ErrCalibration)
	assert.Contains(t, err.Error(), "a, b")

	_, _, err = ResolveFirst(s)
	assert.ErrorIs(t, err, ErrCalibration)
}

func TestResolve(t *testing.T) {
	anchors := map[string]Point{
		"q":               {X: 105, Y: 290},
		"keyboard_button": {X: 1800, Y: 1050},
	}
	cfg := config.CalibrationConfig{
		OpenAnchor:    "keyboard_button",
		OriginAnchors: []string{"q", "q_cap"},
	}

	c, err := Resolve(NewStatic(anchors), cfg)
	require.NoError(t, err)
	assert.Equal(t, "q", c.OriginName)
	assert.Equal(t, Point{X: 105, Y: 290}, c.Origin)
	require.NotNil(t, c.Open)
	assert.Equal(t, Point{X: 1800, Y: 1050}, *c.Open)

	cfg.OpenAnchor = ""
	c, err = Resolve(NewStatic(anchors), cfg)
	require.NoError(t, err)
	assert.Nil(t, c.Open)

	cfg.OpenAnchor = "missing"
	_, err = Resolve(NewStatic(anchors), cfg)
	assert.ErrorIs(t, err, ErrCalibration)

	_, err = Resolve(NewStatic(nil), config.Default().Calibration)
	assert.ErrorIs(t, err, ErrCalibration)
}
