// Package nav steps a cursor through a jagged grid of on-screen keys.
package nav

import (
	"errors"
	"fmt"

	"github.com/itohio/emgkb/pkg/config"
)

// ErrOutOfBounds is returned for a cell outside the grid.
var ErrOutOfBounds = errors.New("cell out of bounds")

// Point is a pixel position or offset.
type Point = config.Point

// Grid holds per-key pixel offsets from the origin key. Rows may differ in length.
type Grid struct {
	rows [][]Point
}

// NewGrid expands the configured rows. Every row needs at least one key.
func NewGrid(rows []config.RowConfig) (*Grid, error) {
	if len(rows) == 0 {
		return nil, errors.New("grid has no rows")
	}
	g := &Grid{rows: make([][]Point, len(rows))}
	for i, r := range rows {
		g.rows[i] = r.Offsets()
		if len(g.rows[i]) == 0 {
			return nil, fmt.Errorf("grid row %d has no keys", i)
		}
	}
	return g, nil
}

// GridFromLengths builds a grid with rows of the given lengths on a unit pitch.
func GridFromLengths(lengths ...int) (*Grid, error) {
	rows := make([]config.RowConfig, len(lengths))
	for i, n := range lengths {
		rows[i] = config.RowConfig{Length: n, Y: float64(i), Spacing: 1}
	}
	return NewGrid(rows)
}

// Rows returns the number of rows.
func (g *Grid) Rows() int {
	return len(g.rows)
}

// RowLen returns the number of keys in row, or 0 if row does not exist.
func (g *Grid) RowLen(row int) int {
	if row < 0 || row >= len(g.rows) {
		return 0
	}
	return len(g.rows[row])
}

// Offset returns the pixel offset of a cell.
func (g *Grid) Offset(row, col int) (Point, error) {
	if row < 0 || row >= len(g.rows) || col < 0 || col >= len(g.rows[row]) {
		return Point{}, fmt.Errorf("%w: row %d col %d", ErrOutOfBounds, row, col)
	}
	return g.rows[row][col], nil
}
