package nav

// Navigator tracks the current cell. It is used by a single goroutine.
type Navigator struct {
	grid     *Grid
	row, col int
}

// NewNavigator starts at (0, 0).
func NewNavigator(grid *Grid) *Navigator {
	return &Navigator{grid: grid}
}

// Grid returns the grid being navigated.
func (n *Navigator) Grid() *Grid {
	return n.grid
}

// Position returns the current row and column.
func (n *Navigator) Position() (row, col int) {
	return n.row, n.col
}

// Home returns to (0, 0).
func (n *Navigator) Home() {
	n.row, n.col = 0, 0
}

// AdvanceColumn moves one key right, wrapping to the first key of the row.
// It reports whether the column wrapped.
func (n *Navigator) AdvanceColumn() (wrapped bool) {
	if n.col < n.grid.RowLen(n.row)-1 {
		n.col++
		return false
	}
	n.col = 0
	return true
}

// AdvanceRow moves one row down. Leaving the last row returns home; otherwise
// the column is clamped to the new row.
func (n *Navigator) AdvanceRow() (wrapped bool) {
	n.row = (n.row + 1) % n.grid.Rows()
	if n.row == 0 {
		n.col = 0
		return true
	}
	if last := n.grid.RowLen(n.row) - 1; n.col > last {
		n.col = last
	}
	return false
}

// Offset returns the pixel offset of the current cell.
func (n *Navigator) Offset() (Point, error) {
	return n.grid.Offset(n.row, n.col)
}
