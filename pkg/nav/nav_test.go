package nav

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itohio/emgkb/pkg/actuator"
	"github.com/itohio/emgkb/pkg/calibrate"
	"github.com/itohio/emgkb/pkg/config"
	"github.com/itohio/emgkb/pkg/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(t *testing.T, lengths ...int) *Grid {
	t.Helper()
	g, err := GridFromLengths(lengths...)
	require.NoError(t, err)
	return g
}

func TestNewGrid(t *testing.T) {
	g, err := NewGrid(config.DefaultRows())
	require.NoError(t, err)
	assert.Equal(t, 4, g.Rows())
	assert.Equal(t, 11, g.RowLen(0))
	assert.Equal(t, 11, g.RowLen(1))
	assert.Equal(t, 12, g.RowLen(2))
	assert.Equal(t, 4, g.RowLen(3))
	assert.Equal(t, 0, g.RowLen(4))

	p, err := g.Offset(1, 2)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 245, Y: 95}, p)

	p, err = g.Offset(3, 1)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 575, Y: 290}, p)

	_, err = g.Offset(3, 4)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = g.Offset(-1, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = NewGrid(nil)
	assert.Error(t, err)
	_, err = NewGrid([]config.RowConfig{{Length: 2}, {}})
	assert.Error(t, err)
}

func TestNavigator_ColumnWrapIsIdentity(t *testing.T) {
	g, err := NewGrid(config.DefaultRows())
	require.NoError(t, err)
	n := NewNavigator(g)

	for row := 0; row < g.Rows(); row++ {
		n.row, n.col = row, 0
		for i := 0; i < g.RowLen(row); i++ {
			n.AdvanceColumn()
		}
		r, c := n.Position()
		assert.Equal(t, row, r)
		assert.Equal(t, 0, c, "row %d", row)
	}
}

func TestNavigator_RowWrapIsIdentity(t *testing.T) {
	g, err := NewGrid(config.DefaultRows())
	require.NoError(t, err)
	n := NewNavigator(g)

	for i := 0; i < g.Rows(); i++ {
		n.AdvanceRow()
	}
	r, c := n.Position()
	assert.Equal(t, 0, r)
	assert.Equal(t, 0, c)
}

func TestNavigator_Scenarios(t *testing.T) {
	n := NewNavigator(grid(t, 3, 2))

	// Column wrap within row 0.
	assert.False(t, n.AdvanceColumn())
	assert.False(t, n.AdvanceColumn())
	r, c := n.Position()
	assert.Equal(t, [2]int{0, 2}, [2]int{r, c})
	assert.True(t, n.AdvanceColumn())
	r, c = n.Position()
	assert.Equal(t, [2]int{0, 0}, [2]int{r, c})

	// Row advance clamps the column to the shorter row.
	n.AdvanceColumn()
	n.AdvanceColumn()
	assert.False(t, n.AdvanceRow())
	r, c = n.Position()
	assert.Equal(t, [2]int{1, 1}, [2]int{r, c})

	// Leaving the last row goes home.
	assert.True(t, n.AdvanceRow())
	r, c = n.Position()
	assert.Equal(t, [2]int{0, 0}, [2]int{r, c})
}

func TestNavigator_RowAdvanceKeepsColumn(t *testing.T) {
	n := NewNavigator(grid(t, 3, 3))
	n.AdvanceColumn()
	n.AdvanceRow()
	r, c := n.Position()
	assert.Equal(t, [2]int{1, 1}, [2]int{r, c})
}

func TestNavigator_SingleRow(t *testing.T) {
	n := NewNavigator(grid(t, 2))
	n.AdvanceColumn()
	assert.True(t, n.AdvanceRow())
	r, c := n.Position()
	assert.Equal(t, [2]int{0, 0}, [2]int{r, c})
}

// scriptedGate returns queued decisions and counts ticks.
type scriptedGate struct {
	mu      sync.Mutex
	actions []gate.Action
	ticks   int
}

func (g *scriptedGate) Tick() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ticks++
}

func (g *scriptedGate) Decide() gate.Action {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.actions) == 0 {
		return gate.None
	}
	a := g.actions[0]
	g.actions = g.actions[1:]
	return a
}

func (g *scriptedGate) Ticks() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ticks
}

func fastNav() config.NavigationConfig {
	return config.NavigationConfig{
		StartDelay:   time.Millisecond,
		Settle:       time.Millisecond,
		ActionDelay:  time.Millisecond,
		MoveDuration: 300 * time.Millisecond,
	}
}

func closed() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestController_Cycle(t *testing.T) {
	g := &scriptedGate{actions: []gate.Action{gate.Right, gate.Right, gate.Right, gate.Down, gate.Select, gate.None, gate.Down}}
	act := actuator.NewDry()
	calib := calibrate.Calibration{Origin: Point{X: 100, Y: 200}, OriginName: "q"}
	c := NewController(NewNavigator(grid(t, 3, 2)), g, act, closed(), fastNav(), calib, nil, nil)

	ctx := context.Background()
	var got []gate.Action
	for i := 0; i < 7; i++ {
		a, ok := c.Cycle(ctx)
		require.True(t, ok)
		got = append(got, a)
	}

	assert.Equal(t, []gate.Action{gate.Right, gate.Right, gate.Right, gate.Down, gate.Select, gate.None, gate.Down}, got)
	assert.Equal(t, 7, g.Ticks(), "one tick per cycle")

	r, col := c.Position()
	assert.Equal(t, [2]int{0, 0}, [2]int{r, col})

	assert.Equal(t, []string{
		"move_relative 1,0",
		"move_relative 1,0",
		"move_to 100,200", // column wrap
		"move_to 100,201", // row 1 col 0
		"click 100,201",
		"move_to 100,200", // home
	}, act.History())
}

// failingActuator fails every move.
type failingActuator struct {
	actuator.Dry
}

func (f *failingActuator) MoveTo(x, y float64, d time.Duration) error {
	return errors.New("agent offline")
}

func (f *failingActuator) MoveRelative(dx, dy float64, d time.Duration) error {
	return errors.New("agent offline")
}

func TestController_FailedMoveHoldsPosition(t *testing.T) {
	g := &scriptedGate{actions: []gate.Action{gate.Right, gate.Down}}
	c := NewController(NewNavigator(grid(t, 3, 2)), g, &failingActuator{}, closed(), fastNav(), calibrate.Calibration{}, nil, nil)

	for i := 0; i < 2; i++ {
		_, ok := c.Cycle(context.Background())
		require.True(t, ok)
	}
	r, col := c.Position()
	assert.Equal(t, [2]int{0, 0}, [2]int{r, col})
}

func TestController_OutOfBoundsHoldsPosition(t *testing.T) {
	g := &scriptedGate{actions: []gate.Action{gate.Right}}
	act := actuator.NewDry()
	n := NewNavigator(grid(t, 3, 2))
	n.row, n.col = 7, 1
	c := NewController(n, g, act, closed(), fastNav(), calibrate.Calibration{}, nil, nil)

	a, ok := c.Cycle(context.Background())
	require.True(t, ok)
	assert.Equal(t, gate.Right, a)

	r, col := c.Position()
	assert.Equal(t, [2]int{7, 1}, [2]int{r, col})
	assert.Empty(t, act.History())
}

func TestController_RunStartup(t *testing.T) {
	g := &scriptedGate{actions: []gate.Action{gate.Down}}
	act := actuator.NewDry()
	open := Point{X: 1800, Y: 1050}
	calib := calibrate.Calibration{Origin: Point{X: 100, Y: 200}, OriginName: "q", Open: &open}
	c := NewController(NewNavigator(grid(t, 3, 2)), g, act, closed(), fastNav(), calib, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(act.History()) >= 4 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("controller did not stop")
	}

	assert.Equal(t, []string{
		"move_to 1800,1050",
		"click 1800,1050",
		"move_to 100,200",
		"move_to 100,201",
	}, act.History()[:4])
	assert.Greater(t, g.Ticks(), 0)
}

func TestController_WaitsForReady(t *testing.T) {
	g := &scriptedGate{}
	act := actuator.NewDry()
	ready := make(chan struct{})
	c := NewController(NewNavigator(grid(t, 2)), g, act, ready, fastNav(), calibrate.Calibration{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, g.Ticks())
	assert.Empty(t, act.History())

	close(ready)
	require.Eventually(t, func() bool { return g.Ticks() > 0 }, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("controller did not stop")
	}
}

func TestController_StartupFailure(t *testing.T) {
	c := NewController(NewNavigator(grid(t, 2)), &scriptedGate{}, &failingActuator{}, closed(), fastNav(), calibrate.Calibration{OriginName: "q"}, nil, nil)
	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "origin")
}
