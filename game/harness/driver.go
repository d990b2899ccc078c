package harness

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/snakegame/game/board"
	"github.com/wricardo/mcp-training/snakegame/game/input"
)

var (
	ErrNoDisplay   = errors.New("display is required")
	ErrNotChoosing = errors.New("driver already started")
	ErrNotRunning  = errors.New("driver is not running")
	ErrEnded       = errors.New("game has ended")
)

// State is the driver lifecycle stage
type State int

const (
	StateChoosing State = iota
	StateRunning
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateChoosing:
		return "choosing"
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// DefaultPeriod is used when the engine reports no period
const DefaultPeriod = 1000 * time.Millisecond

// Display receives everything the loop produces
type Display interface {
	ShowBoard(board string)
	ShowScore(score int)
	// AppendStatus adds text to the status line; it is called once with
	// the die reason when the game ends
	AppendStatus(status string)
}

// Ticker is the part of time.Ticker the driver uses
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct{ t *time.Ticker }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

func (t realTicker) C() <-chan time.Time { return t.t.C }
func (t realTicker) Stop()               { t.t.Stop() }

// Option configures a Driver
type Option func(*Driver)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithGlyphs selects the cell glyphs used for rendering
func WithGlyphs(g board.Glyphs) Option {
	return func(d *Driver) { d.glyphs = g }
}

// WithKeys shares a key listener with the driver
func WithKeys(l *input.Listener) Option {
	return func(d *Driver) { d.keys = l }
}

// OnSnapshot registers a hook called after every step
func OnSnapshot(fn func(Snapshot)) Option {
	return func(d *Driver) { d.onSnapshot = fn }
}

// Driver runs the render cycle for one game
type Driver struct {
	engine     Engine
	display    Display
	clock      Clock
	glyphs     board.Glyphs
	keys       *input.Listener
	onSnapshot func(Snapshot)

	mu     sync.Mutex
	state  State
	handle Handle
	dim    [2]int
	walls  board.WallSet
	period time.Duration
	last   Snapshot
}

// NewDriver creates a driver in the choosing state
func NewDriver(eng Engine, display Display, opts ...Option) (*Driver, error) {
	if display == nil {
		return nil, ErrNoDisplay
	}
	d := &Driver{
		engine:  eng,
		display: display,
		clock:   realClock{},
		glyphs:  board.ASCII,
		state:   StateChoosing,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.keys == nil {
		d.keys = input.NewListener()
	}
	return d, nil
}

// Keys returns the listener whose direction feeds each step
func (d *Driver) Keys() *input.Listener {
	return d.keys
}

// State returns the current lifecycle stage
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Period returns the interval the loop is scheduled at
func (d *Driver) Period() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.period
}

// Last returns the most recent snapshot
func (d *Driver) Last() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Start creates a game for level and moves to the running state
func (d *Driver) Start(level string) error {
	if d.engine == nil {
		return errors.New("engine is required")
	}
	d.mu.Lock()
	if d.state != StateChoosing {
		d.mu.Unlock()
		return ErrNotChoosing
	}
	d.mu.Unlock()

	h, err := d.engine.CreateGame(level)
	if err != nil {
		return err
	}
	return d.Attach(h)
}

// Attach runs an existing handle instead of creating one
func (d *Driver) Attach(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateChoosing {
		return ErrNotChoosing
	}

	snap := h.Snapshot()
	d.handle = h
	d.dim = h.Dim()
	d.walls = board.NewWallSet(h.Walls())
	d.period = periodOf(snap)
	d.last = snap
	d.state = StateRunning
	if snap.DieReason != "" {
		d.state = StateEnded
	}
	return nil
}

// Step performs one cycle: tick with the current direction, redraw, and
// report the score. A die reason ends the game.
func (d *Driver) Step() (Snapshot, error) {
	d.mu.Lock()
	switch d.state {
	case StateChoosing:
		d.mu.Unlock()
		return Snapshot{}, ErrNotRunning
	case StateEnded:
		last := d.last
		d.mu.Unlock()
		return last, ErrEnded
	}

	snap := d.handle.Tick(d.keys.Direction())
	d.last = snap
	frame := board.RenderGrid(d.dim[0], d.dim[1], snap.Snake, snap.Food, d.walls, d.glyphs)
	if snap.DieReason != "" {
		d.state = StateEnded
	}
	d.mu.Unlock()

	d.display.ShowBoard(frame)
	d.display.ShowScore(snap.Score)
	if snap.DieReason != "" {
		d.display.AppendStatus(snap.DieReason)
	}
	if d.onSnapshot != nil {
		d.onSnapshot(snap)
	}
	return snap, nil
}

// Run steps immediately and then on a ticker until the game ends or ctx is
// done. When a snapshot reports a new period the ticker is replaced before
// the next cycle.
func (d *Driver) Run(ctx context.Context) error {
	if d.State() != StateRunning {
		return ErrNotRunning
	}

	snap, err := d.Step()
	if err != nil {
		return err
	}
	if snap.DieReason != "" {
		return nil
	}

	period := d.Period()
	if p := periodOf(snap); p != period {
		period = d.reschedule(p)
	}
	ticker := d.clock.NewTicker(period)
	defer func() { ticker.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			snap, err := d.Step()
			if errors.Is(err, ErrEnded) {
				return nil
			}
			if err != nil {
				return err
			}
			if snap.DieReason != "" {
				return nil
			}
			if p := periodOf(snap); p != period {
				ticker.Stop()
				period = d.reschedule(p)
				ticker = d.clock.NewTicker(period)
			}
		}
	}
}

// Play starts level and runs it to completion
func (d *Driver) Play(ctx context.Context, level string) error {
	if err := d.Start(level); err != nil {
		return err
	}
	return d.Run(ctx)
}

func (d *Driver) reschedule(p time.Duration) time.Duration {
	d.mu.Lock()
	old := d.period
	d.period = p
	d.mu.Unlock()
	log.Debug().Dur("from", old).Dur("to", p).Msg("Rescheduling game loop")
	return p
}

func periodOf(s Snapshot) time.Duration {
	if s.PeriodDurationMs <= 0 {
		return DefaultPeriod
	}
	return time.Duration(s.PeriodDurationMs) * time.Millisecond
}
