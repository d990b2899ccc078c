package harness

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/snakegame/game/board"
	"github.com/wricardo/mcp-training/snakegame/game/engine"
	"github.com/wricardo/mcp-training/snakegame/game/input"
)

// stubHandle replays scripted snapshots and records every direction it sees
type stubHandle struct {
	mu      sync.Mutex
	initial Snapshot
	script  []Snapshot
	dirs    []engine.Direction
}

func (h *stubHandle) Dim() [2]int  { return [2]int{3, 3} }
func (h *stubHandle) Walls() []int { return []int{0, 0} }

func (h *stubHandle) Snapshot() Snapshot {
	return h.initial
}

func (h *stubHandle) Tick(dir engine.Direction) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirs = append(h.dirs, dir)
	i := len(h.dirs) - 1
	if i >= len(h.script) {
		i = len(h.script) - 1
	}
	return h.script[i]
}

func (h *stubHandle) directions() []engine.Direction {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]engine.Direction(nil), h.dirs...)
}

type stubEngine struct {
	levels  map[string]LevelInfo
	handles map[string]*stubHandle
	created []string
}

func (e *stubEngine) Init() {}

func (e *stubEngine) Levels() (map[string]LevelInfo, error) {
	return e.levels, nil
}

func (e *stubEngine) CreateGame(name string) (Handle, error) {
	h, ok := e.handles[name]
	if !ok {
		return nil, ErrUnknownLevel
	}
	e.created = append(e.created, name)
	return h, nil
}

func newStubEngine(h *stubHandle) *stubEngine {
	return &stubEngine{
		levels:  map[string]LevelInfo{"only": {Name: "only"}},
		handles: map[string]*stubHandle{"only": h},
	}
}

type recordingDisplay struct {
	mu     sync.Mutex
	boards []string
	scores []int
	status string
}

func (d *recordingDisplay) ShowBoard(b string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.boards = append(d.boards, b)
}

func (d *recordingDisplay) ShowScore(s int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scores = append(d.scores, s)
}

func (d *recordingDisplay) AppendStatus(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status += s
}

type fakeTicker struct {
	period time.Duration
	c      chan time.Time
	mu     sync.Mutex
	// othersStopped records whether every earlier ticker was stopped when this one was made
	othersStopped bool
	stopped       bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := true
	for _, t := range c.tickers {
		if !t.isStopped() {
			all = false
		}
	}
	t := &fakeTicker{period: d, c: make(chan time.Time), othersStopped: all}
	c.tickers = append(c.tickers, t)
	return t
}

// waitTicker blocks until the n-th ticker (1-based) exists
func (c *fakeClock) waitTicker(t *testing.T, n int) *fakeTicker {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.tickers) >= n {
			tk := c.tickers[n-1]
			c.mu.Unlock()
			return tk
		}
		c.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for ticker %d", n)
	return nil
}

func alive(periodMs int) Snapshot {
	return Snapshot{Snake: []int{1, 0, 1, 1}, Food: [2]int{2, 2}, PeriodDurationMs: periodMs}
}

func TestDriver_DirectionPassedOncePerStep(t *testing.T) {
	h := &stubHandle{initial: alive(1000), script: []Snapshot{alive(1000)}}
	keys := input.NewListener()
	d, err := NewDriver(newStubEngine(h), &recordingDisplay{}, WithKeys(keys), WithClock(&fakeClock{}))
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	if err := d.Start("only"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	keys.HandleCode(input.CodeDown)
	if _, err := d.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	dirs := h.directions()
	if len(dirs) != 1 || dirs[0] != engine.Down {
		t.Errorf("Expected exactly one tick with direction 1, got %v", dirs)
	}
}

func TestDriver_DefaultsToUp(t *testing.T) {
	h := &stubHandle{initial: alive(1000), script: []Snapshot{alive(1000)}}
	d, _ := NewDriver(newStubEngine(h), &recordingDisplay{})
	if err := d.Start("only"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	d.Step()
	d.Step()

	for _, dir := range h.directions() {
		if dir != engine.Up {
			t.Errorf("Expected Up by default, got %v", dir)
		}
	}
}

func TestDriver_NoTicksAfterDeath(t *testing.T) {
	dead := alive(1000)
	dead.DieReason = engine.DieOnWall
	dead.Score = 3
	h := &stubHandle{initial: alive(1000), script: []Snapshot{dead}}
	display := &recordingDisplay{}

	d, _ := NewDriver(newStubEngine(h), display)
	if err := d.Start("only"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	snap, err := d.Step()
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if snap.DieReason != engine.DieOnWall {
		t.Errorf("Expected die reason %q, got %q", engine.DieOnWall, snap.DieReason)
	}
	if d.State() != StateEnded {
		t.Errorf("Expected state ended, got %v", d.State())
	}

	if _, err := d.Step(); !errors.Is(err, ErrEnded) {
		t.Errorf("Expected ErrEnded, got %v", err)
	}
	if n := len(h.directions()); n != 1 {
		t.Errorf("Expected 1 tick, got %d", n)
	}
	if display.status != engine.DieOnWall {
		t.Errorf("Expected status %q, got %q", engine.DieOnWall, display.status)
	}
	if len(display.scores) != 1 || display.scores[0] != 3 {
		t.Errorf("Expected score 3 shown once, got %v", display.scores)
	}
}

func TestDriver_RunReschedulesOnPeriodChange(t *testing.T) {
	dead := alive(500)
	dead.DieReason = engine.DieOnSnake
	h := &stubHandle{
		initial: alive(1000),
		script:  []Snapshot{alive(1000), alive(500), dead},
	}
	clock := &fakeClock{}
	d, _ := NewDriver(newStubEngine(h), &recordingDisplay{}, WithClock(clock))
	if err := d.Start("only"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	first := clock.waitTicker(t, 1)
	if first.period != 1000*time.Millisecond {
		t.Fatalf("Expected first ticker at 1s, got %v", first.period)
	}
	first.c <- time.Now()

	second := clock.waitTicker(t, 2)
	if second.period != 500*time.Millisecond {
		t.Errorf("Expected second ticker at 500ms, got %v", second.period)
	}
	if !second.othersStopped {
		t.Error("Expected the 1s ticker to be stopped before the 500ms ticker started")
	}
	second.c <- time.Now()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected Run to return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after die reason")
	}

	if !second.isStopped() {
		t.Error("Expected ticker to be stopped after the game ended")
	}
	if n := len(h.directions()); n != 3 {
		t.Errorf("Expected 3 ticks, got %d", n)
	}
	if d.Period() != 500*time.Millisecond {
		t.Errorf("Expected period 500ms, got %v", d.Period())
	}
}

func TestDriver_RunStopsOnCancel(t *testing.T) {
	h := &stubHandle{initial: alive(0), script: []Snapshot{alive(0)}}
	clock := &fakeClock{}
	d, _ := NewDriver(newStubEngine(h), &recordingDisplay{}, WithClock(clock))
	d.Start("only")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	tk := clock.waitTicker(t, 1)
	if tk.period != DefaultPeriod {
		t.Errorf("Expected zero period to fall back to %v, got %v", DefaultPeriod, tk.period)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !tk.isStopped() {
		t.Error("Expected ticker stopped on cancel")
	}
}

func TestDriver_RunImmediateDeathCreatesNoTicker(t *testing.T) {
	dead := alive(1000)
	dead.DieReason = engine.DieOnWall
	h := &stubHandle{initial: alive(1000), script: []Snapshot{dead}}
	clock := &fakeClock{}
	d, _ := NewDriver(newStubEngine(h), &recordingDisplay{}, WithClock(clock))

	if err := d.Play(context.Background(), "only"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(clock.tickers) != 0 {
		t.Errorf("Expected no tickers, got %d", len(clock.tickers))
	}
}

func TestDriver_StateMachineErrors(t *testing.T) {
	if _, err := NewDriver(newStubEngine(&stubHandle{}), nil); !errors.Is(err, ErrNoDisplay) {
		t.Errorf("Expected ErrNoDisplay, got %v", err)
	}

	h := &stubHandle{initial: alive(1000), script: []Snapshot{alive(1000)}}
	d, _ := NewDriver(newStubEngine(h), &recordingDisplay{})

	if _, err := d.Step(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning before start, got %v", err)
	}
	if err := d.Run(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning from Run before start, got %v", err)
	}
	if err := d.Start("missing"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("Expected ErrUnknownLevel, got %v", err)
	}
	if err := d.Start("only"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start("only"); !errors.Is(err, ErrNotChoosing) {
		t.Errorf("Expected ErrNotChoosing, got %v", err)
	}
}

func TestDriver_OnSnapshotAndRender(t *testing.T) {
	h := &stubHandle{initial: alive(1000), script: []Snapshot{alive(1000)}}
	display := &recordingDisplay{}
	var seen []Snapshot
	d, _ := NewDriver(newStubEngine(h), display, OnSnapshot(func(s Snapshot) { seen = append(seen, s) }))
	d.Start("only")
	d.Step()

	if len(seen) != 1 {
		t.Errorf("Expected 1 snapshot observed, got %d", len(seen))
	}
	want := "  f\n h \n#b \n"
	if len(display.boards) != 1 || display.boards[0] != want {
		t.Errorf("Expected board %q, got %v", want, display.boards)
	}
}

func TestChooser_Previews(t *testing.T) {
	eng := NewLocalEngine(nil)
	eng.Init()
	c := NewChooser(eng, board.ASCII)

	previews, err := c.Previews()
	if err != nil {
		t.Fatalf("Previews failed: %v", err)
	}
	if len(previews) != 2 || previews[0].Name != "snake1" || previews[1].Name != "snake2" {
		t.Fatalf("Expected previews for snake1 and snake2, got %+v", previews)
	}

	level, _ := engine.BuiltinLevel("snake1")
	want := strings.Join(level.Layout, "\n") + "\n"
	if previews[0].Board != want {
		t.Errorf("Expected preview to match layout\n%s\ngot\n%s", want, previews[0].Board)
	}
}

func TestChooser_SingleSelection(t *testing.T) {
	c := NewChooser(NewLocalEngine(nil), board.ASCII)

	if _, err := c.Select("nope"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("Expected ErrUnknownLevel, got %v", err)
	}
	name, err := c.Select("snake2")
	if err != nil || name != "snake2" {
		t.Fatalf("Expected snake2, got %q, %v", name, err)
	}
	if _, err := c.Select("snake1"); !errors.Is(err, ErrAlreadySelected) {
		t.Errorf("Expected ErrAlreadySelected, got %v", err)
	}
	if c.Selected() != "snake2" {
		t.Errorf("Expected selection to stay snake2, got %q", c.Selected())
	}
}

func TestChooser_WaitSkipsUnknownClicks(t *testing.T) {
	c := NewChooser(NewLocalEngine(nil), board.ASCII)
	clicks := make(chan string, 3)
	clicks <- "board"
	clicks <- "snake1"
	clicks <- "snake2"

	name, err := c.Wait(context.Background(), clicks)
	if err != nil || name != "snake1" {
		t.Errorf("Expected snake1, got %q, %v", name, err)
	}
}

func TestChooser_NoLevels(t *testing.T) {
	c := NewChooser(&stubEngine{levels: map[string]LevelInfo{}}, board.ASCII)

	if _, err := c.Previews(); !errors.Is(err, ErrNoLevels) {
		t.Errorf("Expected ErrNoLevels from Previews, got %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Wait(ctx, make(chan string)); !errors.Is(err, ErrNoLevels) {
		t.Errorf("Expected ErrNoLevels from Wait, got %v", err)
	}
}

func TestLocalEngine(t *testing.T) {
	eng := NewLocalEngine(nil)
	eng.Init()
	eng.Init()

	levels, err := eng.Levels()
	if err != nil {
		t.Fatalf("Levels failed: %v", err)
	}
	if _, ok := levels["snake1"]; !ok {
		t.Errorf("Expected snake1 in %v", levels)
	}

	if _, err := eng.CreateGame("missing"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("Expected ErrUnknownLevel, got %v", err)
	}

	h, err := eng.CreateGame("snake1")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if dim := h.Dim(); dim != [2]int{10, 6} {
		t.Errorf("Expected 10x6, got %v", dim)
	}
	if n := len(h.Walls()); n != 56 {
		t.Errorf("Expected 28 wall cells (56 ints), got %d", n)
	}

	snap := h.Snapshot()
	n := len(snap.Snake)
	if n != 4 || snap.Snake[n-2] != 4 || snap.Snake[n-1] != 2 {
		t.Errorf("Expected head (4,2) last, got %v", snap.Snake)
	}
	if snap.PeriodDurationMs != engine.DefaultPeriodMs {
		t.Errorf("Expected period %d, got %d", engine.DefaultPeriodMs, snap.PeriodDurationMs)
	}

	next := h.Tick(engine.Up)
	if next.Snake[len(next.Snake)-1] != 3 {
		t.Errorf("Expected head to move up to y=3, got %v", next.Snake)
	}
}

func TestLocalEngine_ConcurrentInit(t *testing.T) {
	eng := NewLocalEngine(nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			eng.Init()
		}()
		go func() {
			defer wg.Done()
			if _, err := eng.CreateGame("snake1"); err != nil {
				t.Errorf("CreateGame failed: %v", err)
			}
		}()
	}
	wg.Wait()

	h, err := eng.CreateGame("snake1")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if !h.(*GameHandle).guard {
		t.Error("Expected handles created after Init to be guarded")
	}
}
