package engine

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"
)

// Game is one snake game on a level
type Game struct {
	level  *Level
	width  int
	height int
	board  []Cell
	snake  snake
	food   Point

	previousDirection Direction
	pendingGrowth     int
	score             int
	periodMs          int
	ticks             int

	rng  *rand.Rand
	last Snapshot
}

// NewGame creates a new game from the provided level
func NewGame(level *Level) (*Game, error) {
	if err := ValidateLevel(level); err != nil {
		return nil, err
	}
	parsed, err := parseLayout(level.Layout)
	if err != nil {
		return nil, err
	}

	seed := level.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	g := &Game{
		level:  level,
		width:  parsed.width,
		height: parsed.height,
		board:  parsed.board,
		snake: snake{
			head: parsed.head,
			body: parsed.body,
		},
		food:              parsed.food,
		previousDirection: Up,
		periodMs:          level.periodMs(),
		rng:               rand.New(rand.NewSource(seed)),
	}
	g.last = g.snapshot(false, false, false)

	return g, nil
}

// Dim returns the board width and height
func (g *Game) Dim() (int, int) {
	return g.width, g.height
}

// Level returns the level the game was built from
func (g *Game) Level() *Level {
	return g.level
}

// Walls returns every wall cell in board index order
func (g *Game) Walls() []Point {
	walls := make([]Point, 0, CountCells(g.board, Wall))
	for i, c := range g.board {
		if c == Wall {
			walls = append(walls, indexToPoint(i, g.width))
		}
	}
	return walls
}

// Snapshot returns the last snapshot without advancing the simulation
func (g *Game) Snapshot() Snapshot {
	return g.last
}

// Tick advances the simulation by one step. An opposite direction is ignored
// in favour of the previous one. Once the snapshot carries a die reason the
// game is frozen and Tick keeps returning it.
func (g *Game) Tick(direction Direction) Snapshot {
	if g.last.DieReason() != "" {
		return g.last
	}

	if !direction.Valid() || !direction.Compatible(g.previousDirection) {
		direction = g.previousDirection
	}
	g.previousDirection = direction

	grow := g.pendingGrowth > 0
	if grow {
		g.pendingGrowth--
	}

	head := g.snake.move(direction, grow, g.width, g.height)
	g.ticks++

	onWall := g.board[pointToIndex(head, g.width)] == Wall
	onFood := head == g.food
	eatItself := g.snake.onBody(head)

	if onFood {
		g.pendingGrowth++
		g.score++
		g.food = g.newFoodPosition()
		g.speedUp()
	}

	g.last = g.snapshot(onFood, onWall, eatItself)
	return g.last
}

// State exports the game for persistence
func (g *Game) State() *GameState {
	return &GameState{
		Head:          g.snake.head,
		Body:          append([]Point(nil), g.snake.body...),
		Index:         g.snake.index,
		Food:          g.food,
		Direction:     g.previousDirection,
		PendingGrowth: g.pendingGrowth,
		Score:         g.score,
		PeriodMs:      g.periodMs,
		Ticks:         g.ticks,
		OnFood:        g.last.OnFood,
		OnWall:        g.last.OnWall,
		EatItself:     g.last.EatItself,
	}
}

// SetState restores a previously exported state (used for persistence loading)
func (g *Game) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if len(state.Body) == 0 {
		return fmt.Errorf("state must contain at least one body segment")
	}
	if state.Index < 0 || state.Index >= len(state.Body) {
		return fmt.Errorf("state body index %d out of range", state.Index)
	}
	for _, p := range append([]Point{state.Head, state.Food}, state.Body...) {
		if p.X < 0 || p.X >= g.width || p.Y < 0 || p.Y >= g.height {
			return fmt.Errorf("state point (%d,%d) outside %dx%d board", p.X, p.Y, g.width, g.height)
		}
	}

	g.snake = snake{
		head:  state.Head,
		body:  append([]Point(nil), state.Body...),
		index: state.Index,
	}
	g.food = state.Food
	g.previousDirection = state.Direction
	g.pendingGrowth = state.PendingGrowth
	g.score = state.Score
	g.periodMs = state.PeriodMs
	if g.periodMs <= 0 {
		g.periodMs = g.level.periodMs()
	}
	g.ticks = state.Ticks
	g.rng = rand.New(rand.NewSource(g.level.Seed + uint64(state.Ticks) + 1))
	g.last = g.snapshot(state.OnFood, state.OnWall, state.EatItself)
	return nil
}

// RestoreGame builds a game from a level and a persisted state
func RestoreGame(level *Level, state *GameState) (*Game, error) {
	g, err := NewGame(level)
	if err != nil {
		return nil, err
	}
	if err := g.SetState(state); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) snapshot(onFood, onWall, eatItself bool) Snapshot {
	return Snapshot{
		Snake:     g.snake.segments(),
		Food:      g.food,
		OnFood:    onFood,
		OnWall:    onWall,
		EatItself: eatItself,
		Score:     g.score,
		Period:    time.Duration(g.periodMs) * time.Millisecond,
		Tick:      g.ticks,
	}
}

// newFoodPosition picks a random cell that is neither wall nor snake.
// The food stays put when the board is full.
func (g *Game) newFoodPosition() Point {
	free := make([]Point, 0, len(g.board))
	for i, c := range g.board {
		if c == Wall {
			continue
		}
		p := indexToPoint(i, g.width)
		if g.snake.contains(p) {
			continue
		}
		free = append(free, p)
	}
	if len(free) == 0 {
		return g.food
	}
	return free[g.rng.Intn(len(free))]
}

func (g *Game) speedUp() {
	if g.level.SpeedupMs <= 0 {
		return
	}
	g.periodMs -= g.level.SpeedupMs
	if floor := g.level.minPeriodMs(); g.periodMs < floor {
		g.periodMs = floor
	}
}
