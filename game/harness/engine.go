package harness

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/snakegame/game/engine"
)

var (
	ErrUnknownLevel = errors.New("unknown level")
	ErrNoLevels     = errors.New("no levels available")
)

// Snapshot is the presentation view of one simulation step
type Snapshot struct {
	// Snake is a flat x,y sequence with the head as the last pair
	Snake            []int  `json:"snake"`
	Food             [2]int `json:"food"`
	Score            int    `json:"score"`
	DieReason        string `json:"die_reason,omitempty"`
	PeriodDurationMs int    `json:"period_duration_ms"`
}

// LevelInfo is the metadata returned for each level
type LevelInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Layout      []string `json:"layout"`
}

// Handle is one running game
type Handle interface {
	Dim() [2]int
	// Walls returns a flat x,y sequence
	Walls() []int
	// Snapshot reads the current state without advancing
	Snapshot() Snapshot
	Tick(dir engine.Direction) Snapshot
}

// Engine is the simulation capability the harness drives
type Engine interface {
	// Init performs one-time setup. Calling it again has no effect.
	Init()
	Levels() (map[string]LevelInfo, error)
	CreateGame(name string) (Handle, error)
}

// LevelSource supplies level definitions to a LocalEngine
type LevelSource interface {
	LoadLevel(id string) (*engine.Level, error)
	LevelIDs() ([]string, error)
}

// LocalEngine runs games in process on top of the engine package
type LocalEngine struct {
	source LevelSource
	once   sync.Once
	guard  atomic.Bool
}

// NewLocalEngine creates an engine backed by source. A nil source serves
// the built-in levels.
func NewLocalEngine(source LevelSource) *LocalEngine {
	if source == nil {
		source = builtinSource{}
	}
	return &LocalEngine{source: source}
}

// Init enables panic logging on every handle created afterwards
func (e *LocalEngine) Init() {
	e.once.Do(func() {
		e.guard.Store(true)
		log.Debug().Msg("Engine initialized")
	})
}

// Levels returns every level the source can load. Levels that fail to load
// are logged and skipped.
func (e *LocalEngine) Levels() (map[string]LevelInfo, error) {
	ids, err := e.source.LevelIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}

	levels := make(map[string]LevelInfo, len(ids))
	for _, id := range ids {
		level, err := e.source.LoadLevel(id)
		if err != nil {
			log.Warn().Err(err).Str("level", id).Msg("Skipping level")
			continue
		}
		levels[id] = LevelInfo{
			Name:        level.Name,
			Description: level.Description,
			Layout:      append([]string(nil), level.Layout...),
		}
	}
	return levels, nil
}

// CreateGame starts a fresh game on the named level
func (e *LocalEngine) CreateGame(name string) (Handle, error) {
	level, err := e.source.LoadLevel(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownLevel, name, err)
	}
	game, err := engine.NewGame(level)
	if err != nil {
		return nil, fmt.Errorf("failed to create game %s: %w", name, err)
	}
	h := NewGameHandle(game)
	h.guard = e.guard.Load()
	return h, nil
}

// GameHandle wraps an engine.Game behind a mutex so readers such as board
// requests can share it with a running driver
type GameHandle struct {
	mu    sync.Mutex
	game  *engine.Game
	guard bool
}

// NewGameHandle wraps an existing game
func NewGameHandle(game *engine.Game) *GameHandle {
	return &GameHandle{game: game}
}

func (h *GameHandle) Dim() [2]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ht := h.game.Dim()
	return [2]int{w, ht}
}

func (h *GameHandle) Walls() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return engine.FlattenPoints(h.game.Walls())
}

func (h *GameHandle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return FromEngine(h.game.Snapshot())
}

func (h *GameHandle) Tick(dir engine.Direction) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.guard {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Engine panic during tick")
				panic(r)
			}
		}()
	}
	return FromEngine(h.game.Tick(dir))
}

// State exports the wrapped game for persistence
func (h *GameHandle) State() *engine.GameState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.game.State()
}

// Raw returns the engine snapshot, including the tick counter
func (h *GameHandle) Raw() engine.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.game.Snapshot()
}

// Level returns the level the game runs on
func (h *GameHandle) Level() *engine.Level {
	return h.game.Level()
}

// FromEngine converts an engine snapshot to its presentation form
func FromEngine(s engine.Snapshot) Snapshot {
	return Snapshot{
		Snake:            engine.FlattenPoints(s.Snake),
		Food:             [2]int{s.Food.X, s.Food.Y},
		Score:            s.Score,
		DieReason:        s.DieReason(),
		PeriodDurationMs: int(s.Period.Milliseconds()),
	}
}

type builtinSource struct{}

func (builtinSource) LoadLevel(id string) (*engine.Level, error) {
	return engine.BuiltinLevel(id)
}

func (builtinSource) LevelIDs() ([]string, error) {
	return engine.BuiltinLevelNames(), nil
}

// sortedNames returns the keys of levels in ascending order
func sortedNames(levels map[string]LevelInfo) []string {
	names := make([]string, 0, len(levels))
	for name := range levels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
