package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Direction is the movement code shared with the harness and the key listener
type Direction int

const (
	Up    Direction = 0
	Down  Direction = 1
	Left  Direction = 2
	Right Direction = 3
)

const (
	// Layout legend
	WallChar  = '#'
	EmptyChar = ' '
	HeadChar  = 'h'
	BodyChar  = 'b'
	FoodChar  = 'f'

	// Validation constants
	MinLevelSize = 3
	MaxLevelSize = 100

	DefaultPeriodMs    = 1000
	DefaultMinPeriodMs = 100

	// Die reasons reported by Snapshot.DieReason
	DieOnWall  = "on wall"
	DieOnSnake = "on snake"
)

// String returns the lowercase name of the direction
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Valid reports whether d is one of the four known codes
func (d Direction) Valid() bool {
	return d >= Up && d <= Right
}

// Compatible reports whether the snake may turn from d to other.
// Reversing onto itself is the only forbidden turn.
func (d Direction) Compatible(other Direction) bool {
	switch {
	case d == Up && other == Down, d == Down && other == Up:
		return false
	case d == Left && other == Right, d == Right && other == Left:
		return false
	}
	return true
}

// ParseDirection accepts a name (up, down, left, right) or a numeric code 0..3
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !Direction(n).Valid() {
		return Up, fmt.Errorf("invalid direction %q", s)
	}
	return Direction(n), nil
}

// Cell represents a single board cell
type Cell uint8

const (
	Empty Cell = iota
	Wall
)

// Point represents x,y coordinates with the origin at the bottom-left
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Level is a playable board definition, loadable from JSON
type Level struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Layout      []string `json:"layout"`
	PeriodMs    int      `json:"period_ms,omitempty"`
	SpeedupMs   int      `json:"speedup_ms,omitempty"`
	MinPeriodMs int      `json:"min_period_ms,omitempty"`
	Seed        uint64   `json:"seed,omitempty"`
}

// Snapshot is the read-only result of the latest tick
type Snapshot struct {
	// Snake holds every segment with the head last
	Snake     []Point       `json:"snake"`
	Food      Point         `json:"food"`
	OnFood    bool          `json:"on_food"`
	OnWall    bool          `json:"on_wall"`
	EatItself bool          `json:"eat_itself"`
	Score     int           `json:"score"`
	Period    time.Duration `json:"period"`
	Tick      int           `json:"tick"`
}

// DieReason returns the terminal reason, or "" while the snake is alive
func (s Snapshot) DieReason() string {
	if s.OnWall {
		return DieOnWall
	}
	if s.EatItself {
		return DieOnSnake
	}
	return ""
}

// Head returns the head segment
func (s Snapshot) Head() Point {
	if len(s.Snake) == 0 {
		return Point{}
	}
	return s.Snake[len(s.Snake)-1]
}

// GameState is the serializable form of a game, used by session persistence
type GameState struct {
	Head          Point     `json:"head"`
	Body          []Point   `json:"body"`
	Index         int       `json:"index"`
	Food          Point     `json:"food"`
	Direction     Direction `json:"direction"`
	PendingGrowth int       `json:"pending_growth"`
	Score         int       `json:"score"`
	PeriodMs      int       `json:"period_ms"`
	Ticks         int       `json:"ticks"`
	OnFood        bool      `json:"on_food"`
	OnWall        bool      `json:"on_wall"`
	EatItself     bool      `json:"eat_itself"`
}
