package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/snakegame/game/engine"
	"github.com/wricardo/mcp-training/snakegame/game/harness"
	"github.com/wricardo/mcp-training/snakegame/game/input"
)

// DefaultLevelID is used when a session is created without a level
const DefaultLevelID = "snake1"

var (
	ErrLevelNotFound   = errors.New("level not found")
	ErrInvalidLevel    = errors.New("invalid level")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRunning  = errors.New("session is running")
	ErrSessionEnded    = errors.New("session has ended")
	ErrUnsupportedKey  = errors.New("unsupported key")
	ErrLevelsReadOnly  = errors.New("no level directory configured")
)

// Session loop events pushed to broadcasters
const (
	EventStarted = "started"
	EventStopped = "stopped"
)

// LevelInfo describes a level available for new sessions
type LevelInfo struct {
	ID          string `json:"id"` // The identifier to use for session creation
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	PeriodMs    int    `json:"period_ms"`
	Builtin     bool   `json:"builtin"`
}

// Session is one game in progress
type Session struct {
	ID             string
	LevelID        string
	Level          *engine.Level
	Game           *harness.GameHandle
	Keys           *input.Listener
	CreatedAt      time.Time

	mu           sync.Mutex
	lastAccessed time.Time
	cancel       context.CancelFunc
	done         chan struct{}
	recorded     bool
	driver       *harness.Driver
	display      *frameDisplay
}

// SessionInfo is the API view of a session
type SessionInfo struct {
	ID             string           `json:"id"`
	LevelID        string           `json:"level_id"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	Running        bool             `json:"running"`
	Direction      string           `json:"direction"`
	Width          int              `json:"width"`
	Height         int              `json:"height"`
	Tick           int              `json:"tick"`
	Snapshot       harness.Snapshot `json:"snapshot"`
}

// Frame is one rendered step, pushed to websocket clients and returned by
// tick and board requests
type Frame struct {
	SessionID string           `json:"session_id"`
	Board     string           `json:"board"`
	Tick      int              `json:"tick"`
	Snapshot  harness.Snapshot `json:"snapshot"`
}

// Result is a finished game
type Result struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	LevelID    string    `json:"level_id"`
	Score      int       `json:"score"`
	DieReason  string    `json:"die_reason"`
	Ticks      int       `json:"ticks"`
	FinishedAt time.Time `json:"finished_at"`
}
