package service

import (
	"context"

	"github.com/wricardo/mcp-training/snakegame/game/engine"
	"github.com/wricardo/mcp-training/snakegame/game/harness"
	"github.com/wricardo/mcp-training/snakegame/game/input"
)

// GameService defines all game-related operations
type GameService interface {
	// Levels
	ListLevels(ctx context.Context) ([]*LevelInfo, error)
	GetLevel(ctx context.Context, levelID string) (*engine.Level, error)
	SaveLevel(ctx context.Context, levelID string, level *engine.Level) error
	Previews(ctx context.Context, glyphs string) ([]harness.Preview, error)

	// Session Management
	CreateSession(ctx context.Context, levelID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Play
	SendKey(ctx context.Context, sessionID string, key input.Key) (*SessionInfo, error)
	SetDirection(ctx context.Context, sessionID, direction string) (*SessionInfo, error)
	Tick(ctx context.Context, sessionID string) (*Frame, error)
	StartSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	StopSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	Board(ctx context.Context, sessionID, glyphs string) (*Frame, error)

	// Results
	Leaderboard(ctx context.Context, levelID string, limit int) ([]Result, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, levelID string, level *engine.Level) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// LevelManager handles level loading
type LevelManager interface {
	LoadLevel(id string) (*engine.Level, error)
	LevelIDs() ([]string, error)
	ListLevels() ([]*LevelInfo, error)
	SaveLevel(id string, level *engine.Level) error
}

// ResultStore keeps finished games
type ResultStore interface {
	Record(ctx context.Context, result Result) error
	Top(ctx context.Context, levelID string, limit int) ([]Result, error)
}

// Broadcaster pushes frames and loop events to everyone watching a session
type Broadcaster interface {
	BroadcastFrame(sessionID string, frame *Frame)
	BroadcastEvent(sessionID, event string)
}
