package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/snakegame/game/board"
	"github.com/wricardo/mcp-training/snakegame/game/engine"
	"github.com/wricardo/mcp-training/snakegame/game/harness"
	"github.com/wricardo/mcp-training/snakegame/game/input"
)

// DefaultLeaderboardLimit is used when no limit is requested
const DefaultLeaderboardLimit = 10

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions    SessionManager
	levels      LevelManager
	engine      *harness.LocalEngine
	results     ResultStore
	broadcaster Broadcaster
	clock       harness.Clock
	mu          sync.RWMutex
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithResults records finished games into store
func WithResults(store ResultStore) Option {
	return func(s *gameServiceImpl) { s.results = store }
}

// WithBroadcaster pushes every frame of running sessions to b
func WithBroadcaster(b Broadcaster) Option {
	return func(s *gameServiceImpl) { s.broadcaster = b }
}

// WithClock replaces the clock used by session loops
func WithClock(c harness.Clock) Option {
	return func(s *gameServiceImpl) { s.clock = c }
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, levels LevelManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		levels:   levels,
		engine:   harness.NewLocalEngine(levels),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine.Init()
	return s
}

// ListLevels returns every available level
func (s *gameServiceImpl) ListLevels(ctx context.Context) ([]*LevelInfo, error) {
	return s.levels.ListLevels()
}

// GetLevel returns a level definition
func (s *gameServiceImpl) GetLevel(ctx context.Context, levelID string) (*engine.Level, error) {
	return s.levels.LoadLevel(levelID)
}

// SaveLevel stores a new or replacement level
func (s *gameServiceImpl) SaveLevel(ctx context.Context, levelID string, level *engine.Level) error {
	return s.levels.SaveLevel(levelID, level)
}

// Previews renders the initial board of every level
func (s *gameServiceImpl) Previews(ctx context.Context, glyphs string) ([]harness.Preview, error) {
	g, err := board.GlyphsByName(glyphs)
	if err != nil {
		return nil, err
	}
	return harness.NewChooser(s.engine, g).Previews()
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, levelID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if levelID == "" {
		levelID = DefaultLevelID
	}

	level, err := s.levels.LoadLevel(levelID)
	if err != nil {
		if errors.Is(err, ErrLevelNotFound) {
			if ids, listErr := s.levels.LevelIDs(); listErr == nil && len(ids) > 0 {
				return nil, fmt.Errorf("%w: '%s'. Available levels: %v", ErrLevelNotFound, levelID, ids)
			}
		}
		return nil, fmt.Errorf("failed to load level %s: %w", levelID, err)
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", levelID, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().Str("session", sess.ID).Str("level", levelID).Msg("Session created")
	return s.info(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(sess), nil
}

// ListSessions returns all active sessions, most recently used first
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastAccessedAt.Equal(result[j].LastAccessedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].LastAccessedAt.After(result[j].LastAccessedAt)
	})
	return result, nil
}

// DeleteSession stops and removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, err := s.sessions.Get(sessionID); err == nil {
		sess.Stop()
	}
	return s.sessions.Delete(sessionID)
}

// SendKey applies an arrow key to the session's direction
func (s *gameServiceImpl) SendKey(ctx context.Context, sessionID string, key input.Key) (*SessionInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Keys.Handle(key) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, key)
	}
	return s.info(sess), nil
}

// SetDirection sets the session's direction by name or code
func (s *gameServiceImpl) SetDirection(ctx context.Context, sessionID, direction string) (*SessionInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	dir, err := engine.ParseDirection(direction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}
	sess.Keys.Set(dir)
	return s.info(sess), nil
}

// Tick advances a session that is not driven by a server-side loop
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string) (*Frame, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Running() {
		return nil, fmt.Errorf("%w: stop it before ticking manually", ErrSessionRunning)
	}

	driver, display, err := s.driver(sess)
	if err != nil {
		return nil, err
	}
	snap, err := driver.Step()
	if errors.Is(err, harness.ErrEnded) {
		return nil, fmt.Errorf("%w: %s", ErrSessionEnded, snap.DieReason)
	}
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Save(sess.ID); err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("Failed to persist session after tick")
	}
	return display.latest(), nil
}

// StartSession runs the game loop on the server until the snake dies or the
// session is stopped
func (s *gameServiceImpl) StartSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if reason := sess.Game.Snapshot().DieReason; reason != "" {
		return nil, fmt.Errorf("%w: %s", ErrSessionEnded, reason)
	}

	driver, _, err := s.driver(sess)
	if err != nil {
		return nil, err
	}

	started := sess.startLoop(func(ctx context.Context) {
		logger := log.With().Str("session", sess.ID).Logger()
		logger.Info().Msg("Session loop started")
		s.event(sess.ID, EventStarted)
		defer s.event(sess.ID, EventStopped)

		err := driver.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Session loop failed")
		}
		if err := s.sessions.Save(sess.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			logger.Warn().Err(err).Msg("Failed to persist session after loop")
		}
		logger.Info().Str("state", driver.State().String()).Msg("Session loop stopped")
	})
	if !started {
		return nil, fmt.Errorf("%w: already started", ErrSessionRunning)
	}

	info := s.info(sess)
	info.Running = true
	return info, nil
}

// StopSession halts the server-side loop if one is running
func (s *gameServiceImpl) StopSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Stop()
	return s.info(sess), nil
}

// Board renders the session's current state without advancing it
func (s *gameServiceImpl) Board(ctx context.Context, sessionID, glyphs string) (*Frame, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	g, err := board.GlyphsByName(glyphs)
	if err != nil {
		return nil, err
	}
	raw := sess.Game.Raw()
	return &Frame{
		SessionID: sess.ID,
		Board:     harness.RenderHandle(sess.Game, g),
		Tick:      raw.Tick,
		Snapshot:  harness.FromEngine(raw),
	}, nil
}

// Leaderboard returns the best results for a level
func (s *gameServiceImpl) Leaderboard(ctx context.Context, levelID string, limit int) ([]Result, error) {
	if s.results == nil {
		return []Result{}, nil
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return s.results.Top(ctx, levelID, limit)
}

func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// driver returns the session's driver, attached to its game once and shared
// by manual ticks and the server-side loop
func (s *gameServiceImpl) driver(sess *Session) (*harness.Driver, *frameDisplay, error) {
	return sess.attachedDriver(func(display *frameDisplay) (*harness.Driver, error) {
		return s.newDriver(sess, display)
	})
}

// newDriver builds a driver attached to the session's game. Every step is
// broadcast, and a finished game is recorded once.
func (s *gameServiceImpl) newDriver(sess *Session, display *frameDisplay) (*harness.Driver, error) {
	opts := []harness.Option{
		harness.WithKeys(sess.Keys),
		harness.OnSnapshot(func(snap harness.Snapshot) {
			frame := display.publish(sess.ID, sess.Game.Raw().Tick, snap)
			if s.broadcaster != nil {
				s.broadcaster.BroadcastFrame(sess.ID, frame)
			}
			if snap.DieReason != "" {
				s.record(sess, frame)
			}
		}),
	}
	if s.clock != nil {
		opts = append(opts, harness.WithClock(s.clock))
	}

	driver, err := harness.NewDriver(s.engine, display, opts...)
	if err != nil {
		return nil, err
	}
	if err := driver.Attach(sess.Game); err != nil {
		return nil, err
	}
	return driver, nil
}

func (s *gameServiceImpl) event(sessionID, event string) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(sessionID, event)
	}
}

func (s *gameServiceImpl) record(sess *Session, frame *Frame) {
	if s.results == nil || !sess.markRecorded() {
		return
	}
	result := Result{
		SessionID:  sess.ID,
		LevelID:    sess.LevelID,
		Score:      frame.Snapshot.Score,
		DieReason:  frame.Snapshot.DieReason,
		Ticks:      frame.Tick,
		FinishedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.results.Record(ctx, result); err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("Failed to record result")
		return
	}
	log.Info().
		Str("session", sess.ID).
		Str("level", sess.LevelID).
		Int("score", result.Score).
		Str("reason", result.DieReason).
		Msg("Game over")
}

func (s *gameServiceImpl) info(sess *Session) *SessionInfo {
	raw := sess.Game.Raw()
	dim := sess.Game.Dim()
	return &SessionInfo{
		ID:             sess.ID,
		LevelID:        sess.LevelID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessed(),
		Running:        sess.Running(),
		Direction:      sess.Keys.Direction().String(),
		Width:          dim[0],
		Height:         dim[1],
		Tick:           raw.Tick,
		Snapshot:       harness.FromEngine(raw),
	}
}

// frameDisplay keeps the latest rendered board for the snapshot hook
type frameDisplay struct {
	mu    sync.Mutex
	board string
	frame *Frame
}

func (d *frameDisplay) ShowBoard(b string) {
	d.mu.Lock()
	d.board = b
	d.mu.Unlock()
}

func (d *frameDisplay) ShowScore(int)       {}
func (d *frameDisplay) AppendStatus(string) {}

// publish turns the last shown board into the current frame
func (d *frameDisplay) publish(sessionID string, tick int, snap harness.Snapshot) *Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = &Frame{
		SessionID: sessionID,
		Board:     d.board,
		Tick:      tick,
		Snapshot:  snap,
	}
	return d.frame
}

func (d *frameDisplay) latest() *Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame
}
