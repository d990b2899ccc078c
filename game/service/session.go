package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/snakegame/game/harness"
)

// Touch marks the session as used now
func (s *Session) Touch() {
	s.SetLastAccessed(time.Now())
}

// SetLastAccessed overrides the last use time, as when restoring a session
func (s *Session) SetLastAccessed(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessed = t
}

// LastAccessed returns when the session was last used
func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessed
}

// attachedDriver returns the driver bound to the session's game, building
// it with build on first use
func (s *Session) attachedDriver(build func(*frameDisplay) (*harness.Driver, error)) (*harness.Driver, *frameDisplay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		display := &frameDisplay{}
		driver, err := build(display)
		if err != nil {
			return nil, nil, err
		}
		s.driver, s.display = driver, display
	}
	return s.driver, s.display, nil
}

// Running reports whether a server-side loop is driving the session
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stop cancels the session loop and waits for it to exit. It reports
// whether a loop was running.
func (s *Session) Stop() bool {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// startLoop runs fn in its own goroutine with a cancellable context. It
// returns false when a loop is already running.
func (s *Session) startLoop(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		fn(ctx)

		s.mu.Lock()
		s.cancel = nil
		s.done = nil
		s.mu.Unlock()
		cancel()
	}()
	return true
}

// markRecorded flags the session result as stored. It returns false if it
// already was.
func (s *Session) markRecorded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded {
		return false
	}
	s.recorded = true
	return true
}
