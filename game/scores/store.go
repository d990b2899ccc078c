// Package scores keeps finished games for the leaderboard.
//
// Two implementations are provided: SQLiteStore for durable storage and
// MemoryStore for tests and for running without a database file. Both order
// results by score descending, then by fewer ticks, then by finish time.
package scores

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/snakegame/game/service"
)

// Store defines the persistence interface for results
type Store interface {
	service.ResultStore
	Close() error
}

// prepare fills the generated fields of a result
func prepare(r service.Result) service.Result {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	r.FinishedAt = r.FinishedAt.UTC()
	return r
}

// memory is an in-memory Store implementation
type memory struct {
	mu      sync.RWMutex
	results []service.Result
}

// NewMemoryStore constructs a new in-memory Store
func NewMemoryStore() Store {
	return &memory{}
}

func (m *memory) Record(ctx context.Context, r service.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, prepare(r))
	return nil
}

func (m *memory) Top(ctx context.Context, levelID string, limit int) ([]service.Result, error) {
	m.mu.RLock()
	out := make([]service.Result, 0, len(m.results))
	for _, r := range m.results {
		if levelID == "" || r.LevelID == levelID {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Ticks != b.Ticks {
			return a.Ticks < b.Ticks
		}
		return a.FinishedAt.Before(b.FinishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memory) Close() error { return nil }
