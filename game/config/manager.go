package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/snakegame/game/engine"
	"github.com/wricardo/mcp-training/snakegame/game/service"
)

var (
	ErrLevelNotFound = service.ErrLevelNotFound
	ErrInvalidLevel  = service.ErrInvalidLevel
	ErrReadOnly      = service.ErrLevelsReadOnly
)

// DefaultLevel is served when no level is named
const DefaultLevel = service.DefaultLevelID

var levelIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Manager handles level loading and caching. Built-in levels are always
// available; a file <id>.json in the level directory overrides the built-in
// with the same id.
type Manager struct {
	levelDir string
	levels   map[string]*engine.Level
	mu       sync.RWMutex
}

// NewManager creates a new level manager. An empty levelDir serves the
// built-in levels only.
func NewManager(levelDir string) (*Manager, error) {
	if levelDir != "" {
		info, err := os.Stat(levelDir)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("level directory does not exist: %s", levelDir)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat level directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("level path is not a directory: %s", levelDir)
		}
	}

	return &Manager{
		levelDir: levelDir,
		levels:   make(map[string]*engine.Level),
	}, nil
}

// LoadLevel loads a level by id
func (m *Manager) LoadLevel(id string) (*engine.Level, error) {
	id = strings.TrimSuffix(id, ".json")

	m.mu.RLock()
	// Check cache first
	if level, exists := m.levels[id]; exists {
		m.mu.RUnlock()
		return level, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if level, exists := m.levels[id]; exists {
		return level, nil
	}

	level, err := m.readLevel(id)
	if err != nil {
		return nil, err
	}

	m.levels[id] = level
	return level, nil
}

func (m *Manager) readLevel(id string) (*engine.Level, error) {
	if m.levelDir != "" && levelIDPattern.MatchString(id) {
		data, err := os.ReadFile(m.levelPath(id))
		switch {
		case err == nil:
			var level engine.Level
			if err := json.Unmarshal(data, &level); err != nil {
				return nil, fmt.Errorf("%w: failed to parse level: %v", ErrInvalidLevel, err)
			}
			if level.Name == "" {
				level.Name = id
			}
			if err := engine.ValidateLevel(&level); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
			}
			return &level, nil
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read level file: %w", err)
		}
	}

	level, err := engine.BuiltinLevel(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLevelNotFound, id)
	}
	return level, nil
}

// LevelIDs returns every loadable level id in ascending order
func (m *Manager) LevelIDs() ([]string, error) {
	seen := make(map[string]bool)
	for _, name := range engine.BuiltinLevelNames() {
		seen[name] = true
	}

	if m.levelDir != "" {
		entries, err := os.ReadDir(m.levelDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read level directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			seen[strings.TrimSuffix(entry.Name(), ".json")] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ListLevels returns information about all available levels
func (m *Manager) ListLevels() ([]*service.LevelInfo, error) {
	ids, err := m.LevelIDs()
	if err != nil {
		return nil, err
	}

	builtin := make(map[string]bool)
	for _, name := range engine.BuiltinLevelNames() {
		builtin[name] = true
	}

	levels := make([]*service.LevelInfo, 0, len(ids))
	for _, id := range ids {
		level, err := m.LoadLevel(id)
		if err != nil {
			// Skip invalid levels
			continue
		}

		width := 0
		if len(level.Layout) > 0 {
			width = len(level.Layout[0])
		}
		periodMs := level.PeriodMs
		if periodMs == 0 {
			periodMs = engine.DefaultPeriodMs
		}

		levels = append(levels, &service.LevelInfo{
			ID:          id,
			Name:        level.Name,
			Description: level.Description,
			Width:       width,
			Height:      len(level.Layout),
			PeriodMs:    periodMs,
			Builtin:     builtin[id] && !m.hasFile(id),
		})
	}

	return levels, nil
}

// SaveLevel validates a level and writes it to the level directory
func (m *Manager) SaveLevel(id string, level *engine.Level) error {
	if m.levelDir == "" {
		return ErrReadOnly
	}
	id = strings.TrimSuffix(id, ".json")
	if !levelIDPattern.MatchString(id) {
		return fmt.Errorf("%w: id %q must contain only letters, digits, '-' or '_'", ErrInvalidLevel, id)
	}

	if level != nil && level.Name == "" {
		level.Name = id
	}

	// Validate level before saving
	if err := engine.ValidateLevel(level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}

	data, err := json.MarshalIndent(level, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal level: %w", err)
	}

	if err := os.WriteFile(m.levelPath(id), data, 0644); err != nil {
		return fmt.Errorf("failed to write level file: %w", err)
	}

	// Update cache
	m.mu.Lock()
	m.levels[id] = level
	m.mu.Unlock()

	return nil
}

// RefreshCache drops every cached level so the next load reads from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = make(map[string]*engine.Level)
}

func (m *Manager) hasFile(id string) bool {
	if m.levelDir == "" {
		return false
	}
	_, err := os.Stat(m.levelPath(id))
	return err == nil
}

func (m *Manager) levelPath(id string) string {
	return filepath.Join(m.levelDir, id+".json")
}
