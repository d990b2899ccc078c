package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wricardo/mcp-training/snakegame/game/board"
)

var ErrAlreadySelected = errors.New("level already selected")

// Preview is the static board shown for a level before play starts
type Preview struct {
	Name  string `json:"name"`
	Board string `json:"board"`
}

// Chooser lists levels and resolves a single selection
type Chooser struct {
	engine Engine
	glyphs board.Glyphs

	mu       sync.Mutex
	known    map[string]bool
	selected string
}

func NewChooser(eng Engine, glyphs board.Glyphs) *Chooser {
	return &Chooser{engine: eng, glyphs: glyphs}
}

// Previews renders one board per level, sorted by name. Each preview comes
// from a dedicated game handle that is never ticked.
func (c *Chooser) Previews() ([]Preview, error) {
	levels, err := c.engine.Levels()
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}

	names := sortedNames(levels)
	previews := make([]Preview, 0, len(names))
	for _, name := range names {
		h, err := c.engine.CreateGame(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create preview for %s: %w", name, err)
		}
		previews = append(previews, Preview{Name: name, Board: RenderHandle(h, c.glyphs)})
	}

	c.mu.Lock()
	c.known = make(map[string]bool, len(names))
	for _, name := range names {
		c.known[name] = true
	}
	c.mu.Unlock()

	return previews, nil
}

// Select resolves the click on a level. Only the first valid click counts.
func (c *Chooser) Select(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected != "" {
		return "", ErrAlreadySelected
	}
	if c.known == nil {
		levels, err := c.engine.Levels()
		if err != nil {
			return "", err
		}
		c.known = make(map[string]bool, len(levels))
		for n := range levels {
			c.known[n] = true
		}
	}
	if len(c.known) == 0 {
		return "", ErrNoLevels
	}
	if !c.known[name] {
		return "", fmt.Errorf("%w: %s", ErrUnknownLevel, name)
	}
	c.selected = name
	return name, nil
}

// Selected returns the resolved level, or "" before a selection
func (c *Chooser) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Wait consumes clicks until one resolves to a known level. Unknown names
// are skipped. It returns ErrNoLevels straight away when there is nothing to
// choose from.
func (c *Chooser) Wait(ctx context.Context, clicks <-chan string) (string, error) {
	levels, err := c.engine.Levels()
	if err != nil {
		return "", err
	}
	if len(levels) == 0 {
		return "", ErrNoLevels
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case name, ok := <-clicks:
			if !ok {
				return "", errors.New("click source closed before a selection")
			}
			selected, err := c.Select(name)
			if errors.Is(err, ErrUnknownLevel) {
				continue
			}
			return selected, err
		}
	}
}

// RenderHandle draws the handle's current snapshot without ticking it
func RenderHandle(h Handle, glyphs board.Glyphs) string {
	dim := h.Dim()
	snap := h.Snapshot()
	return board.RenderGrid(dim[0], dim[1], snap.Snake, snap.Food, board.NewWallSet(h.Walls()), glyphs)
}
