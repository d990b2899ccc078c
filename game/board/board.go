// Package board renders snake snapshots into character grids.
//
// Rendering is a pure function of its inputs. Each cell is classified by
// priority head > body > food > wall > empty, and rows are emitted from the
// top (y = height-1) down to y = 0 so the engine's bottom-left origin ends up
// on the last line.
package board

import (
	"fmt"
	"strings"
)

// Glyphs defines the text used for each cell class
type Glyphs struct {
	Head  string `json:"head"`
	Body  string `json:"body"`
	Food  string `json:"food"`
	Wall  string `json:"wall"`
	Empty string `json:"empty"`
}

var (
	// ASCII matches the layout legend
	ASCII = Glyphs{Head: "h", Body: "b", Food: "f", Wall: "#", Empty: " "}

	// Emoji is the decorated set
	Emoji = Glyphs{Head: "🅾️", Body: "❎", Food: "🍒", Wall: "🧱", Empty: "⬛"}
)

// GlyphsByName resolves "ascii" (default) or "emoji"
func GlyphsByName(name string) (Glyphs, error) {
	switch strings.ToLower(name) {
	case "", "ascii", "text":
		return ASCII, nil
	case "emoji":
		return Emoji, nil
	}
	return ASCII, fmt.Errorf("unknown glyph set %q", name)
}

// WallSet is a wall lookup keyed by "x-y", derived once per game
type WallSet map[string]bool

// NewWallSet builds a lookup from a flat alternating x,y sequence.
// A trailing odd value is ignored.
func NewWallSet(flat []int) WallSet {
	walls := make(WallSet, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		walls[key(flat[i], flat[i+1])] = true
	}
	return walls
}

// Has reports whether the cell is a wall
func (w WallSet) Has(x, y int) bool {
	return w[key(x, y)]
}

func key(x, y int) string {
	return fmt.Sprintf("%d-%d", x, y)
}

// Frame is everything the renderer reads from one snapshot
type Frame struct {
	Width  int
	Height int
	// Snake is a flat x,y sequence with the head as the last pair
	Snake []int
	Food  [2]int
	Walls WallSet
}

// Render maps a frame to a grid, one line per row terminated by a newline
func Render(frame Frame, glyphs Glyphs) string {
	return RenderGrid(frame.Width, frame.Height, frame.Snake, frame.Food, frame.Walls, glyphs)
}

// RenderGrid is Render with the frame fields passed one by one
func RenderGrid(width, height int, snake []int, food [2]int, walls WallSet, glyphs Glyphs) string {
	headX, headY, hasHead := -1, -1, false
	if n := len(snake); n >= 2 {
		headX, headY, hasHead = snake[n-2], snake[n-1], true
	}

	body := make(map[string]bool, len(snake)/2)
	for i := 0; i+1 < len(snake)-2; i += 2 {
		body[key(snake[i], snake[i+1])] = true
	}

	var sb strings.Builder
	for y := height - 1; y >= 0; y-- {
		for x := 0; x < width; x++ {
			switch {
			case hasHead && x == headX && y == headY:
				sb.WriteString(glyphs.Head)
			case body[key(x, y)]:
				sb.WriteString(glyphs.Body)
			case food[0] == x && food[1] == y:
				sb.WriteString(glyphs.Food)
			case walls.Has(x, y):
				sb.WriteString(glyphs.Wall)
			default:
				sb.WriteString(glyphs.Empty)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
