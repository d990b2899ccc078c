// Package autopilot steers a snake toward the food.
//
// A Board is built once per level from its layout. Next runs a breadth-first
// search from the head over cells that are neither wall nor body, wrapping
// at the edges the way the engine does, and returns the first step of the
// shortest path. When the food cannot be reached it picks any move that
// survives the next step.
package autopilot

import (
	"github.com/wricardo/mcp-training/snakegame/game/engine"
)

var directions = []engine.Direction{engine.Up, engine.Down, engine.Left, engine.Right}

// Board is the static part of a level
type Board struct {
	Width  int
	Height int
	walls  map[engine.Point]bool
}

// NewBoard reads walls from a layout, bottom row first like the engine
func NewBoard(layout []string) *Board {
	b := &Board{Height: len(layout), walls: make(map[engine.Point]bool)}
	if len(layout) > 0 {
		b.Width = len(layout[0])
	}
	for row, line := range layout {
		y := len(layout) - 1 - row
		for x, c := range line {
			if c == engine.WallChar {
				b.walls[engine.Point{X: x, Y: y}] = true
			}
		}
	}
	return b
}

// NewBoardFromWalls builds a board from a flat x,y wall sequence
func NewBoardFromWalls(width, height int, walls []int) *Board {
	b := &Board{Width: width, Height: height, walls: make(map[engine.Point]bool)}
	for i := 0; i+1 < len(walls); i += 2 {
		b.walls[engine.Point{X: walls[i], Y: walls[i+1]}] = true
	}
	return b
}

// step moves p one cell in d with wrap-around
func (b *Board) step(p engine.Point, d engine.Direction) engine.Point {
	switch d {
	case engine.Up:
		p.Y = (p.Y + 1) % b.Height
	case engine.Down:
		p.Y = (p.Y - 1 + b.Height) % b.Height
	case engine.Right:
		p.X = (p.X + 1) % b.Width
	case engine.Left:
		p.X = (p.X - 1 + b.Width) % b.Width
	}
	return p
}

// blocked returns the cells a head may not enter: walls plus the body
func (b *Board) blocked(snake []int) map[engine.Point]bool {
	out := make(map[engine.Point]bool, len(b.walls)+len(snake)/2)
	for p := range b.walls {
		out[p] = true
	}
	for i := 0; i+1 < len(snake)-2; i += 2 {
		out[engine.Point{X: snake[i], Y: snake[i+1]}] = true
	}
	return out
}

func head(snake []int) (engine.Point, bool) {
	n := len(snake)
	if n < 2 {
		return engine.Point{}, false
	}
	return engine.Point{X: snake[n-2], Y: snake[n-1]}, true
}

// search returns the first direction and length of the shortest path from
// the head to food, or ok=false when there is none. The first step never
// reverses current.
func (b *Board) search(snake []int, food [2]int, current engine.Direction) (first engine.Direction, length int, ok bool) {
	start, hasHead := head(snake)
	if !hasHead || b.Width == 0 || b.Height == 0 {
		return current, 0, false
	}
	goal := engine.Point{X: food[0], Y: food[1]}
	blocked := b.blocked(snake)

	type item struct {
		pos   engine.Point
		first engine.Direction
		dist  int
	}

	visited := map[engine.Point]bool{start: true}
	var queue []item
	for _, d := range directions {
		if !current.Compatible(d) {
			continue
		}
		next := b.step(start, d)
		if blocked[next] || visited[next] {
			continue
		}
		if next == goal {
			return d, 1, true
		}
		visited[next] = true
		queue = append(queue, item{pos: next, first: d, dist: 1})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, d := range directions {
			next := b.step(cur.pos, d)
			if blocked[next] || visited[next] {
				continue
			}
			if next == goal {
				return cur.first, cur.dist + 1, true
			}
			visited[next] = true
			queue = append(queue, item{pos: next, first: cur.first, dist: cur.dist + 1})
		}
	}
	return current, 0, false
}

// Next returns the direction to send before the next tick
func (b *Board) Next(snake []int, food [2]int, current engine.Direction) engine.Direction {
	if d, _, ok := b.search(snake, food, current); ok {
		return d
	}

	start, hasHead := head(snake)
	if !hasHead {
		return current
	}
	blocked := b.blocked(snake)
	if !blocked[b.step(start, current)] {
		return current
	}
	for _, d := range directions {
		if current.Compatible(d) && !blocked[b.step(start, d)] {
			return d
		}
	}
	return current
}

// Distance returns the number of steps from the head to the food
func (b *Board) Distance(snake []int, food [2]int, current engine.Direction) (int, bool) {
	_, n, ok := b.search(snake, food, current)
	return n, ok
}
