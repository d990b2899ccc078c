package engine

// indexToPoint converts a board index into a coordinate
func indexToPoint(index, width int) Point {
	return Point{X: index % width, Y: index / width}
}

// pointToIndex converts a coordinate into a board index
func pointToIndex(p Point, width int) int {
	return p.Y*width + p.X
}

// FlattenPoints returns a flat alternating x,y sequence
func FlattenPoints(points []Point) []int {
	flat := make([]int, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// CountCells counts the cells of a given type on the board
func CountCells(board []Cell, cell Cell) int {
	count := 0
	for _, c := range board {
		if c == cell {
			count++
		}
	}
	return count
}

// wrap returns v moved by delta inside [0, size)
func wrap(v, delta, size int) int {
	v = (v + delta) % size
	if v < 0 {
		v += size
	}
	return v
}
