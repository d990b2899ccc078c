package engine

// snake keeps the body as a ring: index points at the segment that was most
// recently the head, and the slot after it is the tail that moves next.
type snake struct {
	head  Point
	body  []Point
	index int
}

// move advances the body then the head, growing by one segment when asked
func (s *snake) move(direction Direction, grow bool, width, height int) Point {
	s.moveBody(grow)
	s.moveHead(direction, width, height)
	return s.head
}

// contains reports whether p is covered by the head or any body segment
func (s *snake) contains(p Point) bool {
	return s.head == p || s.onBody(p)
}

// onBody reports whether p is covered by a body segment
func (s *snake) onBody(p Point) bool {
	for _, b := range s.body {
		if b == p {
			return true
		}
	}
	return false
}

func (s *snake) moveBody(grow bool) {
	if grow {
		s.body = append(s.body, s.body[s.index])
	}

	next := (s.index + 1) % len(s.body)
	s.body[next] = s.head
	s.index = next
}

func (s *snake) moveHead(direction Direction, width, height int) {
	switch direction {
	case Up:
		s.head.Y = wrap(s.head.Y, 1, height)
	case Down:
		s.head.Y = wrap(s.head.Y, -1, height)
	case Right:
		s.head.X = wrap(s.head.X, 1, width)
	case Left:
		s.head.X = wrap(s.head.X, -1, width)
	}
}

// segments returns the body in ring order followed by the head
func (s *snake) segments() []Point {
	out := make([]Point, 0, len(s.body)+1)
	out = append(out, s.body...)
	return append(out, s.head)
}
