// Package input turns arrow key presses into movement directions.
//
// Keys can arrive as DOM keyCodes (websocket and REST clients), DOM key
// names, or raw ANSI escape sequences read from a terminal. Every source
// funnels into a Listener whose current direction is read by the game loop.
package input

import (
	"strings"
	"sync/atomic"

	"github.com/wricardo/mcp-training/snakegame/game/engine"
)

// Key is a decoded arrow key
type Key int

const (
	KeyUnknown Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
)

// DOM keyCodes for the arrow keys
const (
	CodeLeft  = 37
	CodeUp    = 38
	CodeRight = 39
	CodeDown  = 40
)

// String returns the DOM key name
func (k Key) String() string {
	switch k {
	case KeyUp:
		return "ArrowUp"
	case KeyDown:
		return "ArrowDown"
	case KeyLeft:
		return "ArrowLeft"
	case KeyRight:
		return "ArrowRight"
	}
	return "Unknown"
}

// Direction maps the key to its movement code.
// ok is false for KeyUnknown.
func (k Key) Direction() (dir engine.Direction, ok bool) {
	switch k {
	case KeyUp:
		return engine.Up, true
	case KeyDown:
		return engine.Down, true
	case KeyLeft:
		return engine.Left, true
	case KeyRight:
		return engine.Right, true
	}
	return engine.Up, false
}

// FromCode decodes a DOM keyCode
func FromCode(code int) Key {
	switch code {
	case CodeUp:
		return KeyUp
	case CodeDown:
		return KeyDown
	case CodeLeft:
		return KeyLeft
	case CodeRight:
		return KeyRight
	}
	return KeyUnknown
}

// FromName decodes a DOM key name such as "ArrowDown". The short forms
// "up", "down", "left" and "right" are accepted too.
func FromName(name string) Key {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "arrow")
	switch n {
	case "up":
		return KeyUp
	case "down":
		return KeyDown
	case "left":
		return KeyLeft
	case "right":
		return KeyRight
	}
	return KeyUnknown
}

// DecodeTerminal reads one key from the start of buf. consumed is the number
// of bytes that belong to the key, so callers can advance past it; it is 0
// when buf holds an incomplete escape sequence and more input is needed.
func DecodeTerminal(buf []byte) (key Key, consumed int) {
	if len(buf) == 0 {
		return KeyUnknown, 0
	}
	if buf[0] != 0x1b {
		return KeyUnknown, 1
	}
	// A second ESC starts a new sequence; the first was a lone Escape press
	if len(buf) > 1 && buf[1] == 0x1b {
		return KeyUnknown, 1
	}
	if len(buf) < 3 {
		if len(buf) == 2 && buf[1] != '[' && buf[1] != 'O' {
			return KeyUnknown, 2
		}
		return KeyUnknown, 0
	}
	if buf[1] != '[' && buf[1] != 'O' {
		return KeyUnknown, 2
	}
	switch buf[2] {
	case 'A':
		return KeyUp, 3
	case 'B':
		return KeyDown, 3
	case 'C':
		return KeyRight, 3
	case 'D':
		return KeyLeft, 3
	}
	return KeyUnknown, 3
}

// Listener holds the most recently pressed direction. The zero value is
// ready to use and reports Up. Safe for concurrent use.
type Listener struct {
	dir atomic.Int32
}

// NewListener returns a listener positioned at Up
func NewListener() *Listener {
	return &Listener{}
}

// Handle records the key's direction. It returns false when the key is not
// an arrow key, in which case the current direction is left untouched.
func (l *Listener) Handle(k Key) bool {
	dir, ok := k.Direction()
	if !ok {
		return false
	}
	l.dir.Store(int32(dir))
	return true
}

// HandleCode is Handle for a DOM keyCode
func (l *Listener) HandleCode(code int) bool {
	return l.Handle(FromCode(code))
}

// HandleName is Handle for a DOM key name
func (l *Listener) HandleName(name string) bool {
	return l.Handle(FromName(name))
}

// Set overwrites the direction directly
func (l *Listener) Set(dir engine.Direction) {
	if dir.Valid() {
		l.dir.Store(int32(dir))
	}
}

// Direction returns the last recorded direction
func (l *Listener) Direction() engine.Direction {
	return engine.Direction(l.dir.Load())
}
