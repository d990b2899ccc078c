// Package terminal plays snake in a text terminal.
//
// Play lists the level previews, reads a selection line, then switches the
// terminal to raw mode and runs the game loop with arrow keys from stdin.
// Press q or Ctrl-C to quit.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/wricardo/mcp-training/snakegame/game/board"
	"github.com/wricardo/mcp-training/snakegame/game/harness"
	"github.com/wricardo/mcp-training/snakegame/game/input"
)

const (
	clearScreen = "\x1b[H\x1b[2J"
	ctrlC       = 0x03
)

// Display writes frames to a terminal. Lines end in \r\n so output stays
// aligned in raw mode.
type Display struct {
	mu  sync.Mutex
	out io.Writer
}

// NewDisplay creates a display writing to out
func NewDisplay(out io.Writer) *Display {
	return &Display{out: out}
}

func (d *Display) ShowBoard(frame string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	io.WriteString(d.out, clearScreen+crlf(frame))
}

func (d *Display) ShowScore(score int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "Score: %d\r\n", score)
}

func (d *Display) AppendStatus(status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "Game over: died %s\r\n", status)
}

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// ReadKeys feeds arrow keys from r into keys until r fails or q / Ctrl-C is
// read, in which case quit is called. Escape sequences split across reads are
// reassembled.
func ReadKeys(r io.Reader, keys *input.Listener, quit func()) error {
	buf := make([]byte, 64)
	var pending []byte
	for {
		n, err := r.Read(buf)
		pending = append(pending, buf[:n]...)

		for len(pending) > 0 {
			if pending[0] == 'q' || pending[0] == ctrlC {
				quit()
				return nil
			}
			key, consumed := input.DecodeTerminal(pending)
			if consumed == 0 {
				break
			}
			keys.Handle(key)
			pending = pending[consumed:]
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

type options struct {
	glyphs board.Glyphs
	clock  harness.Clock
}

// Option configures Play
type Option func(*options)

// WithGlyphs sets the glyphs used for previews and the board
func WithGlyphs(g board.Glyphs) Option {
	return func(o *options) { o.glyphs = g }
}

// WithClock replaces the game loop clock
func WithClock(c harness.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Play runs one game on eng: choose a level from in, then play it to the
// end. When in is a terminal it is put in raw mode for the game and restored
// afterwards.
func Play(ctx context.Context, eng harness.Engine, in io.Reader, out io.Writer, opts ...Option) error {
	o := options{glyphs: board.ASCII}
	for _, opt := range opts {
		opt(&o)
	}

	eng.Init()
	chooser := harness.NewChooser(eng, o.glyphs)
	previews, err := chooser.Previews()
	if err != nil {
		return err
	}

	for i, p := range previews {
		fmt.Fprintf(out, "%d) %s\n%s\n", i+1, p.Name, p.Board)
	}

	reader := bufio.NewReader(in)
	level, err := choose(reader, out, chooser, previews)
	if err != nil {
		return err
	}
	log.Debug().Str("level", level).Msg("Level selected")

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(int(f.Fd()), state)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	driverOpts := []harness.Option{harness.WithGlyphs(o.glyphs)}
	if o.clock != nil {
		driverOpts = append(driverOpts, harness.WithClock(o.clock))
	}
	driver, err := harness.NewDriver(eng, NewDisplay(out), driverOpts...)
	if err != nil {
		return err
	}

	go func() {
		if err := ReadKeys(reader, driver.Keys(), cancel); err != nil {
			log.Debug().Err(err).Msg("Key reader stopped")
		}
	}()

	err = driver.Play(ctx, level)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// choose reads lines until one names a level, by number or by name
func choose(r *bufio.Reader, out io.Writer, chooser *harness.Chooser, previews []harness.Preview) (string, error) {
	for {
		fmt.Fprintf(out, "Choose a level [1-%d]: ", len(previews))
		line, err := r.ReadString('\n')
		choice := strings.TrimSpace(line)
		if n, convErr := strconv.Atoi(choice); convErr == nil && n >= 1 && n <= len(previews) {
			choice = previews[n-1].Name
		}

		if choice != "" {
			level, selErr := chooser.Select(choice)
			if selErr == nil {
				return level, nil
			}
			if !errors.Is(selErr, harness.ErrUnknownLevel) {
				return "", selErr
			}
			fmt.Fprintf(out, "Unknown level %q\n", choice)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New("no level selected")
			}
			return "", err
		}
	}
}
