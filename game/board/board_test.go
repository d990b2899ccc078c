package board

import (
	"reflect"
	"strings"
	"testing"
)

func TestRenderGrid_HeadBeatsBody(t *testing.T) {
	// body segment and head share (1,1)
	snake := []int{1, 0, 1, 1, 1, 1}
	out := RenderGrid(3, 3, snake, [2]int{2, 2}, nil, ASCII)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if lines[1][1] != 'h' {
		t.Errorf("Expected head glyph at (1,1), got %q in\n%s", lines[1][1], out)
	}
}

func TestRenderGrid_Priority(t *testing.T) {
	walls := NewWallSet([]int{0, 0, 1, 0, 2, 0})
	// food sits on a wall cell, body sits on a wall cell
	snake := []int{2, 0, 2, 1}
	out := RenderGrid(3, 2, snake, [2]int{1, 0}, walls, ASCII)

	want := "  h\n#fb\n"
	if out != want {
		t.Errorf("Expected %q, got %q", want, out)
	}
}

func TestRenderGrid_RowOrder(t *testing.T) {
	out := RenderGrid(2, 3, []int{1, 2, 1, 1}, [2]int{0, 0}, nil, ASCII)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[2], "f") {
		t.Errorf("Expected food on the last line, got %q", out)
	}
	if lines[0] != " b" || lines[1] != " h" {
		t.Errorf("Unexpected rows %q", lines)
	}
}

func TestRender_Idempotent(t *testing.T) {
	frame := Frame{
		Width:  10,
		Height: 6,
		Snake:  []int{4, 2, 4, 3},
		Food:   [2]int{6, 1},
		Walls:  NewWallSet([]int{0, 0, 9, 0, 0, 5, 9, 5}),
	}
	snakeBefore := append([]int(nil), frame.Snake...)

	first := Render(frame, ASCII)
	second := Render(frame, ASCII)

	if first != second {
		t.Errorf("Expected identical renders, got\n%q\n%q", first, second)
	}
	if !reflect.DeepEqual(frame.Snake, snakeBefore) {
		t.Error("Render mutated the snake slice")
	}
}

func TestRenderGrid_EmptySnake(t *testing.T) {
	out := RenderGrid(2, 2, nil, [2]int{-1, -1}, nil, ASCII)
	if out != "  \n  \n" {
		t.Errorf("Expected blank board, got %q", out)
	}
}

func TestRenderGrid_Emoji(t *testing.T) {
	out := RenderGrid(2, 1, []int{0, 0, 1, 0}, [2]int{5, 5}, nil, Emoji)
	if out != Emoji.Body+Emoji.Head+"\n" {
		t.Errorf("Unexpected emoji render %q", out)
	}
}

func TestNewWallSet(t *testing.T) {
	walls := NewWallSet([]int{1, 2, 3, 4, 5})
	if !walls.Has(1, 2) || !walls.Has(3, 4) {
		t.Error("Expected both wall pairs present")
	}
	if walls.Has(2, 1) {
		t.Error("Expected coordinates not to be swapped")
	}
	if len(walls) != 2 {
		t.Errorf("Expected trailing odd value ignored, got %d walls", len(walls))
	}
}

func TestGlyphsByName(t *testing.T) {
	if g, err := GlyphsByName(""); err != nil || g != ASCII {
		t.Errorf("Expected ASCII default, got %+v, %v", g, err)
	}
	if g, err := GlyphsByName("EMOJI"); err != nil || g != Emoji {
		t.Errorf("Expected emoji set, got %+v, %v", g, err)
	}
	if _, err := GlyphsByName("braille"); err == nil {
		t.Error("Expected error for unknown glyph set")
	}
}
