// Command analyze prints quick, human-readable heuristics about the levels
// served from a levels directory (default "levels") plus the built-in ones:
// dimensions, wall density, which edges wrap, and how far the first food is
// from the head.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wricardo/mcp-training/snakegame/game/autopilot"
	"github.com/wricardo/mcp-training/snakegame/game/config"
	"github.com/wricardo/mcp-training/snakegame/game/engine"
	"github.com/wricardo/mcp-training/snakegame/game/harness"
)

// Analysis holds the heuristics for one level
type Analysis struct {
	Name      string
	Width     int
	Height    int
	Walls     int
	OpenCells int
	// WrapEdges lists the edge pairs the snake can pass through
	WrapEdges    []string
	FoodDistance int
	Reachable    bool
}

// WallDensity is the share of cells that are walls
func (a *Analysis) WallDensity() float64 {
	if a.Width*a.Height == 0 {
		return 0
	}
	return float64(a.Walls) / float64(a.Width*a.Height)
}

func analyzeLevel(level *engine.Level) (*Analysis, error) {
	game, err := engine.NewGame(level)
	if err != nil {
		return nil, err
	}
	handle := harness.NewGameHandle(game)
	dim := handle.Dim()

	a := &Analysis{
		Name:   level.Name,
		Width:  dim[0],
		Height: dim[1],
		Walls:  len(handle.Walls()) / 2,
	}
	a.OpenCells = a.Width*a.Height - a.Walls

	layout := level.Layout
	for _, row := range layout {
		if row[0] != engine.WallChar && row[len(row)-1] != engine.WallChar {
			a.WrapEdges = append(a.WrapEdges, "left/right")
			break
		}
	}
	top, bottom := layout[0], layout[len(layout)-1]
	for x := range top {
		if top[x] != engine.WallChar && bottom[x] != engine.WallChar {
			a.WrapEdges = append(a.WrapEdges, "top/bottom")
			break
		}
	}

	snap := handle.Snapshot()
	board := autopilot.NewBoardFromWalls(a.Width, a.Height, handle.Walls())
	a.FoodDistance, a.Reachable = board.Distance(snap.Snake, snap.Food, engine.Up)

	return a, nil
}

func printAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Grid Size: %d x %d\n", a.Width, a.Height)
	fmt.Fprintf(w, "Walls: %d (%.0f%%)\n", a.Walls, a.WallDensity()*100)
	fmt.Fprintf(w, "Open Cells: %d\n", a.OpenCells)

	if len(a.WrapEdges) > 0 {
		fmt.Fprintf(w, "Wraps: %s\n", strings.Join(a.WrapEdges, ", "))
	} else {
		fmt.Fprintf(w, "Wraps: none, fully walled\n")
	}

	if a.Reachable {
		fmt.Fprintf(w, "✅ First food is %d steps from the head\n", a.FoodDistance)
	} else {
		fmt.Fprintf(w, "⚠️  CRITICAL: first food is unreachable from the head\n")
	}
}

func run(w io.Writer, levelDir string) error {
	if _, err := os.Stat(levelDir); os.IsNotExist(err) {
		levelDir = ""
	}
	levels, err := config.NewManager(levelDir)
	if err != nil {
		return err
	}
	ids, err := levels.LevelIDs()
	if err != nil {
		return err
	}

	for _, id := range ids {
		fmt.Fprintf(w, "\n=== Analyzing %s ===\n", id)
		level, err := levels.LoadLevel(id)
		if err != nil {
			fmt.Fprintf(w, "Error loading level: %v\n", err)
			continue
		}
		a, err := analyzeLevel(level)
		if err != nil {
			fmt.Fprintf(w, "Error analyzing level: %v\n", err)
			continue
		}
		printAnalysis(w, a)
	}
	return nil
}

func main() {
	levelDir := "levels"
	if len(os.Args) > 1 {
		levelDir = os.Args[1]
	}
	if err := run(os.Stdout, levelDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
