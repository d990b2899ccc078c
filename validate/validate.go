// Command validate checks snake level JSON files in a directory (default
// ../levels). For each file it checks:
//   - JSON structure and a name (the file name is used when it is missing)
//   - Rectangular rows and allowed characters (#, space, h, b, f)
//   - Exactly one head (h), exactly one food (f) and at least one body segment (b)
//   - Non-negative speed settings
//   - Reachability: the food can be reached from the head over non-wall cells,
//     wrapping around the board edges the way the snake does
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/snakegame/game/engine"
)

// ValidationResult holds the outcome for one file. Lines starting with ✓ are
// informational.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateLevel loads and checks a single level file.
func validateLevel(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var level engine.Level
	if err := json.Unmarshal(data, &level); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}
	if level.Name == "" {
		level.Name = strings.TrimSuffix(result.File, filepath.Ext(result.File))
	}

	if len(level.Layout) == 0 {
		result.fail("Layout is empty")
		return result
	}
	if len(level.Layout) < engine.MinLevelSize || len(level.Layout) > engine.MaxLevelSize {
		result.fail("Layout must have between %d and %d rows, got %d", engine.MinLevelSize, engine.MaxLevelSize, len(level.Layout))
	}

	width := len(level.Layout[0])
	if width < engine.MinLevelSize || width > engine.MaxLevelSize {
		result.fail("Rows must have between %d and %d characters, got %d", engine.MinLevelSize, engine.MaxLevelSize, width)
	}

	counts := map[rune]int{}
	for i, row := range level.Layout {
		if len(row) != width {
			result.fail("Row %d has %d characters, expected %d", i+1, len(row), width)
		}
		for j, c := range row {
			switch c {
			case engine.WallChar, engine.EmptyChar, engine.HeadChar, engine.BodyChar, engine.FoodChar:
				counts[c]++
			default:
				result.fail("Invalid character %q at row %d, column %d", c, i+1, j+1)
			}
		}
	}

	if counts[engine.HeadChar] != 1 {
		result.fail("Layout must contain exactly one head (h), found %d", counts[engine.HeadChar])
	}
	if counts[engine.FoodChar] != 1 {
		result.fail("Layout must contain exactly one food (f), found %d", counts[engine.FoodChar])
	}
	if counts[engine.BodyChar] == 0 {
		result.fail("Layout must contain at least one body segment (b)")
	}

	if level.PeriodMs < 0 || level.SpeedupMs < 0 || level.MinPeriodMs < 0 {
		result.fail("period_ms, speedup_ms and min_period_ms must not be negative")
	}

	// The engine has the final say on anything not covered above
	if result.Valid {
		if err := engine.ValidateLevel(&level); err != nil {
			result.fail("%v", err)
		}
	}

	if result.Valid {
		reach := validateConnectivity(level.Layout)
		if !reach.Valid {
			result.Valid = false
		}
		result.Errors = append(result.Errors, reach.Errors...)
	}

	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", level.Name))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d", width, len(level.Layout)))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Walls: %d", counts[engine.WallChar]))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Snake length: %d", counts[engine.BodyChar]+1))
		if level.PeriodMs > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("✓ Period: %dms", level.PeriodMs))
		} else {
			result.Errors = append(result.Errors, fmt.Sprintf("✓ Period: %dms (default)", engine.DefaultPeriodMs))
		}
	}

	return result
}

// validateConnectivity flood-fills from the head over non-wall cells, wrapping
// at the edges, and reports whether the food was reached.
func validateConnectivity(layout []string) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Errors: []string{},
	}

	if len(layout) == 0 || len(layout[0]) == 0 {
		result.fail("Cannot validate connectivity: empty layout")
		return result
	}

	height := len(layout)
	width := len(layout[0])

	var head, food []int
	for y := 0; y < height; y++ {
		for x := 0; x < width && x < len(layout[y]); x++ {
			switch layout[y][x] {
			case engine.HeadChar:
				head = []int{x, y}
			case engine.FoodChar:
				food = []int{x, y}
			}
		}
	}

	if head == nil {
		result.fail("No head found for connectivity test")
		return result
	}
	if food == nil {
		result.fail("No food found for connectivity test")
		return result
	}

	passable := func(x, y int) bool {
		return x < len(layout[y]) && layout[y][x] != engine.WallChar
	}

	visited := make([]bool, width*height)
	visited[head[1]*width+head[0]] = true
	queue := [][]int{head}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dir := range [][]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nx := (current[0] + dir[0] + width) % width
			ny := (current[1] + dir[1] + height) % height
			if visited[ny*width+nx] || !passable(nx, ny) {
				continue
			}
			visited[ny*width+nx] = true
			queue = append(queue, []int{nx, ny})
		}
	}

	reachable := 0
	for _, v := range visited {
		if v {
			reachable++
		}
	}

	if !visited[food[1]*width+food[0]] {
		result.fail("Connectivity failure: food at row %d, column %d is unreachable from the head", food[1]+1, food[0]+1)
		return result
	}

	result.Errors = append(result.Errors, fmt.Sprintf("✓ Connectivity: food reachable, %d cells open to the snake", reachable))
	return result
}

// main validates every *.json file in the directory given as the first
// argument and exits non-zero if any is invalid.
func main() {
	levelDir := "../levels"
	if len(os.Args) > 1 {
		levelDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(levelDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding level files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No level files found in %s\n", levelDir)
		return
	}

	allValid := true
	for _, file := range files {
		result := validateLevel(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All levels are valid!")
	} else {
		fmt.Println("❌ Some levels have errors")
		os.Exit(1)
	}
}
