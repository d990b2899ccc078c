package engine

import (
	"encoding/json"
	"fmt"
	"os"
)

// parsedLevel is the board extracted from a layout
type parsedLevel struct {
	width, height int
	board         []Cell
	head          Point
	body          []Point
	food          Point
}

// ValidateLevel validates a level definition for correctness and playability
func ValidateLevel(level *Level) error {
	if level == nil {
		return fmt.Errorf("level validation: level is required")
	}
	if level.Name == "" {
		return fmt.Errorf("level validation: name is required")
	}
	if level.PeriodMs < 0 || level.SpeedupMs < 0 || level.MinPeriodMs < 0 {
		return fmt.Errorf("level validation: period settings must not be negative")
	}
	if level.PeriodMs > 0 && level.MinPeriodMs > level.PeriodMs {
		return fmt.Errorf("level validation: min_period_ms (%d) exceeds period_ms (%d)", level.MinPeriodMs, level.PeriodMs)
	}
	_, err := parseLayout(level.Layout)
	return err
}

// parseLayout reads the layout bottom row first, so the last row is y=0
func parseLayout(layout []string) (*parsedLevel, error) {
	height := len(layout)
	if height < MinLevelSize || height > MaxLevelSize {
		return nil, fmt.Errorf("level validation: layout must have between %d and %d rows, got %d", MinLevelSize, MaxLevelSize, height)
	}
	width := len(layout[0])
	if width < MinLevelSize || width > MaxLevelSize {
		return nil, fmt.Errorf("level validation: rows must have between %d and %d characters, got %d", MinLevelSize, MaxLevelSize, width)
	}

	p := &parsedLevel{
		width:  width,
		height: height,
		board:  make([]Cell, 0, width*height),
	}
	heads, foods := 0, 0

	i := 0
	for row := height - 1; row >= 0; row-- {
		line := layout[row]
		if len(line) != width {
			return nil, fmt.Errorf("level validation: row %d must have %d characters, got %d", height-row, width, len(line))
		}
		for _, c := range line {
			switch c {
			case WallChar:
				p.board = append(p.board, Wall)
			case EmptyChar:
				p.board = append(p.board, Empty)
			case HeadChar:
				p.head = indexToPoint(i, width)
				heads++
				p.board = append(p.board, Empty)
			case BodyChar:
				p.body = append(p.body, indexToPoint(i, width))
				p.board = append(p.board, Empty)
			case FoodChar:
				p.food = indexToPoint(i, width)
				foods++
				p.board = append(p.board, Empty)
			default:
				return nil, fmt.Errorf("invalid char %q at %d", c, i)
			}
			i++
		}
	}

	if heads != 1 {
		return nil, fmt.Errorf("level validation: layout must contain exactly one head (h), got %d", heads)
	}
	if foods != 1 {
		return nil, fmt.Errorf("level validation: layout must contain exactly one food (f), got %d", foods)
	}
	if len(p.body) == 0 {
		return nil, fmt.Errorf("level validation: layout must contain at least one body segment (b)")
	}

	return p, nil
}

// LoadLevelFile loads a level definition from a JSON file
func LoadLevelFile(filename string) (*Level, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return DecodeLevel(data)
}

// DecodeLevel parses and validates a JSON level definition
func DecodeLevel(data []byte) (*Level, error) {
	var level Level
	if err := json.Unmarshal(data, &level); err != nil {
		return nil, fmt.Errorf("failed to parse level: %w", err)
	}
	if err := ValidateLevel(&level); err != nil {
		return nil, err
	}
	return &level, nil
}

// periodMs returns the configured starting period with defaults applied
func (l *Level) periodMs() int {
	if l.PeriodMs > 0 {
		return l.PeriodMs
	}
	return DefaultPeriodMs
}

// minPeriodMs returns the configured period floor with defaults applied
func (l *Level) minPeriodMs() int {
	if l.MinPeriodMs > 0 {
		return l.MinPeriodMs
	}
	if l.periodMs() < DefaultMinPeriodMs {
		return l.periodMs()
	}
	return DefaultMinPeriodMs
}
