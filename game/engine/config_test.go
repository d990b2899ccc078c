package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   *Level
		wantErr string
	}{
		{
			name:  "valid walled level",
			level: &Level{Name: "ok", Layout: firstLevel},
		},
		{
			name:    "nil level",
			level:   nil,
			wantErr: "level is required",
		},
		{
			name:    "missing name",
			level:   &Level{Layout: firstLevel},
			wantErr: "name is required",
		},
		{
			name:    "too few rows",
			level:   &Level{Name: "small", Layout: []string{"hbf"}},
			wantErr: "layout must have between",
		},
		{
			name:    "ragged rows",
			level:   &Level{Name: "ragged", Layout: []string{"     ", "  h  ", "  b ", "  f  "}},
			wantErr: "must have 5 characters",
		},
		{
			name:    "invalid character",
			level:   &Level{Name: "bad", Layout: []string{"   ", "hbx", " f "}},
			wantErr: "invalid char 'x'",
		},
		{
			name:    "two heads",
			level:   &Level{Name: "twins", Layout: []string{"h  ", "hb ", " f "}},
			wantErr: "exactly one head",
		},
		{
			name:    "no food",
			level:   &Level{Name: "hungry", Layout: []string{"   ", "hb ", "   "}},
			wantErr: "exactly one food",
		},
		{
			name:    "no body",
			level:   &Level{Name: "headless", Layout: []string{"   ", "h  ", "  f"}},
			wantErr: "at least one body segment",
		},
		{
			name:    "negative period",
			level:   &Level{Name: "neg", Layout: firstLevel, PeriodMs: -1},
			wantErr: "must not be negative",
		},
		{
			name:    "floor above start",
			level:   &Level{Name: "floor", Layout: firstLevel, PeriodMs: 200, MinPeriodMs: 300},
			wantErr: "exceeds period_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLevel(tt.level)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	tests := map[string]Direction{
		"up":    Up,
		"DOWN":  Down,
		" left": Left,
		"right": Right,
		"0":     Up,
		"3":     Right,
	}
	for input, want := range tests {
		got, err := ParseDirection(input)
		if err != nil {
			t.Errorf("ParseDirection(%q) returned error: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDirection(%q) = %v, want %v", input, got, want)
		}
	}

	for _, input := range []string{"", "north", "4", "-1"} {
		if _, err := ParseDirection(input); err == nil {
			t.Errorf("ParseDirection(%q) expected error", input)
		}
	}
}

func TestDirectionCompatible(t *testing.T) {
	if Up.Compatible(Down) || Down.Compatible(Up) || Left.Compatible(Right) || Right.Compatible(Left) {
		t.Error("Expected opposite directions to be incompatible")
	}
	if !Up.Compatible(Left) || !Up.Compatible(Up) || !Right.Compatible(Down) {
		t.Error("Expected perpendicular and equal directions to be compatible")
	}
}

func TestLoadLevelFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.json")
	data := `{"name":"arena","layout":["#####","# h #","# b #","# f #","#####"],"period_ms":500}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write level file: %v", err)
	}

	level, err := LoadLevelFile(path)
	if err != nil {
		t.Fatalf("Failed to load level file: %v", err)
	}
	if level.Name != "arena" || level.PeriodMs != 500 {
		t.Errorf("Unexpected level loaded: %+v", level)
	}

	if _, err := DecodeLevel([]byte("{not json")); err == nil {
		t.Error("Expected error for malformed JSON")
	}
	if _, err := LoadLevelFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestBuiltinLevels(t *testing.T) {
	names := BuiltinLevelNames()
	if len(names) != 2 || names[0] != "snake1" || names[1] != "snake2" {
		t.Fatalf("Expected [snake1 snake2], got %v", names)
	}

	for _, name := range names {
		level, err := BuiltinLevel(name)
		if err != nil {
			t.Fatalf("BuiltinLevel(%q) failed: %v", name, err)
		}
		if err := ValidateLevel(level); err != nil {
			t.Errorf("Builtin level %q is invalid: %v", name, err)
		}
		level.Layout[0] = "mutated"
	}

	again, _ := BuiltinLevel("snake1")
	if again.Layout[0] == "mutated" {
		t.Error("Expected BuiltinLevel to return a copy")
	}

	if _, err := BuiltinLevel("nope"); err == nil {
		t.Error("Expected error for unknown builtin level")
	}
}
