package engine

import (
	"fmt"
	"sort"
)

var builtinLevels = map[string]*Level{
	"snake1": {
		Name:        "snake1",
		Description: "Walled arena",
		Layout: []string{
			"##########",
			"#        #",
			"#        #",
			"#   h    #",
			"#   b f  #",
			"##########",
		},
	},
	"snake2": {
		Name:        "snake2",
		Description: "Open field, edges wrap around",
		Layout: []string{
			"          ",
			"          ",
			"    h     ",
			"    b     ",
			"      f   ",
			"          ",
		},
	},
}

// BuiltinLevel returns a copy of a bundled level
func BuiltinLevel(name string) (*Level, error) {
	level, ok := builtinLevels[name]
	if !ok {
		return nil, fmt.Errorf("unknown level %q", name)
	}
	cp := *level
	cp.Layout = append([]string(nil), level.Layout...)
	return &cp, nil
}

// BuiltinLevelNames returns the bundled level names in sorted order
func BuiltinLevelNames() []string {
	names := make([]string, 0, len(builtinLevels))
	for name := range builtinLevels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
