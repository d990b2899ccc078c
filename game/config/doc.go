// Package config provides the level catalogue for the snake game.
//
// The built-in levels (snake1, snake2) are always available. A level
// directory may add more as JSON files named <id>.json, each holding an
// engine.Level:
//
//	{
//	  "name": "arena",
//	  "layout": ["#####", "# h #", "# b #", "# f #", "#####"],
//	  "period_ms": 500,
//	  "speedup_ms": 25
//	}
//
// A file whose id matches a built-in overrides it.
//
// Usage:
//
//	manager, err := config.NewManager("levels")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	level, err := manager.LoadLevel("arena")
//	levels, err := manager.ListLevels()
//
// Loaded levels are cached; RefreshCache forces the next load to hit disk.
package config
