// Package engine provides the snake simulation behind the game harness.
//
// The engine package implements the game mechanics including:
//   - Level parsing from a character layout
//   - Snake movement with wrap-around on both axes
//   - Wall, self and food collisions
//   - Score and tick period (speed) management
//   - Game state export and restore for persistence
//
// Core Types:
//
// Game is an opaque handle created from a Level. Snapshot is the read-only
// result of a tick. Direction is the integer code the harness forwards from
// the keyboard (up=0, down=1, left=2, right=3).
//
// Usage:
//
//	level, _ := engine.BuiltinLevel("snake1")
//	game, err := engine.NewGame(level)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	snap := game.Tick(engine.Left)
//	if reason := snap.DieReason(); reason != "" {
//		fmt.Println("game over:", reason)
//	}
//
// Coordinates:
//
// Layout rows are written top-down but the last row is y=0, so the origin is
// the bottom-left cell and moving up increases y.
package engine
