// Package harness drives a snake engine for presentation.
//
// The engine is an injected capability: Engine lists levels and creates
// games, Handle exposes snapshot and tick. LocalEngine adapts the engine
// package to that contract; tests substitute stubs.
//
// A Chooser renders one preview per level and resolves a single selection.
// A Driver then runs the game loop as a state machine:
//
//	choosing --Start--> running --die reason--> ended
//
// Each cycle ticks with the listener's current direction, renders the board
// and reports the score to a Display. The loop is timed by a Clock whose
// ticker is replaced whenever the engine reports a different period.
package harness
