// Package service provides the business logic layer for the snake server.
//
// The service package implements:
//   - Multi-session game management
//   - Level listing, previews and storage
//   - Arrow-key and direction input per session
//   - Manual ticking and server-side game loops
//   - Leaderboard recording of finished games
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and persistence.
// LevelManager loads, lists and saves level definitions.
// ResultStore and Broadcaster are optional collaborators passed as options.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the harness. Every session owns a game handle and a key listener. A tick,
// manual or from the loop, goes through a harness.Driver attached to that
// handle, so the same state machine backs every client.
//
// Usage:
//
//	levels, _ := config.NewManager("levels")
//	sessions := session.NewManager()
//	svc := service.NewGameService(sessions, levels,
//		service.WithResults(scores.NewMemoryStore()),
//		service.WithBroadcaster(hub),
//	)
//
//	info, err := svc.CreateSession(ctx, "snake1")
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc.SendKey(ctx, info.ID, input.KeyRight)
//	frame, err := svc.Tick(ctx, info.ID)
//
// A session is either ticked by its client or running: StartSession hands it
// to a loop that ticks at the game's period until the snake dies or
// StopSession is called. Manual ticks are refused while the loop runs.
package service
