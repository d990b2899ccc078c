// Package mcp exposes the snake REST API as Model Context Protocol tools.
//
// Client holds an MCP server whose tool handlers call the REST API over HTTP,
// so an agent talking MCP over stdio plays the same sessions a browser sees.
//
// MCP Tools:
//   - list_levels, preview_levels: level catalogue and starting boards
//   - create_session, list_sessions, get_session
//   - get_board: current board without advancing
//   - send_key: arrow key press, applied on the next tick
//   - tick: one or more steps, stopping when the snake dies
//   - start_session, stop_session: server-side real-time loop
//   - leaderboard: best finished games
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
