// Package api provides the HTTP REST API for the snake server.
//
// Endpoints:
//
// Levels:
//   - GET /api/levels - List levels
//   - POST /api/levels - Save a level {"id","layout",...}
//   - GET /api/levels/previews?glyphs=ascii|emoji - Initial board of every level
//   - GET /api/levels/{id} - Level definition
//
// Sessions:
//   - POST /api/sessions - Create a session {"level":"snake1"}
//   - GET /api/sessions?sort=created|accessed&order=asc|desc&limit=N
//   - GET /api/sessions/{id}, DELETE /api/sessions/{id}
//
// Play:
//   - POST /api/sessions/{id}/key - {"key":"ArrowLeft"} or {"code":37}
//   - POST /api/sessions/{id}/direction - {"direction":"left"} or {"direction":"2"}
//   - POST /api/sessions/{id}/tick - Advance one step
//   - POST /api/sessions/{id}/start, /stop - Server-side game loop
//   - GET /api/sessions/{id}/board?glyphs=emoji&format=text
//
// Results:
//   - GET /api/leaderboard/{level}?limit=N, GET /api/leaderboard for all levels
//
// Other:
//   - GET /ws?session={id} - WebSocket frames and key input
//   - GET /healthz
//
// Errors are JSON {"error": "..."}: 404 for unknown sessions or levels, 400 for
// bad bodies, keys and levels, 409 when a tick conflicts with a running loop
// or a finished game.
package api
