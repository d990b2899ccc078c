// Package websocket streams snake frames to browsers and takes their key presses.
//
// A central Hub owns the per-session client sets and runs a single event loop;
// every client has a read pump and a write pump goroutine.
//
// Message Protocol:
//
//   - Outgoing: {"session_id":"ab12","event":"frame","frame":{...}} after every tick,
//     or {"event":"error","error":"..."} when a key could not be applied
//   - Incoming: {"key":"ArrowDown"} or {"code":40}
//
// Clients pick their session with ?session=ab12 when connecting. The hub
// implements service.Broadcaster, so running sessions push frames here.
//
// Usage:
//
//	hub := websocket.NewHub(func(ctx context.Context, id string, k input.Key) error {
//		_, err := svc.SendKey(ctx, id, k)
//		return err
//	})
//	go hub.Run(ctx)
package websocket
