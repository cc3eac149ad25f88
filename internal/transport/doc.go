// Package transport wraps a single WebSocket session.
//
// A Conn:
//   - Dials the endpoint and owns the underlying connection
//   - Serializes writes and applies a write deadline
//   - Runs one read loop, delivering raw frames on Frames()
//   - Reports read failures on Errors() and stops
//
// Keep-alive, subscription state, and reconnection live above this
// package; a Conn is created per session and discarded on disconnect.
package transport
