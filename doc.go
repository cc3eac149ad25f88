// Package streamfeed implements a managed subscription client for a
// real-time market-data feed delivered over a persistent WebSocket.
//
// The client:
//   - Maps caller subscriptions to canonical channel keys and fans
//     updates out to every callback registered for a key
//   - Dispatches from a bounded queue that drops (and counts) new
//     messages when the consumer falls behind
//   - Sends periodic keep-alive pings while connected
//   - Reconnects with exponential backoff after unexpected disconnects
//     and replays all active subscriptions on the new session
package streamfeed
