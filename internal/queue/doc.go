// Package queue implements the bounded dispatch queue that sits between
// the connection read path and the dispatch worker.
//
// The queue:
//   - Is a fixed-capacity FIFO ring (no growth under load)
//   - Rejects the NEW item when full; older unprocessed items are kept
//   - Uses Close, not a poison pill, to terminate the consumer
package queue
