// Package recorder persists received feed updates to Postgres.
//
// The recorder registers as an ordinary data callback on the feed
// client, accumulates rows in memory, and flushes them in batches when
// the batch fills or the flush interval elapses. Payload bodies are
// stored as JSONB since channel payload schemas are opaque to the
// client.
package recorder
