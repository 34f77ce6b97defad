// Package queue persists the matching pipeline's work items in SQLite.
//
// Each incoming file gets one Item that tracks its lifecycle from pending
// through matching to a terminal state, along with the recorded decision,
// the chosen scene identifier, and the serialized match artifact. The Store
// applies WAL journaling, retries busy errors with backoff, and refuses to
// open databases whose schema version it does not understand.
package queue
