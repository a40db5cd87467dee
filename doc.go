// Package driftdb is a client driver for the DriftDB document database.
//
// Ownership boundary:
// - connection handshake and authentication (internal/handshake, internal/scram)
// - token-multiplexed request/response framing (internal/wire)
// - term serialization and response decoding (internal/codec, term)
// - cursor continuation over streamed result batches
//
// Connection pooling, retry policy, and the fluent query-builder
// surface live above this package; they consume Connect, Run, and
// Cursor only.
package driftdb
