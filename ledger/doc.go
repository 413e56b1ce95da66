// Package ledger implements the append-only audit log kept by every peer.
//
// # Core Components
//
// Blockchain: an append-only log with hash chaining for tamper detection.
//
// Block: a single entry, carrying a kind, the rank of the peer that wrote it
// and a JSON payload (a reveal record, an index deal, an abort).
//
// # Usage
//
// Create a blockchain with a genesis payload describing the session, then
// append entries as reveals complete. Verify can be called at any time to
// check that no entry was modified after being written.
package ledger
