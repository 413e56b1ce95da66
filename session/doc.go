// Package session runs the fairdeal protocols between networked peers.
//
// A Session wraps a NetworkLayer and executes, in lock step on every peer:
// the exchange of card and identity keys, committed index deals, the
// construction of a shuffled deck and the public reveal of its cards.
// Every exchange completes on every peer even after a local failure: errors
// travel inside the messages, so all peers abort the same round together.
package session
