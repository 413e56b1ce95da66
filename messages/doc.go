// Package messages defines the payloads exchanged by fairdeal peers and the
// signed envelope they travel in. Envelopes are JSON encoded and signed with
// the ed25519 identity key announced in PublicKeyMsg.
package messages
