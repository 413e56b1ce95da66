// Package commitment implements hash commitments used to bind a peer to a
// secret before it is disclosed.
//
// A Commitment is created "open", holding only the digest of the secret.
// When the owner discloses the secret, Reveal checks it against the digest
// and closes the commitment. A failed Reveal is a protocol violation by the
// peer that produced the commitment: the round it belongs to must be
// aborted and never retried with the same commitment.
//
// Binding and hiding are delegated to the hash function. Secrets are
// fixed-width random values (NewSecret) and therefore act as their own salt.
package commitment
