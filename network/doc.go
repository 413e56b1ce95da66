// Package network provides the peer to peer transport used by a fairdeal
// session. It implements broadcast and all-to-all exchanges over HTTP (or
// HTTPS) with synchronization barriers.
//
// # Core Components
//
// Peer: node that posts and receives byte payloads. It satisfies the
// session.NetworkLayer interface directly.
//
// GenerateSelfSignedCert and CertPool: material for the mutually
// authenticated HTTPS mode enabled by WithTLS.
//
// # Communication Patterns
//
// Broadcast: the peer with rank root sends data to every other peer.
//
// AllToAll: every peer sends data to every other peer; the result is
// indexed by sender rank.
//
// # Synchronization
//
// Every exchange is tagged with a logical clock, so a payload is only
// accepted by a peer taking part in the same exchange. Broadcast ends with a
// barrier: no peer leaves it before every peer has entered it.
package network
