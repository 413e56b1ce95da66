// Package reveal drives the reveal of single cards of a sealed deck.
//
// Every reveal is a Round moving through
//
//	Pending -> IndexAnnounced -> PadDisclosed -> Decrypted -> CrossVerified
//
// or ending in Aborted from any non terminal state. A Protocol owns the
// sealed deck of the current epoch, hands out rounds, burns every announced
// position (revealed or aborted) and records each finished round in a
// ledger.Blockchain. Once every position has been announced, no further
// round starts until Reset installs a freshly shuffled deck.
package reveal
