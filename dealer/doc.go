// Package dealer derives shared card indices from secrets that the peers
// committed to and then revealed, without a trusted coordinator.
//
// The revealed secrets are summed as big-endian integers. The sum modulo
// the deck size is the first candidate index; collisions with indices
// already dealt in the current epoch are resolved by a deterministic linear
// probe whose step is picked from a table of steps coprime with the deck
// size. Because every step is coprime with the deck size, the probe visits
// every index before repeating and always terminates.
//
// When every index of the deck has been dealt the DealtSet is full and the
// next Deal starts a new epoch with an empty set.
package dealer
