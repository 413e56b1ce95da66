// Package deck builds the shared masked deck, one shuffling peer at a time.
//
// The deck has a designated recipient, the peer owning the key the cards
// are encrypted under, and a fixed turn order of shuffling peers. The
// opening stage permutes the plain card values, encrypts each of them under
// the recipient's public key and masks every ciphertext. Each following
// stage permutes the masked cards it received and adds its own mask layer.
// Once the last stage has run the deck is sealed and becomes read-only.
//
// Every stage keeps a private Record of the permutation and pads it applied.
// Records are never sent whole: during a reveal each stage discloses the pad
// and source position for the single position being opened, and later uses
// its record to cross-check what the other peers disclosed.
package deck
