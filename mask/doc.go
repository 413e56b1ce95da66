// Package mask hides encrypted card bytes behind one-time pads bound to the
// bytes they hide.
//
// Masking XORs the current card bytes with a fresh random pad and records a
// tag: a keyed BLAKE2b MAC over the unmasked bytes, keyed by a value
// derived from the pad with HKDF. When the pad is later disclosed, Unmask
// recomputes the tag over the recovered bytes and rejects any mismatch with
// an *IntegrityError. A peer that substitutes the masked bytes, or
// discloses a different pad, cannot produce a matching tag, so a forged
// ciphertext is caught before anyone tries to decrypt it.
//
// Masks stack: every shuffling peer adds its own layer, and layers are
// removed outermost first. Only the outermost tag is in clear. The tags
// below it are encrypted with a keystream derived from the outermost pad
// and covered by its MAC, so a masked card shares no bytes with the card
// it covers and a peer cannot follow its own output through later
// shuffles. Plain XOR masking without a tag is not part of the API.
package mask
