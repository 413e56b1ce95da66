// Package cardcipher wraps public key encryption of single card values.
//
// A card value is encoded on one byte, so every ciphertext produced under a
// given key has the same length and leaks nothing through its size. Only
// the owner of a KeyPair can decrypt: the private half never leaves the
// KeyPair value, and the public half travels as opaque bytes.
//
// Two schemes are available: ECIES over a kyber group (the default, on
// Ed25519) and RSA-OAEP with a configurable modulus of at least 2048 bits.
package cardcipher
