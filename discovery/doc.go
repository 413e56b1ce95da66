// Package discovery lets peers on the same machine find each other before a
// session starts. Every peer serves a small JSON advertisement of its
// transport address on a localhost port range and scans the range for the
// advertisements of the others.
package discovery
