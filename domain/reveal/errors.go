package reveal

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDeckExhausted signals that every position of the current deck has been
// announced. It is not a failure: the caller shuffles a new deck and calls
// Protocol.Reset.
var ErrDeckExhausted = errors.New("deck exhausted, a new epoch is required")

// CrossVerificationError reports a reveal that disagrees with the private
// record of the peer of rank Rank. It is treated as detected cheating.
type CrossVerificationError struct {
	Position int
	Rank     int
	Err      error
}

func (e *CrossVerificationError) Error() string {
	return fmt.Sprintf("cross verification of position %d failed for peer %d: %v", e.Position, e.Rank, e.Err)
}

func (e *CrossVerificationError) Unwrap() error { return e.Err }

// AbortError is returned by every operation that aborts a round. Peer is
// the rank of the peer held responsible, or -1 when the failing check
// cannot tell.
type AbortError struct {
	RoundID  uuid.UUID
	Position int
	Peer     int
	State    State
	Err      error
}

func (e *AbortError) Error() string {
	if e.Peer >= 0 {
		return fmt.Sprintf("round %s aborted at position %d while %s, blaming peer %d: %v", e.RoundID, e.Position, e.State, e.Peer, e.Err)
	}
	return fmt.Sprintf("round %s aborted at position %d while %s: %v", e.RoundID, e.Position, e.State, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }
