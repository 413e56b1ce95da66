package reveal

import "fmt"

// State is the stage reached by a Round.
type State int

const (
	Pending State = iota
	IndexAnnounced
	PadDisclosed
	Decrypted
	CrossVerified
	Aborted
)

var stateNames = map[State]string{
	Pending:        "pending",
	IndexAnnounced: "index-announced",
	PadDisclosed:   "pad-disclosed",
	Decrypted:      "decrypted",
	CrossVerified:  "cross-verified",
	Aborted:        "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == CrossVerified || s == Aborted }

func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("unknown state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
