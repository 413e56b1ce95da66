package ledger

import "encoding/json"

// Block is a single entry of the audit log.
type Block struct {
	Index     int             `json:"index"`
	Timestamp int64           `json:"timestamp"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
	Kind      string          `json:"kind"`
	Peer      int             `json:"peer"` // rank of the peer that wrote the entry
	Payload   json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload of the block into v.
func (b Block) Decode(v any) error {
	return json.Unmarshal(b.Payload, v)
}
