package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// KindGenesis is the kind of the first block of every chain.
const KindGenesis = "genesis"

// ErrEmpty is returned when reading from a chain without blocks.
var ErrEmpty = errors.New("blockchain is empty")

// Blockchain is an append-only, hash chained log. It is safe for concurrent use.
type Blockchain struct {
	mu     sync.RWMutex
	blocks []Block
}

// NewBlockchain creates a chain whose genesis block carries genesis as payload.
// The genesis block has index 0 and previous hash "0".
func NewBlockchain(genesis any) (*Blockchain, error) {
	payload, err := json.Marshal(genesis)
	if err != nil {
		return nil, fmt.Errorf("encode genesis: %w", err)
	}
	block := Block{
		Index:     0,
		Timestamp: time.Now().Unix(),
		PrevHash:  "0",
		Kind:      KindGenesis,
		Peer:      -1,
		Payload:   payload,
	}
	block.Hash = calculateHash(block)
	return &Blockchain{blocks: []Block{block}}, nil
}

// Append encodes payload as JSON and chains it after the latest block.
func (bc *Blockchain) Append(kind string, peer int, payload any) (Block, error) {
	if kind == "" || kind == KindGenesis {
		return Block{}, fmt.Errorf("invalid block kind %q", kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Block{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	if len(bc.blocks) == 0 {
		return Block{}, ErrEmpty
	}
	latest := bc.blocks[len(bc.blocks)-1]
	block := Block{
		Index:     latest.Index + 1,
		Timestamp: time.Now().Unix(),
		PrevHash:  latest.Hash,
		Kind:      kind,
		Peer:      peer,
		Payload:   data,
	}
	block.Hash = calculateHash(block)
	if err := validateBlock(block, latest); err != nil {
		return Block{}, fmt.Errorf("invalid block: %w", err)
	}
	bc.blocks = append(bc.blocks, block)
	return block, nil
}

// Len returns the number of blocks, genesis included.
func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

// GetLatest returns the most recently added block.
func (bc *Blockchain) GetLatest() (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if len(bc.blocks) == 0 {
		return Block{}, ErrEmpty
	}
	return bc.blocks[len(bc.blocks)-1], nil
}

// GetByIndex retrieves a block by its index in the chain.
func (bc *Blockchain) GetByIndex(index int) (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if index < 0 || index >= len(bc.blocks) {
		return Block{}, fmt.Errorf("index %d out of range [0, %d)", index, len(bc.blocks))
	}
	return bc.blocks[index], nil
}

// Blocks returns a copy of the chain.
func (bc *Blockchain) Blocks() []Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return append([]Block(nil), bc.blocks...)
}

// Filter returns the blocks of the given kind in chain order.
func (bc *Blockchain) Filter(kind string) []Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	var out []Block
	for _, b := range bc.blocks {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}

// Verify checks the genesis block and the hash linkage of every block.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if len(bc.blocks) == 0 {
		return ErrEmpty
	}
	genesis := bc.blocks[0]
	if genesis.PrevHash != "0" || genesis.Index != 0 || genesis.Kind != KindGenesis {
		return errors.New("invalid genesis block")
	}
	if h := calculateHash(genesis); h != genesis.Hash {
		return fmt.Errorf("genesis hash: expected %s, got %s", h, genesis.Hash)
	}
	for i := 1; i < len(bc.blocks); i++ {
		if err := validateBlock(bc.blocks[i], bc.blocks[i-1]); err != nil {
			return fmt.Errorf("block %d invalid: %w", i, err)
		}
	}
	return nil
}

func validateBlock(current, previous Block) error {
	if current.Index != previous.Index+1 {
		return fmt.Errorf("invalid index: expected %d, got %d", previous.Index+1, current.Index)
	}
	if current.PrevHash != previous.Hash {
		return fmt.Errorf("invalid prev hash: expected %s, got %s", previous.Hash, current.PrevHash)
	}
	if h := calculateHash(current); current.Hash != h {
		return fmt.Errorf("invalid hash: expected %s, got %s", h, current.Hash)
	}
	return nil
}

// calculateHash hashes every field but Hash, each length prefixed so that no
// two blocks share an encoding.
func calculateHash(b Block) string {
	var buf bytes.Buffer
	for _, field := range []string{
		strconv.Itoa(b.Index),
		strconv.FormatInt(b.Timestamp, 10),
		b.PrevHash,
		b.Kind,
		strconv.Itoa(b.Peer),
		string(b.Payload),
	} {
		buf.WriteString(strconv.Itoa(len(field)))
		buf.WriteByte(':')
		buf.WriteString(field)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
