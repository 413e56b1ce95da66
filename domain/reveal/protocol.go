package reveal

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/luca-patrignani/fairdeal/dealer"
	"github.com/luca-patrignani/fairdeal/domain/deck"
	"github.com/luca-patrignani/fairdeal/ledger"
)

// Protocol hands out reveal rounds over the sealed deck of the current
// epoch. It is safe for concurrent use by distinct rounds.
type Protocol struct {
	mu     sync.Mutex
	rank   int
	deck   *deck.Deck
	dealer *dealer.Dealer
	active map[int]*Round
	chain  *ledger.Blockchain
	logger *slog.Logger
}

// Option configures a Protocol.
type Option func(*Protocol) error

// WithRank sets the rank of the local peer, written in ledger entries.
func WithRank(rank int) Option {
	return func(p *Protocol) error {
		p.rank = rank
		return nil
	}
}

// WithLedger records finished rounds in chain instead of a private one.
func WithLedger(chain *ledger.Blockchain) Option {
	return func(p *Protocol) error {
		if chain == nil {
			return errors.New("nil ledger")
		}
		p.chain = chain
		return nil
	}
}

// WithSteps sets the probe steps used when positions are dealt from
// committed secrets.
func WithSteps(steps ...int) Option {
	return func(p *Protocol) error {
		d, err := dealer.New(p.deck.Size, steps...)
		if err != nil {
			return err
		}
		p.dealer = d
		return nil
	}
}

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Protocol) error {
		p.logger = logger
		return nil
	}
}

// New starts the first epoch over the sealed deck d.
func New(d *deck.Deck, opts ...Option) (*Protocol, error) {
	if d == nil || !d.Sealed() {
		return nil, deck.ErrNotSealed
	}
	p := &Protocol{
		deck:   d,
		active: make(map[int]*Round),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.dealer == nil {
		var err error
		if p.dealer, err = dealer.New(d.Size); err != nil {
			return nil, err
		}
	}
	if p.chain == nil {
		var err error
		p.chain, err = ledger.NewBlockchain(EpochRecord{Size: d.Size, Order: d.Order})
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Deck returns the deck of the current epoch.
func (p *Protocol) Deck() *deck.Deck {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deck
}

// Ledger returns the audit log.
func (p *Protocol) Ledger() *ledger.Blockchain { return p.chain }

// Epoch returns the current epoch, starting at 0.
func (p *Protocol) Epoch() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dealer.Epoch()
}

// Exhausted reports whether every position was announced and no round is
// still running.
func (p *Protocol) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dealer.Exhausted() && len(p.active) == 0
}

// Used returns the positions announced in the current epoch, revealed or burned.
func (p *Protocol) Used() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dealer.Dealt()
}

// Begin starts a new round in state Pending.
func (p *Protocol) Begin() (*Round, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dealer.Exhausted() {
		return nil, ErrDeckExhausted
	}
	return &Round{
		ID:         uuid.New(),
		Epoch:      p.dealer.Epoch(),
		protocol:   p,
		deck:       p.deck,
		position:   -1,
		state:      Pending,
		verifiedBy: make(map[int]bool),
	}, nil
}

// Reveal starts a round and announces position.
func (p *Protocol) Reveal(position int) (*Round, error) {
	r, err := p.Begin()
	if err != nil {
		return nil, err
	}
	if err := r.Announce(position); err != nil {
		return nil, err
	}
	return r, nil
}

// Deal starts a round whose position is derived from the revealed secrets
// of every peer, skipping positions already used in this epoch.
func (p *Protocol) Deal(secrets ...[]byte) (*Round, dealer.Deal, error) {
	r, err := p.Begin()
	if err != nil {
		return nil, dealer.Deal{}, err
	}
	p.mu.Lock()
	if p.dealer.Exhausted() || r.Epoch != p.dealer.Epoch() {
		p.mu.Unlock()
		return nil, dealer.Deal{}, ErrDeckExhausted
	}
	deal, err := p.dealer.Deal(secrets...)
	if err == nil {
		p.active[deal.Index] = r
	}
	p.mu.Unlock()
	if err != nil {
		return nil, dealer.Deal{}, err
	}
	r.position = deal.Index
	r.state = IndexAnnounced
	p.logger.Debug("position dealt", "round", r.ID, "position", deal.Index, "step", deal.Step, "probes", deal.Probes)
	return r, deal, nil
}

func (p *Protocol) reserve(r *Round, position int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.Epoch != p.dealer.Epoch() || r.deck != p.deck {
		return fmt.Errorf("round %s belongs to epoch %d, current is %d", r.ID, r.Epoch, p.dealer.Epoch())
	}
	if p.dealer.Exhausted() {
		return ErrDeckExhausted
	}
	if position < 0 || position >= p.deck.Size {
		return fmt.Errorf("position %d out of range [0, %d)", position, p.deck.Size)
	}
	if p.dealer.Has(position) {
		return fmt.Errorf("position %d was already revealed in epoch %d", position, r.Epoch)
	}
	if err := p.dealer.Mark(position); err != nil {
		return err
	}
	p.active[position] = r
	p.logger.Debug("position announced", "round", r.ID, "position", position)
	return nil
}

// finish logs a round that reached a terminal state. Its position stays
// used: aborted positions are burned for the rest of the epoch.
func (p *Protocol) finish(r *Round) {
	p.mu.Lock()
	if p.active[r.position] == r {
		delete(p.active, r.position)
	}
	p.mu.Unlock()

	rec := r.Record()
	kind := KindReveal
	if r.state == Aborted {
		kind = KindAbort
		p.logger.Warn("reveal aborted", "round", r.ID, "position", r.position, "err", r.err)
	} else {
		p.logger.Debug("reveal cross verified", "round", r.ID, "position", r.position, "value", r.value)
	}
	if _, err := p.chain.Append(kind, p.rank, rec); err != nil {
		p.logger.Error("cannot record reveal", "round", r.ID, "err", err)
	}
}

// Reset starts a new epoch over a freshly shuffled and sealed deck of the
// same size. It fails while rounds of the current epoch are still running.
func (p *Protocol) Reset(d *deck.Deck) error {
	if d == nil || !d.Sealed() {
		return deck.ErrNotSealed
	}
	p.mu.Lock()
	if d.Size != p.deck.Size {
		p.mu.Unlock()
		return fmt.Errorf("new deck has %d cards, expected %d", d.Size, p.deck.Size)
	}
	if n := len(p.active); n > 0 {
		p.mu.Unlock()
		return fmt.Errorf("%d rounds still running", n)
	}
	p.deck = d
	p.dealer.Reset()
	epoch := p.dealer.Epoch()
	p.mu.Unlock()

	p.logger.Debug("new epoch", "epoch", epoch)
	_, err := p.chain.Append(KindEpoch, p.rank, EpochRecord{Epoch: epoch, Size: d.Size, Order: d.Order})
	return err
}

// Records returns the audit records of every finished round, across
// epochs, in the order they were written.
func (p *Protocol) Records() ([]Record, error) {
	var out []Record
	for _, b := range p.chain.Blocks() {
		if b.Kind != KindReveal && b.Kind != KindAbort {
			continue
		}
		var rec Record
		if err := b.Decode(&rec); err != nil {
			return nil, fmt.Errorf("block %d: %w", b.Index, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Lookup returns the record of position in the current epoch.
func (p *Protocol) Lookup(position int) (Record, bool, error) {
	records, err := p.Records()
	if err != nil {
		return Record{}, false, err
	}
	epoch := p.Epoch()
	for _, rec := range records {
		if rec.Epoch == epoch && rec.Position == position {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}
