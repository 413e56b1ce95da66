package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/luca-patrignani/fairdeal/cardcipher"
	"github.com/luca-patrignani/fairdeal/commitment"
	"github.com/luca-patrignani/fairdeal/dealer"
	"github.com/luca-patrignani/fairdeal/domain/deck"
	"github.com/luca-patrignani/fairdeal/domain/reveal"
	"github.com/luca-patrignani/fairdeal/ledger"
	"github.com/luca-patrignani/fairdeal/mask"
	"github.com/luca-patrignani/fairdeal/messages"
)

// NetworkLayer abstracts the peer to peer transport.
type NetworkLayer interface {
	// Broadcast sends data from the peer with rank root to every peer.
	Broadcast(data []byte, root int) ([]byte, error)
	// AllToAll sends data to every peer and returns what each rank sent.
	AllToAll(data []byte) ([][]byte, error)
	GetRank() int
	GetPeerCount() int
	Close() error
}

// PeerInfo holds what a peer announced during the key exchange.
type PeerInfo struct {
	Key      []byte
	Identity ed25519.PublicKey
}

// Session is the state of one peer taking part in a game.
type Session struct {
	ID string

	net        NetworkLayer
	rank       int
	cipher     cardcipher.KeyedCipher
	key        *cardcipher.KeyPair
	identity   ed25519.PrivateKey
	peers      map[int]PeerInfo
	seq        uint64
	scheme     commitment.Scheme
	secretSize int
	batchSize  int
	batch      *commitment.Batch
	peerBatch  map[int][]*commitment.Commitment
	deckSize   int
	steps      []int
	dealer     *dealer.Dealer
	chain      *ledger.Blockchain
	logger     *slog.Logger

	deck      *deck.Deck
	record    *deck.Record
	recipient int
	protocol  *reveal.Protocol

	// tamper alters the cards this peer sends after its shuffle stage.
	tamper func(cards []mask.MaskedCard)
}

// Option configures a Session.
type Option func(*Session)

// WithScheme sets the commitment hash.
func WithScheme(scheme commitment.Scheme) Option {
	return func(s *Session) { s.scheme = scheme }
}

// WithSecretSize sets the size in bytes of committed secrets.
func WithSecretSize(size int) Option {
	return func(s *Session) { s.secretSize = size }
}

// WithBatch makes every peer commit to size secrets at once and reveal one
// per deal. Zero commits to one secret per deal.
func WithBatch(size int) Option {
	return func(s *Session) { s.batchSize = size }
}

// WithDeckSize sets the number of cards; 52 by default.
func WithDeckSize(size int) Option {
	return func(s *Session) { s.deckSize = size }
}

// WithSteps sets the probe steps of the index dealer.
func WithSteps(steps ...int) Option {
	return func(s *Session) { s.steps = append([]int(nil), steps...) }
}

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// New creates the session of the local peer. Keys are exchanged by
// ExchangeKeys, which every peer must call first.
func New(net NetworkLayer, c cardcipher.KeyedCipher, opts ...Option) (*Session, error) {
	s := &Session{
		net:        net,
		rank:       net.GetRank(),
		cipher:     c,
		scheme:     commitment.SHA256,
		secretSize: commitment.DefaultSecretSize,
		deckSize:   52,
		logger:     slog.Default(),
		recipient:  -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if net.GetPeerCount() < 2 {
		return nil, fmt.Errorf("a session needs at least 2 peers, got %d", net.GetPeerCount())
	}
	if s.secretSize < commitment.MinSecretSize {
		return nil, fmt.Errorf("secret size %d below the minimum of %d bytes", s.secretSize, commitment.MinSecretSize)
	}
	if _, err := s.scheme.New(); err != nil {
		return nil, err
	}
	if s.batchSize < 0 {
		return nil, fmt.Errorf("negative batch size %d", s.batchSize)
	}
	var err error
	if s.dealer, err = dealer.New(s.deckSize, s.steps...); err != nil {
		return nil, err
	}
	s.steps = s.dealer.Steps()
	s.logger = s.logger.With("rank", s.rank)
	return s, nil
}

// Rank returns the rank of the local peer.
func (s *Session) Rank() int { return s.rank }

// Peers returns the information announced by every peer, the local one included.
func (s *Session) Peers() map[int]PeerInfo {
	out := make(map[int]PeerInfo, len(s.peers))
	for k, v := range s.peers {
		out[k] = v
	}
	return out
}

// Ledger returns the audit log of the session.
func (s *Session) Ledger() *ledger.Blockchain { return s.chain }

// Dealer returns the index dealer used by DealIndex.
func (s *Session) Dealer() *dealer.Dealer { return s.dealer }

// Close closes the network layer.
func (s *Session) Close() error { return s.net.Close() }

type genesis struct {
	Session  string `json:"session"`
	Peers    int    `json:"peers"`
	Cipher   string `json:"cipher"`
	Scheme   string `json:"scheme"`
	DeckSize int    `json:"deck_size"`
	Steps    []int  `json:"steps"`
}

// ExchangeKeys agrees on the session identifier, generates the card key
// pair and the identity key of this peer and collects those of every peer.
// Each PublicKeyMsg is signed with the identity key it announces.
func (s *Session) ExchangeKeys() error {
	var id []byte
	if s.rank == 0 {
		id = []byte(uuid.New().String())
	}
	recv, err := s.net.Broadcast(id, 0)
	if err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	if _, err := uuid.Parse(string(recv)); err != nil {
		return fmt.Errorf("session id from peer 0: %w", err)
	}
	s.ID = string(recv)
	s.seq = 0

	kp, err := s.cipher.GenerateKey()
	if err != nil {
		return err
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	s.key, s.identity = kp, priv

	msg := messages.PublicKeyMsg{KeyBytes: kp.Public, Cipher: s.cipher.Name(), Identity: pub}
	peers := make(map[int]PeerInfo)
	err = s.allToAll(messages.TypePublicKey, msg, func(rank int, data []byte) error {
		e, err := messages.Unmarshal(data)
		if err != nil {
			return err
		}
		var m messages.PublicKeyMsg
		if err := e.Decode(messages.TypePublicKey, &m); err != nil {
			return err
		}
		if err := messages.Open(data, m.Identity, s.ID, s.seq, rank, messages.TypePublicKey, &m); err != nil {
			return err
		}
		if m.Cipher != s.cipher.Name() {
			return fmt.Errorf("peer %d uses cipher %s, expected %s", rank, m.Cipher, s.cipher.Name())
		}
		if _, err := s.cipher.CiphertextSize(m.KeyBytes); err != nil {
			return fmt.Errorf("peer %d announced an invalid key: %w", rank, err)
		}
		peers[rank] = PeerInfo{Key: m.KeyBytes, Identity: m.Identity}
		return nil
	})
	if err != nil {
		return fmt.Errorf("key exchange: %w", err)
	}
	peers[s.rank] = PeerInfo{Key: kp.Public, Identity: pub}
	s.peers = peers

	s.chain, err = ledger.NewBlockchain(genesis{
		Session:  s.ID,
		Peers:    s.net.GetPeerCount(),
		Cipher:   s.cipher.Name(),
		Scheme:   string(s.scheme),
		DeckSize: s.deckSize,
		Steps:    s.steps,
	})
	if err != nil {
		return err
	}
	s.logger.Debug("keys exchanged", "session", s.ID, "peers", len(peers))
	return nil
}

func (s *Session) seal(t messages.Type, payload any) ([]byte, error) {
	e, err := messages.NewEnvelope(t, s.ID, s.seq, s.rank, payload)
	if err != nil {
		return nil, err
	}
	if err := e.Sign(s.identity); err != nil {
		return nil, err
	}
	return e.Marshal()
}

func (s *Session) ready() error {
	if s.peers == nil {
		return errors.New("keys have not been exchanged")
	}
	return nil
}

// allToAll sends payload to every peer and hands the data received from
// each other rank to handle. Every handler runs even if a previous one
// failed; their errors are joined.
func (s *Session) allToAll(t messages.Type, payload any, handle func(rank int, data []byte) error) error {
	s.seq++
	data, err := s.seal(t, payload)
	if err != nil {
		return err
	}
	recv, err := s.net.AllToAll(data)
	if err != nil {
		return err
	}
	var errs []error
	for _, rank := range s.others() {
		if rank >= len(recv) {
			errs = append(errs, fmt.Errorf("no %s message from peer %d", t, rank))
			continue
		}
		if err := handle(rank, recv[rank]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// broadcast sends payload from root and returns the raw envelope on every
// peer. A root that cannot encode its payload still takes part with an
// empty message, so that the other peers do not hang.
func (s *Session) broadcast(t messages.Type, root int, payload any) ([]byte, error) {
	s.seq++
	var data []byte
	if root == s.rank {
		var err error
		if data, err = s.seal(t, payload); err != nil {
			s.logger.Error("cannot encode message", "type", t, "err", err)
		}
	}
	return s.net.Broadcast(data, root)
}

// open checks and decodes an envelope sent by rank in the current exchange.
func (s *Session) open(data []byte, rank int, t messages.Type, v any) error {
	return messages.Open(data, s.peers[rank].Identity, s.ID, s.seq, rank, t, v)
}

func (s *Session) others() []int {
	var out []int
	for i := 0; i < s.net.GetPeerCount(); i++ {
		if i != s.rank {
			out = append(out, i)
		}
	}
	return out
}

// verify agrees on the outcome of a step: every peer reports whether it
// succeeded locally and the step fails everywhere if it failed anywhere.
func (s *Session) verify(position int, local error) error {
	msg := messages.VerdictMsg{Position: position, OK: local == nil}
	if local != nil {
		msg.Reason = local.Error()
	}
	errs := []error{local}
	err := s.allToAll(messages.TypeVerdict, msg, func(rank int, data []byte) error {
		var v messages.VerdictMsg
		if err := s.open(data, rank, messages.TypeVerdict, &v); err != nil {
			return err
		}
		if !v.OK {
			return fmt.Errorf("peer %d: %s", rank, v.Reason)
		}
		return nil
	})
	errs = append(errs, err)
	return errors.Join(errs...)
}

// stageOrder returns the shuffle order for a deck dealt to recipient: every
// rank once, starting right after the recipient so that the recipient
// never opens the chain.
func stageOrder(n, recipient int) []int {
	order := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		order = append(order, (recipient+i)%n)
	}
	return order
}
