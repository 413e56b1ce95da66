package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	headerClock  = "Fairdeal-Clock"
	headerSender = "Fairdeal-Sender"
	retryDelay   = 20 * time.Millisecond
)

// Peer is an helper struct for communication between nodes.
// The Rank is an identifier of the Peer.
// Addresses[i] contains the address to reach the Peer with Rank i.
type Peer struct {
	Rank      int
	Addresses map[int]string
	clock     uint64
	server    *http.Server
	handler   *broadcastHandler
	timeout   time.Duration
	client    *http.Client
	scheme    string
	tlsConfig *tls.Config
	logger    *slog.Logger
}

// Option configures a Peer built by NewPeerWithOptions.
type Option func(*Peer)

// WithTimeout bounds every exchange; zero waits forever.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Peer) { p.timeout = timeout }
}

// WithTLS serves cert and trusts only the certificates in pool, for both
// server and client authentication.
func WithTLS(cert tls.Certificate, pool *x509.CertPool) Option {
	return func(p *Peer) {
		p.tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      pool,
			ClientCAs:    pool,
			ClientAuth:   tls.RequireAndVerifyClientCert,
		}
		p.scheme = "https"
	}
}

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Peer) { p.logger = logger }
}

// NewPeer starts a plain HTTP peer serving on l.
func NewPeer(rank int, addresses map[int]string, l net.Listener, timeout time.Duration) *Peer {
	return NewPeerWithOptions(rank, addresses, l, WithTimeout(timeout))
}

// NewPeerWithOptions starts a peer serving on l.
func NewPeerWithOptions(rank int, addresses map[int]string, l net.Listener, opts ...Option) *Peer {
	handler := &broadcastHandler{
		contentChannel: make(chan []byte),
		errChannel:     make(chan error),
	}
	p := &Peer{
		Rank:      rank,
		Addresses: copyMap(addresses),
		handler:   handler,
		scheme:    "http",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = &http.Client{Timeout: p.timeout}
	if p.tlsConfig != nil {
		p.client.Transport = &http.Transport{TLSClientConfig: p.tlsConfig}
		l = tls.NewListener(l, p.tlsConfig)
	}
	p.server = &http.Server{Addr: addresses[rank], Handler: handler}
	go func() {
		err := p.server.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("peer server stopped", "rank", rank, "err", err)
		}
	}()
	return p
}

// GetRank returns the rank of the local peer.
func (p *Peer) GetRank() int { return p.Rank }

// GetPeerCount returns the number of peers, the local one included.
func (p *Peer) GetPeerCount() int { return len(p.Addresses) }

// GetAddresses returns a copy of the address book.
func (p *Peer) GetAddresses() map[int]string { return copyMap(p.Addresses) }

// Close stops the server of the peer.
func (p *Peer) Close() error {
	return p.server.Shutdown(context.Background())
}

type broadcastHandler struct {
	active         atomic.Bool
	clock          atomic.Uint64
	root           atomic.Int64
	contentChannel chan []byte
	errChannel     chan error
}

func (h *broadcastHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	if !h.active.Load() {
		rw.WriteHeader(http.StatusNotAcceptable)
		return
	}
	senderClock, err := strconv.ParseUint(req.Header.Get(headerClock), 10, 64)
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	sender, err := strconv.ParseInt(req.Header.Get(headerSender), 10, 64)
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	if senderClock != h.clock.Load() || sender != h.root.Load() {
		rw.WriteHeader(http.StatusNotAcceptable)
		return
	}
	content, err := io.ReadAll(req.Body)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		h.errChannel <- fmt.Errorf("from handler: %w", err)
		return
	}
	if !h.active.CompareAndSwap(true, false) {
		rw.WriteHeader(http.StatusNotAcceptable)
		return
	}
	h.contentChannel <- content
	rw.WriteHeader(http.StatusAccepted)
}

// Broadcast sends bufferSend from the peer with rank root to every node
// and returns the value sent by root. It implicitly synchronizes the peers.
func (p *Peer) Broadcast(bufferSend []byte, root int) ([]byte, error) {
	bufferRecv, err := p.broadcastNoBarrier(bufferSend, root)
	if err != nil {
		return nil, err
	}
	if err := p.barrier(); err != nil {
		return nil, err
	}
	return bufferRecv, nil
}

// AllToAll sends bufferSend to every node. bufferRecv[i] contains the value
// sent by the peer with rank i.
func (p *Peer) AllToAll(bufferSend []byte) (bufferRecv [][]byte, err error) {
	ranks := p.ranks()
	if len(ranks) == 0 {
		return nil, errors.New("no addresses found")
	}
	bufferRecv = make([][]byte, ranks[len(ranks)-1]+1)
	for _, i := range ranks {
		recv, err := p.broadcastNoBarrier(bufferSend, i)
		if err != nil {
			return nil, err
		}
		bufferRecv[i] = recv
	}
	return bufferRecv, nil
}

// barrier guarantees that no peer leaves it until every peer has entered it.
func (p *Peer) barrier() error {
	_, err := p.AllToAll(nil)
	return err
}

func (p *Peer) ranks() []int {
	ranks := make([]int, 0, len(p.Addresses))
	for k := range p.Addresses {
		ranks = append(ranks, k)
	}
	slices.Sort(ranks)
	return ranks
}

func (p *Peer) post(rank int, body []byte) error {
	url := p.scheme + "://" + p.Addresses[rank]
	start := time.Now()
	for {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set(headerClock, strconv.FormatUint(p.clock, 10))
		req.Header.Set(headerSender, strconv.Itoa(p.Rank))
		resp, err := p.client.Do(req)
		if err == nil {
			status := resp.StatusCode
			if cerr := resp.Body.Close(); cerr != nil {
				return cerr
			}
			if status == http.StatusAccepted {
				return nil
			}
			err = fmt.Errorf("peer %d answered with status code %d", rank, status)
		}
		if p.timeout > 0 && time.Since(start) > p.timeout {
			return fmt.Errorf("connection attempts to peer %d timed out: %w", rank, err)
		}
		time.Sleep(retryDelay)
	}
}

// broadcastNoBarrier sends bufferSend from root to every node without
// waiting for the others to complete the exchange.
func (p *Peer) broadcastNoBarrier(bufferSend []byte, root int) ([]byte, error) {
	p.clock++
	if root == p.Rank {
		for _, i := range p.ranks() {
			if i == p.Rank {
				continue
			}
			if err := p.post(i, bufferSend); err != nil {
				return nil, err
			}
		}
		return bufferSend, nil
	}
	p.handler.clock.Store(p.clock)
	p.handler.root.Store(int64(root))
	p.handler.active.Store(true)
	defer p.handler.active.Store(false)

	var timeout <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case recv := <-p.handler.contentChannel:
		return recv, nil
	case err := <-p.handler.errChannel:
		return nil, err
	case <-timeout:
		return nil, errors.Join(p.Close(), fmt.Errorf("peer %d timed out waiting for peer %d", p.Rank, root))
	}
}

// CreateAddresses returns n free localhost addresses.
func CreateAddresses(n int) map[int]string {
	addresses := make(map[int]string)
	for i := 0; i < n; i++ {
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			panic(err)
		}
		addresses[i] = l.Addr().String()
		if err := l.Close(); err != nil {
			panic(err)
		}
	}
	return addresses
}

// CreateListeners opens n localhost listeners and returns them with their addresses.
func CreateListeners(n int) (map[int]net.Listener, map[int]string) {
	listeners := make(map[int]net.Listener)
	addresses := make(map[int]string)
	for i := 0; i < n; i++ {
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			panic(err)
		}
		listeners[i] = l
		addresses[i] = l.Addr().String()
	}
	return listeners, addresses
}

func copyMap(original map[int]string) map[int]string {
	copied := make(map[int]string, len(original))
	for k, v := range original {
		copied[k] = v
	}
	return copied
}
