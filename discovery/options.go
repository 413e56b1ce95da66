package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Discover advertises the local peer on a localhost port range and scans the
// range for the other peers. Found peers are sent on Entries, possibly more
// than once.
type Discover struct {
	Entries   chan Entry
	entry     Entry
	port      uint16
	startPort uint16
	endPort   uint16
	server    *http.Server
	attempts  uint
	interval  time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
}

type option func(*Discover)

// NewWithOptions advertises entry and starts scanning in the background.
func NewWithOptions(entry Entry, opts ...option) (*Discover, error) {
	d := &Discover{
		Entries:   make(chan Entry),
		entry:     entry,
		startPort: 9000,
		endPort:   9010,
		attempts:  1,
		interval:  time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	var l net.Listener
	err = errors.New("empty port range")
	for port := d.startPort; port <= d.endPort && port >= d.startPort; port++ {
		l, err = net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		if err == nil {
			d.port = port
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("no free port in [%d, %d]: %w", d.startPort, d.endPort, err)
	}
	d.server = &http.Server{
		Addr:    l.Addr().String(),
		Handler: handler{entry: body},
	}
	go func() {
		if err := d.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("discovery server stopped", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go func() {
		for range d.attempts {
			d.search(ctx)
			select {
			case <-time.After(d.interval):
			case <-ctx.Done():
				return
			}
		}
	}()
	d.logger.Debug("advertising", "port", d.port, "address", entry.Address)
	return d, nil
}

// Port returns the port the advertisement is served on.
func (d *Discover) Port() uint16 { return d.port }

func WithPortRange(startPort, endPort uint16) option {
	return func(d *Discover) {
		d.startPort = startPort
		d.endPort = endPort
	}
}

func WithPort(port uint16) option {
	return WithPortRange(port, port)
}

func WithAttempts(attempts uint) option {
	return func(d *Discover) { d.attempts = attempts }
}

// WithInterval sets the pause between two scans.
func WithInterval(interval time.Duration) option {
	return func(d *Discover) { d.interval = interval }
}

func WithLogger(logger *slog.Logger) option {
	return func(d *Discover) { d.logger = logger }
}
