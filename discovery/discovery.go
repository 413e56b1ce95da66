package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"
)

// Entry is the advertisement of one peer: the address its game transport
// listens on and a free form name.
type Entry struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Table   string `json:"table"`
}

type handler struct {
	entry []byte
}

func (h handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(h.entry)
}

// New advertises entry on the first free port of the default range.
func New(entry Entry, port uint16) (*Discover, error) {
	return NewWithPortRange(entry, port, port, 2)
}

// NewWithPortRange advertises entry on the first free port of
// [startPort, endPort] and scans the range attempts times.
func NewWithPortRange(entry Entry, startPort, endPort uint16, attempts uint) (*Discover, error) {
	return NewWithOptions(entry,
		WithPortRange(startPort, endPort),
		WithAttempts(attempts),
	)
}

func (d *Discover) search(ctx context.Context) {
	client := http.Client{Timeout: time.Second}
	for port := d.startPort; port <= d.endPort; port++ {
		if port == d.port {
			continue
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://localhost:%d", port), nil)
		if err != nil {
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		buf, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			d.logger.Debug("discovery read failed", "port", port, "err", err)
			continue
		}
		var e Entry
		if err := json.Unmarshal(buf, &e); err != nil || e.Address == "" {
			d.logger.Debug("ignoring malformed advertisement", "port", port)
			continue
		}
		if e.Table != d.entry.Table {
			continue
		}
		select {
		case d.Entries <- e:
		case <-ctx.Done():
			return
		}
	}
}

// Gather waits until n-1 distinct other peers of the same table were found
// and returns every address, the local one included, in sorted order. The
// index of an address is the rank of its peer.
func (d *Discover) Gather(ctx context.Context, n int) ([]string, error) {
	found := map[string]bool{d.entry.Address: true}
	for len(found) < n {
		select {
		case e := <-d.Entries:
			found[e.Address] = true
		case <-ctx.Done():
			return nil, fmt.Errorf("found %d of %d peers: %w", len(found), n, ctx.Err())
		}
	}
	addresses := make([]string, 0, len(found))
	for a := range found {
		addresses = append(addresses, a)
	}
	slices.Sort(addresses)
	return addresses, nil
}

// Close stops the advertisement and the scans.
func (d *Discover) Close() error {
	d.cancel()
	err := d.server.Shutdown(context.Background())
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
