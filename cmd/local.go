package main

import (
	"errors"
	"fmt"

	"github.com/luca-patrignani/fairdeal/network"
	"github.com/luca-patrignani/fairdeal/session"
)

// runLocal runs n peers inside this process over loopback http and calls
// body on each of them once keys are exchanged.
func (a *app) runLocal(n int, body func(s *session.Session) error) error {
	if n < 2 {
		return fmt.Errorf("at least 2 players are needed, got %d", n)
	}
	listeners, addresses := network.CreateListeners(n)
	errs := make(chan error, n)
	for i := range n {
		go func() {
			peer := network.NewPeerWithOptions(i, addresses, listeners[i],
				network.WithTimeout(a.cfg.Timeout),
				network.WithLogger(a.logger),
			)
			c, err := a.cfg.NewCipher()
			if err != nil {
				errs <- errors.Join(err, peer.Close())
				return
			}
			s, err := session.New(peer, c, a.sessionOptions()...)
			if err != nil {
				errs <- errors.Join(err, peer.Close())
				return
			}
			if err := s.ExchangeKeys(); err != nil {
				errs <- fmt.Errorf("peer %d: %w", i, errors.Join(err, s.Close()))
				return
			}
			if err := body(s); err != nil {
				errs <- fmt.Errorf("peer %d: %w", i, errors.Join(err, s.Close()))
				return
			}
			errs <- s.Close()
		}()
	}
	var all []error
	for range n {
		all = append(all, <-errs)
	}
	return errors.Join(all...)
}
