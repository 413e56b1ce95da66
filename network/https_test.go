package network

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// tlsOptions gives every peer its own certificate and trusts them all.
func tlsOptions(t *testing.T, addresses map[int]string) map[int][]Option {
	t.Helper()
	certs := make(map[int]tls.Certificate, len(addresses))
	var pems [][]byte
	for i, addr := range addresses {
		cert, pem, err := GenerateSelfSignedCert(addr)
		require.NoError(t, err)
		certs[i] = cert
		pems = append(pems, pem)
	}
	pool, err := CertPool(pems...)
	require.NoError(t, err)
	opts := make(map[int][]Option, len(addresses))
	for i := range addresses {
		opts[i] = []Option{WithTLS(certs[i], pool)}
	}
	return opts
}

func TestHttpsExchange(t *testing.T) {
	n := 3
	listeners, addresses := CreateListeners(n)
	tb := newTable(t, n)
	tb.run(t, listeners, addresses, tlsOptions(t, addresses), func(p *Peer) error {
		if err := tb.exchangeCommitments(p, 1); err != nil {
			return err
		}
		return tb.announce(p, 2, 2, 17)
	})
}

func TestHttpsRejectsUntrustedPeer(t *testing.T) {
	listeners, addresses := CreateListeners(2)
	opts := tlsOptions(t, addresses)
	// peer 1 presents a certificate peer 0 never trusted
	stranger, pem, err := GenerateSelfSignedCert(addresses[1])
	require.NoError(t, err)
	pool, err := CertPool(pem)
	require.NoError(t, err)
	opts[1] = []Option{WithTLS(stranger, pool)}

	tb := newTable(t, 2)
	fatal := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			peer := NewPeerWithOptions(i, addresses, listeners[i], append(opts[i], WithTimeout(2*time.Second))...)
			err := tb.announce(peer, 0, 1, 9)
			_ = peer.Close()
			fatal <- err
		}(i)
	}
	for i := 0; i < 2; i++ {
		require.Error(t, <-fatal)
	}
}

func TestCertPool(t *testing.T) {
	cert, pem, err := GenerateSelfSignedCert("127.0.0.1:7000")
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)

	_, err = CertPool(pem)
	require.NoError(t, err)
	_, err = CertPool(pem, []byte("not a certificate"))
	require.Error(t, err)
	_, err = CertPool()
	require.Error(t, err)

	_, _, err = GenerateSelfSignedCert("missing-port")
	require.Error(t, err)
}
