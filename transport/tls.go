package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// handshakeTimeout bounds the TLS handshake.
const handshakeTimeout = 10 * time.Second

// DialTLS opens a TLS transport to addr using a pre-built config. The core
// never provisions certificates; cfg is opaque to it.
func DialTLS(ctx context.Context, addr string, cfg *tls.Config) (Transport, error) {
	nc, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	tc := tls.Client(nc, cfg)

	dl := time.Now().Add(handshakeTimeout)
	_ = tc.SetDeadline(dl)
	if err := tc.HandshakeContext(ctx); err != nil {
		_ = nc.Close()
		return nil, err
	}
	_ = tc.SetDeadline(time.Time{})

	return wrap(tc), nil
}
