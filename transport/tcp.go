package transport

import (
	"context"
	"net"
)

// DialTCP opens a plain TCP transport to addr ("host:port").
func DialTCP(ctx context.Context, addr string) (Transport, error) {
	nc, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return wrap(nc), nil
}
