// Package transport provides the byte-stream capabilities the MQTT client
// needs: exact-length reads, buffered writes, and a closed-signal channel,
// over plain TCP, TLS, or WebSocket framing.
package transport

import (
	"io"
	"time"
)

// Transport is the capability set the client depends on. It deliberately
// does not expose net.Conn or any dial details: a concrete transport is
// handed to the client fully constructed.
type Transport interface {
	// ReadExact reads exactly len(buf) bytes, blocking until it has them or
	// the transport fails.
	ReadExact(buf []byte) error
	io.Writer
	Flush() error
	Close() error
	// ClosedCh is closed exactly once, the moment the transport can no
	// longer be used (peer closed, error, or explicit Close).
	ClosedCh() <-chan struct{}
	// SetDeadline arms a read/write deadline for the underlying socket;
	// a zero time disables it. The client itself does not call it.
	SetDeadline(t time.Time) error
}
