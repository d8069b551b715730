package transport

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"
)

// connTransport adapts a net.Conn (TCP, TLS, or WebSocket framed) to
// Transport using a buffered reader/writer pair around the raw socket.
type connTransport struct {
	nc net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	closeOnce sync.Once
	closedCh  chan struct{}
}

func wrap(nc net.Conn) *connTransport {
	return &connTransport{
		nc:       nc,
		br:       bufio.NewReader(nc),
		bw:       bufio.NewWriter(nc),
		closedCh: make(chan struct{}),
	}
}

func (c *connTransport) ReadExact(buf []byte) error {
	_, err := io.ReadFull(c.br, buf)
	if err != nil {
		c.markClosed()
	}
	return err
}

func (c *connTransport) Write(b []byte) (int, error) {
	n, err := c.bw.Write(b)
	if err != nil {
		c.markClosed()
	}
	return n, err
}

func (c *connTransport) Flush() error {
	err := c.bw.Flush()
	if err != nil {
		c.markClosed()
	}
	return err
}

func (c *connTransport) Close() error {
	c.markClosed()
	return c.nc.Close()
}

func (c *connTransport) ClosedCh() <-chan struct{} {
	return c.closedCh
}

func (c *connTransport) SetDeadline(t time.Time) error {
	return c.nc.SetDeadline(t)
}

func (c *connTransport) markClosed() {
	c.closeOnce.Do(func() { close(c.closedCh) })
}
