package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/fleetcore/otamqtt/internal/ring"
	"github.com/fleetcore/otamqtt/packet"
	"github.com/fleetcore/otamqtt/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client is the MQTT v5 client: connect/ping loops, packet id bookkeeping,
// and the inbound message queue, run as a read loop / ping loop / caller
// goroutine trio coordinated over channels and context cancellation.
type Client struct {
	opts    Options
	log     zerolog.Logger
	metrics *Metrics

	tr transport.Transport

	acks       *pendingAcks
	Dispatcher *Dispatcher

	pingOK chan struct{} // non-blocking signal, set on every PINGRESP

	inbound       *ring.Ring[*packet.Message]
	inboundSignal chan struct{}

	mu     sync.Mutex
	closed bool
}

// New constructs a Client. The transport is dialed separately and handed to
// Run: the client itself never opens a connection.
func New(opts ...Option) *Client {
	o := newOptions(opts...)
	c := &Client{
		opts:          o,
		log:           zerolog.Nop(),
		acks:          newPendingAcks(),
		pingOK:        make(chan struct{}, 1),
		inbound:       ring.New[*packet.Message](o.InboundQueueSize),
		inboundSignal: make(chan struct{}, 1),
	}
	c.Dispatcher = NewDispatcher(c)
	return c
}

// WithLogger attaches a logger carrying a per-session correlation id,
// returning c for chaining.
func (c *Client) WithLogger(base zerolog.Logger) *Client {
	c.log = base.With().
		Str("client_id", c.opts.ClientID).
		Str("session_id", uuid.NewString()).
		Logger()
	c.Dispatcher.WithLogger(c.log)
	return c
}

// WithMetrics attaches a Metrics instance, returning c for chaining.
func (c *Client) WithMetrics(m *Metrics) *Client {
	c.metrics = m
	return c
}

// Run dials nothing itself: it drives an already-open transport with the
// read loop and (if keep-alive is enabled) the ping loop, returning when the
// read loop fails, the transport closes, or ctx is done. It does not send
// CONNECT; callers run Connect alongside it.
func (c *Client) Run(ctx context.Context, tr transport.Transport) error {
	c.mu.Lock()
	c.tr = tr
	c.closed = false
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ActiveConnections.Set(1)
		defer c.metrics.ActiveConnections.Set(0)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(ctx) }()

	if c.opts.KeepAliveInterval > 0 {
		go c.pingLoop(ctx)
	}

	select {
	case <-ctx.Done():
		_ = c.Disconnect(context.Background())
		return ctx.Err()
	case <-tr.ClosedCh():
		c.failAll(ErrTransportClosed)
		return ErrTransportClosed
	case err := <-readErr:
		c.failAll(err)
		return err
	}
}

func (c *Client) failAll(err error) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.acks.failAll(err)
}

// transportReader adapts transport.Transport's exact-length ReadExact to the
// io.Reader the packet codec reads from a byte at a time (VBI) and in
// larger chunks (the remaining-length body).
type transportReader struct{ tr transport.Transport }

func (r transportReader) Read(p []byte) (int, error) {
	if err := r.tr.ReadExact(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// readLoop decodes one packet at a time and routes it by kind. A malformed
// read desynchronizes the stream and ends the loop.
func (c *Client) readLoop(ctx context.Context) error {
	tr := transportReader{c.tr}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pkt, err := packet.Unpack(tr)
		if err != nil {
			return err
		}
		if c.metrics != nil {
			c.metrics.PacketsReceived.Inc()
		}

		switch p := pkt.(type) {
		case *packet.PINGRESP:
			select {
			case c.pingOK <- struct{}{}:
			default:
			}
		case *packet.CONNACK:
			c.acks.complete(0, ackResult{pkt: p})
		case *packet.SUBACK:
			c.acks.complete(p.PacketID, ackResult{pkt: p})
		case *packet.UNSUBACK:
			c.acks.complete(p.PacketID, ackResult{pkt: p})
		case *packet.PUBACK:
			c.acks.complete(p.PacketID, ackResult{pkt: p})
		case *packet.PUBLISH:
			c.receivePublish(p)
		case *packet.DISCONNECT:
			c.log.Info().Uint8("reason", p.ReasonCode).Msg("server disconnected")
			return &ReasonError{Kind: "DISCONNECT", ReasonCode: p.ReasonCode}
		default:
			c.log.Warn().Type("packet", pkt).Msg("unexpected packet kind")
		}
	}
}

func (c *Client) receivePublish(p *packet.PUBLISH) {
	if evicted := c.inbound.Push(p.Message); evicted {
		c.log.Warn().Str("topic", p.Topic).Msg("inbound queue full, dropping oldest message")
	}
	select {
	case c.inboundSignal <- struct{}{}:
	default:
	}
	if err := c.Dispatcher.Dispatch(p.Message); err != nil {
		c.log.Warn().Err(err).Str("topic", p.Topic).Msg("dispatch error")
	}

	if p.QoS == 1 {
		ack := &packet.PUBACK{PacketID: p.PacketID, ReasonCode: packet.ReasonSuccess}
		if err := ack.Pack(c.tr); err != nil {
			return
		}
		_ = c.tr.Flush()
	}
}

// pingLoop sends PINGREQ every keep_alive/3 and waits up to AckTimeout for a
// PINGRESP. Three consecutive misses violate keep-alive and tear down the
// connection.
func (c *Client) pingLoop(ctx context.Context) {
	interval := c.opts.KeepAliveInterval / 3
	misses := 0
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := (&packet.PINGREQ{}).Pack(c.tr); err != nil {
			return
		}
		if err := c.tr.Flush(); err != nil {
			return
		}

		select {
		case <-c.pingOK:
			misses = 0
		case <-time.After(c.opts.AckTimeout):
			misses++
			c.log.Warn().Int("misses", misses).Msg("ping timed out")
		case <-ctx.Done():
			return
		}

		if misses >= 3 {
			c.log.Error().Msg("keep-alive violated")
			c.failAll(ErrKeepAliveViolated)
			_ = c.tr.Close()
			return
		}
		timer.Reset(interval)
	}
}

// Connect sends CONNECT and waits for CONNACK.
func (c *Client) Connect(ctx context.Context) error {
	ch := c.acks.reserve(0)

	req := &packet.CONNECT{
		ClientID:   c.opts.ClientID,
		Username:   c.opts.Username,
		Password:   c.opts.Password,
		CleanStart: true,
		KeepAlive:  uint16(c.opts.KeepAliveInterval / time.Second),
	}
	if err := req.Pack(c.tr); err != nil {
		return err
	}
	if err := c.tr.Flush(); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.PacketsSent.Inc()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.opts.AckTimeout):
		return ErrTransportClosed
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		connack := res.pkt.(*packet.CONNACK)
		if !packet.IsSuccess(connack.ReasonCode) {
			return &ConnectionRefused{ReasonCode: connack.ReasonCode}
		}
		c.log.Info().Bool("session_present", connack.SessionPresent).Msg("connected")
		return nil
	}
}

// sendSubscribe implements wireSubscriber for the Dispatcher.
func (c *Client) sendSubscribe(ctx context.Context, topic string) error {
	id, ch, err := c.acks.allocID()
	if err != nil {
		return err
	}
	req := &packet.SUBSCRIBE{PacketID: id, Topics: []string{topic}}
	if err := req.Pack(c.tr); err != nil {
		return err
	}
	if err := c.tr.Flush(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.opts.AckTimeout):
		return ErrTransportClosed
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		suback := res.pkt.(*packet.SUBACK)
		for _, code := range suback.ReasonCodes {
			if !packet.IsSuccess(code) {
				return &ReasonError{Kind: "SUBACK", ReasonCode: code}
			}
		}
		return nil
	}
}

// sendUnsubscribe implements wireSubscriber for the Dispatcher.
func (c *Client) sendUnsubscribe(ctx context.Context, topic string) error {
	id, ch, err := c.acks.allocID()
	if err != nil {
		return err
	}
	req := &packet.UNSUBSCRIBE{PacketID: id, Topics: []string{topic}}
	if err := req.Pack(c.tr); err != nil {
		return err
	}
	if err := c.tr.Flush(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.opts.AckTimeout):
		return ErrTransportClosed
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		unsuback := res.pkt.(*packet.UNSUBACK)
		for _, code := range unsuback.ReasonCodes {
			if code >= packet.ReasonUnspecifiedError {
				return &ReasonError{Kind: "UNSUBACK", ReasonCode: code}
			}
		}
		return nil
	}
}

// Publish sends msg. QoS 0 returns as soon as the bytes are flushed; QoS 1
// waits for PUBACK. Outbound QoS 1 is never retried on timeout; a timed-out
// ack surfaces as an error and is left to the caller to resend if it wants.
func (c *Client) Publish(ctx context.Context, msg *packet.Message) error {
	pub := &packet.PUBLISH{Message: msg}

	var ch chan ackResult
	if msg.QoS > 0 {
		id, c2, err := c.acks.allocID()
		if err != nil {
			return err
		}
		pub.PacketID = id
		ch = c2
	}

	if err := pub.Pack(c.tr); err != nil {
		return err
	}
	if err := c.tr.Flush(); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.PacketsSent.Inc()
	}

	if ch == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.opts.AckTimeout):
		return ErrTransportClosed
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if puback, ok := res.pkt.(*packet.PUBACK); ok && puback.ReasonCode >= packet.ReasonUnspecifiedError {
			return &ReasonError{Kind: "PUBACK", ReasonCode: puback.ReasonCode}
		}
		return nil
	}
}

// Consume blocks until a PUBLISH arrives on any topic, or ctx ends. This is
// a generic pull surface for callers that don't register a Consumer;
// per-topic push delivery goes through Dispatcher/Consumer instead.
func (c *Client) Consume(ctx context.Context) (*packet.Message, error) {
	for {
		if msg, ok := c.inbound.Pop(); ok {
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.inboundSignal:
		}
	}
}

// Disconnect sends a normal DISCONNECT and closes the transport.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = (&packet.DISCONNECT{ReasonCode: packet.ReasonNormalDisconnect}).Pack(c.tr)
	_ = c.tr.Flush()
	return c.tr.Close()
}
