package mqtt

import (
	"crypto/tls"
	"time"
)

// Options configures a Client via the functional-options pattern.
type Options struct {
	Server   string
	Port     int
	ClientID string

	SSL       bool
	TLSConfig *tls.Config

	Username string
	Password string

	KeepAliveInterval time.Duration // 0 disables the ping loop
	AckTimeout        time.Duration // default SYSTEM_ACK_TIMEOUT

	InboundQueueSize int // default MAX_MSGS_WAITING
}

// Option mutates an Options during construction.
type Option func(*Options)

const (
	defaultAckTimeout       = 10 * time.Second
	defaultInboundQueueSize = 10
)

func newOptions(opts ...Option) Options {
	o := Options{
		Port:             1883,
		AckTimeout:       defaultAckTimeout,
		InboundQueueSize: defaultInboundQueueSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithServer sets the broker host and port (mqtt.server, mqtt.port).
func WithServer(server string, port int) Option {
	return func(o *Options) { o.Server, o.Port = server, port }
}

// WithClientID sets the MQTT client identifier.
func WithClientID(id string) Option {
	return func(o *Options) { o.ClientID = id }
}

// WithTLS records a pre-built TLS config (mqtt.ssl, mqtt.ssl_params) in
// Options. The client never dials and does not read these fields; the TLS
// transport itself is built by the caller (transport.DialTLS) and handed to
// Run. The core never provisions certificates; cfg is opaque to it.
func WithTLS(cfg *tls.Config) Option {
	return func(o *Options) { o.SSL, o.TLSConfig = true, cfg }
}

// WithCredentials sets the username/password sent on CONNECT iff non-empty
// (mqtt.username, mqtt.password).
func WithCredentials(username, password string) Option {
	return func(o *Options) { o.Username, o.Password = username, password }
}

// WithKeepAlive sets the keep-alive interval (mqtt.keep_alive_interval);
// zero disables the ping loop entirely.
func WithKeepAlive(d time.Duration) Option {
	return func(o *Options) { o.KeepAliveInterval = d }
}

// WithAckTimeout overrides SYSTEM_ACK_TIMEOUT, mostly useful in tests.
func WithAckTimeout(d time.Duration) Option {
	return func(o *Options) { o.AckTimeout = d }
}

// WithInboundQueueSize overrides MAX_MSGS_WAITING.
func WithInboundQueueSize(n int) Option {
	return func(o *Options) { o.InboundQueueSize = n }
}
