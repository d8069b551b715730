package transport

import (
	"context"
	"crypto/tls"
	"net/url"

	"golang.org/x/net/websocket"
)

// DialWebSocket opens an MQTT-over-WebSocket transport, framed as binary
// messages with the "mqtt" subprotocol. rawURL is a ws:// or wss:// URL;
// cfg is used only for the wss scheme and may be nil otherwise.
func DialWebSocket(ctx context.Context, rawURL string, cfg *tls.Config) (Transport, error) {
	loc, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if loc.Path == "" {
		loc.Path = "/mqtt"
	}

	originScheme := "http"
	if loc.Scheme == "wss" {
		originScheme = "https"
	}
	origin := &url.URL{Scheme: originScheme, Host: loc.Host}

	wscfg, err := websocket.NewConfig(loc.String(), origin.String())
	if err != nil {
		return nil, err
	}
	wscfg.Protocol = []string{"mqtt"}
	if loc.Scheme == "wss" {
		wscfg.TlsConfig = cfg
	}

	ws, err := websocket.DialConfig(wscfg)
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame

	_ = ctx // websocket.DialConfig has no context variant in this package version
	return wrap(ws), nil
}
