package packet

import (
	"bytes"
	"io"
)

// Connect flag bits, section 3.1.2.3.
const (
	flagCleanStart byte = 1 << 1
	flagWill       byte = 1 << 2
	flagPassword   byte = 1 << 6
	flagUsername   byte = 1 << 7
)

// CONNECT is the first packet a client sends. This core never sets the will
// flags; will messages are not supported.
type CONNECT struct {
	ClientID   string
	Username   string
	Password   string
	CleanStart bool
	KeepAlive  uint16
}

func (p *CONNECT) Kind() byte { return KindCONNECT }

// Pack writes the full packet, fixed header included, to w.
func (p *CONNECT) Pack(w io.Writer) error {
	var body bytes.Buffer
	body.Write(EncodeString("MQTT"))
	body.WriteByte(Version5)

	flags := byte(0)
	if p.CleanStart {
		flags |= flagCleanStart
	}
	if p.Username != "" {
		flags |= flagUsername
	}
	if p.Password != "" {
		flags |= flagPassword
	}
	body.WriteByte(flags)

	kaBuf := make([]byte, 2)
	kaBuf[0] = byte(p.KeepAlive >> 8)
	kaBuf[1] = byte(p.KeepAlive)
	body.Write(kaBuf)

	body.Write(noProperties)

	body.Write(EncodeString(p.ClientID))
	if p.Username != "" {
		body.Write(EncodeString(p.Username))
	}
	if p.Password != "" {
		body.Write(EncodeString(p.Password))
	}

	h := FixedHeader{Kind: KindCONNECT, RemainingLength: uint32(body.Len())}
	if err := h.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}
