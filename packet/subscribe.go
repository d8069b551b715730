package packet

import (
	"bytes"
	"io"
)

// SUBSCRIBE requests one or more topic subscriptions. Section 3.8. This
// core always requests QoS 0 subscriptions (exact-match topics only; no
// wildcard matching happens locally, see the dispatcher).
type SUBSCRIBE struct {
	PacketID uint16
	Topics   []string
}

func (p *SUBSCRIBE) Kind() byte { return KindSUBSCRIBE }

func (p *SUBSCRIBE) Pack(w io.Writer) error {
	var body bytes.Buffer
	body.WriteByte(byte(p.PacketID >> 8))
	body.WriteByte(byte(p.PacketID))
	body.Write(noProperties)
	for _, t := range p.Topics {
		body.Write(EncodeString(t))
		body.WriteByte(0x00) // subscription options: QoS 0, no flags
	}

	h := FixedHeader{Kind: KindSUBSCRIBE, QoS: 1, RemainingLength: uint32(body.Len())}
	if err := h.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}
