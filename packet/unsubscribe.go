package packet

import (
	"bytes"
	"io"
)

// UNSUBSCRIBE requests removal of one or more topic subscriptions.
// Section 3.10.
type UNSUBSCRIBE struct {
	PacketID uint16
	Topics   []string
}

func (p *UNSUBSCRIBE) Kind() byte { return KindUNSUBSCRIBE }

func (p *UNSUBSCRIBE) Pack(w io.Writer) error {
	var body bytes.Buffer
	body.WriteByte(byte(p.PacketID >> 8))
	body.WriteByte(byte(p.PacketID))
	body.Write(noProperties)
	for _, t := range p.Topics {
		body.Write(EncodeString(t))
	}

	h := FixedHeader{Kind: KindUNSUBSCRIBE, QoS: 1, RemainingLength: uint32(body.Len())}
	if err := h.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}
