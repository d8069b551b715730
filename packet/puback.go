package packet

import (
	"bytes"
	"io"
)

// PUBACK acknowledges a QoS 1 PUBLISH. Section 3.4.
type PUBACK struct {
	PacketID   uint16
	ReasonCode byte
}

func (p *PUBACK) Kind() byte { return KindPUBACK }

func (p *PUBACK) Pack(w io.Writer) error {
	var body bytes.Buffer
	body.WriteByte(byte(p.PacketID >> 8))
	body.WriteByte(byte(p.PacketID))
	body.WriteByte(p.ReasonCode)

	h := FixedHeader{Kind: KindPUBACK, RemainingLength: uint32(body.Len())}
	if err := h.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// UnpackPUBACK decodes a PUBACK variable header. The reason code and any
// properties are optional per section 3.4.2.1 when the packet carries
// nothing but success and no properties.
func UnpackPUBACK(b *bytes.Buffer) (*PUBACK, error) {
	if b.Len() < 2 {
		return nil, ErrMalformedPacket
	}
	hi, _ := b.ReadByte()
	lo, _ := b.ReadByte()
	p := &PUBACK{PacketID: uint16(hi)<<8 | uint16(lo), ReasonCode: ReasonSuccess}
	if b.Len() == 0 {
		return p, nil
	}
	reason, _ := b.ReadByte()
	p.ReasonCode = reason
	if b.Len() == 0 {
		return p, nil
	}
	if err := skipProperties(b); err != nil {
		return nil, err
	}
	return p, nil
}
