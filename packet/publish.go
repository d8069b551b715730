package packet

import (
	"bytes"
	"io"
)

// PUBLISH carries a Message over the wire. Section 3.3.
type PUBLISH struct {
	*Message
	Dup      bool
	PacketID uint16
}

func (p *PUBLISH) Kind() byte { return KindPUBLISH }

// Pack writes the full packet, fixed header included, to w.
func (p *PUBLISH) Pack(w io.Writer) error {
	var body bytes.Buffer
	body.Write(EncodeString(p.Topic))
	if p.QoS > 0 {
		body.WriteByte(byte(p.PacketID >> 8))
		body.WriteByte(byte(p.PacketID))
	}
	body.Write(noProperties)
	body.Write(p.PayloadRaw)

	h := FixedHeader{
		Kind:            KindPUBLISH,
		Dup:             p.Dup,
		QoS:             p.QoS,
		Retain:          p.Retain,
		RemainingLength: uint32(body.Len()),
	}
	if err := h.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// UnpackPUBLISH decodes a PUBLISH's variable header and payload from b,
// given the flag bits already parsed out of the fixed header.
func UnpackPUBLISH(h FixedHeader, b *bytes.Buffer) (*PUBLISH, error) {
	consumed, topic, err := DecodeString(b.Bytes())
	if err != nil {
		return nil, err
	}
	b.Next(consumed)

	p := &PUBLISH{Message: &Message{Topic: topic, QoS: h.QoS, Retain: h.Retain}, Dup: h.Dup}
	if h.QoS > 0 {
		if b.Len() < 2 {
			return nil, ErrMalformedPacket
		}
		hi, _ := b.ReadByte()
		lo, _ := b.ReadByte()
		p.PacketID = uint16(hi)<<8 | uint16(lo)
	}
	if err := skipProperties(b); err != nil {
		return nil, err
	}
	p.PayloadRaw = append([]byte(nil), b.Bytes()...)
	return p, nil
}
