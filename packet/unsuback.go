package packet

import "bytes"

// UNSUBACK acknowledges an UNSUBSCRIBE. Section 3.11.
type UNSUBACK struct {
	PacketID    uint16
	ReasonCodes []byte
}

func (p *UNSUBACK) Kind() byte { return KindUNSUBACK }

func UnpackUNSUBACK(b *bytes.Buffer) (*UNSUBACK, error) {
	if b.Len() < 2 {
		return nil, ErrMalformedPacket
	}
	hi, _ := b.ReadByte()
	lo, _ := b.ReadByte()
	if err := skipProperties(b); err != nil {
		return nil, err
	}
	return &UNSUBACK{PacketID: uint16(hi)<<8 | uint16(lo), ReasonCodes: append([]byte(nil), b.Bytes()...)}, nil
}
