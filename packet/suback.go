package packet

import "bytes"

// SUBACK acknowledges a SUBSCRIBE with one reason code per requested topic,
// in order. Section 3.9.
type SUBACK struct {
	PacketID    uint16
	ReasonCodes []byte
}

func (p *SUBACK) Kind() byte { return KindSUBACK }

func UnpackSUBACK(b *bytes.Buffer) (*SUBACK, error) {
	if b.Len() < 2 {
		return nil, ErrMalformedPacket
	}
	hi, _ := b.ReadByte()
	lo, _ := b.ReadByte()
	if err := skipProperties(b); err != nil {
		return nil, err
	}
	return &SUBACK{PacketID: uint16(hi)<<8 | uint16(lo), ReasonCodes: append([]byte(nil), b.Bytes()...)}, nil
}
