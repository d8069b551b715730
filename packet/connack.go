package packet

import "bytes"

// CONNACK acknowledges a CONNECT. Section 3.2.
type CONNACK struct {
	SessionPresent bool
	ReasonCode     byte
}

func (p *CONNACK) Kind() byte { return KindCONNACK }

// UnpackCONNACK decodes the variable header carried in a CONNACK's remaining
// bytes (the properties span is skipped, not interpreted).
func UnpackCONNACK(b *bytes.Buffer) (*CONNACK, error) {
	if b.Len() < 2 {
		return nil, ErrMalformedPacket
	}
	flags, _ := b.ReadByte()
	reason, _ := b.ReadByte()
	if err := skipProperties(b); err != nil {
		return nil, err
	}
	return &CONNACK{SessionPresent: flags&0x01 != 0, ReasonCode: reason}, nil
}
