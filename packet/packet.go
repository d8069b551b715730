package packet

import "io"

// Packet is the common interface of every control packet this core writes.
// Inbound-only packets (CONNACK, SUBACK, UNSUBACK, PUBACK-as-received,
// PINGRESP) are decoded by their own Unpack* functions instead, since their
// shapes depend on already-parsed context (e.g. the PUBLISH QoS bit).
type Packet interface {
	Kind() byte
	Pack(io.Writer) error
}

// Unpack reads one full control packet from r: the fixed header, then a
// buffer holding exactly RemainingLength bytes, dispatched to the decoder
// for that packet's Kind. It returns ErrUnknownKind for any packet type
// outside CONNACK/PUBLISH/PUBACK/SUBACK/UNSUBACK/PINGRESP/DISCONNECT — the
// only packet types a connected client ever receives.
func Unpack(r io.Reader) (any, error) {
	h, err := UnpackFixedHeader(r)
	if err != nil {
		return nil, err
	}

	b := GetBuffer()
	defer PutBuffer(b)
	if _, err := io.CopyN(b, r, int64(h.RemainingLength)); err != nil {
		return nil, err
	}

	switch h.Kind {
	case KindCONNACK:
		return UnpackCONNACK(b)
	case KindPUBLISH:
		return UnpackPUBLISH(h, b)
	case KindPUBACK:
		return UnpackPUBACK(b)
	case KindSUBACK:
		return UnpackSUBACK(b)
	case KindUNSUBACK:
		return UnpackUNSUBACK(b)
	case KindPINGRESP:
		return &PINGRESP{}, nil
	case KindDISCONNECT:
		return UnpackDISCONNECT(b)
	default:
		return nil, ErrUnknownKind
	}
}
