package packet

import (
	"bytes"
	"io"
)

// DISCONNECT carries a reason code in both directions. Section 3.14.
type DISCONNECT struct {
	ReasonCode byte
}

func (p *DISCONNECT) Kind() byte { return KindDISCONNECT }

func (p *DISCONNECT) Pack(w io.Writer) error {
	body := []byte{p.ReasonCode}
	h := FixedHeader{Kind: KindDISCONNECT, RemainingLength: uint32(len(body))}
	if err := h.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// UnpackDISCONNECT decodes a DISCONNECT. A zero-length remainder means
// reason code 0x00 (normal disconnection), per section 3.14.2.1.
func UnpackDISCONNECT(b *bytes.Buffer) (*DISCONNECT, error) {
	if b.Len() == 0 {
		return &DISCONNECT{ReasonCode: ReasonNormalDisconnect}, nil
	}
	reason, _ := b.ReadByte()
	return &DISCONNECT{ReasonCode: reason}, nil
}
