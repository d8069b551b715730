package packet

import "io"

// PINGREQ has no variable header or payload. Section 3.12.
type PINGREQ struct{}

func (p *PINGREQ) Kind() byte { return KindPINGREQ }

func (p *PINGREQ) Pack(w io.Writer) error {
	return FixedHeader{Kind: KindPINGREQ}.Pack(w)
}
