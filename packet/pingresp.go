package packet

// PINGRESP has no variable header or payload. Section 3.13.
type PINGRESP struct{}

func (p *PINGRESP) Kind() byte { return KindPINGRESP }
