package packet

import (
	"bytes"
	"io"
)

// This core never interprets MQTT v5 property content (section 3.1.2.11 and
// friends): it always writes a zero-length properties field on outbound
// packets, and skips whatever length it finds on inbound ones.

// noProperties is the single byte written wherever a packet carries a
// zero-length properties field.
var noProperties = []byte{0x00}

// skipProperties reads and discards a properties field: a VBI length
// followed by that many bytes of opaque property data.
func skipProperties(b *bytes.Buffer) error {
	n, err := DecodeVBI(b)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, b, int64(n)); err != nil {
		return ErrMalformedPacket
	}
	return nil
}
