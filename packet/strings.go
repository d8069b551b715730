package packet

import "encoding/binary"

// MQTT UTF-8 string coding: a big-endian uint16 length prefix followed by
// the UTF-8 bytes (MQTT v5 section 1.5.4).

// EncodeString prepends s's byte length as a uint16.
func EncodeString(s string) []byte {
	b := make([]byte, 2, 2+len(s))
	binary.BigEndian.PutUint16(b, uint16(len(s)))
	return append(b, s...)
}

// DecodeString reads a length-prefixed string from b and returns the number
// of bytes consumed (2 + length) along with the decoded string.
func DecodeString(b []byte) (consumed int, s string, err error) {
	if len(b) < 2 {
		return 0, "", ErrMalformedPacket
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+n {
		return 0, "", ErrMalformedPacket
	}
	return 2 + n, string(b[2 : 2+n]), nil
}
