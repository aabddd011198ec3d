package ppp

import (
	"encoding/binary"
	"fmt"
)

// record is a single decoded option record as seen on the wire:
//
//	code (u8) | length (u8) | value (length-2 bytes)
//
// decodeRecords only validates packet framing (that length fields don't
// run past the buffer); it deliberately does not enforce length == 6
// here, so a handler can apply its own option-specific verdict (REJ vs.
// ignore) to a malformed record rather than have the whole packet
// dropped silently.
type record struct {
	code  OptionCode
	value []byte
}

// encodeRecord appends the wire form of a 4-byte-payload option record to
// buf and returns the result. This is the only shape component I
// produces: code | 6 | htonl(payload).
func encodeRecord(buf []byte, code OptionCode, payload uint32) []byte {
	var b [recordLen]byte
	b[0] = byte(code)
	b[1] = recordLen
	binary.BigEndian.PutUint32(b[2:], payload)
	return append(buf, b[:]...)
}

// decodeRecords splits a Configure-Request/-Ack/-Nak/-Reject payload into
// its constituent option records. It never panics: a record whose length
// field runs past the remaining buffer is reported as an error rather
// than left to produce undefined behavior.
func decodeRecords(buf []byte) ([]record, error) {
	var out []record
	for len(buf) > 0 {
		if len(buf) < 2 {
			return nil, fmt.Errorf("%w: trailing byte with no length field", ErrMalformed)
		}
		code, length := OptionCode(buf[0]), int(buf[1])
		if length < 2 || length > len(buf) {
			return nil, fmt.Errorf("%w: option %d declares length %d beyond buffer", ErrMalformed, code, length)
		}
		out = append(out, record{code: code, value: buf[2:length]})
		buf = buf[length:]
	}
	return out, nil
}

// decodePayload validates and decodes a single record's raw value bytes
// into the 4-byte big-endian bitfield every option in this core carries.
// present is false when the option was absent from the packet entirely
// (as opposed to present with the wrong length).
func decodePayload(value []byte) (bits uint32, present bool, err error) {
	if value == nil {
		return 0, false, nil
	}
	if len(value) != recordLen-2 {
		return 0, true, fmt.Errorf("%w: want %d payload bytes, got %d", ErrMalformed, recordLen-2, len(value))
	}
	return binary.BigEndian.Uint32(value), true, nil
}
