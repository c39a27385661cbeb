package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// WideIDLen is the wire size of a WideID.
const WideIDLen = 16

// WideID is a 128-bit big-endian identifier. Real identifiers fit in Lo; Hi is
// zero on the wire today but participates in equality and masking.
type WideID struct {
	Hi uint64
	Lo uint64
}

// NewWideID returns an identifier with a zero upper half.
func NewWideID(lo uint64) WideID {
	return WideID{Lo: lo}
}

func (w WideID) And(mask WideID) WideID {
	return WideID{Hi: w.Hi & mask.Hi, Lo: w.Lo & mask.Lo}
}

func (w WideID) IsZero() bool {
	return w.Hi == 0 && w.Lo == 0
}

// Bytes returns the 16-byte big-endian wire form.
func (w WideID) Bytes() [WideIDLen]byte {
	var out [WideIDLen]byte
	binary.BigEndian.PutUint64(out[0:8], w.Hi)
	binary.BigEndian.PutUint64(out[8:16], w.Lo)
	return out
}

func (w WideID) String() string {
	if w.Hi == 0 {
		return strconv.FormatUint(w.Lo, 10)
	}
	return fmt.Sprintf("0x%016x%016x", w.Hi, w.Lo)
}

// WideIDFromBytes decodes a 16-byte big-endian identifier.
func WideIDFromBytes(b []byte) (WideID, error) {
	if len(b) != WideIDLen {
		return WideID{}, fmt.Errorf("%w: wide id needs %d bytes, got %d", ErrProtocolViolation, WideIDLen, len(b))
	}
	return WideID{
		Hi: binary.BigEndian.Uint64(b[0:8]),
		Lo: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// ParseWideID accepts a decimal uint64 or a 0x-prefixed hex value of up to
// 32 digits.
func ParseWideID(raw string) (WideID, error) {
	raw = strings.TrimSpace(raw)
	hex, isHex := strings.CutPrefix(strings.ToLower(raw), "0x")
	if !isHex {
		lo, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return WideID{}, fmt.Errorf("parse wide id %q: %w", raw, err)
		}
		return NewWideID(lo), nil
	}
	if hex == "" || len(hex) > 32 {
		return WideID{}, fmt.Errorf("parse wide id %q: want 1..32 hex digits", raw)
	}
	var id WideID
	if len(hex) > 16 {
		hi, err := strconv.ParseUint(hex[:len(hex)-16], 16, 64)
		if err != nil {
			return WideID{}, fmt.Errorf("parse wide id %q: %w", raw, err)
		}
		id.Hi = hi
		hex = hex[len(hex)-16:]
	}
	lo, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return WideID{}, fmt.Errorf("parse wide id %q: %w", raw, err)
	}
	id.Lo = lo
	return id, nil
}
