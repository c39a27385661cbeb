package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Reader extracts fields from a message body. Every extraction checks the
// remaining length first and reports ErrProtocolViolation instead of reading
// past the end.
type Reader struct {
	buf []byte
	off int
}

func NewReader(body []byte) *Reader {
	return &Reader{buf: body}
}

// Remaining reports how many unread bytes are left.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) need(n int, field string) error {
	if n < 0 || r.Remaining() < n {
		return fmt.Errorf("%w: %s needs %d bytes, %d remain", ErrProtocolViolation, field, n, r.Remaining())
	}
	return nil
}

func (r *Reader) take(n int, field string) ([]byte, error) {
	if err := r.need(n, field); err != nil {
		return nil, err
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *Reader) U8(field string) (uint8, error) {
	b, err := r.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Bool(field string) (bool, error) {
	v, err := r.U8(field)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *Reader) U32(field string) (uint32, error) {
	b, err := r.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) U64(field string) (uint64, error) {
	b, err := r.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) F32(field string) (float32, error) {
	v, err := r.U32(field)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) F64(field string) (float64, error) {
	v, err := r.U64(field)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *Reader) WideID(field string) (WideID, error) {
	b, err := r.take(WideIDLen, field)
	if err != nil {
		return WideID{}, err
	}
	return WideIDFromBytes(b)
}

// Bytes returns a copy of the next n bytes.
func (r *Reader) Bytes(n int, field string) ([]byte, error) {
	b, err := r.take(n, field)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// SizedBytes reads a u32 byte length and returns a copy of that many bytes.
func (r *Reader) SizedBytes(field string) ([]byte, error) {
	n, err := r.U32(field + " length")
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: %s declares %d bytes, %d remain", ErrProtocolViolation, field, n, r.Remaining())
	}
	return r.Bytes(int(n), field)
}

// SizedString reads one length-prefixed UTF-16BE string.
func (r *Reader) SizedString(field string) (string, error) {
	s, rest, err := SplitSizedString(r.buf[r.off:])
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	r.off = len(r.buf) - len(rest)
	return s, nil
}

// TrailingString decodes every unread byte as an unprefixed UTF-16BE string.
func (r *Reader) TrailingString(field string) (string, error) {
	s, err := DecodeString(r.buf[r.off:])
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	r.off = len(r.buf)
	return s, nil
}

// Rest returns a copy of every unread byte.
func (r *Reader) Rest() []byte {
	return append([]byte{}, r.buf[r.off:]...)
}

// Count reads a u32 element count and rejects counts that could not fit in
// the unread bytes at minSize bytes per element.
func (r *Reader) Count(field string, minSize int) (int, error) {
	n, err := r.U32(field)
	if err != nil {
		return 0, err
	}
	if minSize > 0 && uint64(n)*uint64(minSize) > uint64(r.Remaining()) {
		return 0, fmt.Errorf("%w: %s of %d needs at least %d bytes, %d remain",
			ErrProtocolViolation, field, n, uint64(n)*uint64(minSize), r.Remaining())
	}
	return int(n), nil
}
