package protocol

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// Protocol strings are UTF-16 big-endian without a byte order mark, in both
// directions.
var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// EncodeString converts s to its UTF-16BE wire bytes.
func EncodeString(s string) ([]byte, error) {
	out, err := utf16BE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("protocol: encode utf-16 string: %w", err)
	}
	return out, nil
}

// DecodeString converts UTF-16BE wire bytes to a Go string.
func DecodeString(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("%w: utf-16 string has odd length %d", ErrProtocolViolation, len(b))
	}
	out, err := utf16BE.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: decode utf-16 string: %v", ErrProtocolViolation, err)
	}
	return string(out), nil
}

// SplitSizedString reads a u32 byte length, decodes that many bytes as a
// protocol string, and returns the string with the unread remainder.
func SplitSizedString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, fmt.Errorf("%w: sized string length needs 4 bytes, %d remain", ErrProtocolViolation, len(buf))
	}
	n := binary.BigEndian.Uint32(buf[0:4])
	rest := buf[4:]
	if uint64(n) > uint64(len(rest)) {
		return "", nil, fmt.Errorf("%w: sized string declares %d bytes, %d remain", ErrProtocolViolation, n, len(rest))
	}
	s, err := DecodeString(rest[:n])
	if err != nil {
		return "", nil, err
	}
	return s, rest[n:], nil
}
