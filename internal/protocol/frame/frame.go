package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/danmuck/grailctl/internal/protocol"
)

// LengthPrefixLen is the size of the big-endian payload length that precedes
// every message.
const LengthPrefixLen = 4

// Limits constrains frame decode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 16 * 1024 * 1024,
	}
}

// Encode returns payload prefixed with its length.
func Encode(payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds u32 length", protocol.ErrFraming, len(payload))
	}
	buf := make([]byte, LengthPrefixLen+len(payload))
	binary.BigEndian.PutUint32(buf[0:LengthPrefixLen], uint32(len(payload)))
	copy(buf[LengthPrefixLen:], payload)
	return buf, nil
}

// Write sends one framed payload with a single write call.
func Write(w io.Writer, payload []byte) error {
	buf, err := Encode(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrWrite, err)
	}
	return nil
}

// Read returns the next payload (tag byte included). A stream that ends
// before a full length prefix is ErrConnectionClosed; one that ends inside
// the payload is ErrFraming.
func Read(r io.Reader, limits Limits) ([]byte, error) {
	var prefix [LengthPrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, protocol.ErrConnectionClosed
		}
		return nil, fmt.Errorf("%w: %w", protocol.ErrConnectionClosed, err)
	}

	n := binary.BigEndian.Uint32(prefix[:])
	if limits.MaxPayloadBytes > 0 && n > limits.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds limit %d", protocol.ErrFraming, n, limits.MaxPayloadBytes)
	}

	payload := make([]byte, n)
	if got, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: read %d of %d payload bytes: %w", protocol.ErrFraming, got, n, err)
	}
	return payload, nil
}

// Split separates the message tag from its body.
func Split(payload []byte) (uint8, []byte, error) {
	if len(payload) == 0 {
		return 0, nil, fmt.Errorf("%w: empty payload has no tag", protocol.ErrProtocolViolation)
	}
	return payload[0], payload[1:], nil
}
