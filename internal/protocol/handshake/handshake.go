// Package handshake negotiates protocol compatibility before any tagged
// message flows. Both peers exchange the same blob; any difference fails.
package handshake

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	AggregatorVersion = "GRAIL solver protocol"
	WorldModelVersion = "GRAIL world model protocol"

	// ProtocolVersion fills the two reserved bytes after the version string.
	ProtocolVersion uint16 = 0
)

// Order is which side of the exchange a role performs first. The two GRAIL
// sub-protocols differ here and each role must keep its own order.
type Order int

const (
	// ReceiveFirst is used by solvers talking to an aggregator.
	ReceiveFirst Order = iota
	// SendFirst is used by solvers talking to a world model.
	SendFirst
)

func (o Order) String() string {
	switch o {
	case ReceiveFirst:
		return "receive-first"
	case SendFirst:
		return "send-first"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// Build returns the handshake blob for version:
// u32 length ++ version bytes ++ u16 protocol version.
func Build(version string) []byte {
	buf := make([]byte, 4+len(version)+2)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(version)))
	copy(buf[4:], version)
	binary.BigEndian.PutUint16(buf[4+len(version):], ProtocolVersion)
	return buf
}

// Exchange sends local and reads the peer's blob in the given order. The
// remote blob must match local byte for byte.
func Exchange(rw io.ReadWriter, local []byte, order Order) error {
	if order == SendFirst {
		if err := send(rw, local); err != nil {
			return err
		}
	}

	remote := make([]byte, len(local))
	if got, err := io.ReadFull(rw, remote); err != nil {
		return fmt.Errorf("%w: received %d of %d bytes: %w", protocol.ErrHandshakeMismatch, got, len(local), err)
	}
	if !bytes.Equal(local, remote) {
		return fmt.Errorf("%w: remote sent %q", protocol.ErrHandshakeMismatch, remote)
	}

	if order == ReceiveFirst {
		if err := send(rw, local); err != nil {
			return err
		}
	}
	log.Debug().Str("order", order.String()).Int("bytes", len(local)).Msg("handshake complete")
	return nil
}

func send(w io.Writer, blob []byte) error {
	if _, err := w.Write(blob); err != nil {
		return fmt.Errorf("%w: send handshake: %w", protocol.ErrWrite, err)
	}
	return nil
}
