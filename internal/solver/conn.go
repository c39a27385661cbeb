package solver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/danmuck/grailctl/internal/observability"
	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/danmuck/grailctl/internal/protocol/frame"
	"github.com/danmuck/grailctl/internal/protocol/handshake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle of one connection. Closed is terminal.
type State int32

const (
	StateNotConnected State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNotConnected:
		return "not_connected"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const (
	roleAggregator = "aggregator"
	roleWorldModel = "world_model"
)

// conn is the role-independent half of a client: transport, state and
// framing.
type conn struct {
	role    string
	rw      io.ReadWriteCloser
	limits  frame.Limits
	tagName func(uint8) string
	log     zerolog.Logger

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

func newConn(role string, rw io.ReadWriteCloser, limits frame.Limits, tagName func(uint8) string) *conn {
	if limits.MaxPayloadBytes == 0 {
		limits = frame.DefaultLimits()
	}
	return &conn{
		role:    role,
		rw:      rw,
		limits:  limits,
		tagName: tagName,
		log:     log.With().Str("role", role).Logger(),
	}
}

// handshake runs the version exchange and moves to Connected, or closes the
// connection on any failure.
func (c *conn) handshake(version string, order handshake.Order) error {
	err := handshake.Exchange(c.rw, handshake.Build(version), order)
	observability.RecordHandshake(c.role, err == nil)
	if err != nil {
		c.log.Warn().Err(err).Str("order", order.String()).Msg("handshake failed")
		_ = c.Close()
		return err
	}
	c.setState(StateConnected)
	c.log.Info().Str("order", order.String()).Msg("connected")
	return nil
}

func (c *conn) State() State {
	return State(c.state.Load())
}

func (c *conn) Connected() bool {
	return c.State() == StateConnected
}

func (c *conn) setState(s State) {
	c.state.Store(int32(s))
	observability.RecordState(c.role, s.String())
}

// Close moves the connection to Closed and closes the transport. It is safe
// to call more than once and from a goroutine other than the driving one.
func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		c.closeErr = c.rw.Close()
		c.log.Info().Msg("connection closed")
	})
	return c.closeErr
}

// send frames one payload. A transport write failure closes the connection.
func (c *conn) send(payload []byte) error {
	if !c.Connected() {
		return protocol.ErrNotConnected
	}
	if err := frame.Write(c.rw, payload); err != nil {
		c.log.Warn().Err(err).Str("tag", c.tagName(payload[0])).Msg("send failed")
		if errors.Is(err, protocol.ErrWrite) {
			_ = c.Close()
		}
		return err
	}
	observability.RecordFrame(c.role, observability.DirectionOut, c.tagName(payload[0]), len(payload))
	return nil
}

// receive reads one framed message. A closed stream or a framing error
// closes the connection and is returned as-is.
func (c *conn) receive() (uint8, []byte, error) {
	if !c.Connected() {
		return 0, nil, protocol.ErrConnectionClosed
	}
	payload, err := frame.Read(c.rw, c.limits)
	if err != nil {
		if c.Connected() {
			c.log.Info().Err(err).Msg("receive ended")
		}
		_ = c.Close()
		if errors.Is(err, protocol.ErrFraming) || errors.Is(err, protocol.ErrConnectionClosed) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("%w: %w", protocol.ErrConnectionClosed, err)
	}
	tag, body, err := frame.Split(payload)
	if err != nil {
		observability.RecordDecodeError(c.role, "empty")
		return 0, nil, err
	}
	observability.RecordFrame(c.role, observability.DirectionIn, c.tagName(tag), len(payload))
	return tag, body, nil
}

// watch closes the connection when ctx ends, unblocking a pending read. The
// returned stop function releases the watcher.
func (c *conn) watch(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
