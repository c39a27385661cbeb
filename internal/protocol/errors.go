package protocol

import "errors"

var (
	ErrConnectFailed     = errors.New("protocol: connect failed")
	ErrHandshakeMismatch = errors.New("protocol: handshake mismatch")
	ErrFraming           = errors.New("protocol: framing error")
	ErrProtocolViolation = errors.New("protocol: protocol violation")
	ErrConnectionClosed  = errors.New("protocol: connection closed")
	ErrWrite             = errors.New("protocol: write error")
	ErrNotConnected      = errors.New("protocol: not connected")
)
