package transport

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrAddressRequired = errors.New("transport: address required")

// Config controls how a GRAIL connection is established.
type Config struct {
	ConnectTimeout time.Duration
	// ReadTimeout and WriteTimeout bound each blocking call; zero blocks
	// indefinitely.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ConnectAttempts caps initial dial attempts; values below 1 mean one.
	ConnectAttempts int
	Backoff         BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  5 * time.Second,
		ConnectAttempts: 1,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// Dial connects to addr over TCP. Every failure is reported as
// protocol.ErrConnectFailed wrapping the last dial error.
func Dial(ctx context.Context, addr string, cfg Config) (net.Conn, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("%w: %w", protocol.ErrConnectFailed, ErrAddressRequired)
	}
	attempts := max(cfg.ConnectAttempts, 1)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			log.Debug().Str("addr", addr).Int("attempt", attempt).Msg("transport connected")
			return Wrap(conn, cfg), nil
		}
		lastErr = err
		log.Warn().Str("addr", addr).Int("attempt", attempt).Err(err).Msg("transport dial failed")
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, NextBackoffDelay(cfg.Backoff, attempt, rng)); err != nil {
			lastErr = err
			break
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", protocol.ErrConnectFailed, addr, lastErr)
}

// Wrap applies the configured read and write deadlines to conn. It returns
// conn unchanged when no deadline is configured.
func Wrap(conn net.Conn, cfg Config) net.Conn {
	if cfg.ReadTimeout <= 0 && cfg.WriteTimeout <= 0 {
		return conn
	}
	return &deadlineConn{Conn: conn, read: cfg.ReadTimeout, write: cfg.WriteTimeout}
}

type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
