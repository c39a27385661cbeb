package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/danmuck/grailctl/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	cases := map[int]time.Duration{
		1: 250 * time.Millisecond,
		2: 500 * time.Millisecond,
		3: time.Second,
		6: 5 * time.Second,
	}
	for attempt, want := range cases {
		if got := NextBackoffDelay(cfg, attempt, nil); got != want {
			t.Fatalf("attempt%d got=%v want=%v", attempt, got, want)
		}
	}
}

func TestDialConnects(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			_ = c.Close()
		}
	}()

	conn, err := Dial(context.Background(), ln.Addr().String(), DefaultConfig())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()
}

func TestDialRefusedIsConnectFailed(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.ConnectAttempts = 2
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond}
	_, err = Dial(context.Background(), addr, cfg)
	if !errors.Is(err, protocol.ErrConnectFailed) {
		t.Fatalf("expected ErrConnectFailed, got %v", err)
	}
}

func TestDialRequiresAddress(t *testing.T) {
	testlog.Start(t)
	_, err := Dial(context.Background(), " ", DefaultConfig())
	if !errors.Is(err, ErrAddressRequired) || !errors.Is(err, protocol.ErrConnectFailed) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWrapReadDeadline(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer server.Close()
	conn := Wrap(client, Config{ReadTimeout: 20 * time.Millisecond})
	defer conn.Close()

	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if Wrap(client, Config{}) != client {
		t.Fatalf("wrap without deadlines must return the conn unchanged")
	}
}
