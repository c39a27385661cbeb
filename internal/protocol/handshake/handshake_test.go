package handshake

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/danmuck/grailctl/internal/testutil/testlog"
)

func TestBuildLayout(t *testing.T) {
	testlog.Start(t)
	got := Build("ab")
	want := []byte{0, 0, 0, 2, 'a', 'b', 0, 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("got=%x want=%x", got, want)
	}
	if len(Build(AggregatorVersion)) != 4+len(AggregatorVersion)+2 {
		t.Fatalf("unexpected aggregator handshake length")
	}
}

// peer plays the remote side over a net.Pipe using the opposite order.
func peer(conn net.Conn, blob []byte, order Order) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer conn.Close()
		done <- Exchange(conn, blob, order)
	}()
	return done
}

func TestExchangeMatchingVersions(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		version string
		local   Order
		remote  Order
	}{
		{version: AggregatorVersion, local: ReceiveFirst, remote: SendFirst},
		{version: WorldModelVersion, local: SendFirst, remote: ReceiveFirst},
	}
	for _, tc := range cases {
		client, server := net.Pipe()
		done := peer(server, Build(tc.version), tc.remote)
		if err := Exchange(client, Build(tc.version), tc.local); err != nil {
			t.Fatalf("%s: exchange: %v", tc.local, err)
		}
		if err := <-done; err != nil {
			t.Fatalf("%s: peer exchange: %v", tc.remote, err)
		}
		_ = client.Close()
	}
}

func TestExchangeDifferentVersionFails(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer client.Close()
	go func() {
		defer server.Close()
		_, _ = server.Write(Build("GRAIL solver protocoX"))
	}()
	err := Exchange(client, Build(AggregatorVersion), ReceiveFirst)
	if !errors.Is(err, protocol.ErrHandshakeMismatch) {
		t.Fatalf("expected ErrHandshakeMismatch, got %v", err)
	}
}

func TestExchangeShortResponseFails(t *testing.T) {
	testlog.Start(t)
	local := Build(WorldModelVersion)
	rw := &scripted{in: bytes.NewReader(local[:5])}
	err := Exchange(rw, local, SendFirst)
	if !errors.Is(err, protocol.ErrHandshakeMismatch) {
		t.Fatalf("expected ErrHandshakeMismatch, got %v", err)
	}
	if !bytes.Equal(rw.out.Bytes(), local) {
		t.Fatalf("send-first must write before reading")
	}
}

func TestReceiveFirstDoesNotSendOnMismatch(t *testing.T) {
	testlog.Start(t)
	remote := Build("other protocol string!")
	rw := &scripted{in: bytes.NewReader(remote)}
	err := Exchange(rw, Build(AggregatorVersion), ReceiveFirst)
	if !errors.Is(err, protocol.ErrHandshakeMismatch) {
		t.Fatalf("expected ErrHandshakeMismatch, got %v", err)
	}
	if rw.out.Len() != 0 {
		t.Fatalf("receive-first wrote %d bytes after a mismatch", rw.out.Len())
	}
}

type scripted struct {
	in  io.Reader
	out bytes.Buffer
}

func (s *scripted) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *scripted) Write(p []byte) (int, error) { return s.out.Write(p) }
