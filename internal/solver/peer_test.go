package solver

import (
	"net"
	"testing"

	"github.com/danmuck/grailctl/internal/protocol/frame"
	"github.com/danmuck/grailctl/internal/protocol/handshake"
)

// fakePeer plays the server end of a net.Pipe.
type fakePeer struct {
	t    *testing.T
	conn net.Conn
}

// handshake runs the server half of the exchange in the background. The
// returned channel yields its result.
func (p *fakePeer) handshake(version string, order handshake.Order) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- handshake.Exchange(p.conn, handshake.Build(version), order)
	}()
	return errc
}

func (p *fakePeer) send(payload []byte) {
	if err := frame.Write(p.conn, payload); err != nil {
		p.t.Errorf("peer send: %v", err)
	}
}

func (p *fakePeer) recv() (uint8, []byte) {
	payload, err := frame.Read(p.conn, frame.DefaultLimits())
	if err != nil {
		p.t.Errorf("peer recv: %v", err)
		return 0, nil
	}
	tag, body, err := frame.Split(payload)
	if err != nil {
		p.t.Errorf("peer split: %v", err)
	}
	return tag, body
}

func newPipePeer(t *testing.T) (net.Conn, *fakePeer) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { _ = server.Close() })
	return client, &fakePeer{t: t, conn: server}
}

func connectAggregator(t *testing.T, cfg AggregatorConfig) (*AggregatorClient, *fakePeer) {
	t.Helper()
	rw, p := newPipePeer(t)
	errc := p.handshake(handshake.AggregatorVersion, handshake.SendFirst)
	c, err := NewAggregatorClient(rw, cfg)
	if err != nil {
		t.Fatalf("NewAggregatorClient: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("peer handshake: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, p
}

func connectWorldModel(t *testing.T, cfg WorldModelConfig) (*WorldModelClient, *fakePeer) {
	t.Helper()
	rw, p := newPipePeer(t)
	errc := p.handshake(handshake.WorldModelVersion, handshake.ReceiveFirst)
	c, err := NewWorldModelClient(rw, cfg)
	if err != nil {
		t.Fatalf("NewWorldModelClient: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("peer handshake: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, p
}
