package aggregator

import (
	"strings"
	"testing"
	"time"

	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/danmuck/grailctl/internal/testutil/testlog"
)

func TestIDMaskMatches(t *testing.T) {
	testlog.Start(t)
	m := NewIDMask(0x1200, 0xFF00)
	if !m.Matches(protocol.NewWideID(0x12AB)) {
		t.Fatalf("expected masked match")
	}
	if m.Matches(protocol.NewWideID(0x13AB)) {
		t.Fatalf("unexpected match")
	}
	if !NewIDMask(0, 0).Matches(protocol.NewWideID(99)) {
		t.Fatalf("zero mask must match everything")
	}
	wide := IDMask{ID: protocol.WideID{Hi: 1}, Mask: protocol.WideID{Hi: 1}}
	if wide.Matches(protocol.NewWideID(1)) {
		t.Fatalf("upper half must take part in matching")
	}
}

func TestRuleMatches(t *testing.T) {
	testlog.Start(t)
	all := Rule{PhyLayer: 1}
	if !all.Matches(1, protocol.NewWideID(42)) {
		t.Fatalf("empty filters must match all transmitters")
	}
	if all.Matches(2, protocol.NewWideID(42)) {
		t.Fatalf("rule must not match another phy layer")
	}
	some := Rule{PhyLayer: 1, Filters: []IDMask{NewIDMask(5, DefaultMask), NewIDMask(6, DefaultMask)}}
	if !some.Matches(1, protocol.NewWideID(6)) || some.Matches(1, protocol.NewWideID(7)) {
		t.Fatalf("filter list mismatch")
	}
}

func TestSampleTimeAndString(t *testing.T) {
	testlog.Start(t)
	s := Sample{PhyLayer: 1, Transmitter: protocol.NewWideID(7), Receiver: protocol.NewWideID(9), Timestamp: 1000.5, RSSI: -40.5, Payload: []byte("x")}
	if got := s.Time(); !got.Equal(time.Unix(1000, int64(500*time.Millisecond))) {
		t.Fatalf("unexpected time: %v", got)
	}
	out := s.String()
	for _, part := range []string{"(phy 1)", "7 -> 9", "RSS: -40.5", "1 bytes: 78"} {
		if !strings.Contains(out, part) {
			t.Fatalf("%q missing %q", out, part)
		}
	}
}

func TestTagString(t *testing.T) {
	testlog.Start(t)
	if TagServerSample.String() != "server_sample" {
		t.Fatalf("unexpected name: %s", TagServerSample)
	}
	if Tag(42).Known() || !TagBufferOverrun.Known() {
		t.Fatalf("unexpected Known result")
	}
}
