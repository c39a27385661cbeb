package aggregator

import (
	"bytes"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/danmuck/grailctl/internal/protocol/frame"
	"github.com/danmuck/grailctl/internal/testutil/testlog"
)

func TestSubscriptionRequestRoundTrip(t *testing.T) {
	testlog.Start(t)
	rng := rand.New(rand.NewSource(7))
	for filters := 0; filters <= 5; filters++ {
		rules := []Rule{{PhyLayer: uint8(filters + 1), UpdateInterval: uint64(rng.Int63())}}
		for i := 0; i < filters; i++ {
			rules[0].Filters = append(rules[0].Filters, IDMask{
				ID:   protocol.NewWideID(rng.Uint64()),
				Mask: protocol.NewWideID(rng.Uint64()),
			})
		}
		payload, err := EncodeSubscriptionRequest(rules)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if Tag(payload[0]) != TagSubscriptionRequest {
			t.Fatalf("unexpected tag %d", payload[0])
		}
		got, err := DecodeSubscriptionRequest(payload[1:])
		if err != nil {
			t.Fatalf("decode filters=%d: %v", filters, err)
		}
		if len(got) != 1 || got[0].PhyLayer != rules[0].PhyLayer || got[0].UpdateInterval != rules[0].UpdateInterval {
			t.Fatalf("rule mismatch: got=%+v want=%+v", got, rules)
		}
		if len(got[0].Filters) != filters {
			t.Fatalf("filter count=%d want=%d", len(got[0].Filters), filters)
		}
		for i := range got[0].Filters {
			if got[0].Filters[i] != rules[0].Filters[i] {
				t.Fatalf("filter[%d] mismatch: got=%+v want=%+v", i, got[0].Filters[i], rules[0].Filters[i])
			}
		}
	}
}

func TestSubscriptionRequestWireBytes(t *testing.T) {
	testlog.Start(t)
	payload, err := EncodeSubscriptionRequest([]Rule{{PhyLayer: 1, UpdateInterval: 1000}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		3,          // tag
		0, 0, 0, 1, // rule count
		1,          // phy
		0, 0, 0, 0, // filter count
		0, 0, 0, 0, 0, 0, 0x03, 0xE8, // interval 1000
	}
	if !bytes.Equal(payload, want) {
		t.Fatalf("payload=%x want=%x", payload, want)
	}

	framed, err := frame.Encode(payload)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if !bytes.Equal(framed[:4], []byte{0, 0, 0, byte(len(want))}) {
		t.Fatalf("unexpected length prefix: %x", framed[:4])
	}
	got, err := frame.Read(bytes.NewReader(framed), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	rules, err := DecodeSubscriptionRequest(got[1:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want1 := []Rule{{PhyLayer: 1, Filters: []IDMask{}, UpdateInterval: 1000}}
	if !reflect.DeepEqual(rules, want1) {
		t.Fatalf("rules=%+v want=%+v", rules, want1)
	}
}

func TestSubscriptionResponseEmptyRuleSet(t *testing.T) {
	testlog.Start(t)
	payload, err := EncodeSubscriptionResponse(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rules, err := DecodeSubscriptionResponse(payload[1:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("expected no rules, got %+v", rules)
	}
}

func TestDecodeRulesTruncated(t *testing.T) {
	testlog.Start(t)
	payload, err := EncodeSubscriptionResponse([]Rule{{PhyLayer: 2, Filters: []IDMask{NewIDMask(1, DefaultMask)}, UpdateInterval: 5}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := payload[1:]
	for cut := 0; cut < len(body); cut++ {
		if _, err := DecodeSubscriptionResponse(body[:cut]); !errors.Is(err, protocol.ErrProtocolViolation) {
			t.Fatalf("cut=%d: expected ErrProtocolViolation, got %v", cut, err)
		}
	}
}

func TestDecodeServerSampleEmptyBody(t *testing.T) {
	testlog.Start(t)
	_, ok, err := DecodeServerSample(nil)
	if err != nil || ok {
		t.Fatalf("expected no sample and no error, got ok=%v err=%v", ok, err)
	}
}

func TestDecodeServerSampleFields(t *testing.T) {
	testlog.Start(t)
	b := protocol.NewBuilder(uint8(TagServerSample))
	b.U8(1)
	b.WideID(protocol.NewWideID(7))
	b.WideID(protocol.NewWideID(9))
	b.F64(1000.0)
	b.F32(-40.5)
	b.Raw([]byte("x"))
	payload, err := b.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}

	s, ok, err := DecodeServerSample(payload[1:])
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	want := Sample{
		PhyLayer:    1,
		Transmitter: protocol.NewWideID(7),
		Receiver:    protocol.NewWideID(9),
		Timestamp:   1000.0,
		RSSI:        -40.5,
		Payload:     []byte("x"),
	}
	if !reflect.DeepEqual(s, want) {
		t.Fatalf("sample=%+v want=%+v", s, want)
	}

	again, err := EncodeServerSample(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(again, payload) {
		t.Fatalf("encoder disagrees: %x vs %x", again, payload)
	}
}

func TestDecodeServerSampleTooShort(t *testing.T) {
	testlog.Start(t)
	if _, _, err := DecodeServerSample([]byte{1, 2, 3}); !errors.Is(err, protocol.ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
}

func TestDecodeServerSampleEmptyPayload(t *testing.T) {
	testlog.Start(t)
	payload, err := EncodeServerSample(Sample{PhyLayer: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s, ok, err := DecodeServerSample(payload[1:])
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if len(s.Payload) != 0 {
		t.Fatalf("unexpected payload: %x", s.Payload)
	}
}
