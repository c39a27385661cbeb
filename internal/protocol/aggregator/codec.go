package aggregator

import (
	"fmt"

	"github.com/danmuck/grailctl/internal/protocol"
)

const (
	// phy u8 + filter_count u32 + update_interval u64
	minRuleLen = 1 + 4 + 8

	filterLen = 2 * protocol.WideIDLen

	// phy u8 + transmitter + receiver + timestamp f64 + rssi f32
	minSampleLen = 1 + 2*protocol.WideIDLen + 8 + 4
)

// EncodeSubscriptionRequest returns the tagged payload requesting rules.
func EncodeSubscriptionRequest(rules []Rule) ([]byte, error) {
	return encodeRules(TagSubscriptionRequest, rules)
}

// EncodeSubscriptionResponse is the aggregator-side counterpart, used by
// test peers.
func EncodeSubscriptionResponse(rules []Rule) ([]byte, error) {
	return encodeRules(TagSubscriptionResponse, rules)
}

// DecodeSubscriptionRequest decodes a request body as an aggregator would.
func DecodeSubscriptionRequest(body []byte) ([]Rule, error) {
	return decodeRules(body)
}

// DecodeSubscriptionResponse decodes the rule set the aggregator accepted.
func DecodeSubscriptionResponse(body []byte) ([]Rule, error) {
	return decodeRules(body)
}

func encodeRules(tag Tag, rules []Rule) ([]byte, error) {
	b := protocol.NewBuilder(uint8(tag))
	b.Count(len(rules))
	for _, rule := range rules {
		b.U8(rule.PhyLayer)
		b.Count(len(rule.Filters))
		for _, f := range rule.Filters {
			b.WideID(f.ID)
			b.WideID(f.Mask)
		}
		b.U64(rule.UpdateInterval)
	}
	return b.Payload()
}

func decodeRules(body []byte) ([]Rule, error) {
	r := protocol.NewReader(body)
	count, err := r.Count("rule_count", minRuleLen)
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, count)
	for i := 0; i < count; i++ {
		rule, err := decodeRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func decodeRule(r *protocol.Reader) (Rule, error) {
	phy, err := r.U8("phy_layer")
	if err != nil {
		return Rule{}, err
	}
	n, err := r.Count("filter_count", filterLen)
	if err != nil {
		return Rule{}, err
	}
	filters := make([]IDMask, 0, n)
	for j := 0; j < n; j++ {
		id, err := r.WideID("filter id")
		if err != nil {
			return Rule{}, err
		}
		mask, err := r.WideID("filter mask")
		if err != nil {
			return Rule{}, err
		}
		filters = append(filters, IDMask{ID: id, Mask: mask})
	}
	interval, err := r.U64("update_interval")
	if err != nil {
		return Rule{}, err
	}
	return Rule{PhyLayer: phy, Filters: filters, UpdateInterval: interval}, nil
}

// DecodeServerSample decodes one sample. An empty body is legal and yields
// ok == false.
func DecodeServerSample(body []byte) (s Sample, ok bool, err error) {
	if len(body) == 0 {
		return Sample{}, false, nil
	}
	if len(body) < minSampleLen {
		return Sample{}, false, fmt.Errorf("%w: server sample needs %d bytes, got %d",
			protocol.ErrProtocolViolation, minSampleLen, len(body))
	}
	r := protocol.NewReader(body)
	if s.PhyLayer, err = r.U8("phy_layer"); err != nil {
		return Sample{}, false, err
	}
	if s.Transmitter, err = r.WideID("transmitter"); err != nil {
		return Sample{}, false, err
	}
	if s.Receiver, err = r.WideID("receiver"); err != nil {
		return Sample{}, false, err
	}
	if s.Timestamp, err = r.F64("timestamp"); err != nil {
		return Sample{}, false, err
	}
	if s.RSSI, err = r.F32("rssi"); err != nil {
		return Sample{}, false, err
	}
	s.Payload = r.Rest()
	return s, true, nil
}

// EncodeServerSample is the aggregator-side counterpart, used by test peers.
func EncodeServerSample(s Sample) ([]byte, error) {
	b := protocol.NewBuilder(uint8(TagServerSample))
	b.U8(s.PhyLayer)
	b.WideID(s.Transmitter)
	b.WideID(s.Receiver)
	b.F64(s.Timestamp)
	b.F32(s.RSSI)
	b.Raw(s.Payload)
	return b.Payload()
}

// EncodeKeepAlive returns an empty-bodied keep alive.
func EncodeKeepAlive() []byte {
	return []byte{uint8(TagKeepAlive)}
}
