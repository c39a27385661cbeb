package aggregator

import (
	"fmt"
	"math"
	"time"

	"github.com/danmuck/grailctl/internal/protocol"
)

// DefaultMask matches the low 32 bits of a transmitter id.
const DefaultMask uint64 = 0xFFFFFFFF

// IDMask selects transmitters whose masked id equals the masked filter id.
type IDMask struct {
	ID   protocol.WideID
	Mask protocol.WideID
}

func NewIDMask(id, mask uint64) IDMask {
	return IDMask{ID: protocol.NewWideID(id), Mask: protocol.NewWideID(mask)}
}

func (m IDMask) Matches(candidate protocol.WideID) bool {
	return candidate.And(m.Mask) == m.ID.And(m.Mask)
}

// Rule is one subscription entry. An empty Filters list matches every
// transmitter on the physical layer.
type Rule struct {
	PhyLayer       uint8
	Filters        []IDMask
	UpdateInterval uint64 // milliseconds
}

// Matches reports whether a sample from tx on phy falls under this rule.
func (r Rule) Matches(phy uint8, tx protocol.WideID) bool {
	if phy != r.PhyLayer {
		return false
	}
	if len(r.Filters) == 0 {
		return true
	}
	for _, f := range r.Filters {
		if f.Matches(tx) {
			return true
		}
	}
	return false
}

// Sample is one sensor observation forwarded by the aggregator.
type Sample struct {
	PhyLayer    uint8
	Transmitter protocol.WideID
	Receiver    protocol.WideID
	Timestamp   float64 // seconds since the epoch
	RSSI        float32
	Payload     []byte
}

// Time converts the sample timestamp to a time.Time.
func (s Sample) Time() time.Time {
	sec, frac := math.Modf(s.Timestamp)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

func (s Sample) String() string {
	return fmt.Sprintf("%s: (phy %d) %s -> %s, RSS: %g, %d bytes: %x",
		s.Time().UTC().Format(time.RFC3339Nano), s.PhyLayer, s.Transmitter, s.Receiver, s.RSSI, len(s.Payload), s.Payload)
}
