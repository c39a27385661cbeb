package status

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/grailctl/internal/protocol/aggregator"
	"github.com/danmuck/grailctl/internal/protocol/worldmodel"
)

// recentSamples bounds the samples kept for /samples.
const recentSamples = 32

// Board is the shared view published by the status server. Client callbacks
// write to it from their driving goroutines; handlers read snapshots.
type Board struct {
	mu sync.RWMutex

	started    time.Time
	states     map[string]string
	rules      []RuleView
	aliases    []string
	samples    []SampleView
	phyCounts  map[uint8]uint64
	transients map[uint32][]string
}

type RuleView struct {
	PhyLayer   uint8        `json:"phy"`
	IntervalMS uint64       `json:"interval_ms"`
	Filters    []FilterView `json:"filters"`
}

type FilterView struct {
	ID   string `json:"id"`
	Mask string `json:"mask"`
}

type SampleView struct {
	PhyLayer    uint8     `json:"phy"`
	Transmitter string    `json:"transmitter"`
	Receiver    string    `json:"receiver"`
	Time        time.Time `json:"time"`
	RSSI        float32   `json:"rssi"`
	Bytes       int       `json:"bytes"`
}

type AliasView struct {
	Alias uint32 `json:"alias"`
	Name  string `json:"name"`
}

type TransientView struct {
	Alias       uint32   `json:"alias"`
	Name        string   `json:"name,omitempty"`
	Expressions []string `json:"expressions"`
}

func NewBoard() *Board {
	return &Board{
		started:    time.Now(),
		states:     make(map[string]string),
		phyCounts:  make(map[uint8]uint64),
		transients: make(map[uint32][]string),
	}
}

func (b *Board) SetState(role, state string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[role] = state
}

func (b *Board) SetRules(rules []aggregator.Rule) {
	views := make([]RuleView, 0, len(rules))
	for _, r := range rules {
		v := RuleView{PhyLayer: r.PhyLayer, IntervalMS: r.UpdateInterval, Filters: make([]FilterView, 0, len(r.Filters))}
		for _, f := range r.Filters {
			v.Filters = append(v.Filters, FilterView{ID: f.ID.String(), Mask: f.Mask.String()})
		}
		views = append(views, v)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = views
}

func (b *Board) ObserveSample(s aggregator.Sample) {
	v := SampleView{
		PhyLayer:    s.PhyLayer,
		Transmitter: s.Transmitter.String(),
		Receiver:    s.Receiver.String(),
		Time:        s.Time().UTC(),
		RSSI:        s.RSSI,
		Bytes:       len(s.Payload),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phyCounts[s.PhyLayer]++
	b.samples = append(b.samples, v)
	if len(b.samples) > recentSamples {
		b.samples = b.samples[len(b.samples)-recentSamples:]
	}
}

func (b *Board) SetAliases(names []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aliases = append([]string(nil), names...)
}

// StartTransient records the requested expressions per type alias,
// replacing any previous request for the same alias.
func (b *Board) StartTransient(reqs []worldmodel.TransientRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range reqs {
		b.transients[r.TypeAlias] = append([]string(nil), r.Expressions...)
	}
}

func (b *Board) StopTransient(reqs []worldmodel.TransientRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range reqs {
		delete(b.transients, r.TypeAlias)
	}
}

func (b *Board) Uptime() time.Duration {
	return time.Since(b.started)
}

func (b *Board) States() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.states))
	for k, v := range b.states {
		out[k] = v
	}
	return out
}

func (b *Board) Rules() []RuleView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]RuleView{}, b.rules...)
}

func (b *Board) Aliases() []AliasView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]AliasView, 0, len(b.aliases))
	for i, name := range b.aliases {
		out = append(out, AliasView{Alias: uint32(i), Name: name})
	}
	return out
}

func (b *Board) Samples() ([]SampleView, map[uint8]uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counts := make(map[uint8]uint64, len(b.phyCounts))
	for k, v := range b.phyCounts {
		counts[k] = v
	}
	return append([]SampleView{}, b.samples...), counts
}

// Transients lists active transient requests ordered by alias, naming each
// alias when it is known.
func (b *Board) Transients() []TransientView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]TransientView, 0, len(b.transients))
	for alias, exprs := range b.transients {
		v := TransientView{Alias: alias, Expressions: append([]string{}, exprs...)}
		if int(alias) < len(b.aliases) {
			v.Name = b.aliases[alias]
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}
