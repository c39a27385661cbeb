package solver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/grailctl/internal/observability"
	"github.com/danmuck/grailctl/internal/protocol/aggregator"
	"github.com/danmuck/grailctl/internal/protocol/frame"
	"github.com/danmuck/grailctl/internal/protocol/handshake"
	"github.com/danmuck/grailctl/internal/transport"
)

// AggregatorConfig configures an AggregatorClient. Callbacks are optional and
// run on the goroutine calling HandleMessage.
type AggregatorConfig struct {
	Limits frame.Limits
	// MaxQueued caps the sample ready queue; the oldest samples are dropped
	// first. Zero leaves the queue unbounded.
	MaxQueued int
	OnSample  func(aggregator.Sample)
	OnRules   func([]aggregator.Rule)
}

// AggregatorClient is a solver's connection to an aggregator.
type AggregatorClient struct {
	*conn
	cfg     AggregatorConfig
	rules   []aggregator.Rule
	samples []aggregator.Sample
}

// NewAggregatorClient runs the receive-first handshake over rw. On failure rw
// is closed and the handshake error is returned.
func NewAggregatorClient(rw io.ReadWriteCloser, cfg AggregatorConfig) (*AggregatorClient, error) {
	c := newAggregatorClient(rw, cfg)
	if err := c.handshake(handshake.AggregatorVersion, handshake.ReceiveFirst); err != nil {
		return nil, err
	}
	return c, nil
}

// DialAggregator connects to addr and completes the handshake. Cancelling ctx
// aborts both the dial and a stalled handshake.
func DialAggregator(ctx context.Context, addr string, tcfg transport.Config, cfg AggregatorConfig) (*AggregatorClient, error) {
	raw, err := transport.Dial(ctx, addr, tcfg)
	if err != nil {
		return nil, err
	}
	c := newAggregatorClient(raw, cfg)
	stop := c.watch(ctx)
	err = c.handshake(handshake.AggregatorVersion, handshake.ReceiveFirst)
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", err, ctx.Err())
		}
		return nil, err
	}
	return c, nil
}

func newAggregatorClient(rw io.ReadWriteCloser, cfg AggregatorConfig) *AggregatorClient {
	return &AggregatorClient{
		conn: newConn(roleAggregator, rw, cfg.Limits, func(tag uint8) string {
			return aggregator.Tag(tag).String()
		}),
		cfg: cfg,
	}
}

// SendSubscription sends rules and waits for the aggregator's response,
// dispatching anything that arrives in between. It reports false when the
// send fails or the connection closes first; the current rules are then left
// unchanged.
func (c *AggregatorClient) SendSubscription(rules []aggregator.Rule) bool {
	payload, err := aggregator.EncodeSubscriptionRequest(rules)
	if err != nil {
		c.log.Warn().Err(err).Msg("encode subscription")
		return false
	}
	if err := c.send(payload); err != nil {
		return false
	}
	started := time.Now()
	for {
		tag, err := c.HandleMessage()
		if tag == aggregator.TagSubscriptionResponse && err == nil {
			observability.RecordSubscribe(time.Since(started))
			return true
		}
		if !c.Connected() {
			return false
		}
	}
}

// SendSubscriptionContext is SendSubscription with cancellation: ctx ending
// closes the connection and the call reports false.
func (c *AggregatorClient) SendSubscriptionContext(ctx context.Context, rules []aggregator.Rule) bool {
	stop := c.watch(ctx)
	defer stop()
	return c.SendSubscription(rules)
}

// HandleMessage reads and dispatches one message. It returns the received
// tag, or TagClosed with an error wrapping protocol.ErrConnectionClosed (or
// protocol.ErrFraming) once the connection has ended. A malformed body is
// reported as protocol.ErrProtocolViolation with the connection left open.
func (c *AggregatorClient) HandleMessage() (aggregator.Tag, error) {
	raw, body, err := c.receive()
	if err != nil {
		if !c.Connected() {
			return aggregator.TagClosed, err
		}
		return aggregator.TagKeepAlive, err
	}
	tag := aggregator.Tag(raw)
	switch tag {
	case aggregator.TagSubscriptionResponse:
		rules, err := aggregator.DecodeSubscriptionResponse(body)
		if err != nil {
			observability.RecordDecodeError(roleAggregator, tag.String())
			return tag, err
		}
		c.rules = rules
		c.log.Debug().Int("rules", len(rules)).Msg("subscription response")
		if c.cfg.OnRules != nil {
			c.cfg.OnRules(c.Rules())
		}
	case aggregator.TagServerSample:
		s, ok, err := aggregator.DecodeServerSample(body)
		if err != nil {
			observability.RecordDecodeError(roleAggregator, tag.String())
			return tag, err
		}
		if !ok {
			return tag, nil
		}
		observability.RecordSample(s.PhyLayer)
		c.enqueue(s)
		if c.cfg.OnSample != nil {
			c.cfg.OnSample(s)
		}
	default:
		if !tag.Known() {
			c.log.Debug().Uint8("tag", raw).Msg("ignoring unknown tag")
		}
	}
	return tag, nil
}

func (c *AggregatorClient) enqueue(s aggregator.Sample) {
	c.samples = append(c.samples, s)
	if c.cfg.MaxQueued > 0 && len(c.samples) > c.cfg.MaxQueued {
		c.samples = c.samples[len(c.samples)-c.cfg.MaxQueued:]
	}
}

// Rules returns a copy of the rule set last confirmed by the aggregator.
func (c *AggregatorClient) Rules() []aggregator.Rule {
	out := make([]aggregator.Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// TakeSamples drains the ready queue in arrival order.
func (c *AggregatorClient) TakeSamples() []aggregator.Sample {
	out := c.samples
	c.samples = nil
	return out
}

// SendKeepAlive may run on its own goroutine while Run pumps messages, as
// long as no other goroutine sends.
func (c *AggregatorClient) SendKeepAlive() error {
	return c.send(aggregator.EncodeKeepAlive())
}

// Run pumps HandleMessage until the connection closes or ctx ends.
// Cancellation closes the transport and returns ctx.Err(). Malformed
// messages are logged and skipped; callers read samples through OnSample or
// TakeSamples.
func (c *AggregatorClient) Run(ctx context.Context) error {
	stop := c.watch(ctx)
	defer stop()
	for {
		tag, err := c.HandleMessage()
		if err == nil {
			continue
		}
		if tag == aggregator.TagClosed {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.log.Warn().Err(err).Str("tag", tag.String()).Msg("dropping malformed message")
	}
}
