package solver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/grailctl/internal/observability"
	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/danmuck/grailctl/internal/protocol/frame"
	"github.com/danmuck/grailctl/internal/protocol/handshake"
	"github.com/danmuck/grailctl/internal/protocol/worldmodel"
	"github.com/danmuck/grailctl/internal/transport"
)

var ErrOriginRequired = errors.New("solver: origin required")

// WorldModelConfig configures a WorldModelClient. Origin is appended to every
// announcement and object command. Callbacks are optional and run on the
// goroutine calling HandleMessage.
type WorldModelConfig struct {
	Origin           string
	Limits           frame.Limits
	OnStartTransient func([]worldmodel.TransientRequest)
	OnStopTransient  func([]worldmodel.TransientRequest)
}

// WorldModelClient is a solver's connection to a world model.
type WorldModelClient struct {
	*conn
	cfg     WorldModelConfig
	aliases *worldmodel.AliasTable
}

// NewWorldModelClient runs the send-first handshake over rw. On failure rw is
// closed and the handshake error is returned.
func NewWorldModelClient(rw io.ReadWriteCloser, cfg WorldModelConfig) (*WorldModelClient, error) {
	if cfg.Origin == "" {
		_ = rw.Close()
		return nil, ErrOriginRequired
	}
	c := newWorldModelClient(rw, cfg)
	if err := c.handshake(handshake.WorldModelVersion, handshake.SendFirst); err != nil {
		return nil, err
	}
	return c, nil
}

// DialWorldModel connects to addr and completes the handshake. Cancelling ctx
// aborts both the dial and a stalled handshake.
func DialWorldModel(ctx context.Context, addr string, tcfg transport.Config, cfg WorldModelConfig) (*WorldModelClient, error) {
	if cfg.Origin == "" {
		return nil, ErrOriginRequired
	}
	raw, err := transport.Dial(ctx, addr, tcfg)
	if err != nil {
		return nil, err
	}
	c := newWorldModelClient(raw, cfg)
	stop := c.watch(ctx)
	err = c.handshake(handshake.WorldModelVersion, handshake.SendFirst)
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", err, ctx.Err())
		}
		return nil, err
	}
	return c, nil
}

func newWorldModelClient(rw io.ReadWriteCloser, cfg WorldModelConfig) *WorldModelClient {
	return &WorldModelClient{
		conn: newConn(roleWorldModel, rw, cfg.Limits, func(tag uint8) string {
			return worldmodel.Tag(tag).String()
		}),
		cfg:     cfg,
		aliases: worldmodel.NewAliasTable(),
	}
}

func (c *WorldModelClient) Origin() string {
	return c.cfg.Origin
}

// Aliases returns the attribute names announced so far, indexed by alias.
func (c *WorldModelClient) Aliases() []string {
	return c.aliases.Names()
}

// AddTypes assigns aliases to attribute names not seen before and announces
// them in a single TypeAnnounce. Names already known are skipped; nothing is
// sent when every name is known.
func (c *WorldModelClient) AddTypes(attrs []worldmodel.Attribute, transient bool) error {
	if !c.Connected() {
		return protocol.ErrNotConnected
	}
	types := c.assignAliases(attrs, transient)
	if len(types) == 0 {
		return nil
	}
	return c.announce(types)
}

func (c *WorldModelClient) assignAliases(attrs []worldmodel.Attribute, transient bool) []worldmodel.TypeSpec {
	var types []worldmodel.TypeSpec
	for _, a := range attrs {
		alias, isNew := c.aliases.GetOrCreate(a.Name)
		if !isNew {
			continue
		}
		types = append(types, worldmodel.TypeSpec{Alias: alias, Name: a.Name, Transient: transient})
	}
	return types
}

func (c *WorldModelClient) announce(types []worldmodel.TypeSpec) error {
	payload, err := worldmodel.EncodeTypeAnnounce(types, c.cfg.Origin)
	if err != nil {
		return err
	}
	if err := c.send(payload); err != nil {
		return err
	}
	c.log.Debug().Int("types", len(types)).Int("known", c.aliases.Len()).Msg("type announce")
	return nil
}

// PushData sends attribute values for one or more objects. Attribute names
// not yet announced are declared as non-transient first. With create set the
// world model creates objects that do not exist yet.
func (c *WorldModelClient) PushData(data []worldmodel.Data, create bool) error {
	if !c.Connected() {
		return protocol.ErrNotConnected
	}
	var attrs []worldmodel.Attribute
	for _, d := range data {
		attrs = append(attrs, d.Attributes...)
	}
	if err := c.AddTypes(attrs, false); err != nil {
		return err
	}
	payload, err := worldmodel.EncodeSolverData(create, data, c.aliases)
	if err != nil {
		return err
	}
	return c.send(payload)
}

// CreateURI creates an object; creation is in milliseconds since the epoch.
func (c *WorldModelClient) CreateURI(uri string, creation int64) error {
	payload, err := worldmodel.EncodeCreateURI(uri, creation, c.cfg.Origin)
	if err != nil {
		return err
	}
	return c.send(payload)
}

// ExpireURI marks an object invalid after expiration (milliseconds).
func (c *WorldModelClient) ExpireURI(uri string, expiration int64) error {
	payload, err := worldmodel.EncodeExpireURI(uri, expiration, c.cfg.Origin)
	if err != nil {
		return err
	}
	return c.send(payload)
}

func (c *WorldModelClient) DeleteURI(uri string) error {
	payload, err := worldmodel.EncodeDeleteURI(uri, c.cfg.Origin)
	if err != nil {
		return err
	}
	return c.send(payload)
}

// ExpireAttribute marks one attribute of an object invalid after expiration.
// The attribute name must already have an alias.
func (c *WorldModelClient) ExpireAttribute(uri, name string, expiration int64) error {
	alias, ok := c.aliases.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", worldmodel.ErrUnknownAttribute, name)
	}
	payload, err := worldmodel.EncodeExpireAttribute(uri, alias, expiration, c.cfg.Origin)
	if err != nil {
		return err
	}
	return c.send(payload)
}

// DeleteAttribute removes one attribute of an object. The attribute name must
// already have an alias.
func (c *WorldModelClient) DeleteAttribute(uri, name string) error {
	alias, ok := c.aliases.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", worldmodel.ErrUnknownAttribute, name)
	}
	payload, err := worldmodel.EncodeDeleteAttribute(uri, alias, c.cfg.Origin)
	if err != nil {
		return err
	}
	return c.send(payload)
}

// SendKeepAlive may run on its own goroutine while Run pumps messages, as
// long as no other goroutine sends.
func (c *WorldModelClient) SendKeepAlive() error {
	return c.send(worldmodel.EncodeKeepAlive())
}

// HandleMessage reads and dispatches one message. It returns the received
// tag, or TagClosed with an error once the connection has ended. Transient
// requests with a malformed body are reported as
// protocol.ErrProtocolViolation and the callback is not invoked.
func (c *WorldModelClient) HandleMessage() (worldmodel.Tag, error) {
	raw, body, err := c.receive()
	if err != nil {
		if !c.Connected() {
			return worldmodel.TagClosed, err
		}
		return worldmodel.TagKeepAlive, err
	}
	tag := worldmodel.Tag(raw)
	switch tag {
	case worldmodel.TagStartTransient, worldmodel.TagStopTransient:
		reqs, err := worldmodel.DecodeTransientRequests(body)
		if err != nil {
			observability.RecordDecodeError(roleWorldModel, tag.String())
			return tag, err
		}
		c.log.Debug().Str("tag", tag.String()).Int("requests", len(reqs)).Msg("transient request")
		cb := c.cfg.OnStartTransient
		if tag == worldmodel.TagStopTransient {
			cb = c.cfg.OnStopTransient
		}
		if cb != nil {
			cb(reqs)
		}
	default:
		if !tag.Known() {
			c.log.Debug().Uint8("tag", raw).Msg("ignoring unknown tag")
		}
	}
	return tag, nil
}

// Run pumps HandleMessage until the connection closes or ctx ends.
// Cancellation closes the transport and returns ctx.Err().
func (c *WorldModelClient) Run(ctx context.Context) error {
	stop := c.watch(ctx)
	defer stop()
	for {
		tag, err := c.HandleMessage()
		if err == nil {
			continue
		}
		if tag == worldmodel.TagClosed {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.log.Warn().Err(err).Str("tag", tag.String()).Msg("dropping malformed message")
	}
}
