package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/grailctl/internal/protocol/worldmodel"
	"github.com/danmuck/grailctl/internal/solver"
	"github.com/danmuck/grailctl/internal/status"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// wmFlags are shared by the world model subcommands.
type wmFlags struct {
	addr   string
	origin string
	at     string
}

func (f *wmFlags) bind(cmd *cobra.Command, withTime bool) {
	cmd.Flags().StringVar(&f.addr, "addr", "", "world model address (overrides world_model.addr)")
	cmd.Flags().StringVar(&f.origin, "origin", "", "solver origin (overrides world_model.origin)")
	if withTime {
		cmd.Flags().StringVar(&f.at, "time", "", "RFC3339 timestamp or milliseconds since the epoch (default now)")
	}
}

// timestamp resolves --time to milliseconds since the epoch.
func (f *wmFlags) timestamp(now time.Time) (int64, error) {
	return parseMillis(f.at, now)
}

func parseMillis(raw string, now time.Time) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return worldmodel.Millis(now), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return worldmodel.Millis(t), nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: want RFC3339 or milliseconds", raw)
	}
	return ms, nil
}

func withWorldModel(ctx context.Context, opts *options, f *wmFlags, fn func(*solver.WorldModelClient) error) error {
	cfg := opts.cfg
	if f.addr != "" {
		cfg.WorldModel.Addr = f.addr
	}
	if f.origin != "" {
		cfg.WorldModel.Origin = f.origin
	}
	client, err := solver.DialWorldModel(ctx, cfg.WorldModel.Addr, cfg.Transport, solver.WorldModelConfig{
		Origin: cfg.WorldModel.Origin,
	})
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func newPushCmd(opts *options) *cobra.Command {
	var flags wmFlags
	var attrs []string
	var hexData, create bool
	cmd := &cobra.Command{
		Use:   "push <uri>",
		Short: "Push attribute values for one object",
		Long: `Push one or more name=value attributes for an object. Names not yet
announced are declared as non-transient types first. Values are sent as raw
bytes, or decoded from hex with --hex.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creation, err := flags.timestamp(time.Now())
			if err != nil {
				return err
			}
			data, err := buildData(args[0], attrs, hexData, creation)
			if err != nil {
				return err
			}
			return withWorldModel(cmd.Context(), opts, &flags, func(c *solver.WorldModelClient) error {
				if err := c.PushData([]worldmodel.Data{data}, create); err != nil {
					return err
				}
				log.Info().Str("uri", data.URI).Int("attributes", len(data.Attributes)).Bool("create", create).Msg("pushed")
				return nil
			})
		},
	}
	flags.bind(cmd, true)
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "attribute as name=value (repeatable)")
	cmd.Flags().BoolVar(&hexData, "hex", false, "attribute values are hex encoded")
	cmd.Flags().BoolVar(&create, "create", false, "create the object if it does not exist")
	_ = cmd.MarkFlagRequired("attr")
	return cmd
}

func buildData(uri string, attrs []string, hexData bool, creation int64) (worldmodel.Data, error) {
	data := worldmodel.Data{URI: uri, Attributes: make([]worldmodel.Attribute, 0, len(attrs))}
	for _, raw := range attrs {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return worldmodel.Data{}, fmt.Errorf("attribute %q: want name=value", raw)
		}
		payload := []byte(value)
		if hexData {
			var err error
			if payload, err = hex.DecodeString(value); err != nil {
				return worldmodel.Data{}, fmt.Errorf("attribute %q: %w", name, err)
			}
		}
		data.Attributes = append(data.Attributes, worldmodel.NewAttribute(name, payload, creation))
	}
	return data, nil
}

func newObjectCmds(opts *options) []*cobra.Command {
	return []*cobra.Command{
		objectCmd(opts, "create-uri <uri>", "Create an object", 1, true,
			func(c *solver.WorldModelClient, args []string, ts int64) error {
				return c.CreateURI(args[0], ts)
			}),
		objectCmd(opts, "expire-uri <uri>", "Expire an object at --time", 1, true,
			func(c *solver.WorldModelClient, args []string, ts int64) error {
				return c.ExpireURI(args[0], ts)
			}),
		objectCmd(opts, "delete-uri <uri>", "Delete an object", 1, false,
			func(c *solver.WorldModelClient, args []string, _ int64) error {
				return c.DeleteURI(args[0])
			}),
		objectCmd(opts, "expire-attr <uri> <attribute>", "Expire one attribute of an object at --time", 2, true,
			func(c *solver.WorldModelClient, args []string, ts int64) error {
				if err := c.AddTypes([]worldmodel.Attribute{{Name: args[1]}}, false); err != nil {
					return err
				}
				return c.ExpireAttribute(args[0], args[1], ts)
			}),
		objectCmd(opts, "delete-attr <uri> <attribute>", "Delete one attribute of an object", 2, false,
			func(c *solver.WorldModelClient, args []string, _ int64) error {
				if err := c.AddTypes([]worldmodel.Attribute{{Name: args[1]}}, false); err != nil {
					return err
				}
				return c.DeleteAttribute(args[0], args[1])
			}),
	}
}

func objectCmd(opts *options, use, short string, nargs int, withTime bool,
	run func(c *solver.WorldModelClient, args []string, ts int64) error) *cobra.Command {
	var flags wmFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := flags.timestamp(time.Now())
			if err != nil {
				return err
			}
			return withWorldModel(cmd.Context(), opts, &flags, func(c *solver.WorldModelClient) error {
				if err := run(c, args, ts); err != nil {
					return err
				}
				log.Info().Str("command", cmd.Name()).Strs("args", args).Msg("sent")
				return nil
			})
		},
	}
	flags.bind(cmd, withTime)
	return cmd
}

func newListenCmd(opts *options) *cobra.Command {
	var flags wmFlags
	var types, transients []string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Announce types and follow transient requests",
		Long: `Connect to a world model, announce the given attribute types and log
start/stop transient requests until interrupted. When status.listen is set the
status server runs alongside.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runListen(ctx, opts, &flags, cmd, types, transients)
		},
	}
	flags.bind(cmd, false)
	cmd.Flags().StringSliceVar(&types, "type", nil, "non-transient attribute types to announce")
	cmd.Flags().StringSliceVar(&transients, "transient", nil, "transient attribute types to announce")
	return cmd
}

func runListen(ctx context.Context, opts *options, flags *wmFlags, cmd *cobra.Command, types, transients []string) error {
	cfg := opts.cfg
	if flags.addr != "" {
		cfg.WorldModel.Addr = flags.addr
	}
	if flags.origin != "" {
		cfg.WorldModel.Origin = flags.origin
	}
	board := status.NewBoard()
	out := cmd.OutOrStdout()
	client, err := solver.DialWorldModel(ctx, cfg.WorldModel.Addr, cfg.Transport, solver.WorldModelConfig{
		Origin: cfg.WorldModel.Origin,
		OnStartTransient: func(reqs []worldmodel.TransientRequest) {
			board.StartTransient(reqs)
			printTransient(out, "start", reqs)
		},
		OnStopTransient: func(reqs []worldmodel.TransientRequest) {
			board.StopTransient(reqs)
			printTransient(out, "stop", reqs)
		},
	})
	if err != nil {
		return err
	}
	defer client.Close()
	board.SetState("world_model", client.State().String())

	if err := client.AddTypes(namedAttributes(types), false); err != nil {
		return err
	}
	if err := client.AddTypes(namedAttributes(transients), true); err != nil {
		return err
	}
	board.SetAliases(client.Aliases())

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		err := client.Run(gctx)
		board.SetState("world_model", client.State().String())
		return closedOrCancelled(err)
	})
	if cfg.WorldModel.KeepAlive > 0 {
		g.Go(func() error {
			return keepAlive(gctx, cfg.WorldModel.KeepAlive, client.SendKeepAlive)
		})
	}
	if cfg.Status.Listen != "" {
		srv := status.NewServer("grailctl", cfg.Status.Listen, cfg.Status.CorsOrigins, board)
		g.Go(func() error { return srv.Serve(gctx) })
	}
	return g.Wait()
}

func namedAttributes(names []string) []worldmodel.Attribute {
	out := make([]worldmodel.Attribute, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, worldmodel.Attribute{Name: n})
		}
	}
	return out
}

func printTransient(w io.Writer, verb string, reqs []worldmodel.TransientRequest) {
	for _, r := range reqs {
		fmt.Fprintf(w, "%s transient alias=%d expressions=%q\n", verb, r.TypeAlias, r.Expressions)
	}
}
