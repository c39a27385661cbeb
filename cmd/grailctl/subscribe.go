package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/danmuck/grailctl/internal/protocol/aggregator"
	"github.com/danmuck/grailctl/internal/solver"
	"github.com/danmuck/grailctl/internal/status"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errSubscriptionRejected = errors.New("subscription not confirmed before the connection closed")

func newSubscribeCmd(opts *options) *cobra.Command {
	var addr string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to an aggregator and print samples",
		Long: `Connect to an aggregator, send the configured rules and print every
sample until interrupted. When status.listen is set the status server runs
alongside.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				opts.cfg.Aggregator.Addr = addr
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runSubscribe(ctx, opts, cmd, quiet)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "aggregator address (overrides aggregator.addr)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print samples")
	return cmd
}

func runSubscribe(ctx context.Context, opts *options, cmd *cobra.Command, quiet bool) error {
	cfg := opts.cfg
	board := status.NewBoard()
	out := cmd.OutOrStdout()

	client, err := solver.DialAggregator(ctx, cfg.Aggregator.Addr, cfg.Transport, solver.AggregatorConfig{
		MaxQueued: cfg.Aggregator.MaxQueued,
		OnSample: func(s aggregator.Sample) {
			board.ObserveSample(s)
			if !quiet {
				fmt.Fprintln(out, s.String())
			}
		},
		OnRules: board.SetRules,
	})
	if err != nil {
		return err
	}
	defer client.Close()
	board.SetState("aggregator", client.State().String())

	if !client.SendSubscriptionContext(ctx, cfg.Aggregator.Rules) {
		if ctx.Err() != nil {
			return nil
		}
		return errSubscriptionRejected
	}
	log.Info().Str("addr", cfg.Aggregator.Addr).Int("rules", len(client.Rules())).Msg("subscribed")

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The remaining goroutines end with the connection.
		defer stop()
		err := client.Run(gctx)
		board.SetState("aggregator", client.State().String())
		return closedOrCancelled(err)
	})
	if cfg.Aggregator.KeepAlive > 0 {
		g.Go(func() error {
			return keepAlive(gctx, cfg.Aggregator.KeepAlive, client.SendKeepAlive)
		})
	}
	if cfg.Status.Listen != "" {
		srv := status.NewServer("grailctl", cfg.Status.Listen, cfg.Status.CorsOrigins, board)
		g.Go(func() error { return srv.Serve(gctx) })
	}
	return g.Wait()
}

// keepAlive calls send every interval until ctx ends or send fails.
func keepAlive(ctx context.Context, interval time.Duration, send func() error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := send(); err != nil {
				return closedOrCancelled(err)
			}
		}
	}
}

// closedOrCancelled maps normal shutdown outcomes to nil.
func closedOrCancelled(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, protocol.ErrConnectionClosed), errors.Is(err, protocol.ErrNotConnected):
		log.Info().Err(err).Msg("connection ended")
		return nil
	default:
		return err
	}
}
