package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/grailctl/internal/config"
	"github.com/danmuck/grailctl/internal/logging"
	"github.com/spf13/cobra"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "grailctl",
		Short: "GRAIL solver client",
		Long: `grailctl talks to GRAIL aggregators and world models as a solver.

Aggregator:
  subscribe    - send rules and stream samples

World model:
  push         - push attribute values for an object
  create-uri   - create an object
  expire-uri   - expire an object
  delete-uri   - delete an object
  expire-attr  - expire one attribute of an object
  delete-attr  - delete one attribute of an object
  listen       - announce types and follow transient requests`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "TOML config file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")

	root.AddCommand(newSubscribeCmd(opts))
	root.AddCommand(newPushCmd(opts))
	root.AddCommand(newObjectCmds(opts)...)
	root.AddCommand(newListenCmd(opts))
	root.AddCommand(newConfigCmd())
	return root
}

func (o *options) load() error {
	cfg := config.Default()
	if path := strings.TrimSpace(o.configPath); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	o.cfg = cfg
	logging.ConfigureWith(cfg.Log.Logging())
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "grailctl: %v\n", err)
		os.Exit(1)
	}
}
