package main

import (
	"fmt"

	"github.com/danmuck/grailctl/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or validate grailctl config files",
		// Config subcommands work on files directly and skip the root loader.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	var kind string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write an example config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config to %s\n", kind, args[0])
			return nil
		},
	}
	initCmd.Flags().StringVar(&kind, "kind", "full", "template kind: full|minimal")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Load and validate a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d aggregator rules, origin %q)\n",
				args[0], len(cfg.Aggregator.Rules), cfg.WorldModel.Origin)
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
