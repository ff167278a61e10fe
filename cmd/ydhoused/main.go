// Command ydhoused runs the ydhouse daemon in the foreground. It is the
// process supervisors such as systemd start; `ydhouse daemon start` runs the
// same loop detached.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ydhouse/internal/config"
	"ydhouse/internal/daemonrun"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type daemonFlags struct {
	configPath  string
	logLevel    string
	apiBind     string
	development bool
}

func newRootCommand() *cobra.Command {
	var flags daemonFlags

	cmd := &cobra.Command{
		Use:           "ydhoused",
		Short:         "Run the ydhouse daemon in the foreground",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, opts, err := loadDaemonConfig(flags)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.apiBind, "api", "", "Override paths.api_bind")
	cmd.Flags().BoolVar(&flags.development, "development", false, "Use development logging defaults")
	return cmd
}

func loadDaemonConfig(flags daemonFlags) (*config.Config, daemonrun.Options, error) {
	cfg, _, _, err := config.Load(strings.TrimSpace(flags.configPath))
	if err != nil {
		return nil, daemonrun.Options{}, fmt.Errorf("load config: %w", err)
	}
	if bind := strings.TrimSpace(flags.apiBind); bind != "" {
		cfg.Paths.APIBind = bind
		if err := cfg.Validate(); err != nil {
			return nil, daemonrun.Options{}, err
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, daemonrun.Options{}, fmt.Errorf("resolve working directory: %w", err)
	}
	return cfg, daemonrun.Options{
		LogLevel:    strings.TrimSpace(flags.logLevel),
		Development: flags.development,
		Cwd:         cwd,
	}, nil
}
