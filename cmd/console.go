package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shadowtrace/shadowtrace-cli/internal/console"
	"github.com/shadowtrace/shadowtrace-cli/internal/observability"
)

// newConsoleCmd creates the `console` command, which starts the interactive shell.
func newConsoleCmd() *cobra.Command {
	var metricsAddr string

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "Start the interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			components, err := initializeSessionComponents(cfg, nil, logger)
			if err != nil {
				return err
			}

			shell := console.New(components.Session, cfg.Console(),
				console.WithIO(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
				console.WithLogger(logger),
				console.WithVersion(Version))

			if metricsAddr == "" {
				metricsAddr = cfg.Metrics().ListenAddr
			}
			return runConsole(cmd.Context(), shell, components, metricsAddr, logger)
		},
	}

	consoleCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the console runs")
	return consoleCmd
}

// runConsole runs the shell alongside the optional metrics endpoint. The
// endpoint stops when the shell exits.
func runConsole(ctx context.Context, shell *console.Console, components *sessionComponents, metricsAddr string, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return shell.Run(gctx)
	})
	g.Go(func() error {
		return components.Metrics.Serve(gctx, metricsAddr, logger)
	})
	return g.Wait()
}
