package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shadowtrace/shadowtrace-cli/internal/demo"
	"github.com/shadowtrace/shadowtrace-cli/internal/observability"
)

// newDemoBackendCmd creates the `demo-backend` command, a local discovery service
// that answers from a bundled fixture.
func newDemoBackendCmd() *cobra.Command {
	var listen string

	demoCmd := &cobra.Command{
		Use:   "demo-backend",
		Short: "Run the bundled demo discovery backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			demoCfg := cfg.Demo()
			if listen != "" {
				demoCfg.ListenAddr = listen
			}

			srv, err := demo.New(demoCfg, logger)
			if err != nil {
				return err
			}
			logger.Info("Demo backend starting",
				zap.String("addr", demoCfg.ListenAddr),
				zap.String("demo_email", demo.DemoEmail),
				zap.String("demo_username", demo.DemoUsername))
			fmt.Fprintf(cmd.OutOrStdout(), "Demo backend listening on http://%s (try %s or %s)\n", demoCfg.ListenAddr, demo.DemoEmail, demo.DemoUsername)
			return srv.ListenAndServe(cmd.Context(), demoCfg.ListenAddr)
		},
	}

	demoCmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default from demo.listen_addr)")
	return demoCmd
}
