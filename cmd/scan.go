package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shadowtrace/shadowtrace-cli/internal/observability"
	"github.com/shadowtrace/shadowtrace-cli/internal/reporting"
)

// newScanCmd creates the one-shot `scan` command.
func newScanCmd() *cobra.Command {
	var format, output string

	scanCmd := &cobra.Command{
		Use:   "scan <email|username>",
		Short: "Scan an identifier once and write a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			// Validate the format before contacting the backend.
			reporter, err := newReporter(cmd, format, output)
			if err != nil {
				return fmt.Errorf("failed to initialize reporter: %w", err)
			}
			defer func() {
				if err := reporter.Close(); err != nil {
					logger.Error("Failed to close reporter", zap.Error(err))
				}
			}()

			components, err := initializeSessionComponents(cfg, nil, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize scan components: %w", err)
			}
			sess := components.Session
			defer sess.Wait()

			logger.Info("Starting scan",
				zap.String("token", args[0]),
				zap.String("endpoint", components.Backend.Endpoint()),
				zap.String("format", format))

			result, err := sess.Run(ctx, args[0])
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Scan aborted")
					return fmt.Errorf("scan aborted by user signal: %w", context.Canceled)
				}
				return err
			}

			env := reporting.NewEnvelope(args[0], &result, sess.Metrics(), sess.History(), time.Now())
			if err := reporter.Write(env); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			logger.Info("Scan complete",
				zap.Int("exposures", len(result.Exposures)),
				zap.Int("risk_score", result.RiskScore))
			return nil
		},
	}

	scanCmd.Flags().StringVarP(&format, "format", "f", reporting.FormatText, "Report format (text, json, sarif)")
	scanCmd.Flags().StringVarP(&output, "output", "o", "", "Report file path (default stdout)")
	return scanCmd
}

// newReporter writes to the command's output when no path is given.
func newReporter(cmd *cobra.Command, format, output string) (reporting.Reporter, error) {
	if output == "" || output == "stdout" {
		return reporting.NewWithWriter(format, reporting.NopCloser(cmd.OutOrStdout()), Version)
	}
	return reporting.New(format, output, Version)
}
