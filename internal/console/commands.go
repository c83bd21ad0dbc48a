package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
	"github.com/shadowtrace/shadowtrace-cli/internal/compliance"
	"github.com/shadowtrace/shadowtrace-cli/internal/reporting"
	"github.com/shadowtrace/shadowtrace-cli/internal/session"
)

// annotationPublic marks commands usable without a login.
const annotationPublic = "public"

var publicAnnotation = map[string]string{annotationPublic: "true"}

// newCommandTree builds the command set for a single input line.
func (c *Console) newCommandTree() *cobra.Command {
	root := &cobra.Command{
		Use:           "",
		Short:         "ShadowTrace interactive console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationPublic] != "" || cmd.Name() == "help" {
				return nil
			}
			if c.Identity() == "" {
				return ErrUnauthorized
			}
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newWhoamiCmd(),
		c.newScanCmd(),
		c.newStatusCmd(),
		c.newReportCmd(),
		c.newMetricsCmd(),
		c.newGraphCmd(),
		c.newHistoryCmd(),
		c.newRerunCmd(),
		c.newClearHistoryCmd(),
		c.newResetCmd(),
		c.newComplianceCmd(),
		c.newRemovalCmd(),
		c.newExportCmd(),
		c.newExitCmd(),
	)
	return root
}

func (c *Console) println(cmd *cobra.Command, s string) {
	fmt.Fprintln(cmd.OutOrStdout(), s)
}

func (c *Console) newLoginCmd() *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:         "login [email]",
		Short:       "Unlock the console",
		Args:        cobra.MaximumNArgs(1),
		Annotations: publicAnnotation,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := c.cfg.Operator
			if len(args) == 1 {
				identity = args[0]
			}
			identity = strings.TrimSpace(identity)
			if identity == "" {
				return errors.New("an identity is required: login <email>")
			}

			if passphrase == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Passphrase: ")
				secret, err := c.passphrase()
				if err != nil {
					return err
				}
				passphrase = secret
			}
			if err := c.auth.Authorize(identity, passphrase); err != nil {
				c.logger.Warn("Login rejected", zap.String("identity", identity))
				return err
			}

			c.setIdentity(identity)
			c.logger.Info("Operator logged in", zap.String("identity", identity))
			c.println(cmd, c.theme.Success.Render("Logged in as "+identity))
			return nil
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "Passphrase (prompted for when omitted)")
	return cmd
}

func (c *Console) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Lock the console and reset the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.session.Reset()
			c.setIdentity("")
			c.println(cmd, c.theme.Muted.Render("Logged out."))
			return nil
		},
	}
}

func (c *Console) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "whoami",
		Short:       "Show the logged-in identity",
		Args:        cobra.NoArgs,
		Annotations: publicAnnotation,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := c.Identity()
			if id == "" {
				c.println(cmd, c.theme.Muted.Render("Not logged in."))
				return nil
			}
			c.println(cmd, id)
			return nil
		},
	}
}

func (c *Console) newScanCmd() *cobra.Command {
	var background bool
	cmd := &cobra.Command{
		Use:   "scan <email|username>",
		Short: "Scan an identifier for public exposures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scan, err := c.session.Submit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.println(cmd, c.theme.RenderStatus(schemas.StatusRunning, scan.Token(), nil))
			if background {
				c.println(cmd, c.theme.Muted.Render("Running in the background. Use `status` and `report`."))
				return nil
			}
			return c.await(cmd, scan)
		},
	}
	cmd.Flags().BoolVarP(&background, "background", "b", false, "Return immediately instead of waiting for the result")
	return cmd
}

// await waits for scan and renders its outcome.
func (c *Console) await(cmd *cobra.Command, scan *session.Scan) error {
	status, err := scan.Wait(cmd.Context())
	switch {
	case errors.Is(err, session.ErrSuperseded):
		c.println(cmd, c.theme.Muted.Render("Scan was reset before it finished."))
		return nil
	case status == schemas.StatusRunning:
		return fmt.Errorf("stopped waiting for scan: %w", err)
	case err != nil:
		return err
	}

	result := scan.Result()
	c.println(cmd, c.theme.RenderMetrics(c.session.Metrics()))
	c.println(cmd, c.theme.RenderReport(&result))
	return nil
}

func (c *Console) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := c.session.Snapshot(c.rootLabel())
			c.println(cmd, c.theme.RenderStatus(snap.Status, snap.Token, snap.Err))
			return nil
		},
	}
}

func (c *Console) newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show the exposures of the last scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := c.session.Snapshot(c.rootLabel())
			if snap.Status == schemas.StatusFailed {
				c.println(cmd, c.theme.RenderStatus(snap.Status, snap.Token, snap.Err))
				return nil
			}
			c.println(cmd, c.theme.RenderReport(snap.Result))
			return nil
		},
	}
}

func (c *Console) newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show the risk summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.println(cmd, c.theme.RenderMetrics(c.session.Metrics()))
			return nil
		},
	}
}

func (c *Console) newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Draw the identity correlation graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.println(cmd, c.theme.RenderGraph(c.session.Layout(c.rootLabel())))
			return nil
		},
	}
}

func (c *Console) newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List completed scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.println(cmd, c.theme.RenderHistory(c.session.History()))
			return nil
		},
	}
}

func (c *Console) newRerunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rerun <id>",
		Short: "Scan the query of a history entry again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid history id %q", args[0])
			}
			scan, err := c.session.Rerun(cmd.Context(), id)
			if err != nil {
				return err
			}
			c.println(cmd, c.theme.RenderStatus(schemas.StatusRunning, scan.Token(), nil))
			return c.await(cmd, scan)
		},
	}
}

func (c *Console) newClearHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-history",
		Short: "Delete every history entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.session.ClearHistory()
			c.println(cmd, c.theme.Muted.Render("History cleared."))
			return nil
		},
	}
}

func (c *Console) newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the current result and cancel a running scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.session.Reset()
			c.println(cmd, c.theme.RenderStatus(c.session.Status(), "", nil))
			return nil
		},
	}
}

func (c *Console) newComplianceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compliance",
		Short: "Evaluate the last result against the DPDP Act",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				checks     []compliance.Check
				violations []compliance.Violation
			)
			if result, ok := c.session.Result(); ok {
				checks = compliance.Evaluate(&result)
				violations = compliance.MapFindings(result.Exposures)
			} else {
				checks = compliance.Evaluate(nil)
			}
			c.println(cmd, c.theme.RenderCompliance(checks, violations))
			return nil
		},
	}
}

func (c *Console) newRemovalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "removal [platform]",
		Short: "Draft data removal requests for the exposed platforms",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, ok := c.session.Result()
			if !ok {
				return errors.New("no completed scan: run `scan <email|username>` first")
			}

			requests := compliance.RemovalRequestsByPlatform(c.rootLabel(), result.Exposures, c.clock())
			if len(args) == 1 {
				var filtered []compliance.RemovalRequest
				for _, r := range requests {
					if strings.EqualFold(r.Company, args[0]) {
						filtered = append(filtered, r)
					}
				}
				if len(filtered) == 0 {
					return fmt.Errorf("no exposures on platform %q", args[0])
				}
				requests = filtered
			}
			if len(requests) == 0 {
				c.println(cmd, c.theme.Success.Render("No exposures, nothing to request."))
				return nil
			}

			for i, r := range requests {
				letter, err := r.Render()
				if err != nil {
					return err
				}
				if i > 0 {
					c.println(cmd, c.theme.Muted.Render("----"))
				}
				c.println(cmd, letter)
			}
			return nil
		},
	}
}

func (c *Console) newExportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the session report to a file or stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := c.session.Snapshot(c.rootLabel())

			var (
				reporter reporting.Reporter
				err      error
			)
			if output == "" || output == "stdout" {
				reporter, err = reporting.NewWithWriter(format, reporting.NopCloser(cmd.OutOrStdout()), c.version)
			} else {
				reporter, err = reporting.New(format, output, c.version)
			}
			if err != nil {
				return err
			}

			env := reporting.NewEnvelope(snap.Token, snap.Result, snap.Metrics, snap.History, c.clock())
			if err := reporter.Write(env); err != nil {
				_ = reporter.Close()
				return fmt.Errorf("failed to write report: %w", err)
			}
			if err := reporter.Close(); err != nil {
				return err
			}
			if output != "" && output != "stdout" {
				c.println(cmd, c.theme.Success.Render("Report written to "+output))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", reporting.FormatText, "Output format: "+strings.Join(reporting.Formats(), ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func (c *Console) newExitCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "exit",
		Aliases:     []string{"quit"},
		Short:       "Leave the console",
		Args:        cobra.NoArgs,
		Annotations: publicAnnotation,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errExit
		},
	}
}
