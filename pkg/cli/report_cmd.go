package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sec-agent/internal/service/report"
)

const defaultReportDir = "./reports"

type reportOptions struct {
	typ       string
	hours     int
	outputDir string
	schedule  string
	runNow    bool
}

func newReportCmd(g *globals) *cobra.Command {
	var opts reportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Fetch a security report and write it to a file",
		Long: `Fetch a report from the server and write it to
<output-dir>/<type>_report_<YYYYmmdd_HHMMSS>.txt.

With --schedule the command stays in the foreground and fetches a report on
every tick of the cron spec until interrupted.`,
		Example: `  secagent report --type login_failure --hours 8
  secagent report --type general --schedule "0 */8 * * *"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := report.ParseType(opts.typ); err != nil {
				return err
			}
			if !cmd.Flags().Changed("output-dir") && g.outputDir != "" {
				opts.outputDir = g.outputDir
			}
			r := &reporter{client: g.client, opts: opts, logger: g.logger(cmd), now: time.Now}
			if opts.schedule == "" {
				path, err := r.once(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			}
			return r.scheduled(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&opts.typ, "type", string(report.TypeGeneral), "Report type ("+joinTypes()+")")
	cmd.Flags().IntVar(&opts.hours, "hours", report.DefaultHours, "Report window in hours")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", defaultReportDir, "Directory for report files")
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "Cron spec; run until interrupted")
	cmd.Flags().BoolVar(&opts.runNow, "run-now", false, "With --schedule, also fetch one report at start")
	return cmd
}

func joinTypes() string {
	types := report.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

type reporter struct {
	client *Client
	opts   reportOptions
	logger *slog.Logger
	now    func() time.Time
}

func (r *reporter) once(ctx context.Context) (string, error) {
	r.logger.Info("requesting security report", "type", r.opts.typ, "hours", r.opts.hours)
	rep, err := r.client.Report(ctx, r.opts.typ, r.opts.hours)
	if err != nil {
		return "", err
	}
	path, err := writeReportFile(r.opts.outputDir, r.opts.typ, rep, r.now())
	if err != nil {
		return "", err
	}
	r.logger.Info("security report written", "path", path, "summary", rep.Summary)
	return path, nil
}

func (r *reporter) scheduled(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.opts.schedule, func() {
		if _, err := r.once(ctx); err != nil {
			r.logger.Error("scheduled report failed", "type", r.opts.typ, "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid --schedule %q: %w", r.opts.schedule, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.opts.runNow {
		g.Go(func() error {
			if _, err := r.once(gctx); err != nil {
				r.logger.Error("initial report failed", "type", r.opts.typ, "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		c.Start()
		r.logger.Info("report schedule started", "schedule", r.opts.schedule, "type", r.opts.typ)
		<-gctx.Done()
		<-c.Stop().Done()
		r.logger.Info("report schedule stopped")
		return nil
	})
	return g.Wait()
}

// writeReportFile writes rep under dir and returns the file path.
func writeReportFile(dir, typ string, rep *report.Report, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_report_%s.txt", typ, now.Format("20060102_150405")))

	var b strings.Builder
	fmt.Fprintf(&b, "Security report: %s\n", typ)
	fmt.Fprintf(&b, "Generated at: %s\n", rep.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Time range: %s\n", rep.TimeRange)
	b.WriteString("\n" + strings.Repeat("=", 50) + "\n\n")
	b.WriteString(rep.ReportContent)

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
