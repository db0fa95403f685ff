package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/pvcgraph/pkg/metrics"
	"github.com/dd0wney/pvcgraph/pkg/parallel"
)

var checkCmd = &cobra.Command{
	Use:   "check <scenario>...",
	Short: "Replay many scenarios concurrently and report which pass",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().Int("workers", runtime.NumCPU(), "scenarios replayed at once")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	workers, _ := cmd.Flags().GetInt("workers")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Prometheus collectors are safe to share between the per-file graphs
	results, err := parallel.RunScenarios(ctx, args, workers,
		cfg.GraphConfig(logger, metrics.DefaultRegistry(), nil))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("✗ %s: %v", r.Path, r.Err)))
		case r.Failed > 0:
			failed++
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("✗ %s: %d of %d steps failed", r.Path, r.Failed, r.Steps)))
		default:
			fmt.Fprintf(out, "%s %s %s\n", successStyle.Render("✓"), r.Path,
				eventStyle.Render(fmt.Sprintf("(%d steps, %s)", r.Steps, r.Duration.Round(time.Microsecond))))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}
