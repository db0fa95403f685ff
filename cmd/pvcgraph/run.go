package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dd0wney/pvcgraph/pkg/config"
	"github.com/dd0wney/pvcgraph/pkg/health"
	"github.com/dd0wney/pvcgraph/pkg/logging"
	"github.com/dd0wney/pvcgraph/pkg/metrics"
	"github.com/dd0wney/pvcgraph/pkg/pubsub"
	"github.com/dd0wney/pvcgraph/pkg/scenario"
	"github.com/dd0wney/pvcgraph/pkg/server"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Replay a scenario and report islands after every step",
	Long: `Replay a YAML or TOML scenario. Each step's islands are printed and its
expectations checked; the command fails if any expectation does not hold.`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func init() {
	runCmd.Flags().Bool("verify", false, "check graph consistency after every step")
	runCmd.Flags().Bool("events", false, "print island and attachment events")
	runCmd.Flags().Bool("serve", false, "keep the metrics endpoint up after the run until interrupted")
	runCmd.Flags().Bool("watch", false, "apply tolerance changes from the config file while serving")
	rootCmd.AddCommand(runCmd)
}

// session is a scenario runner with its event feed. mu serialises graph
// access between the step loop and HTTP health checks.
type session struct {
	mu     sync.Mutex
	runner *scenario.Runner
	events *pubsub.PubSub
	sub    *pubsub.Subscription
	reg    *metrics.Registry
}

func newSession(ctx context.Context, path string, cfg config.Config, logger logging.Logger) (*session, error) {
	f, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}

	s := &session{
		events: pubsub.NewPubSubWithBuffer(4096),
		reg:    metrics.DefaultRegistry(),
	}
	s.sub, err = s.events.Subscribe(ctx, pubsub.TopicAll)
	if err != nil {
		return nil, err
	}
	s.runner, err = scenario.NewRunner(f, cfg.GraphConfig(logger, s.reg, s.events))
	if err != nil {
		s.events.Shutdown()
		return nil, err
	}
	return s, nil
}

func (s *session) close() {
	s.events.Shutdown()
}

// step runs the next step and, if requested, verifies the graph afterwards
func (s *session) step(verify bool) (scenario.StepReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep, err := s.runner.Step()
	if err == nil && verify {
		if verr := s.runner.Graph().Verify(); verr != nil {
			err = fmt.Errorf("step %d (%s): %w", rep.Index, rep.Step.Label(), verr)
		}
	}
	return rep, err
}

// setTolerance applies a reloaded tolerance between steps
func (s *session) setTolerance(tolerance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner.Graph().SetTolerance(tolerance)
}

// summary renders the run summary under the session lock
func (s *session) summary(failed int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return renderSummary(s.runner, failed)
}

// tolerance reads the graph's tolerance, which a config reload may change
func (s *session) tolerance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner.Graph().Tolerance()
}

func (s *session) healthChecker() *health.HealthChecker {
	hc := health.NewHealthChecker()
	hc.RegisterCheck("graph", health.GraphCheck(
		func() error {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.runner.Graph().Verify()
		},
		func() (int, int) {
			s.mu.Lock()
			defer s.mu.Unlock()
			stats := s.runner.Graph().GetStatistics()
			return stats.Pieces, stats.Islands
		},
	))
	hc.RegisterCheck("events", health.EventsCheck(s.events.Dropped))
	hc.RegisterReadinessCheck("scenario", health.ProgressCheck(func() (int, int) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.runner.Next(), len(s.runner.File().Steps)
	}))
	return hc
}

// drain returns the events published since the last call. Publishing is
// synchronous with the graph, so everything a step emitted is already queued.
func (s *session) drain() []string {
	var out []string
	for {
		select {
		case e, ok := <-s.sub.Channel():
			if !ok {
				return out
			}
			out = append(out, describeEvent(e))
		default:
			return out
		}
	}
}

func runScenario(cmd *cobra.Command, args []string) error {
	v, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := newSession(ctx, args[0], cfg, logger)
	if err != nil {
		return err
	}
	defer sess.close()

	verify, _ := cmd.Flags().GetBool("verify")
	showEvents, _ := cmd.Flags().GetBool("events")
	serve, _ := cmd.Flags().GetBool("serve")
	watch, _ := cmd.Flags().GetBool("watch")

	srvErr := make(chan error, 1)
	if cfg.Metrics.Enabled {
		srv := server.New(cfg.Metrics.Addr, cfg.Metrics.Path, sess.reg, sess.healthChecker(), logger)
		go func() { srvErr <- srv.Serve(ctx) }()
	}
	if watch {
		config.Watch(v, logger, func(c config.Config) {
			if err := sess.setTolerance(c.Tolerance); err != nil {
				logger.Warn("tolerance not applied", logging.Error(err))
			}
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderHeader(sess.runner.File(), sess.tolerance()))

	failed, err := runSteps(ctx, sess, out, verify, showEvents)
	fmt.Fprintln(out, sess.summary(failed))
	if err != nil {
		return err
	}

	if serve && cfg.Metrics.Enabled {
		logger.Info("run complete, serving until interrupted")
		select {
		case <-ctx.Done():
		case err := <-srvErr:
			if err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d steps failed their expectations", failed, len(sess.runner.File().Steps))
	}
	return nil
}

// runSteps prints every step and counts failed expectations. Any other error
// stops the run.
func runSteps(ctx context.Context, sess *session, out io.Writer, verify, showEvents bool) (int, error) {
	failed := 0
	for !sess.runner.Done() {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		rep, err := sess.step(verify)
		events := sess.drain()

		if err != nil && !errors.Is(err, scenario.ErrExpectation) {
			fmt.Fprintln(out, renderError(rep, err))
			return failed, err
		}
		fmt.Fprintln(out, renderStep(rep))
		if showEvents {
			for _, e := range events {
				fmt.Fprintln(out, eventStyle.Render("    "+e))
			}
		}
		if len(rep.Failed) > 0 {
			failed++
		}
	}
	return failed, nil
}
