package parallel

import (
	"context"
	"errors"
	"time"

	"github.com/dd0wney/pvcgraph/pkg/islands"
	"github.com/dd0wney/pvcgraph/pkg/logging"
	"github.com/dd0wney/pvcgraph/pkg/scenario"
)

// Result is the outcome of replaying one scenario file
type Result struct {
	Path     string
	Name     string
	Steps    int
	Failed   int
	Duration time.Duration
	// Err is a load failure, a graph error, a corruption panic or cancellation.
	// Failed expectations are counted in Failed instead.
	Err error
}

// OK reports whether the scenario ran to the end with every expectation met
func (r Result) OK() bool {
	return r.Err == nil && r.Failed == 0
}

// RunScenarios replays each file on its own graph with up to workers running
// at once. Results are returned in input order. cfg.Events is ignored since a
// sink would be shared between goroutines.
func RunScenarios(ctx context.Context, paths []string, workers int, cfg islands.Config) ([]Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cfg.Events = nil

	pool, err := NewWorkerPool[Result](workers, logger)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	tasks := make([]Task[Result], len(paths))
	for i, path := range paths {
		tasks[i] = func(ctx context.Context) (Result, error) {
			return runOne(ctx, path, cfg), nil
		}
	}

	results := make([]Result, len(paths))
	for i, out := range pool.Do(ctx, tasks...) {
		results[i] = out.Value
		if out.Err != nil {
			results[i] = Result{Path: paths[i], Err: out.Err}
		}
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	logger.Info("scenarios checked",
		logging.Count(len(results)),
		logging.Int("failed", failed))
	return results, nil
}

func runOne(ctx context.Context, path string, cfg islands.Config) (res Result) {
	start := time.Now()
	res.Path = path
	defer func() { res.Duration = time.Since(start) }()

	f, err := scenario.Load(path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Name = f.Name

	runner, err := scenario.NewRunner(f, cfg)
	if err != nil {
		res.Err = err
		return res
	}

	for !runner.Done() {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		rep, err := runner.Step()
		res.Steps++
		if len(rep.Failed) > 0 {
			res.Failed++
		}
		if err != nil && !errors.Is(err, scenario.ErrExpectation) {
			res.Err = err
			return res
		}
	}
	return res
}
