package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/evaluator"
	"github.com/veritrail/veritrail/internal/model"
)

// Result pairs an evaluator's registry name with the report it produced,
// degraded or not.
type Result struct {
	Evaluator string
	Report    model.EvaluatorReport
}

// Runner executes a requested subset of evaluators concurrently with a fixed
// maximum in flight. Each invocation is isolated: a failure or panic in one
// evaluator yields a synthetic degraded report and never cancels or affects
// siblings. Run returns only after every requested evaluator has settled.
type Runner struct {
	registry      *evaluator.Registry
	maxConcurrent int
	timeout       time.Duration
	logger        *zap.Logger
}

// New creates a runner. maxConcurrent caps in-flight evaluator calls;
// timeout bounds each individual call so a stuck evaluator cannot block the
// batch indefinitely.
func New(registry *evaluator.Registry, cfg model.RunnerConfig, logger *zap.Logger) *Runner {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	timeout := cfg.EvaluatorTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		registry:      registry,
		maxConcurrent: maxConcurrent,
		timeout:       timeout,
		logger:        logger,
	}
}

// Run assesses the claim with every named evaluator. Unknown names are
// skipped with a warning. The returned slice has one entry per resolved
// evaluator, in request order, with failures converted to degraded reports.
func (r *Runner) Run(ctx context.Context, claim string, evidence []model.EvidenceItem, names []string) []Result {
	resolved := make([]evaluator.Evaluator, 0, len(names))
	for _, name := range names {
		ev, ok := r.registry.Get(name)
		if !ok {
			r.logger.Warn("unknown evaluator requested, skipping", zap.String("evaluator", name))
			continue
		}
		resolved = append(resolved, ev)
	}

	results := make([]Result, len(resolved))
	semaphore := make(chan struct{}, r.maxConcurrent)
	var wg sync.WaitGroup

	for i, ev := range resolved {
		wg.Add(1)
		go func(idx int, ev evaluator.Evaluator) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = Result{
					Evaluator: ev.Name(),
					Report:    model.FailedReport(ev.DisplayName(), "context cancelled before evaluation"),
				}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = r.assess(ctx, ev, claim, evidence)
		}(i, ev)
	}

	wg.Wait()
	return results
}

// assess runs a single evaluator under a per-call timeout, converting any
// error or panic into a degraded report.
func (r *Runner) assess(ctx context.Context, ev evaluator.Evaluator, claim string, evidence []model.EvidenceItem) (result Result) {
	result = Result{Evaluator: ev.Name()}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("evaluator panicked",
				zap.String("evaluator", ev.Name()), zap.Any("panic", rec))
			result.Report = model.FailedReport(ev.DisplayName(), fmt.Sprintf("evaluator panicked: %v", rec))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	report, err := ev.Assess(callCtx, claim, evidence)
	if err != nil {
		r.logger.Warn("evaluator failed",
			zap.String("evaluator", ev.Name()), zap.Error(err))
		result.Report = model.FailedReport(ev.DisplayName(), err.Error())
		return result
	}

	result.Report = report
	return result
}
