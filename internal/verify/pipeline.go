package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/aggregate"
	"github.com/veritrail/veritrail/internal/evaluator"
	"github.com/veritrail/veritrail/internal/evidence"
	"github.com/veritrail/veritrail/internal/graph"
	"github.com/veritrail/veritrail/internal/ledger"
	"github.com/veritrail/veritrail/internal/model"
	"github.com/veritrail/veritrail/internal/reputation"
	"github.com/veritrail/veritrail/internal/retrieval"
	"github.com/veritrail/veritrail/internal/runner"
)

// Archiver persists completed verification runs. Persistence is
// best-effort; the pipeline never fails a run over it.
type Archiver interface {
	SaveVerification(result *model.VerificationResult) error
}

// Request describes one verification run.
type Request struct {
	Claim       string
	Evidence    []model.EvidenceItem // Pre-supplied evidence; searched when empty
	OriginalURL string               // Optional first-publication URL
	Evaluators  []string             // Registry names; empty means all
	Quick       bool                 // Baseline evaluator only, no graph
}

// graphBuilder constructs the attribution graph for a verified claim.
type graphBuilder interface {
	Build(claim string, items []model.EvidenceItem) (*model.Graph, error)
}

// Pipeline orchestrates a full verification run: evidence preparation,
// concurrent evaluation, aggregation, graph construction, persistence and
// reputation updates.
type Pipeline struct {
	registry   *evaluator.Registry
	searcher   retrieval.Searcher
	normalizer *evidence.Normalizer
	runner     *runner.Runner
	aggregator *aggregate.Aggregator
	builder    graphBuilder
	reputation *reputation.Store
	archiver   Archiver
	ledger     ledger.Writer
	logger     *zap.Logger
	maxResults int
}

// Options carries the pipeline's collaborators. Searcher, Normalizer and
// Archiver may be nil; the corresponding stage is skipped.
type Options struct {
	Registry   *evaluator.Registry
	Searcher   retrieval.Searcher
	Normalizer *evidence.Normalizer
	Runner     *runner.Runner
	Aggregator *aggregate.Aggregator
	Reputation *reputation.Store
	Archiver   Archiver
	Ledger     ledger.Writer
	Logger     *zap.Logger
	MaxResults int
}

// NewPipeline wires the pipeline together.
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Pipeline{
		registry:   opts.Registry,
		searcher:   opts.Searcher,
		normalizer: opts.Normalizer,
		runner:     opts.Runner,
		aggregator: opts.Aggregator,
		builder:    graph.NewBuilder(),
		reputation: opts.Reputation,
		archiver:   opts.Archiver,
		ledger:     opts.Ledger,
		logger:     logger,
		maxResults: maxResults,
	}
}

// Verify runs the claim through the full pipeline. Evaluation, aggregation
// and graph construction failures are fatal; persistence and ledger failures
// degrade the result instead of failing it.
func (p *Pipeline) Verify(ctx context.Context, req Request) (*model.VerificationResult, error) {
	if req.Claim == "" {
		return nil, fmt.Errorf("claim is empty")
	}

	runID := uuid.New().String()
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("starting verification", zap.String("claim", req.Claim))

	items := p.gatherEvidence(ctx, req, logger)

	names := p.evaluatorNames(req)
	results := p.runner.Run(ctx, req.Claim, items, names)
	if len(results) == 0 {
		return nil, fmt.Errorf("no evaluators resolved from %v", names)
	}

	reports := make([]model.EvaluatorReport, len(results))
	for i, res := range results {
		reports[i] = res.Report
	}

	agg, err := p.aggregator.Aggregate(ctx, req.Claim, reports, p.weights(results))
	if err != nil {
		return nil, fmt.Errorf("verification failed: %w", err)
	}

	result := &model.VerificationResult{
		RunID:                  runID,
		Claim:                  req.Claim,
		Verdict:                agg.Verdict,
		AccuracyScore:          agg.AccuracyScore,
		Confidence:             agg.Confidence,
		Consensus:              agg.Consensus,
		RemainingUncertainties: agg.RemainingUncertainties,
		Reports:                reports,
		VerifiedAt:             time.Now().UTC(),
	}

	if !req.Quick && len(items) > 0 {
		g, err := p.builder.Build(req.Claim, items)
		if err != nil {
			return nil, fmt.Errorf("attribution graph construction failed: %w", err)
		}
		result.Graph = g
	}

	if p.ledger != nil {
		ref, err := p.ledger.Record(ctx, result)
		if err != nil {
			logger.Warn("ledger write failed", zap.Error(err))
		} else {
			result.LedgerRef = ref
		}
	}

	if p.archiver != nil {
		if err := p.archiver.SaveVerification(result); err != nil {
			logger.Warn("failed to persist verification", zap.Error(err))
		}
	}

	p.updateReputation(results, agg.Verdict, logger)

	logger.Info("verification complete",
		zap.String("verdict", string(result.Verdict)),
		zap.Int("accuracy_score", result.AccuracyScore),
		zap.Int("evaluators", len(reports)))
	return result, nil
}

// gatherEvidence combines pre-supplied and searched evidence, merges in the
// original source when one is named, and deduplicates. Search failures are
// not fatal: the run continues with whatever evidence is available.
func (p *Pipeline) gatherEvidence(ctx context.Context, req Request, logger *zap.Logger) []model.EvidenceItem {
	items := req.Evidence
	if len(items) == 0 && p.searcher != nil {
		found, err := p.searcher.Search(ctx, req.Claim, p.maxResults)
		if err != nil {
			logger.Warn("evidence search failed", zap.Error(err))
		} else {
			items = found
		}
	}

	if p.normalizer != nil {
		items = p.normalizer.Normalize(ctx, items, req.OriginalURL)
	} else {
		items = evidence.Deduplicate(items)
	}

	logger.Debug("evidence prepared", zap.Int("items", len(items)))
	return items
}

func (p *Pipeline) evaluatorNames(req Request) []string {
	if req.Quick {
		return []string{evaluator.GenericName}
	}
	if len(req.Evaluators) > 0 {
		return req.Evaluators
	}
	return p.registry.Names()
}

// weights maps each report's display name to the producing evaluator's
// current reputation score.
func (p *Pipeline) weights(results []runner.Result) map[string]float64 {
	if p.reputation == nil {
		return nil
	}
	weights := make(map[string]float64, len(results))
	for _, res := range results {
		ev, ok := p.registry.Get(res.Evaluator)
		if !ok {
			continue
		}
		weights[res.Report.EvaluatorName] = p.reputation.Score(res.Evaluator, ev.Type())
	}
	return weights
}

// updateReputation scores each evaluator against the final verdict. A
// degraded report counts as a failure; agreement and disagreement are
// weighted by the evaluator's own confidence. No outcome is recorded when
// the run itself reached no verdict.
func (p *Pipeline) updateReputation(results []runner.Result, final model.Verdict, logger *zap.Logger) {
	if p.reputation == nil {
		return
	}
	for _, res := range results {
		ev, ok := p.registry.Get(res.Evaluator)
		if !ok {
			continue
		}
		if res.Report.Error {
			if err := p.reputation.RecordFailure(res.Evaluator, ev.Type()); err != nil {
				logger.Warn("failed to record evaluator failure",
					zap.String("evaluator", res.Evaluator), zap.Error(err))
			}
			continue
		}
		if final == model.VerdictUnknown {
			continue
		}
		agreed := res.Report.Verdict == final
		if err := p.reputation.RecordOutcome(res.Evaluator, ev.Type(), agreed, res.Report.Confidence); err != nil {
			logger.Warn("failed to record evaluator outcome",
				zap.String("evaluator", res.Evaluator), zap.Error(err))
		}
	}
}
