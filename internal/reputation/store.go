package reputation

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/model"
)

const (
	neutralScore = 50.0
	historyLimit = 100

	// Agreement and disagreement deltas are scaled by the evaluator's
	// stated confidence; disagreement is weighted heavier.
	agreementWeight    = 4.0
	disagreementWeight = 6.0
)

// Backend persists reputation records. Implementations must serialize
// concurrent saves of the same evaluator (the SQLite store does this via an
// optimistic updated_at guard).
type Backend interface {
	LoadReputation(name string) (*model.ReputationRecord, bool, error)
	SaveReputation(rec *model.ReputationRecord) error
}

// Store tracks a long-lived reputation score per evaluator. Records are
// created lazily at the neutral score and never deleted. Updates to one
// evaluator are serialized with a per-key lock so concurrent verification
// requests cannot lose updates.
type Store struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	records map[string]*model.ReputationRecord

	backend         Backend // Optional
	logger          *zap.Logger
	decayRate       float64
	decayPeriodDays int
	now             func() time.Time
}

// NewStore creates a reputation store. backend may be nil for a purely
// in-memory store.
func NewStore(cfg model.ReputationConfig, backend Backend, logger *zap.Logger) *Store {
	rate := cfg.DecayRate
	if rate <= 0 || rate >= 1 {
		rate = 0.01
	}
	period := cfg.DecayPeriodDays
	if period <= 0 {
		period = 7
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		locks:           make(map[string]*sync.Mutex),
		records:         make(map[string]*model.ReputationRecord),
		backend:         backend,
		logger:          logger,
		decayRate:       rate,
		decayPeriodDays: period,
		now:             time.Now,
	}
}

// Get returns a copy of the evaluator's record, creating it at the neutral
// score on first reference. Pending time decay is applied before returning.
func (s *Store) Get(name, evaluatorType string) (model.ReputationRecord, error) {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.getOrCreate(name, evaluatorType)
	if err != nil {
		return model.ReputationRecord{}, err
	}
	if s.applyDecay(rec) {
		if err := s.save(rec); err != nil {
			return model.ReputationRecord{}, err
		}
	}
	return cloneRecord(rec), nil
}

// Score returns the evaluator's current score, or the neutral score if the
// record cannot be loaded.
func (s *Store) Score(name, evaluatorType string) float64 {
	rec, err := s.Get(name, evaluatorType)
	if err != nil {
		s.logger.Warn("reputation lookup failed, using neutral score",
			zap.String("evaluator", name), zap.Error(err))
		return neutralScore
	}
	return rec.CurrentScore
}

// RecordOutcome updates an evaluator's score after a verification run.
// Agreement with the final verdict increases the score, disagreement
// decreases it by a larger magnitude; both are scaled by the evaluator's
// stated confidence for that run.
func (s *Store) RecordOutcome(name, evaluatorType string, agreed bool, confidence float64) error {
	confidence = clamp(confidence, 0, 1)

	var delta float64
	var reason string
	if agreed {
		delta = agreementWeight * confidence
		reason = "agreed with final verdict"
	} else {
		delta = -disagreementWeight * confidence
		reason = "disagreed with final verdict"
	}

	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.getOrCreate(name, evaluatorType)
	if err != nil {
		return err
	}
	s.applyDecay(rec)

	s.applyDelta(rec, delta, reason)
	rec.Stats.TotalRuns++
	if agreed {
		rec.Stats.Agreements++
	} else {
		rec.Stats.Disagreements++
	}
	return s.save(rec)
}

// RecordFailure notes a failed evaluator run without moving the score.
func (s *Store) RecordFailure(name, evaluatorType string) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.getOrCreate(name, evaluatorType)
	if err != nil {
		return err
	}
	rec.Stats.TotalRuns++
	rec.Stats.Failures++
	return s.save(rec)
}

// applyDelta moves the score by delta, clamped to [0,100], appending a
// history entry and updating peak/lowest.
func (s *Store) applyDelta(rec *model.ReputationRecord, delta float64, reason string) {
	old := rec.CurrentScore
	rec.CurrentScore = clamp(old+delta, 0, 100)

	rec.History = append(rec.History, model.ReputationEntry{
		Timestamp: s.now().UTC(),
		OldScore:  old,
		NewScore:  rec.CurrentScore,
		Delta:     rec.CurrentScore - old,
		Reason:    reason,
	})
	if len(rec.History) > historyLimit {
		rec.History = rec.History[len(rec.History)-historyLimit:]
	}

	if rec.CurrentScore > rec.Peak {
		rec.Peak = rec.CurrentScore
	}
	if rec.CurrentScore < rec.Lowest {
		rec.Lowest = rec.CurrentScore
	}
}

// applyDecay moves the score's deviation from neutral toward zero when at
// least one full decay period has elapsed. Applying it again within the same
// period is a no-op. Reports whether the record changed.
func (s *Store) applyDecay(rec *model.ReputationRecord) bool {
	now := s.now().UTC()
	elapsed := now.Sub(rec.LastDecayApplied)
	period := time.Duration(s.decayPeriodDays) * 24 * time.Hour

	periods := int(elapsed / period)
	if periods < 1 {
		return false
	}

	factor := math.Pow(1-s.decayRate, float64(periods))
	deviation := rec.CurrentScore - neutralScore
	target := neutralScore + deviation*factor

	if target != rec.CurrentScore {
		s.applyDelta(rec, target-rec.CurrentScore, "time decay")
	}
	rec.LastDecayApplied = now
	return true
}

func (s *Store) getOrCreate(name, evaluatorType string) (*model.ReputationRecord, error) {
	if rec, ok := s.cached(name); ok {
		return rec, nil
	}

	if s.backend != nil {
		rec, found, err := s.backend.LoadReputation(name)
		if err != nil {
			return nil, fmt.Errorf("load reputation %s: %w", name, err)
		}
		if found {
			s.setCached(name, rec)
			return rec, nil
		}
	}

	now := s.now().UTC()
	rec := &model.ReputationRecord{
		EvaluatorName:     name,
		EvaluatorType:     evaluatorType,
		CurrentScore:      neutralScore,
		DecayRate:         s.decayRate,
		DecayPeriodDays:   s.decayPeriodDays,
		LastDecayApplied:  now,
		Peak:              neutralScore,
		Lowest:            neutralScore,
		FirstVerification: now,
	}
	s.setCached(name, rec)
	s.logger.Debug("created reputation record", zap.String("evaluator", name))
	return rec, nil
}

// save persists the record. On failure the cached copy is dropped so the
// next operation reloads the backend's current state instead of compounding
// updates onto a record that was never written.
func (s *Store) save(rec *model.ReputationRecord) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.SaveReputation(rec); err != nil {
		s.dropCached(rec.EvaluatorName)
		return fmt.Errorf("save reputation %s: %w", rec.EvaluatorName, err)
	}
	return nil
}

func (s *Store) cached(name string) (*model.ReputationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[name]
	return rec, ok
}

func (s *Store) setCached(name string, rec *model.ReputationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] = rec
}

func (s *Store) dropCached(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, name)
}

// lockFor returns the per-evaluator mutex, creating it on first use.
func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lock, ok := s.locks[name]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[name] = lock
	return lock
}

func cloneRecord(rec *model.ReputationRecord) model.ReputationRecord {
	out := *rec
	out.History = append([]model.ReputationEntry(nil), rec.History...)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
