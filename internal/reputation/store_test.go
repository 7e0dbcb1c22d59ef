package reputation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrail/veritrail/internal/model"
)

func newTestStore() (*Store, *time.Time) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(model.ReputationConfig{DecayRate: 0.01, DecayPeriodDays: 7}, nil, nil)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestGet_LazyCreation(t *testing.T) {
	s, _ := newTestStore()

	rec, err := s.Get("scientific", "builtin")
	require.NoError(t, err)

	assert.Equal(t, 50.0, rec.CurrentScore)
	assert.Equal(t, 50.0, rec.Peak)
	assert.Equal(t, 50.0, rec.Lowest)
	assert.Equal(t, "builtin", rec.EvaluatorType)
	assert.False(t, rec.FirstVerification.IsZero())
}

func TestRecordOutcome_AgreementIncreases(t *testing.T) {
	s, _ := newTestStore()

	require.NoError(t, s.RecordOutcome("scientific", "builtin", true, 0.8))

	rec, err := s.Get("scientific", "builtin")
	require.NoError(t, err)
	assert.Greater(t, rec.CurrentScore, 50.0)
	assert.Equal(t, 1, rec.Stats.Agreements)
	require.Len(t, rec.History, 1)
	assert.Equal(t, "agreed with final verdict", rec.History[0].Reason)
}

func TestRecordOutcome_DisagreementScalesWithConfidence(t *testing.T) {
	s, _ := newTestStore()

	require.NoError(t, s.RecordOutcome("high", "builtin", false, 0.8))
	require.NoError(t, s.RecordOutcome("low", "builtin", false, 0.2))

	high, err := s.Get("high", "builtin")
	require.NoError(t, err)
	low, err := s.Get("low", "builtin")
	require.NoError(t, err)

	assert.Less(t, high.CurrentScore, 50.0)
	assert.Less(t, low.CurrentScore, 50.0)
	assert.Less(t, high.CurrentScore, low.CurrentScore,
		"high-confidence disagreement moves the score further")
}

func TestRecordOutcome_DisagreementOutweighsAgreement(t *testing.T) {
	s, _ := newTestStore()

	require.NoError(t, s.RecordOutcome("a", "builtin", true, 0.8))
	require.NoError(t, s.RecordOutcome("b", "builtin", false, 0.8))

	up, err := s.Get("a", "builtin")
	require.NoError(t, err)
	down, err := s.Get("b", "builtin")
	require.NoError(t, err)

	assert.Greater(t, up.CurrentScore-50.0, 0.0)
	assert.Greater(t, 50.0-down.CurrentScore, up.CurrentScore-50.0)
}

func TestScoreStaysBounded(t *testing.T) {
	s, _ := newTestStore()

	for i := 0; i < 100; i++ {
		require.NoError(t, s.RecordOutcome("optimist", "builtin", true, 1.0))
		require.NoError(t, s.RecordOutcome("pessimist", "builtin", false, 1.0))
	}

	up, err := s.Get("optimist", "builtin")
	require.NoError(t, err)
	down, err := s.Get("pessimist", "builtin")
	require.NoError(t, err)

	assert.Equal(t, 100.0, up.CurrentScore)
	assert.Equal(t, 0.0, down.CurrentScore)
	assert.Equal(t, 100.0, up.Peak)
	assert.Equal(t, 0.0, down.Lowest)
}

func TestHistoryTruncation(t *testing.T) {
	s, _ := newTestStore()

	for i := 0; i < 150; i++ {
		agreed := i%2 == 0
		require.NoError(t, s.RecordOutcome("busy", "builtin", agreed, 0.5))
	}

	rec, err := s.Get("busy", "builtin")
	require.NoError(t, err)
	assert.Len(t, rec.History, 100, "history keeps only the most recent entries")
}

func TestDecay_MovesTowardNeutral(t *testing.T) {
	s, now := newTestStore()

	require.NoError(t, s.RecordOutcome("fading", "builtin", true, 1.0))
	before, err := s.Get("fading", "builtin")
	require.NoError(t, err)
	require.Greater(t, before.CurrentScore, 50.0)

	*now = now.Add(14 * 24 * time.Hour)

	after, err := s.Get("fading", "builtin")
	require.NoError(t, err)
	assert.Less(t, after.CurrentScore, before.CurrentScore)
	assert.Greater(t, after.CurrentScore, 50.0)

	last := after.History[len(after.History)-1]
	assert.Equal(t, "time decay", last.Reason)
}

func TestDecay_IdempotentWithinPeriod(t *testing.T) {
	s, now := newTestStore()

	require.NoError(t, s.RecordOutcome("steady", "builtin", true, 1.0))
	*now = now.Add(8 * 24 * time.Hour)

	first, err := s.Get("steady", "builtin")
	require.NoError(t, err)

	*now = now.Add(2 * 24 * time.Hour) // Still inside the next period
	second, err := s.Get("steady", "builtin")
	require.NoError(t, err)

	assert.Equal(t, first.CurrentScore, second.CurrentScore)
	assert.Len(t, second.History, len(first.History))
}

func TestDecay_FactorCompoundsPerPeriod(t *testing.T) {
	s, now := newTestStore()

	require.NoError(t, s.RecordOutcome("compound", "builtin", true, 1.0))
	base, err := s.Get("compound", "builtin")
	require.NoError(t, err)
	deviation := base.CurrentScore - 50.0

	*now = now.Add(21 * 24 * time.Hour) // Three full periods

	rec, err := s.Get("compound", "builtin")
	require.NoError(t, err)

	want := 50.0 + deviation*0.99*0.99*0.99
	assert.InDelta(t, want, rec.CurrentScore, 1e-9)
}

type flakyBackend struct {
	records  map[string]*model.ReputationRecord
	saveErr  error
	saves    int
	failNext bool
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{records: make(map[string]*model.ReputationRecord)}
}

func (b *flakyBackend) LoadReputation(name string) (*model.ReputationRecord, bool, error) {
	rec, ok := b.records[name]
	if !ok {
		return nil, false, nil
	}
	out := *rec
	return &out, true, nil
}

func (b *flakyBackend) SaveReputation(rec *model.ReputationRecord) error {
	b.saves++
	if b.failNext {
		b.failNext = false
		return b.saveErr
	}
	out := *rec
	b.records[rec.EvaluatorName] = &out
	return nil
}

func TestSaveFailureDropsCachedRecord(t *testing.T) {
	backend := newFlakyBackend()
	backend.saveErr = assert.AnError

	s := NewStore(model.ReputationConfig{DecayRate: 0.01, DecayPeriodDays: 7}, backend, nil)

	require.NoError(t, s.RecordOutcome("scientific", "builtin", true, 1.0))
	persisted := backend.records["scientific"].CurrentScore

	backend.failNext = true
	require.Error(t, s.RecordOutcome("scientific", "builtin", true, 1.0))

	// The failed update must not linger in memory: the next operation
	// starts from the backend's persisted state.
	rec, err := s.Get("scientific", "builtin")
	require.NoError(t, err)
	assert.Equal(t, persisted, rec.CurrentScore)
	assert.Equal(t, 1, rec.Stats.TotalRuns)
}

func TestRecordFailure_CountsWithoutScoreChange(t *testing.T) {
	s, _ := newTestStore()

	require.NoError(t, s.RecordFailure("flaky", "builtin"))

	rec, err := s.Get("flaky", "builtin")
	require.NoError(t, err)
	assert.Equal(t, 50.0, rec.CurrentScore)
	assert.Equal(t, 1, rec.Stats.Failures)
	assert.Equal(t, 1, rec.Stats.TotalRuns)
	assert.Empty(t, rec.History)
}
