package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(runID string) *model.VerificationResult {
	return &model.VerificationResult{
		RunID:         runID,
		Claim:         "the sky is green",
		Verdict:       model.VerdictFalse,
		AccuracyScore: 12,
		Confidence:    0.9,
		Reports: []model.EvaluatorReport{
			{EvaluatorName: "Generic Evaluator", CredibilityScore: 15, Confidence: 0.9, Verdict: model.VerdictFalse},
		},
		LedgerRef:  "sim-abc",
		VerifiedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndGetVerification(t *testing.T) {
	store := newTestStore(t)

	result := sampleResult("run-1")
	require.NoError(t, store.SaveVerification(result))

	loaded, err := store.GetVerification("run-1")
	require.NoError(t, err)
	assert.Equal(t, result.Claim, loaded.Claim)
	assert.Equal(t, result.Verdict, loaded.Verdict)
	assert.Equal(t, result.LedgerRef, loaded.LedgerRef)
	require.Len(t, loaded.Reports, 1)
	assert.Equal(t, "Generic Evaluator", loaded.Reports[0].EvaluatorName)
}

func TestGetVerification_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetVerification("missing")
	assert.Error(t, err)
}

func TestSaveVerification_PersistsGraph(t *testing.T) {
	store := newTestStore(t)

	result := sampleResult("run-2")
	result.Graph = &model.Graph{
		Claim: result.Claim,
		Nodes: []model.Node{{ID: "node_0", URL: "https://a.com", Role: model.RoleOrigin}},
		Hash:  "deadbeef",
	}
	require.NoError(t, store.SaveVerification(result))

	graph, err := store.GetGraph("deadbeef")
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "https://a.com", graph.Nodes[0].URL)
}

func TestListVerifications_NewestFirst(t *testing.T) {
	store := newTestStore(t)

	older := sampleResult("run-old")
	older.VerifiedAt = time.Now().UTC().Add(-time.Hour)
	newer := sampleResult("run-new")
	require.NoError(t, store.SaveVerification(older))
	require.NoError(t, store.SaveVerification(newer))

	results, err := store.ListVerifications(10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "run-new", results[0].RunID)
	assert.Equal(t, "run-old", results[1].RunID)
}

func TestReputationRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.LoadReputation("scientific")
	require.NoError(t, err)
	assert.False(t, found)

	rec := &model.ReputationRecord{
		EvaluatorName: "scientific",
		EvaluatorType: "scientific",
		CurrentScore:  62.5,
		Stats:         model.ReputationStats{TotalRuns: 3, Agreements: 2, Disagreements: 1},
		Peak:          64,
		Lowest:        50,
	}
	require.NoError(t, store.SaveReputation(rec))

	loaded, found, err := store.LoadReputation("scientific")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 62.5, loaded.CurrentScore)
	assert.Equal(t, 3, loaded.Stats.TotalRuns)
}

func TestSaveReputation_SequentialUpdates(t *testing.T) {
	store := newTestStore(t)

	rec := &model.ReputationRecord{EvaluatorName: "scientific", EvaluatorType: "scientific", CurrentScore: 50}
	require.NoError(t, store.SaveReputation(rec))

	rec.CurrentScore = 54
	require.NoError(t, store.SaveReputation(rec))

	loaded, found, err := store.LoadReputation("scientific")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 54.0, loaded.CurrentScore)
}

func TestSaveReputation_DetectsExternalModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	other, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer other.Close()

	rec := &model.ReputationRecord{EvaluatorName: "financial", EvaluatorType: "financial", CurrentScore: 50}
	require.NoError(t, store.SaveReputation(rec))

	// A second process loads the record and writes its own update.
	theirs, found, err := other.LoadReputation("financial")
	require.NoError(t, err)
	require.True(t, found)
	theirs.CurrentScore = 58
	require.NoError(t, other.SaveReputation(theirs))

	// Our stamp is now stale, so the save must not clobber theirs.
	rec.CurrentScore = 44
	err = store.SaveReputation(rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReputationConflict)

	loaded, found, err := other.LoadReputation("financial")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 58.0, loaded.CurrentScore)

	// Reloading refreshes the stamp and the retry goes through.
	ours, found, err := store.LoadReputation("financial")
	require.NoError(t, err)
	require.True(t, found)
	ours.CurrentScore = 44
	require.NoError(t, store.SaveReputation(ours))
}

func TestSaveReputation_InsertRace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.db")

	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	other, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer other.Close()

	// Both processes saw no record; the slower insert must not replace the
	// first one silently.
	require.NoError(t, store.SaveReputation(&model.ReputationRecord{
		EvaluatorName: "political", EvaluatorType: "political", CurrentScore: 61,
	}))
	err = other.SaveReputation(&model.ReputationRecord{
		EvaluatorName: "political", EvaluatorType: "political", CurrentScore: 39,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReputationConflict)

	loaded, found, err := store.LoadReputation("political")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 61.0, loaded.CurrentScore)
}

func TestListReputation_OrderedByScore(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveReputation(&model.ReputationRecord{
		EvaluatorName: "political", EvaluatorType: "political", CurrentScore: 40,
	}))
	require.NoError(t, store.SaveReputation(&model.ReputationRecord{
		EvaluatorName: "scientific", EvaluatorType: "scientific", CurrentScore: 70,
	}))

	records, err := store.ListReputation()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "scientific", records[0].EvaluatorName)
	assert.Equal(t, "political", records[1].EvaluatorName)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.SaveVerification(sampleResult("run-1")))
	require.NoError(t, store.Close())

	store, err = Open(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.GetVerification("run-1")
	require.NoError(t, err)
	assert.Equal(t, "the sky is green", loaded.Claim)
}
