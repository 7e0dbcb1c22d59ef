package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const schemaVersion = 1

// ErrReputationConflict is returned when a reputation record changed on
// disk since this process last loaded it. The caller should reload the
// record before retrying.
var ErrReputationConflict = errors.New("reputation record modified concurrently")

// Store keeps verification results, attribution graphs and reputation
// records in a local SQLite database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	repMu   sync.Mutex
	repSeen map[string]string // evaluator name -> updated_at last observed
}

// Open opens (creating if needed) the database at path and applies
// pending migrations.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=10000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, logger: logger, repSeen: make(map[string]string)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies database migrations incrementally.
func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}

	for version < schemaVersion {
		version++
		switch version {
		case 1:
			if err := applySchemaV1(tx); err != nil {
				return fmt.Errorf("failed to apply schema v%d: %w", version, err)
			}
		default:
			return fmt.Errorf("unknown schema version: %d", version)
		}
	}

	return tx.Commit()
}

func applySchemaV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS verifications (
			run_id TEXT PRIMARY KEY,
			claim TEXT NOT NULL,
			verdict TEXT NOT NULL,
			accuracy_score INTEGER NOT NULL,
			confidence REAL NOT NULL,
			ledger_ref TEXT,
			result_json TEXT NOT NULL,
			verified_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS graphs (
			hash TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES verifications(run_id),
			claim TEXT NOT NULL,
			graph_json TEXT NOT NULL,
			built_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS reputation (
			evaluator_name TEXT PRIMARY KEY,
			evaluator_type TEXT NOT NULL,
			current_score REAL NOT NULL,
			record_json TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

// SaveVerification persists a completed verification run. The graph, when
// present, is stored alongside it keyed by its canonical hash.
func (s *Store) SaveVerification(result *model.VerificationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO verifications
			(run_id, claim, verdict, accuracy_score, confidence, ledger_ref, result_json, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, result.RunID, result.Claim, string(result.Verdict), result.AccuracyScore,
		result.Confidence, result.LedgerRef, string(data), result.VerifiedAt)
	if err != nil {
		return fmt.Errorf("failed to save verification: %w", err)
	}

	if result.Graph != nil {
		graphJSON, err := json.Marshal(result.Graph)
		if err != nil {
			return fmt.Errorf("failed to encode graph: %w", err)
		}
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO graphs (hash, run_id, claim, graph_json, built_at)
			VALUES (?, ?, ?, ?, ?)
		`, result.Graph.Hash, result.RunID, result.Graph.Claim, string(graphJSON), result.Graph.BuiltAt)
		if err != nil {
			return fmt.Errorf("failed to save graph: %w", err)
		}
	}

	return tx.Commit()
}

// GetVerification loads a verification run by its ID.
func (s *Store) GetVerification(runID string) (*model.VerificationResult, error) {
	var data string
	err := s.db.QueryRow(`SELECT result_json FROM verifications WHERE run_id = ?`, runID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("verification %s not found", runID)
	}
	if err != nil {
		return nil, err
	}

	var result model.VerificationResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}

// ListVerifications returns the most recent runs, newest first.
func (s *Store) ListVerifications(limit int) ([]model.VerificationResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT result_json FROM verifications ORDER BY verified_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.VerificationResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var result model.VerificationResult
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			s.logger.Warn("skipping undecodable verification row", zap.Error(err))
			continue
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// GetGraph loads an attribution graph by its canonical hash.
func (s *Store) GetGraph(hash string) (*model.Graph, error) {
	var data string
	err := s.db.QueryRow(`SELECT graph_json FROM graphs WHERE hash = ?`, hash).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("graph %s not found", hash)
	}
	if err != nil {
		return nil, err
	}

	var graph model.Graph
	if err := json.Unmarshal([]byte(data), &graph); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	return &graph, nil
}

// LoadReputation implements reputation.Backend. It remembers the row's
// updated_at stamp so a later save can detect concurrent modification.
func (s *Store) LoadReputation(name string) (*model.ReputationRecord, bool, error) {
	var data, updated string
	err := s.db.QueryRow(`
		SELECT record_json, updated_at FROM reputation WHERE evaluator_name = ?
	`, name).Scan(&data, &updated)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rec model.ReputationRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, false, fmt.Errorf("failed to decode reputation record: %w", err)
	}

	s.repMu.Lock()
	s.repSeen[name] = updated
	s.repMu.Unlock()
	return &rec, true, nil
}

// SaveReputation implements reputation.Backend. Writes are guarded by the
// updated_at stamp observed at load time: if another process changed the
// row in between, the save fails with ErrReputationConflict instead of
// overwriting the newer record.
func (s *Store) SaveReputation(rec *model.ReputationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode reputation record: %w", err)
	}

	s.repMu.Lock()
	defer s.repMu.Unlock()

	name := rec.EvaluatorName
	stamp := time.Now().UTC().Format(time.RFC3339Nano)

	if seen, ok := s.repSeen[name]; ok {
		res, err := s.db.Exec(`
			UPDATE reputation
			SET evaluator_type = ?, current_score = ?, record_json = ?, updated_at = ?
			WHERE evaluator_name = ? AND updated_at = ?
		`, rec.EvaluatorType, rec.CurrentScore, string(data), stamp, name, seen)
		if err != nil {
			return fmt.Errorf("failed to save reputation record: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			s.repSeen[name] = stamp
			return nil
		}
		s.refreshSeenLocked(name)
		return fmt.Errorf("reputation record for %s: %w", name, ErrReputationConflict)
	}

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO reputation
			(evaluator_name, evaluator_type, current_score, record_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, name, rec.EvaluatorType, rec.CurrentScore, string(data), stamp)
	if err != nil {
		return fmt.Errorf("failed to save reputation record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		s.repSeen[name] = stamp
		return nil
	}

	// The row appeared since our last (empty) load.
	s.refreshSeenLocked(name)
	return fmt.Errorf("reputation record for %s: %w", name, ErrReputationConflict)
}

// refreshSeenLocked re-reads the row's updated_at stamp after a conflict
// so the caller can reload and retry. Held under repMu.
func (s *Store) refreshSeenLocked(name string) {
	var updated string
	err := s.db.QueryRow(`SELECT updated_at FROM reputation WHERE evaluator_name = ?`, name).Scan(&updated)
	if err != nil {
		delete(s.repSeen, name)
		return
	}
	s.repSeen[name] = updated
}

// ListReputation returns all reputation records ordered by score, highest
// first.
func (s *Store) ListReputation() ([]model.ReputationRecord, error) {
	rows, err := s.db.Query(`
		SELECT record_json FROM reputation ORDER BY current_score DESC, evaluator_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ReputationRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec model.ReputationRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			s.logger.Warn("skipping undecodable reputation row", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
