package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/model"
)

// Writer anchors verification records on an external ledger service.
// Writes are best-effort: callers must not fail a verification run when
// the ledger is unavailable.
type Writer interface {
	Record(ctx context.Context, result *model.VerificationResult) (string, error)
}

// entry is the payload anchored per verification run. Only the
// tamper-evident fields go to the ledger, never the full report.
type entry struct {
	RunID      string    `json:"run_id"`
	Claim      string    `json:"claim"`
	Verdict    string    `json:"verdict"`
	GraphHash  string    `json:"graph_hash,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

// SimulatedWriter fabricates ledger references locally. Used by default so
// the pipeline works without a ledger deployment.
type SimulatedWriter struct {
	logger *zap.Logger
}

func NewSimulatedWriter(logger *zap.Logger) *SimulatedWriter {
	return &SimulatedWriter{logger: logger}
}

// Record returns a synthetic reference without leaving the process.
func (w *SimulatedWriter) Record(_ context.Context, result *model.VerificationResult) (string, error) {
	ref := "sim-" + uuid.New().String()
	w.logger.Debug("simulated ledger write",
		zap.String("run_id", result.RunID),
		zap.String("ref", ref))
	return ref, nil
}

// HTTPWriter posts entries to a ledger gateway and returns the reference
// the gateway assigns.
type HTTPWriter struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPWriter(cfg model.LedgerConfig, logger *zap.Logger) *HTTPWriter {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPWriter{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// New returns the writer selected by the configuration.
func New(cfg model.LedgerConfig, logger *zap.Logger) Writer {
	if cfg.Simulated || cfg.BaseURL == "" {
		return NewSimulatedWriter(logger)
	}
	return NewHTTPWriter(cfg, logger)
}

func (w *HTTPWriter) Record(ctx context.Context, result *model.VerificationResult) (string, error) {
	e := entry{
		RunID:      result.RunID,
		Claim:      result.Claim,
		Verdict:    string(result.Verdict),
		VerifiedAt: result.VerifiedAt,
	}
	if result.Graph != nil {
		e.GraphHash = result.Graph.Hash
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode ledger entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/entries", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ledger write failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("ledger service returned %d", resp.StatusCode)
	}

	var out struct {
		Ref string `json:"ref"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode ledger response: %w", err)
	}
	if out.Ref == "" {
		return "", fmt.Errorf("ledger service returned empty reference")
	}

	w.logger.Debug("ledger write complete",
		zap.String("run_id", result.RunID),
		zap.String("ref", out.Ref))
	return out.Ref, nil
}
