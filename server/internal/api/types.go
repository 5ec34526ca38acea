package api

import (
	"time"

	"github.com/goldensig/goldensig/pkg/types"
	"github.com/goldensig/goldensig/server/internal/compute"
	"github.com/goldensig/goldensig/server/internal/session"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string    `json:"status"` // "ok" | "no_dataset"
	DatasetRows   int       `json:"dataset_rows"`
	DatasetSource string    `json:"dataset_source,omitempty"`
	LoadedAt      time.Time `json:"loaded_at,omitempty"`
	Sessions      int       `json:"sessions"`
	StreamClients int       `json:"stream_clients"`
	Ledger        string    `json:"ledger"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

// DatasetResponse is the payload for GET /api/v1/batches.
type DatasetResponse struct {
	Source        string         `json:"source,omitempty"`
	LoadedAt      time.Time      `json:"loaded_at"`
	Columns       []string       `json:"columns"`
	Rows          int            `json:"rows"`
	Ranges        compute.Ranges `json:"ranges"`
	InitialGolden string         `json:"initial_golden"`
	Batches       []types.Batch  `json:"batches"`
}

// EvaluationResponse is the payload for GET /api/v1/sessions/{id}/evaluate/{batchID}.
type EvaluationResponse struct {
	compute.Evaluation
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// ApproveRequest is the body of POST /api/v1/sessions/{id}/approve.
type ApproveRequest struct {
	BatchID string `json:"batch_id"`
}

// ApproveResponse is the payload of a successful approval.
type ApproveResponse struct {
	Approval session.Approval `json:"approval"`
	Golden   session.Overview `json:"golden"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
