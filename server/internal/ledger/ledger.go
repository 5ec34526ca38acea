package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/goldensig/goldensig/server/internal/compute"
	"github.com/goldensig/goldensig/server/internal/session"
)

// Backend selects the storage engine.
type Backend string

const (
	BackendNone     Backend = "none"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Entry is one stored approval.
type Entry struct {
	ID                int64   `db:"id" json:"id"`
	SessionID         string  `db:"session_id" json:"session_id"`
	BatchID           string  `db:"batch_id" json:"batch_id"`
	PreviousID        string  `db:"previous_id" json:"previous_id"`
	EnergyDiff        float64 `db:"energy_diff" json:"energy_diff"`
	YieldDiff         float64 `db:"yield_diff" json:"yield_diff"`
	OptimizationScore float64 `db:"optimization_score" json:"optimization_score"`
	EnergySavedKWh    float64 `db:"energy_saved_kwh" json:"energy_saved_kwh"`
	CarbonSavedKg     float64 `db:"carbon_saved_kg" json:"carbon_saved_kg"`
	CostSaved         float64 `db:"cost_saved" json:"cost_saved"`
	ApprovedAtNano    int64   `db:"approved_at" json:"-"`

	ApprovedAt time.Time `db:"-" json:"approved_at"`
}

// Approval converts the entry back to a session.Approval.
func (e Entry) Approval() session.Approval {
	return session.Approval{
		SessionID:         e.SessionID,
		BatchID:           e.BatchID,
		PreviousID:        e.PreviousID,
		EnergyDiff:        e.EnergyDiff,
		YieldDiff:         e.YieldDiff,
		OptimizationScore: e.OptimizationScore,
		Impact: compute.Impact{
			EnergySavedKWh: e.EnergySavedKWh,
			CarbonSavedKg:  e.CarbonSavedKg,
			CostSaved:      e.CostSaved,
		},
		ApprovedAt: e.ApprovedAt,
	}
}

// Ledger records approvals. The zero value (and BackendNone) discards writes
// and lists nothing.
type Ledger struct {
	db      *sqlx.DB
	backend Backend
}

// Open connects to the backend and ensures the schema exists.
func Open(ctx context.Context, backend Backend, dsn string) (*Ledger, error) {
	var drvName string
	switch backend {
	case BackendNone, "":
		return &Ledger{backend: BackendNone}, nil
	case BackendSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:goldensig.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case BackendPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/goldensig?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("ledger: unsupported backend %q", backend)
	}

	db, err := sqlx.ConnectContext(ctx, drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: connect %s: %w", backend, err)
	}
	if backend == BackendSQLite {
		// One writer avoids SQLITE_BUSY under concurrent approvals.
		db.SetMaxOpenConns(1)
	}

	l := &Ledger{db: db, backend: backend}
	if err := l.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("ledger: opened", "backend", backend)
	return l, nil
}

// Backend reports the active backend.
func (l *Ledger) Backend() Backend {
	if l.db == nil {
		return BackendNone
	}
	return l.backend
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) ensureSchema(ctx context.Context) error {
	schema := schemaSQLite
	if l.backend == BackendPostgres {
		schema = schemaPostgres
	}
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ledger: ensure schema: %w", err)
	}
	return nil
}

// Record appends a.
func (l *Ledger) Record(ctx context.Context, a session.Approval) error {
	if l.db == nil {
		return nil
	}
	q := l.db.Rebind(`
		INSERT INTO approvals (
			session_id, batch_id, previous_id, energy_diff, yield_diff,
			optimization_score, energy_saved_kwh, carbon_saved_kg, cost_saved, approved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := l.db.ExecContext(ctx, q,
		a.SessionID, a.BatchID, a.PreviousID, a.EnergyDiff, a.YieldDiff,
		a.OptimizationScore, a.Impact.EnergySavedKWh, a.Impact.CarbonSavedKg, a.Impact.CostSaved,
		a.ApprovedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("ledger: record approval: %w", err)
	}
	return nil
}

// Approved records a and logs failures. It matches session.Hook; an audit
// write failure never undoes an approval.
func (l *Ledger) Approved(ctx context.Context, a session.Approval) {
	if err := l.Record(context.WithoutCancel(ctx), a); err != nil {
		slog.Error("ledger: write failed", "session", a.SessionID, "batch", a.BatchID, "err", err)
	}
}

// List returns the approvals of sessionID, oldest first. An empty sessionID
// lists every session. limit <= 0 means no limit.
func (l *Ledger) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	out := []Entry{}
	if l.db == nil {
		return out, nil
	}

	q := `SELECT id, session_id, batch_id, previous_id, energy_diff, yield_diff,
		optimization_score, energy_saved_kwh, carbon_saved_kg, cost_saved, approved_at
		FROM approvals`
	var args []interface{}
	if sessionID != "" {
		q += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	if err := l.db.SelectContext(ctx, &out, l.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("ledger: list approvals: %w", err)
	}
	for i := range out {
		out[i].ApprovedAt = time.Unix(0, out[i].ApprovedAtNano).UTC()
	}
	return out, nil
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS approvals (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  batch_id TEXT NOT NULL,
  previous_id TEXT NOT NULL,
  energy_diff REAL NOT NULL,
  yield_diff REAL NOT NULL,
  optimization_score REAL NOT NULL,
  energy_saved_kwh REAL NOT NULL DEFAULT 0,
  carbon_saved_kg REAL NOT NULL DEFAULT 0,
  cost_saved REAL NOT NULL DEFAULT 0,
  approved_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS approvals_session ON approvals(session_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS approvals (
  id BIGSERIAL PRIMARY KEY,
  session_id TEXT NOT NULL,
  batch_id TEXT NOT NULL,
  previous_id TEXT NOT NULL,
  energy_diff DOUBLE PRECISION NOT NULL,
  yield_diff DOUBLE PRECISION NOT NULL,
  optimization_score DOUBLE PRECISION NOT NULL,
  energy_saved_kwh DOUBLE PRECISION NOT NULL DEFAULT 0,
  carbon_saved_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
  cost_saved DOUBLE PRECISION NOT NULL DEFAULT 0,
  approved_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS approvals_session ON approvals(session_id);
`
