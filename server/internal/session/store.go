package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goldensig/goldensig/pkg/types"
	"github.com/goldensig/goldensig/server/internal/compute"
)

var (
	// ErrNotFound is returned for an unknown or evicted session id.
	ErrNotFound = errors.New("session: not found")

	// ErrApprovalRejected is returned when the candidate does not outperform
	// the session's current golden. The session is left unchanged.
	ErrApprovalRejected = errors.New("session: approval rejected")

	// ErrNoDataset is returned by Create before any dataset has been set.
	ErrNoDataset = errors.New("session: no dataset loaded")
)

// State is the lifecycle state of a session's Golden Signature.
type State string

const (
	StateInitial  State = "initial"
	StateApproved State = "approved"
)

// Session is one interactive session. Dataset is shared and read-only.
type Session struct {
	ID        string
	Dataset   *compute.Dataset
	Golden    types.Batch
	State     State
	Approvals int
	CreatedAt time.Time
	UpdatedAt time.Time
	lastSeen  time.Time
}

// Overview is the golden summary shown for a session.
type Overview struct {
	SessionID         string    `json:"session_id"`
	GoldenBatchID     string    `json:"golden_batch_id"`
	GoldenYield       float64   `json:"golden_yield"`
	GoldenEnergy      float64   `json:"golden_energy"`
	OptimizationScore float64   `json:"optimization_score"`
	State             State     `json:"state"`
	Approvals         int       `json:"approvals"`
	DatasetRows       int       `json:"dataset_rows"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Overview returns the golden summary of s.
func (s *Session) Overview() Overview {
	return Overview{
		SessionID:         s.ID,
		GoldenBatchID:     s.Golden.BatchID,
		GoldenYield:       s.Golden.Yield,
		GoldenEnergy:      s.Golden.EnergyConsumption,
		OptimizationScore: s.Golden.OptimizationScore,
		State:             s.State,
		Approvals:         s.Approvals,
		DatasetRows:       s.Dataset.Len(),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// Approval describes one accepted golden replacement.
type Approval struct {
	SessionID         string         `json:"session_id"`
	BatchID           string         `json:"batch_id"`
	PreviousID        string         `json:"previous_id"`
	EnergyDiff        float64        `json:"energy_diff"`
	YieldDiff         float64        `json:"yield_diff"`
	OptimizationScore float64        `json:"optimization_score"`
	Impact            compute.Impact `json:"sustainability"`
	ApprovedAt        time.Time      `json:"approved_at"`
}

// Hook is called after a successful approval, outside the store lock.
type Hook func(ctx context.Context, a Approval)

// Store is a thread-safe in-memory session store keyed by session id.
// A background goroutine (Run) periodically evicts sessions that have been
// idle for longer than the configured TTL.
type Store struct {
	mu    sync.RWMutex
	data  map[string]*Session
	hooks []Hook
	ttl   time.Duration
	now   func() time.Time // injectable for deterministic tests
	newID func() string

	dataset atomic.Pointer[compute.Dataset]
}

// New creates a Store with the given idle TTL. ds may be nil and set later
// with SetDataset.
func New(ds *compute.Dataset, ttl time.Duration) *Store {
	s := &Store{
		data:  make(map[string]*Session),
		ttl:   ttl,
		now:   time.Now,
		newID: uuid.NewString,
	}
	if ds != nil {
		s.dataset.Store(ds)
	}
	return s
}

// OnApprove registers h to run after every successful approval.
// It must be called before the store is shared between goroutines.
func (s *Store) OnApprove(h Hook) {
	s.hooks = append(s.hooks, h)
}

// SetDataset replaces the dataset used by sessions created from now on.
// Existing sessions keep the dataset they were created with.
func (s *Store) SetDataset(ds *compute.Dataset) {
	s.dataset.Store(ds)
}

// Dataset returns the dataset new sessions are created with, or nil.
func (s *Store) Dataset() *compute.Dataset {
	return s.dataset.Load()
}

// Create starts a session whose golden is the initial arg-max batch.
func (s *Store) Create() (Overview, error) {
	ds := s.dataset.Load()
	if ds == nil {
		return Overview{}, ErrNoDataset
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess := &Session{
		ID:        s.newID(),
		Dataset:   ds,
		Golden:    compute.SelectInitial(ds),
		State:     StateInitial,
		CreatedAt: now,
		UpdatedAt: now,
		lastSeen:  now,
	}
	s.data[sess.ID] = sess
	slog.Debug("session: created", "session", sess.ID, "golden", sess.Golden.BatchID)
	return sess.Overview(), nil
}

// Get returns the overview of the session and marks it as recently used.
func (s *Store) Get(id string) (Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.touch(id)
	if err != nil {
		return Overview{}, err
	}
	return sess.Overview(), nil
}

// Session returns a copy of the session.
func (s *Store) Session(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.touch(id)
	if err != nil {
		return Session{}, err
	}
	return *sess, nil
}

// Delete ends the session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(s.data, id)
	return nil
}

// Evaluate compares batchID against the session's current golden.
func (s *Store) Evaluate(id, batchID string) (compute.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.touch(id)
	if err != nil {
		return compute.Evaluation{}, err
	}
	candidate, err := sess.Dataset.Lookup(batchID)
	if err != nil {
		return compute.Evaluation{}, err
	}
	return compute.Evaluate(candidate, sess.Golden), nil
}

// Approve replaces the session's golden with batchID. The comparison and the
// replacement happen under one lock, so a concurrent approval can never be
// checked against a stale golden.
func (s *Store) Approve(ctx context.Context, id, batchID string) (Approval, error) {
	s.mu.Lock()
	sess, err := s.touch(id)
	if err != nil {
		s.mu.Unlock()
		return Approval{}, err
	}
	candidate, err := sess.Dataset.Lookup(batchID)
	if err != nil {
		s.mu.Unlock()
		return Approval{}, err
	}
	c := compute.Compare(candidate, sess.Golden)
	if c.Verdict != types.VerdictOutperforms {
		s.mu.Unlock()
		return Approval{}, fmt.Errorf("%w: batch %q is %s against golden %q",
			ErrApprovalRejected, batchID, c.Verdict, sess.Golden.BatchID)
	}

	now := s.now()
	a := Approval{
		SessionID:         id,
		BatchID:           candidate.BatchID,
		PreviousID:        sess.Golden.BatchID,
		EnergyDiff:        c.EnergyDiff,
		YieldDiff:         c.YieldDiff,
		OptimizationScore: candidate.OptimizationScore,
		Impact:            compute.Sustainability(c.EnergyDiff),
		ApprovedAt:        now,
	}
	sess.Golden = candidate
	sess.State = StateApproved
	sess.Approvals++
	sess.UpdatedAt = now
	s.mu.Unlock()

	slog.Info("session: golden approved",
		"session", id,
		"batch", a.BatchID,
		"previous", a.PreviousID,
		"energy_diff", a.EnergyDiff,
		"yield_diff", a.YieldDiff,
	)
	for _, h := range s.hooks {
		h(ctx, a)
	}
	return a, nil
}

// Reset restores the session's initial arg-max golden.
func (s *Store) Reset(id string) (Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.touch(id)
	if err != nil {
		return Overview{}, err
	}
	sess.Golden = compute.SelectInitial(sess.Dataset)
	sess.State = StateInitial
	sess.UpdatedAt = s.now()
	return sess.Overview(), nil
}

// Count returns the number of sessions currently held, including idle ones
// not yet evicted.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// touch returns the live session and refreshes its idle timer.
// Callers must hold s.mu for writing.
func (s *Store) touch(id string) (*Session, error) {
	sess, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	sess.lastSeen = s.now()
	return sess, nil
}

// Evict removes sessions idle since before now minus TTL and returns how many
// were removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, sess := range s.data {
		if !sess.lastSeen.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background eviction loop. It ticks at half the TTL (minimum
// 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("session: evicted idle sessions", "count", n)
			}
		}
	}
}
