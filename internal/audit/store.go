// Package audit persists the decision trail: every billing decision, allow
// or deny, with its resolved cost and outcome. The trail is append-only;
// pricing state itself is never persisted, only what was decided.
package audit

import (
	"log/slog"
	"sync"

	"github.com/tollgate/tollgate/internal/billing"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Principal string
	Category  string
	Limit     int
}

// Store is the decision-trail persistence interface.
type Store interface {
	// Initialize creates tables and indexes.
	Initialize() error

	// Close cleanly shuts down the store.
	Close() error

	Insert(d billing.Decision) error
	List(filter Filter) ([]billing.Decision, error)
	Count() (int64, error)
}

// Recorder adapts a Store to the billing.Sink interface. Insert failures
// are logged, never surfaced into the decision path.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder around a store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		logger: logger.With("component", "audit.Recorder"),
	}
}

// Record appends the decision to the trail.
func (r *Recorder) Record(d billing.Decision) {
	if err := r.store.Insert(d); err != nil {
		r.logger.Error("failed to record decision",
			"decision_id", d.ID,
			"error", err,
		)
	}
}

// MemoryStore is an in-process Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu        sync.Mutex
	decisions []billing.Decision
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Initialize is a no-op for the in-memory store.
func (m *MemoryStore) Initialize() error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

// Insert appends a decision.
func (m *MemoryStore) Insert(d billing.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
	return nil
}

// List returns matching decisions, newest first.
func (m *MemoryStore) List(filter Filter) ([]billing.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	out := make([]billing.Decision, 0, limit)
	for i := len(m.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		d := m.decisions[i]
		if filter.Principal != "" && d.Principal != filter.Principal {
			continue
		}
		if filter.Category != "" && string(d.Category) != filter.Category {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Count returns the number of stored decisions.
func (m *MemoryStore) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.decisions)), nil
}
