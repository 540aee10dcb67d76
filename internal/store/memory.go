// Package store provides thread-safe, in-memory storage for the banking
// simulation API: simulation run records, their exported tables, and
// registered fraud-alert webhooks.
//
// An in-memory store is sufficient here because runs are reproducible from
// their seed; a production deployment would persist the exported tables to a
// document store instead.
package store

import (
	"errors"
	"sync"

	"okapi/banksim-api/internal/domain"
)

// ErrDuplicateRun is returned when a run ID is saved twice.
var ErrDuplicateRun = errors.New("simulation run already exists")

// Store is a thread-safe in-memory data store.
type Store struct {
	mu sync.RWMutex

	runs     map[string]*domain.SimulationRun
	runOrder []string
	tables   map[string]domain.Tables
	webhooks map[string]*domain.WebhookConfig
}

// New creates an empty, ready-to-use Store.
func New() *Store {
	return &Store{
		runs:     make(map[string]*domain.SimulationRun),
		tables:   make(map[string]domain.Tables),
		webhooks: make(map[string]*domain.WebhookConfig),
	}
}

// ─── Simulation runs ──────────────────────────────────────────────────────────

// SaveRun persists a new simulation run record.
// Returns ErrDuplicateRun if the ID already exists.
func (s *Store) SaveRun(run *domain.SimulationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return ErrDuplicateRun
	}
	s.runs[run.ID] = run
	s.runOrder = append(s.runOrder, run.ID)
	return nil
}

// UpdateRun replaces a run record in place.
func (s *Store) UpdateRun(run *domain.SimulationRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

// GetRun retrieves a run by ID. A copy is returned so callers cannot mutate
// stored state.
func (s *Store) GetRun(id string) (domain.SimulationRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.SimulationRun{}, false
	}
	return *run, true
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun() (domain.SimulationRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runOrder) == 0 {
		return domain.SimulationRun{}, false
	}
	return *s.runs[s.runOrder[len(s.runOrder)-1]], true
}

// ListRuns returns all runs in creation order.
func (s *Store) ListRuns() []domain.SimulationRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]domain.SimulationRun, 0, len(s.runOrder))
	for _, id := range s.runOrder {
		runs = append(runs, *s.runs[id])
	}
	return runs
}

// SaveTables stores a completed run's exported tables.
func (s *Store) SaveTables(runID string, tables domain.Tables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[runID] = tables
}

// GetTables retrieves a run's exported tables.
func (s *Store) GetTables(runID string) (domain.Tables, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tables, ok := s.tables[runID]
	return tables, ok
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// SaveWebhook persists a webhook configuration.
func (s *Store) SaveWebhook(wh *domain.WebhookConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[wh.ID] = wh
}

// DeleteWebhook removes a webhook by ID. Returns false if not found.
func (s *Store) DeleteWebhook(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.webhooks[id]
	if exists {
		delete(s.webhooks, id)
	}
	return exists
}

// ListActiveWebhooks returns all webhooks that are currently active.
func (s *Store) ListActiveWebhooks() []*domain.WebhookConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WebhookConfig
	for _, wh := range s.webhooks {
		if wh.Active {
			result = append(result, wh)
		}
	}
	return result
}
