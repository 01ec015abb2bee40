// Package registry holds the in-process strategy store. It is the single
// source of truth for which automations exist and their last-known health.
// The store is deliberately non-durable: the whole map is lost on restart.
package registry

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/refuel/internal/entity"
)

// ErrNotFound is returned when a strategy id is unknown.
var ErrNotFound = errors.New("strategy not found")

// ErrAlreadyInactive is returned when deactivating a cancelled strategy.
// Cancellation is terminal, records are never reactivated or removed.
var ErrAlreadyInactive = errors.New("strategy already cancelled")

// Registry is an injectable in-memory strategy store. Reads return clones so
// callers cannot mutate stored state behind the lock.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*entity.Strategy
	order   []string
	created uint64
}

func New() *Registry {
	return &Registry{byID: make(map[string]*entity.Strategy)}
}

// Put appends a new record. Ids are assigned by the caller at creation and
// never reused.
func (r *Registry) Put(s *entity.Strategy) error {
	if s == nil || s.ID == "" {
		return errors.New("strategy with non-empty id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; ok {
		return errors.Errorf("strategy %s already exists", s.ID)
	}
	clone := *s
	r.byID[s.ID] = &clone
	r.order = append(r.order, s.ID)
	r.created++
	return nil
}

// Get returns a copy of the record or ErrNotFound.
func (r *Registry) Get(id string) (*entity.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *s
	return &clone, nil
}

// ListActive returns copies of active records in insertion order.
func (r *Registry) ListActive() []*entity.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*entity.Strategy, 0, len(r.order))
	for _, id := range r.order {
		s := r.byID[id]
		if !s.Active {
			continue
		}
		clone := *s
		result = append(result, &clone)
	}
	return result
}

// ListAll returns copies of every record in insertion order, cancelled ones
// included. Cancelled records stay queryable for history within the process
// lifetime.
func (r *Registry) ListAll() []*entity.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*entity.Strategy, 0, len(r.order))
	for _, id := range r.order {
		clone := *r.byID[id]
		result = append(result, &clone)
	}
	return result
}

// Deactivate flips Active to false. The transition is one-way: deactivating
// an already inactive record returns ErrAlreadyInactive.
func (r *Registry) Deactivate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !s.Active {
		return ErrAlreadyInactive
	}
	s.Active = false
	return nil
}

// Touch refreshes LastChecked. Called by the monitor and explicit status
// checks only.
func (r *Registry) Touch(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.LastChecked = at
	return nil
}

// RecordExecution folds one observed top-up execution into the cumulative
// statistics of a strategy.
func (r *Registry) RecordExecution(id string, success bool, transferred decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	succeededBefore := s.SuccessRate * float64(s.ExecutionCount)
	s.ExecutionCount++
	if success {
		succeededBefore++
		s.TotalTransferred = s.TotalTransferred.Add(transferred)
	}
	s.SuccessRate = succeededBefore / float64(s.ExecutionCount)
	return nil
}

// Created returns how many records were ever appended.
func (r *Registry) Created() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created
}

// Len returns the number of records, cancelled ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
