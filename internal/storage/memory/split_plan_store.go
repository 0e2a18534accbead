// Package memory provides in-memory storage implementations for tests
// and ephemeral deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/storage"
)

// SplitPlanStore is an in-memory implementation of storage.SplitPlanStore.
type SplitPlanStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SplitPlan // keyed by plan_id
}

// NewSplitPlanStore creates a new in-memory split plan store.
func NewSplitPlanStore() *SplitPlanStore {
	return &SplitPlanStore{
		data: make(map[string]*domain.SplitPlan),
	}
}

// Compile-time interface check.
var _ storage.SplitPlanStore = (*SplitPlanStore)(nil)

// Insert adds a new plan. Returns ErrDuplicateKey if plan_id exists.
func (s *SplitPlanStore) Insert(_ context.Context, p *domain.SplitPlan) error {
	if p == nil || p.PlanID == "" || len(p.Units) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PlanID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[p.PlanID] = copyPlan(p)
	return nil
}

// GetByID retrieves a plan by its ID. Returns ErrNotFound if not exists.
func (s *SplitPlanStore) GetByID(_ context.Context, planID string) (*domain.SplitPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[planID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyPlan(p), nil
}

// GetByOwner retrieves all plans for an owner, ordered by created_at ASC.
func (s *SplitPlanStore) GetByOwner(_ context.Context, owner string) ([]*domain.SplitPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SplitPlan
	for _, p := range s.data {
		if p.Owner == owner {
			result = append(result, copyPlan(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// GetPending retrieves plans with at least one PENDING unit.
func (s *SplitPlanStore) GetPending(_ context.Context) ([]*domain.SplitPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SplitPlan
	for _, p := range s.data {
		for i := range p.Units {
			if p.Units[i].Status == domain.SplitPending {
				result = append(result, copyPlan(p))
				break
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateUnit persists the progress of one unit.
func (s *SplitPlanStore) UpdateUnit(_ context.Context, planID string, unit domain.SplitUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[planID]
	if !exists {
		return storage.ErrNotFound
	}
	if unit.Index < 0 || unit.Index >= len(p.Units) {
		return storage.ErrNotFound
	}
	p.Units[unit.Index] = unit
	return nil
}

// copyPlan deep-copies a plan to prevent external mutation.
func copyPlan(p *domain.SplitPlan) *domain.SplitPlan {
	cp := *p
	cp.Units = make([]domain.SplitUnit, len(p.Units))
	copy(cp.Units, p.Units)
	return &cp
}
