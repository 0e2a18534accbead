// Package storage defines the persistence interfaces for the split-plan
// journal. The journal is advisory: on-chain state is the source of
// truth, the journal exists so partially executed plans can be
// reconciled after a crash.
package storage

import (
	"context"

	"privacy-vault/internal/domain"
)

// SplitPlanStore provides access to split plan storage.
type SplitPlanStore interface {
	// Insert adds a new plan with all its units. Returns ErrDuplicateKey
	// if plan_id exists.
	Insert(ctx context.Context, p *domain.SplitPlan) error

	// GetByID retrieves a plan with its units ordered by index. Returns
	// ErrNotFound if not exists.
	GetByID(ctx context.Context, planID string) (*domain.SplitPlan, error)

	// GetByOwner retrieves all plans for an owner, ordered by created_at ASC.
	GetByOwner(ctx context.Context, owner string) ([]*domain.SplitPlan, error)

	// GetPending retrieves plans that still have units in PENDING state,
	// ordered by created_at ASC. Used for crash reconciliation.
	GetPending(ctx context.Context) ([]*domain.SplitPlan, error)

	// UpdateUnit persists the progress of one unit of an existing plan.
	// Returns ErrNotFound if the plan or unit index does not exist.
	UpdateUnit(ctx context.Context, planID string, unit domain.SplitUnit) error
}
