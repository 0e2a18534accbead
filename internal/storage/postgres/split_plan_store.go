package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/storage"
)

// SplitPlanStore implements storage.SplitPlanStore using PostgreSQL.
type SplitPlanStore struct {
	pool *Pool
}

// NewSplitPlanStore creates a new SplitPlanStore.
func NewSplitPlanStore(pool *Pool) *SplitPlanStore {
	return &SplitPlanStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SplitPlanStore = (*SplitPlanStore)(nil)

// Insert adds a new plan with all its units in one transaction.
func (s *SplitPlanStore) Insert(ctx context.Context, p *domain.SplitPlan) error {
	if p == nil || p.PlanID == "" || len(p.Units) == 0 {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert plan: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO split_plans (plan_id, owner, pool, original_amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.PlanID, p.Owner, p.Pool, p.OriginalAmount.String(), p.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert plan: %w", err)
	}

	for _, u := range p.Units {
		_, err = tx.Exec(ctx, `
			INSERT INTO split_units (plan_id, unit_index, amount, status, handle, tx_signature, err)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, p.PlanID, u.Index, u.Amount.String(), string(u.Status), handleHex(u.Handle), u.TxSignature, u.Err)
		if err != nil {
			return fmt.Errorf("insert unit %d: %w", u.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert plan: %w", err)
	}
	return nil
}

// GetByID retrieves a plan with its units ordered by index.
func (s *SplitPlanStore) GetByID(ctx context.Context, planID string) (*domain.SplitPlan, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT plan_id, owner, pool, original_amount::text, created_at
		FROM split_plans
		WHERE plan_id = $1
	`, planID)

	p, err := scanPlan(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get plan by id: %w", err)
	}

	if err := s.loadUnits(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByOwner retrieves all plans for an owner, ordered by created_at ASC.
func (s *SplitPlanStore) GetByOwner(ctx context.Context, owner string) ([]*domain.SplitPlan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT plan_id, owner, pool, original_amount::text, created_at
		FROM split_plans
		WHERE owner = $1
		ORDER BY created_at ASC, plan_id ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("get plans by owner: %w", err)
	}
	return s.collectPlans(ctx, rows)
}

// GetPending retrieves plans with at least one PENDING unit.
func (s *SplitPlanStore) GetPending(ctx context.Context) ([]*domain.SplitPlan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.plan_id, p.owner, p.pool, p.original_amount::text, p.created_at
		FROM split_plans p
		JOIN split_units u ON u.plan_id = p.plan_id
		WHERE u.status = $1
		ORDER BY p.created_at ASC, p.plan_id ASC
	`, string(domain.SplitPending))
	if err != nil {
		return nil, fmt.Errorf("get pending plans: %w", err)
	}
	return s.collectPlans(ctx, rows)
}

// UpdateUnit persists the progress of one unit.
func (s *SplitPlanStore) UpdateUnit(ctx context.Context, planID string, unit domain.SplitUnit) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE split_units
		SET status = $3, handle = $4, tx_signature = $5, err = $6
		WHERE plan_id = $1 AND unit_index = $2
	`, planID, unit.Index, string(unit.Status), handleHex(unit.Handle), unit.TxSignature, unit.Err)
	if err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *SplitPlanStore) collectPlans(ctx context.Context, rows pgx.Rows) ([]*domain.SplitPlan, error) {
	defer rows.Close()

	var result []*domain.SplitPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}

	for _, p := range result {
		if err := s.loadUnits(ctx, p); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *SplitPlanStore) loadUnits(ctx context.Context, p *domain.SplitPlan) error {
	rows, err := s.pool.Query(ctx, `
		SELECT unit_index, amount::text, status, handle, tx_signature, err
		FROM split_units
		WHERE plan_id = $1
		ORDER BY unit_index ASC
	`, p.PlanID)
	if err != nil {
		return fmt.Errorf("load units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u         domain.SplitUnit
			amount    string
			status    string
			handleHex string
		)
		if err := rows.Scan(&u.Index, &amount, &status, &handleHex, &u.TxSignature, &u.Err); err != nil {
			return fmt.Errorf("scan unit: %w", err)
		}
		u.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("parse unit amount %q: %w", amount, err)
		}
		u.Status = domain.SplitStatus(status)
		if handleHex != "" {
			u.Handle, err = domain.HandleFromHex(handleHex)
			if err != nil {
				return fmt.Errorf("parse unit handle %q: %w", handleHex, err)
			}
		}
		p.Units = append(p.Units, u)
	}
	return rows.Err()
}

// handleHex renders a handle for storage; an unset handle stays empty.
func handleHex(h domain.Handle) string {
	if h == (domain.Handle{}) {
		return ""
	}
	return h.String()
}

// scanPlan scans one plan row without its units.
func scanPlan(row pgx.Row) (*domain.SplitPlan, error) {
	var (
		p      domain.SplitPlan
		amount string
		ts     time.Time
	)
	if err := row.Scan(&p.PlanID, &p.Owner, &p.Pool, &amount, &ts); err != nil {
		return nil, err
	}
	var err error
	p.OriginalAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse plan amount %q: %w", amount, err)
	}
	p.CreatedAt = ts.UTC()
	return &p, nil
}
