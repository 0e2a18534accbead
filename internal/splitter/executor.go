package splitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/observability"
	"privacy-vault/internal/storage"
)

// UnitFunc performs one sub-deposit: encrypt the amount, build the
// transaction, obtain the owner's signature and submit. On success it
// fills unit.Handle and unit.TxSignature. UnitFunc must not retain the
// unit pointer past its return.
type UnitFunc func(ctx context.Context, plan *domain.SplitPlan, unit *domain.SplitUnit) error

// Executor runs a split plan's units strictly in sequence with the
// configured delay between consecutive submissions. Submission order is
// the plan order; a failed unit never causes reordering, later units
// still run. Completed units are on-chain and are never rolled back.
type Executor struct {
	journal storage.SplitPlanStore
	delay   time.Duration
	metrics *observability.Metrics
	log     *zap.Logger
}

// NewExecutor creates a split plan executor.
func NewExecutor(journal storage.SplitPlanStore, delay time.Duration, metrics *observability.Metrics, log *zap.Logger) *Executor {
	return &Executor{journal: journal, delay: delay, metrics: metrics, log: log}
}

// Run executes every pending unit of the plan. A plan already present in
// the journal is resumed: completed and failed units are skipped, the
// remaining pending units run in order.
//
// Returns nil when every unit is completed, ErrPartialSplitFailure when
// some units completed and at least one failed, and a plain error when
// nothing completed. Context cancellation between units stops execution
// and leaves the rest pending.
func (e *Executor) Run(ctx context.Context, plan *domain.SplitPlan, fn UnitFunc) error {
	if err := e.journal.Insert(ctx, plan); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("journal plan %s: %w", plan.PlanID, err)
		}
		e.log.Info("resuming journaled plan", zap.String("plan_id", plan.PlanID))
	}

	var completed, failed int
	started := false

	for i := range plan.Units {
		unit := &plan.Units[i]
		switch unit.Status {
		case domain.SplitCompleted:
			completed++
			continue
		case domain.SplitFailed:
			failed++
			continue
		}

		if started {
			select {
			case <-ctx.Done():
				return fmt.Errorf("plan %s interrupted before unit %d: %w", plan.PlanID, i, ctx.Err())
			case <-time.After(e.delay):
			}
		}
		started = true

		if err := fn(ctx, plan, unit); err != nil {
			unit.Status = domain.SplitFailed
			unit.Err = err.Error()
			failed++
			e.metrics.RecordUnitOutcome(true)
			// Logs never carry unit amounts.
			e.log.Warn("split unit failed",
				zap.String("plan_id", plan.PlanID),
				zap.Int("unit", i),
				zap.Error(err))
		} else {
			unit.Status = domain.SplitCompleted
			completed++
			e.metrics.RecordUnitOutcome(false)
			e.log.Info("split unit completed",
				zap.String("plan_id", plan.PlanID),
				zap.Int("unit", i),
				zap.String("tx_signature", unit.TxSignature))
		}

		if err := e.journal.UpdateUnit(ctx, plan.PlanID, *unit); err != nil {
			e.log.Error("journal update failed",
				zap.String("plan_id", plan.PlanID),
				zap.Int("unit", i),
				zap.Error(err))
		}

		if unit.Status == domain.SplitFailed && ctx.Err() != nil {
			break
		}
	}

	switch {
	case failed == 0:
		return nil
	case completed > 0:
		e.metrics.PartialPlanFailures.Inc()
		return fmt.Errorf("%w: plan %s completed %d of %d units",
			domain.ErrPartialSplitFailure, plan.PlanID, completed, len(plan.Units))
	default:
		return fmt.Errorf("plan %s failed: no units completed", plan.PlanID)
	}
}
