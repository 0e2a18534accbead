package splitter

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/observability"
	"privacy-vault/internal/storage/memory"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = observability.NewMetrics("splitter_test")

func newTestExecutor(t *testing.T) (*Executor, *memory.SplitPlanStore) {
	t.Helper()
	journal := memory.NewSplitPlanStore()
	return NewExecutor(journal, time.Millisecond, testMetrics, zap.NewNop()), journal
}

func newExecutorPlan(t *testing.T) *domain.SplitPlan {
	t.Helper()
	plan, err := NewPlan("OwnerAddr", "PoolAddr", decimal.NewFromInt(6000), testConfig(), rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(plan.Units), 2, "test needs a multi-unit plan")
	return plan
}

func TestExecutor_RunAllComplete(t *testing.T) {
	exec, journal := newTestExecutor(t)
	plan := newExecutorPlan(t)

	var order []int
	err := exec.Run(context.Background(), plan, func(_ context.Context, _ *domain.SplitPlan, u *domain.SplitUnit) error {
		order = append(order, u.Index)
		u.TxSignature = fmt.Sprintf("sig-%d", u.Index)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, plan.Completed())

	// Submission order follows plan order.
	for i, idx := range order {
		assert.Equal(t, i, idx)
	}

	stored, err := journal.GetByID(context.Background(), plan.PlanID)
	require.NoError(t, err)
	assert.True(t, stored.Completed())
	assert.Equal(t, "sig-0", stored.Units[0].TxSignature)
}

func TestExecutor_PartialFailure(t *testing.T) {
	exec, journal := newTestExecutor(t)
	plan := newExecutorPlan(t)

	failAt := 1
	err := exec.Run(context.Background(), plan, func(_ context.Context, _ *domain.SplitPlan, u *domain.SplitUnit) error {
		if u.Index == failAt {
			return errors.New("blockhash expired")
		}
		u.TxSignature = fmt.Sprintf("sig-%d", u.Index)
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrPartialSplitFailure)

	assert.Equal(t, []int{failAt}, plan.FailedUnits())
	assert.Equal(t, "blockhash expired", plan.Units[failAt].Err)

	// Later units still ran after the failure.
	for i := failAt + 1; i < len(plan.Units); i++ {
		assert.Equal(t, domain.SplitCompleted, plan.Units[i].Status)
	}

	stored, err := journal.GetByID(context.Background(), plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, domain.SplitFailed, stored.Units[failAt].Status)
}

func TestExecutor_AllFail(t *testing.T) {
	exec, _ := newTestExecutor(t)
	plan := newExecutorPlan(t)

	err := exec.Run(context.Background(), plan, func(_ context.Context, _ *domain.SplitPlan, _ *domain.SplitUnit) error {
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrPartialSplitFailure))
	assert.Len(t, plan.FailedUnits(), len(plan.Units))
}

func TestExecutor_ResumeSkipsFinishedUnits(t *testing.T) {
	exec, journal := newTestExecutor(t)
	plan := newExecutorPlan(t)

	// Seed the journal as if unit 0 already completed in a prior run.
	plan.Units[0].Status = domain.SplitCompleted
	plan.Units[0].TxSignature = "sig-old"
	require.NoError(t, journal.Insert(context.Background(), plan))

	var ran []int
	err := exec.Run(context.Background(), plan, func(_ context.Context, _ *domain.SplitPlan, u *domain.SplitUnit) error {
		ran = append(ran, u.Index)
		u.TxSignature = fmt.Sprintf("sig-%d", u.Index)
		return nil
	})
	require.NoError(t, err)

	assert.NotContains(t, ran, 0, "completed unit must not rerun")
	assert.Equal(t, "sig-old", plan.Units[0].TxSignature)
}

func TestExecutor_ContextCancelledBetweenUnits(t *testing.T) {
	exec, _ := newTestExecutor(t)
	plan := newExecutorPlan(t)

	ctx, cancel := context.WithCancel(context.Background())
	err := exec.Run(ctx, plan, func(_ context.Context, _ *domain.SplitPlan, u *domain.SplitUnit) error {
		if u.Index == 0 {
			u.TxSignature = "sig-0"
			cancel()
			return nil
		}
		t.Fatal("unit ran after cancellation")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// Unit 0 completed, the rest stayed pending.
	assert.Equal(t, domain.SplitCompleted, plan.Units[0].Status)
	for i := 1; i < len(plan.Units); i++ {
		assert.Equal(t, domain.SplitPending, plan.Units[i].Status)
	}
}
