package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitStatus is the lifecycle state of one split unit.
type SplitStatus string

const (
	SplitPending   SplitStatus = "PENDING"
	SplitCompleted SplitStatus = "COMPLETED"
	SplitFailed    SplitStatus = "FAILED"
)

// SplitConfig bounds the randomized split generation.
type SplitConfig struct {
	// SplitThreshold: amounts below this are never split. Splitting small
	// amounts creates linkage noise disproportionate to the privacy gain
	// and wastes transaction fees.
	SplitThreshold decimal.Decimal

	// MaxSplitParts caps the number of sub-deposits.
	MaxSplitParts int

	// MinSplitAmount is the floor for every sub-deposit.
	MinSplitAmount decimal.Decimal

	// DelayBetweenSplits is awaited between consecutive submissions.
	DelayBetweenSplits time.Duration
}

// SplitUnit is one randomized sub-deposit of a plan.
type SplitUnit struct {
	Index       int
	Amount      decimal.Decimal
	Status      SplitStatus
	Handle      Handle // set once the amount is encrypted
	TxSignature string // set once submitted
	Err         string // set on failure; never names other units' amounts
}

// SplitPlan is one deposit intent carved into randomized, time-staggered
// sub-deposits. Invariant: unit amounts sum exactly to OriginalAmount,
// every amount is >= the configured minimum, and the unit count does not
// exceed the configured maximum.
type SplitPlan struct {
	PlanID         string
	Owner          string // base58 wallet
	Pool           string // base58 whirlpool
	OriginalAmount decimal.Decimal
	Units          []SplitUnit
	CreatedAt      time.Time
}

// Completed reports whether every unit finished successfully.
func (p *SplitPlan) Completed() bool {
	for i := range p.Units {
		if p.Units[i].Status != SplitCompleted {
			return false
		}
	}
	return true
}

// FailedUnits returns the indices of units that failed, for manual
// reconciliation by the caller.
func (p *SplitPlan) FailedUnits() []int {
	var out []int
	for i := range p.Units {
		if p.Units[i].Status == SplitFailed {
			out = append(out, i)
		}
	}
	return out
}
