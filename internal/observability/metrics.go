// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"privacy-vault/internal/domain"
)

// Metrics holds all Prometheus metrics for the application. Labels never
// carry amounts, handles, or owner identities; only counts and timings
// leave the process.
type Metrics struct {
	// Codec metrics
	AmountsEncrypted prometheus.Counter
	HandlesRevealed  prometheus.Counter
	EncryptErrors    *prometheus.CounterVec

	// Split router metrics
	PlansCreated        prometheus.Counter
	PlanUnits           prometheus.Histogram
	UnitsCompleted      prometheus.Counter
	UnitsFailed         prometheus.Counter
	PartialPlanFailures prometheus.Counter

	// Lifecycle metrics
	TransactionsBuilt *prometheus.CounterVec
	BuildErrors       *prometheus.CounterVec
	QuoteLatency      prometheus.Histogram

	// Chain metrics
	ConfirmationsTotal   *prometheus.CounterVec
	ConfirmationDuration prometheus.Histogram
	RPCCallLatency       *prometheus.HistogramVec

	// Attestation metrics
	AttestationsVerified prometheus.Counter
	AttestationsRejected prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "privacy_vault"
	}

	return &Metrics{
		AmountsEncrypted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codec",
			Name:      "amounts_encrypted_total",
			Help:      "Total number of amounts encrypted client-side",
		}),
		HandlesRevealed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codec",
			Name:      "handles_revealed_total",
			Help:      "Total number of handles revealed with owner authorization",
		}),
		EncryptErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codec",
			Name:      "encrypt_errors_total",
			Help:      "Total number of encryption failures by type",
		}, []string{"error_type"}),

		PlansCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "splitter",
			Name:      "plans_created_total",
			Help:      "Total number of split plans created",
		}),
		PlanUnits: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "splitter",
			Name:      "plan_units",
			Help:      "Number of units per split plan",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 10},
		}),
		UnitsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "splitter",
			Name:      "units_completed_total",
			Help:      "Total number of split units completed",
		}),
		UnitsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "splitter",
			Name:      "units_failed_total",
			Help:      "Total number of split units failed",
		}),
		PartialPlanFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "splitter",
			Name:      "partial_plan_failures_total",
			Help:      "Total number of plans that ended partially failed",
		}),

		TransactionsBuilt: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "transactions_built_total",
			Help:      "Total number of unsigned transactions built by operation",
		}, []string{"operation"}),
		BuildErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "build_errors_total",
			Help:      "Total number of transaction build failures by operation and error",
		}, []string{"operation", "error_type"}),
		QuoteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "quote_latency_seconds",
			Help:      "Time to fetch pool state and compute a liquidity quote",
			Buckets:   prometheus.DefBuckets,
		}),

		ConfirmationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "confirmations_total",
			Help:      "Total number of confirmation waits by outcome",
		}, []string{"outcome"}),
		ConfirmationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "confirmation_duration_seconds",
			Help:      "Time from broadcast to finality",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90},
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "Latency of ledger RPC calls by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		AttestationsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attestation",
			Name:      "verified_total",
			Help:      "Total number of attestations confirmed on-chain",
		}),
		AttestationsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attestation",
			Name:      "rejected_total",
			Help:      "Total number of attestations rejected locally or on-chain",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPlan records a freshly created split plan.
func (m *Metrics) RecordPlan(units int) {
	m.PlansCreated.Inc()
	m.PlanUnits.Observe(float64(units))
}

// RecordUnitOutcome records one finished split unit.
func (m *Metrics) RecordUnitOutcome(failed bool) {
	if failed {
		m.UnitsFailed.Inc()
	} else {
		m.UnitsCompleted.Inc()
	}
}

// RecordBuild records a transaction build attempt.
func (m *Metrics) RecordBuild(operation string, err error) {
	if err != nil {
		m.BuildErrors.WithLabelValues(operation, ErrorType(err)).Inc()
		return
	}
	m.TransactionsBuilt.WithLabelValues(operation).Inc()
}

// ErrorType maps an error to a stable label value.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, domain.ErrScaleOverflow):
		return "scale_overflow"
	case errors.Is(err, domain.ErrQuoteExceedsMax):
		return "quote_exceeds_max"
	case errors.Is(err, domain.ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, domain.ErrVaultBusy):
		return "vault_busy"
	case errors.Is(err, domain.ErrVaultPaused):
		return "vault_paused"
	case errors.Is(err, domain.ErrPoolNotFound):
		return "pool_not_found"
	case errors.Is(err, domain.ErrVaultNotFound):
		return "vault_not_found"
	case errors.Is(err, domain.ErrPositionNotFound):
		return "position_not_found"
	case errors.Is(err, domain.ErrAttestationRejected):
		return "attestation_rejected"
	case errors.Is(err, domain.ErrPartialSplitFailure):
		return "partial_split_failure"
	default:
		return "internal"
	}
}
