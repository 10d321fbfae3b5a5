package accounting

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/simonvc/contaledger/internal/ledger"
)

// Metrics holds the ledger's Prometheus collectors. One instance is shared
// by every tenant; the tenant is a label.
type Metrics struct {
	EntriesPosted      *prometheus.CounterVec
	EntriesIdempotent  *prometheus.CounterVec
	EntriesVoided      *prometheus.CounterVec
	PostFailures       *prometheus.CounterVec
	ConflictRetries    *prometheus.CounterVec
	SubsidiaryAccounts *prometheus.CounterVec
	PostDuration       *prometheus.HistogramVec
}

// NewMetrics registers the collectors with registry, or with the default
// registerer when registry is nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		EntriesPosted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contaledger_entries_posted_total",
			Help: "Journal entries posted, by origin",
		}, []string{"tenant", "origin"}),
		EntriesIdempotent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contaledger_entries_idempotent_total",
			Help: "Postings that returned an existing entry for the same origin document",
		}, []string{"tenant", "origin"}),
		EntriesVoided: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contaledger_entries_voided_total",
			Help: "Journal entries voided with a contra entry",
		}, []string{"tenant"}),
		PostFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contaledger_post_failures_total",
			Help: "Rejected postings, by reason",
		}, []string{"tenant", "reason"}),
		ConflictRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contaledger_conflict_retries_total",
			Help: "Write transactions retried after a concurrency conflict",
		}, []string{"tenant", "operation"}),
		SubsidiaryAccounts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contaledger_subsidiary_accounts_created_total",
			Help: "Per-party subsidiary accounts created",
		}, []string{"tenant", "party_type"}),
		PostDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contaledger_post_duration_seconds",
			Help:    "Time spent posting a journal entry",
			Buckets: prometheus.DefBuckets,
		}, []string{"tenant"}),
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return "validation"
	case errors.Is(err, ledger.ErrUnbalancedEntry):
		return "unbalanced"
	case errors.Is(err, ledger.ErrClosedPeriod):
		return "closed_period"
	case errors.Is(err, ledger.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ledger.ErrNonPostableAccount):
		return "non_postable"
	case errors.Is(err, ledger.ErrAlreadyVoided):
		return "already_voided"
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "other"
	}
}
