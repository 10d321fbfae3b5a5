// Package accounting implements the chart of accounts, the journal and the
// per-account balance index of one tenant on top of its store.
package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/log"
	"github.com/simonvc/contaledger/internal/store"
)

type Options struct {
	Tenant  string
	Parties ledger.PartyDirectory
	Metrics *Metrics
	Logger  log.Logger
	Clock   func() time.Time
}

// Service is the accounting engine of a single tenant. It is safe for
// concurrent use.
type Service struct {
	store   *store.Store
	tenant  string
	parties ledger.PartyDirectory
	metrics *Metrics
	log     log.Logger
	now     func() time.Time

	subsidiaries singleflight.Group
}

func New(st *store.Store, opts Options) *Service {
	s := &Service{
		store:   st,
		tenant:  opts.Tenant,
		parties: opts.Parties,
		metrics: opts.Metrics,
		log:     opts.Logger,
		now:     opts.Clock,
	}
	if s.parties == nil {
		s.parties = st
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(prometheus.NewRegistry())
	}
	if s.log == nil {
		s.log = log.New("accounting")
	}
	s.log = s.log.With("tenant", s.tenant)
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Tenant() string { return s.tenant }

// Store exposes the underlying store to read-only collaborators.
func (s *Service) Store() *store.Store { return s.store }

// Now is the service clock.
func (s *Service) Now() time.Time { return s.now() }

// Init prepares a tenant: installs the base chart and a default fiscal
// configuration when none exists. It is safe to call on every start.
func (s *Service) Init(ctx context.Context) error {
	if _, err := s.SeedChart(ctx); err != nil {
		return fmt.Errorf("seed chart: %w", err)
	}
	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		_, found, err := tx.FiscalConfig(ctx)
		if err != nil || found {
			return err
		}
		return tx.SaveFiscalConfig(ctx, ledger.DefaultFiscalConfig(s.now().Year()))
	})
}

// FiscalConfig returns the tenant configuration, or the defaults when none
// was saved.
func (s *Service) FiscalConfig(ctx context.Context) (ledger.FiscalConfig, error) {
	var cfg ledger.FiscalConfig
	err := s.store.Snapshot(ctx, func(tx *store.Tx) error {
		var err error
		cfg, err = s.fiscalConfigTx(ctx, tx)
		return err
	})
	return cfg, err
}

func (s *Service) fiscalConfigTx(ctx context.Context, tx *store.Tx) (ledger.FiscalConfig, error) {
	cfg, found, err := tx.FiscalConfig(ctx)
	if err != nil {
		return cfg, err
	}
	if !found {
		cfg = ledger.DefaultFiscalConfig(s.now().Year())
	}
	return cfg, nil
}

func (s *Service) UpdateFiscalConfig(ctx context.Context, cfg ledger.FiscalConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error { return tx.SaveFiscalConfig(ctx, cfg) }); err != nil {
		return err
	}
	s.log.Info("fiscal config updated", "active_year", cfg.ActiveYear, "auto_posting", cfg.AutoPosting)
	return nil
}
