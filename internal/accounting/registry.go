package accounting

import (
	"context"
	"sync"

	"github.com/simonvc/contaledger/internal/log"
	"github.com/simonvc/contaledger/internal/store"
)

// Registry hands out one initialised Service per tenant.
type Registry struct {
	tenants *store.Tenants
	metrics *Metrics
	log     log.Logger

	mu       sync.Mutex
	services map[string]*Service
}

func NewRegistry(dataDir string, metrics *Metrics, lg log.Logger) (*Registry, error) {
	if lg == nil {
		lg = log.New("accounting")
	}
	r := &Registry{
		metrics:  metrics,
		log:      lg,
		services: make(map[string]*Service),
	}
	tenants, err := store.NewTenants(dataDir, r.initTenant)
	if err != nil {
		return nil, err
	}
	r.tenants = tenants
	return r, nil
}

func (r *Registry) initTenant(ctx context.Context, key string, st *store.Store) error {
	svc := New(st, Options{Tenant: key, Metrics: r.metrics, Logger: r.log})
	if err := svc.Init(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.services[key] = svc
	r.mu.Unlock()
	r.log.Info("tenant ready", "tenant", key)
	return nil
}

// Service returns the tenant's service, opening and initialising its
// database on first use.
func (r *Registry) Service(ctx context.Context, tenant string) (*Service, error) {
	r.mu.Lock()
	svc, ok := r.services[tenant]
	r.mu.Unlock()
	if ok {
		return svc, nil
	}

	if _, err := r.tenants.Open(ctx, tenant); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.services[tenant], nil
}

func (r *Registry) Close() error {
	return r.tenants.Close()
}
