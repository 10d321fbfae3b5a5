package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/simonvc/contaledger/internal/ledger"
)

var tenantKeyRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidTenantKey reports whether key can name a tenant database.
func ValidTenantKey(key string) bool {
	return tenantKeyRe.MatchString(key)
}

// Tenants opens one database per tenant under a directory and keeps them
// open for the life of the process.
type Tenants struct {
	dir    string
	mu     sync.Mutex
	stores map[string]*Store
	onOpen func(ctx context.Context, key string, s *Store) error
}

// NewTenants creates the directory if needed. onOpen, when non-nil, runs
// once for every newly opened store.
func NewTenants(dir string, onOpen func(ctx context.Context, key string, s *Store) error) (*Tenants, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Tenants{dir: dir, stores: make(map[string]*Store), onOpen: onOpen}, nil
}

func (t *Tenants) Open(ctx context.Context, key string) (*Store, error) {
	if !ValidTenantKey(key) {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidTenant, key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.stores[key]; ok {
		return s, nil
	}
	s, err := Open(ctx, filepath.Join(t.dir, key+".db"))
	if err != nil {
		return nil, fmt.Errorf("open tenant %s: %w", key, err)
	}
	if t.onOpen != nil {
		if err := t.onOpen(ctx, key, s); err != nil {
			s.Close()
			return nil, fmt.Errorf("init tenant %s: %w", key, err)
		}
	}
	t.stores[key] = s
	return s, nil
}

func (t *Tenants) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for key, s := range t.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tenant %s: %w", key, err))
		}
		delete(t.stores, key)
	}
	return errors.Join(errs...)
}
