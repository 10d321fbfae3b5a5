package accounting

import (
	"context"
	"errors"
	"fmt"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

type AccountInput struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Postable *bool  `json:"postable,omitempty"`
}

// CreateAccount adds an account to the chart. Type, nature, level and
// parent are derived from the code; the parent does not need to exist.
func (s *Service) CreateAccount(ctx context.Context, in AccountInput) (*ledger.Account, error) {
	acct, err := ledger.NewAccount(in.Code, in.Name, in.Postable)
	if err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.AccountByCode(ctx, in.Code); err == nil {
			return &ledger.DuplicateAccountError{Code: in.Code}
		} else if !errors.Is(err, ledger.ErrAccountNotFound) {
			return err
		}
		return tx.InsertAccount(ctx, acct)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account created", "code", acct.Code, "type", acct.Type, "postable", acct.Postable)
	return acct, nil
}

// UpdateAccount renames an account. System accounts are immutable.
func (s *Service) UpdateAccount(ctx context.Context, code, name string) (*ledger.Account, error) {
	if name == "" {
		return nil, &ledger.ValidationError{Field: "name", Reason: "account name is required"}
	}
	var acct *ledger.Account
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = tx.AccountByCode(ctx, code)
		if err != nil {
			return err
		}
		if acct.System {
			return fmt.Errorf("%w: %s", ledger.ErrSystemAccountImmutable, code)
		}
		acct.Name = name
		return tx.RenameAccount(ctx, code, name)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// DeactivateAccount stops an account from receiving new movements. System
// accounts and accounts with movements cannot be deactivated.
func (s *Service) DeactivateAccount(ctx context.Context, code string) error {
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		acct, err := tx.AccountByCode(ctx, code)
		if err != nil {
			return err
		}
		if acct.System {
			return fmt.Errorf("%w: %s", ledger.ErrSystemAccountImmutable, code)
		}
		if acct.MovementCount > 0 {
			return fmt.Errorf("%w: %s has %d movements", ledger.ErrAccountHasMovements, code, acct.MovementCount)
		}
		return tx.SetAccountActive(ctx, code, false)
	})
	if err != nil {
		return err
	}
	s.log.Info("account deactivated", "code", code)
	return nil
}

func (s *Service) GetAccount(ctx context.Context, code string) (*ledger.Account, error) {
	var acct *ledger.Account
	err := s.store.Snapshot(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = tx.AccountByCode(ctx, code)
		return err
	})
	return acct, err
}

func (s *Service) ListAccounts(ctx context.Context, filter store.AccountFilter) ([]ledger.Account, error) {
	var accounts []ledger.Account
	err := s.store.Snapshot(ctx, func(tx *store.Tx) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, filter)
		return err
	})
	return accounts, err
}

// SeedChart installs the predefined chart as system accounts, skipping
// codes that already exist. It returns how many were created.
func (s *Service) SeedChart(ctx context.Context) (int, error) {
	created := 0
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		codes := make([]string, len(ledger.PredefinedAccounts))
		for i, ce := range ledger.PredefinedAccounts {
			codes[i] = ce.Code
		}
		existing, err := tx.AccountsByCodes(ctx, codes)
		if err != nil {
			return err
		}
		for _, ce := range ledger.PredefinedAccounts {
			if _, ok := existing[ce.Code]; ok {
				continue
			}
			acct, err := ledger.NewAccount(ce.Code, ce.Name, nil)
			if err != nil {
				return fmt.Errorf("chart entry %s: %w", ce.Code, err)
			}
			acct.System = true
			if err := tx.InsertAccount(ctx, acct); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.log.Info("chart seeded", "accounts", created)
	}
	return created, nil
}
