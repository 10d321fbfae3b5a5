package accounting

import (
	"context"
	"fmt"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

func validPeriod(year, month int) error {
	if year < 1900 || year > 9999 {
		return &ledger.ValidationError{Field: "year", Reason: fmt.Sprintf("%d is out of range", year)}
	}
	if month < 0 || month > 12 {
		return &ledger.ValidationError{Field: "month", Reason: fmt.Sprintf("%d is not a month (0 locks the whole year)", month)}
	}
	return nil
}

// LockPeriod closes a month of a fiscal year to new postings; month 0
// closes the whole year.
func (s *Service) LockPeriod(ctx context.Context, year, month int) error {
	if err := validPeriod(year, month); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.LockPeriod(ctx, ledger.PeriodLock{Year: year, Month: month})
	})
	if err != nil {
		return err
	}
	s.log.Info("period locked", "year", year, "month", month)
	return nil
}

func (s *Service) UnlockPeriod(ctx context.Context, year, month int) error {
	if err := validPeriod(year, month); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.UnlockPeriod(ctx, ledger.PeriodLock{Year: year, Month: month})
	})
	if err != nil {
		return err
	}
	s.log.Info("period unlocked", "year", year, "month", month)
	return nil
}

func (s *Service) PeriodLocks(ctx context.Context) ([]ledger.PeriodLock, error) {
	var locks []ledger.PeriodLock
	err := s.store.Snapshot(ctx, func(tx *store.Tx) error {
		var err error
		locks, err = tx.ListPeriodLocks(ctx)
		return err
	})
	return locks, err
}
