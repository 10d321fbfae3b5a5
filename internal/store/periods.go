package store

import (
	"context"
	"fmt"

	"github.com/simonvc/contaledger/internal/ledger"
)

// IsPeriodLocked reports whether the month, or its whole year, is locked.
func (t *Tx) IsPeriodLocked(ctx context.Context, year, month int) (bool, error) {
	var n int
	err := t.tx.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM period_locks WHERE year = ? AND (month = ? OR month = 0)`, year, month)
	if err != nil {
		return false, fmt.Errorf("check period lock: %w", err)
	}
	return n > 0, nil
}

func (t *Tx) LockPeriod(ctx context.Context, lock ledger.PeriodLock) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO period_locks (year, month) VALUES (?, ?) ON CONFLICT (year, month) DO NOTHING`,
		lock.Year, lock.Month)
	if err != nil {
		return fmt.Errorf("lock period: %w", err)
	}
	return nil
}

func (t *Tx) UnlockPeriod(ctx context.Context, lock ledger.PeriodLock) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM period_locks WHERE year = ? AND month = ?`, lock.Year, lock.Month)
	if err != nil {
		return fmt.Errorf("unlock period: %w", err)
	}
	return nil
}

func (t *Tx) ListPeriodLocks(ctx context.Context) ([]ledger.PeriodLock, error) {
	var locks []ledger.PeriodLock
	if err := t.tx.SelectContext(ctx, &locks, `SELECT year, month FROM period_locks ORDER BY year, month`); err != nil {
		return nil, fmt.Errorf("list period locks: %w", err)
	}
	return locks, nil
}
