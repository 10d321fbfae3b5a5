package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/contaledger/internal/ledger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustAccount(t *testing.T, s *Store, code, name string) *ledger.Account {
	t.Helper()
	acct, err := ledger.NewAccount(code, name, nil)
	require.NoError(t, err)
	require.NoError(t, s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertAccount(context.Background(), acct)
	}))
	return acct
}

func postRaw(t *testing.T, s *Store, number int64, date string, lines ...ledger.JournalLine) *ledger.JournalEntry {
	t.Helper()
	d, err := time.Parse(ledger.DateLayout, date)
	require.NoError(t, err)
	e := &ledger.JournalEntry{
		Number:      number,
		FiscalYear:  d.Year(),
		Date:        d,
		Period:      int(d.Month()),
		Description: "test",
		Lines:       lines,
		Origin:      ledger.OriginManual,
		Status:      ledger.StatusPosted,
		Balanced:    true,
	}
	for _, l := range lines {
		e.TotalDebit = e.TotalDebit.Add(l.Debit)
		e.TotalCredit = e.TotalCredit.Add(l.Credit)
	}
	require.NoError(t, s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertEntry(context.Background(), e)
	}))
	return e
}

func line(acct *ledger.Account, debit, credit string) ledger.JournalLine {
	return ledger.JournalLine{
		AccountID:   acct.ID,
		AccountCode: acct.Code,
		AccountName: acct.Name,
		Debit:       decimal.RequireFromString(debit),
		Credit:      decimal.RequireFromString(credit),
	}
}

func TestOpenTwiceKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
}

func TestInsertAccountDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustAccount(t, s, "572", "Bancos")

	dup, err := ledger.NewAccount("572", "Otro banco", nil)
	require.NoError(t, err)
	err = s.WithTx(ctx, func(tx *Tx) error { return tx.InsertAccount(ctx, dup) })

	var dupErr *ledger.DuplicateAccountError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "572", dupErr.Code)
}

func TestSubsidiaryUniquePerParty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := ledger.NewAccount("4300001", "ACME", nil)
	require.NoError(t, err)
	a.PartyID, a.PartyType = "c-1", ledger.PartyCustomer
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error { return tx.InsertAccount(ctx, a) }))

	b, err := ledger.NewAccount("4300002", "ACME again", nil)
	require.NoError(t, err)
	b.PartyID, b.PartyType = "c-1", ledger.PartyCustomer
	err = s.WithTx(ctx, func(tx *Tx) error { return tx.InsertAccount(ctx, b) })
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)

	err = s.Snapshot(ctx, func(tx *Tx) error {
		got, err := tx.SubsidiaryAccount(ctx, ledger.PartyCustomer, "c-1")
		require.NoError(t, err)
		assert.Equal(t, "4300001", got.Code)

		maxCode, err := tx.MaxSubsidiaryCode(ctx, ledger.SubsidiaryRule{Prefix: "430", Length: 7})
		require.NoError(t, err)
		assert.Equal(t, "4300001", maxCode)

		_, err = tx.SubsidiaryAccount(ctx, ledger.PartyCustomer, "c-2")
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestApplyDelta(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sales := mustAccount(t, s, "700", "Ventas")
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.ApplyDelta(ctx, sales.ID, decimal.Zero, decimal.RequireFromString("1000"), at); err != nil {
			return err
		}
		return tx.ApplyDelta(ctx, sales.ID, decimal.RequireFromString("150.25"), decimal.Zero, at)
	}))

	require.NoError(t, s.Snapshot(ctx, func(tx *Tx) error {
		got, err := tx.AccountByCode(ctx, "700")
		require.NoError(t, err)
		assert.Equal(t, "150.25", got.DebitSum.StringFixed(2))
		assert.Equal(t, "1000.00", got.CreditSum.StringFixed(2))
		assert.Equal(t, "849.75", got.NetBalance.StringFixed(2))
		assert.EqualValues(t, 2, got.MovementCount)
		require.NotNil(t, got.LastMovementAt)
		assert.True(t, at.Equal(*got.LastMovementAt))
		return nil
	}))
}

func TestCounters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bank := mustAccount(t, s, "572", "Bancos")
	capital := mustAccount(t, s, "100", "Capital")

	var got []int64
	for i := 0; i < 3; i++ {
		require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
			n, err := tx.NextGlobalNumber(ctx)
			got = append(got, n)
			return err
		}))
	}
	assert.Equal(t, []int64{1, 2, 3}, got)

	postRaw(t, s, 1, "2024-01-10", line(bank, "10", "0"), line(capital, "0", "10"))
	postRaw(t, s, 2, "2024-02-10", line(bank, "10", "0"), line(capital, "0", "10"))
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		n, err := tx.NextYearNumber(ctx, 2024)
		assert.EqualValues(t, 3, n)
		n, err2 := tx.NextYearNumber(ctx, 2025)
		assert.EqualValues(t, 1, n)
		if err != nil {
			return err
		}
		return err2
	}))

	// Same number in the same year is rejected by the unique index.
	e := &ledger.JournalEntry{Number: 2, FiscalYear: 2024, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Period: 3, Description: "dup", Origin: ledger.OriginManual, Status: ledger.StatusPosted}
	err := s.WithTx(ctx, func(tx *Tx) error { return tx.InsertEntry(ctx, e) })
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	assert.ErrorIs(t, err, ErrKeyConflict)
}

func TestGlobalNumberFollowsIssuedNumbers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bank := mustAccount(t, s, "572", "Bancos")
	capital := mustAccount(t, s, "100", "Capital")

	next := func() int64 {
		t.Helper()
		var n int64
		require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
			var err error
			n, err = tx.NextGlobalNumber(ctx)
			return err
		}))
		return n
	}

	// Entries numbered per year before the switch to a global sequence.
	postRaw(t, s, 1, "2024-01-10", line(bank, "10", "0"), line(capital, "0", "10"))
	postRaw(t, s, 2, "2024-02-10", line(bank, "10", "0"), line(capital, "0", "10"))
	postRaw(t, s, 1, "2025-01-10", line(bank, "10", "0"), line(capital, "0", "10"))
	assert.EqualValues(t, 3, next())
	assert.EqualValues(t, 4, next())

	postRaw(t, s, 9, "2025-03-10", line(bank, "10", "0"), line(capital, "0", "10"))
	assert.EqualValues(t, 10, next())
}

func TestPeriodLocks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.LockPeriod(ctx, ledger.PeriodLock{Year: 2024, Month: 3}); err != nil {
			return err
		}
		if err := tx.LockPeriod(ctx, ledger.PeriodLock{Year: 2024, Month: 3}); err != nil {
			return err
		}
		return tx.LockPeriod(ctx, ledger.PeriodLock{Year: 2023, Month: 0})
	}))

	require.NoError(t, s.Snapshot(ctx, func(tx *Tx) error {
		for _, tc := range []struct {
			year, month int
			locked      bool
		}{
			{2024, 3, true},
			{2024, 4, false},
			{2023, 7, true},
			{2025, 3, false},
		} {
			got, err := tx.IsPeriodLocked(ctx, tc.year, tc.month)
			require.NoError(t, err)
			assert.Equal(t, tc.locked, got, "%d-%02d", tc.year, tc.month)
		}
		locks, err := tx.ListPeriodLocks(ctx)
		require.NoError(t, err)
		assert.Len(t, locks, 2)
		return nil
	}))

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.UnlockPeriod(ctx, ledger.PeriodLock{Year: 2024, Month: 3})
	}))
	require.NoError(t, s.Snapshot(ctx, func(tx *Tx) error {
		got, err := tx.IsPeriodLocked(ctx, 2024, 3)
		require.NoError(t, err)
		assert.False(t, got)
		return nil
	}))
}

func TestFiscalConfigPersistence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Snapshot(ctx, func(tx *Tx) error {
		_, found, err := tx.FiscalConfig(ctx)
		assert.False(t, found)
		return err
	}))

	cfg := ledger.DefaultFiscalConfig(2024)
	cfg.YearlyNumberReset = false
	cfg.Defaults.PaymentMethods["transfer"] = "5720001"
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error { return tx.SaveFiscalConfig(ctx, cfg) }))

	require.NoError(t, s.Snapshot(ctx, func(tx *Tx) error {
		got, found, err := tx.FiscalConfig(ctx)
		require.NoError(t, err)
		assert.True(t, found)
		assert.False(t, got.YearlyNumberReset)
		assert.Equal(t, "5720001", got.Defaults.PaymentMethods["transfer"])
		assert.Equal(t, ledger.SubsidiaryRule{Prefix: "430", Length: 7}, got.Subsidiary[ledger.PartyCustomer])
		return nil
	}))
}

func TestVoidAndImmutability(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bank := mustAccount(t, s, "572", "Bancos")
	capital := mustAccount(t, s, "100", "Capital")
	e := postRaw(t, s, 1, "2024-01-10", line(bank, "500", "0"), line(capital, "0", "500"))
	c := postRaw(t, s, 2, "2024-01-10", line(bank, "0", "500"), line(capital, "500", "0"))

	var ok bool
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		var err error
		ok, err = tx.MarkVoided(ctx, e.ID, c.ID, "error", time.Now())
		return err
	}))
	assert.True(t, ok)

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		var err error
		ok, err = tx.MarkVoided(ctx, e.ID, c.ID, "again", time.Now())
		return err
	}))
	assert.False(t, ok)

	err := s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.tx.ExecContext(ctx, `UPDATE journal_lines SET debit = 1 WHERE entry_id = ?`, e.ID)
		return err
	})
	assert.ErrorContains(t, err, "immutable")

	err = s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ?`, c.ID)
		return err
	})
	assert.Error(t, err)

	require.NoError(t, s.Snapshot(ctx, func(tx *Tx) error {
		got, err := tx.EntryByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusVoided, got.Status)
		assert.Equal(t, c.ID, got.VoidedBy)
		assert.Equal(t, "error", got.VoidReason)
		assert.Len(t, got.Lines, 2)
		return nil
	}))
}

func TestSnapshotIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bank := mustAccount(t, s, "572", "Bancos")
	capital := mustAccount(t, s, "100", "Capital")
	postRaw(t, s, 1, "2024-01-10", line(bank, "100", "0"), line(capital, "0", "100"))

	err := s.Snapshot(ctx, func(tx *Tx) error {
		before, err := tx.JournalTotals(ctx, LineFilter{})
		require.NoError(t, err)

		postRaw(t, s, 2, "2024-01-11", line(bank, "50", "0"), line(capital, "0", "50"))

		after, err := tx.JournalTotals(ctx, LineFilter{})
		require.NoError(t, err)
		assert.True(t, before.Debit.Equal(after.Debit), "snapshot must not see the concurrent write")
		assert.EqualValues(t, 1, after.Entries)
		return nil
	})
	require.NoError(t, err)
}

func TestLineFilterExcludesVoidedPairs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bank := mustAccount(t, s, "572", "Bancos")
	capital := mustAccount(t, s, "100", "Capital")
	e := postRaw(t, s, 1, "2024-01-10", line(bank, "500", "0"), line(capital, "0", "500"))
	postRaw(t, s, 2, "2024-02-10", line(bank, "70", "0"), line(capital, "0", "70"))

	contra := &ledger.JournalEntry{Number: 3, FiscalYear: 2024, Date: e.Date, Period: 1, Description: "contra",
		Origin: ledger.OriginAdjustment, Status: ledger.StatusPosted, Locked: true, Reverses: e.ID, Balanced: true,
		Lines: []ledger.JournalLine{line(bank, "0", "500"), line(capital, "500", "0")}}
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertEntry(ctx, contra); err != nil {
			return err
		}
		_, err := tx.MarkVoided(ctx, e.ID, contra.ID, "", time.Now())
		return err
	}))

	require.NoError(t, s.Snapshot(ctx, func(tx *Tx) error {
		sums, err := tx.SumsByAccount(ctx, LineFilter{})
		require.NoError(t, err)
		require.Len(t, sums, 2)
		assert.Equal(t, "100", sums[0].Code)
		assert.Equal(t, "70.00", sums[0].Credit.StringFixed(2))
		assert.Equal(t, "572", sums[1].Code)
		assert.Equal(t, "70.00", sums[1].Net().StringFixed(2))

		all, err := tx.JournalTotals(ctx, LineFilter{IncludeVoided: true})
		require.NoError(t, err)
		assert.EqualValues(t, 3, all.Entries)
		assert.Equal(t, "1070.00", all.Debit.StringFixed(2))

		lines, err := tx.Lines(ctx, LineFilter{CodePrefix: "57"}, 0, 0)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.EqualValues(t, 2, lines[0].Number)

		entries, err := tx.JournalEntries(ctx, LineFilter{CodeFrom: "5", CodeTo: "5"}, 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Len(t, entries[0].Lines, 2)
		return nil
	}))
}

func TestPartyDirectory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertParty(ctx, Party{Type: ledger.PartyCustomer, ID: "c-1", Name: "ACME", TaxID: "B123"}))
	require.NoError(t, s.UpsertParty(ctx, Party{Type: ledger.PartyCustomer, ID: "c-1", Name: "ACME SL", TaxID: "B123"}))

	info, err := s.PartyDisplayInfo(ctx, "c-1", ledger.PartyCustomer)
	require.NoError(t, err)
	assert.Equal(t, ledger.PartyInfo{Name: "ACME SL", TaxID: "B123"}, info)

	_, err = s.PartyDisplayInfo(ctx, "c-1", ledger.PartySupplier)
	assert.ErrorIs(t, err, ledger.ErrPartyNotFound)

	err = s.UpsertParty(ctx, Party{Type: "employee", ID: "e-1", Name: "x"})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestTenants(t *testing.T) {
	ctx := context.Background()
	opened := 0
	tenants, err := NewTenants(t.TempDir(), func(ctx context.Context, key string, s *Store) error {
		opened++
		return nil
	})
	require.NoError(t, err)
	defer tenants.Close()

	a, err := tenants.Open(ctx, "acme")
	require.NoError(t, err)
	again, err := tenants.Open(ctx, "acme")
	require.NoError(t, err)
	assert.Same(t, a, again)

	b, err := tenants.Open(ctx, "globex")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, opened)

	for _, bad := range []string{"", "../etc", "Acme", "a b"} {
		_, err := tenants.Open(ctx, bad)
		assert.ErrorIs(t, err, ledger.ErrInvalidTenant, bad)
	}
}
