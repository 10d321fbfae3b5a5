package accounting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

// CloseFiscalYear posts the regularization entry that moves every group 6
// and 7 balance of the year into the result account, then locks the year.
// date defaults to the last day of the fiscal year. Closing twice returns
// the first closing entry. A year without income or expense movements is
// locked without an entry and yields a nil entry.
func (s *Service) CloseFiscalYear(ctx context.Context, year int, date *time.Time) (*ledger.JournalEntry, error) {
	var entry *ledger.JournalEntry
	err := s.withRetry(ctx, "close_year", func() error {
		return s.store.WithTx(ctx, func(tx *store.Tx) error {
			cfg, err := s.fiscalConfigTx(ctx, tx)
			if err != nil {
				return err
			}
			start, end := ledger.FiscalYearBounds(year, cfg.YearStartMonth)
			closeDate, err := yearEndDate(date, end, start, end)
			if err != nil {
				return err
			}

			existing, err := tx.EntryByOrigin(ctx, ledger.OriginClosing, strconv.Itoa(year))
			if err == nil {
				existing.Existing = true
				entry = existing
				return tx.LockPeriod(ctx, ledger.PeriodLock{Year: year})
			}
			if !errors.Is(err, ledger.ErrEntryNotFound) {
				return err
			}

			sums, err := tx.SumsByAccount(ctx, store.LineFilter{FiscalYear: year})
			if err != nil {
				return err
			}
			var lines []ledger.DraftLine
			result := decimal.Zero
			for _, sum := range sums {
				if sum.Code[0] != '6' && sum.Code[0] != '7' {
					continue
				}
				net := sum.Net()
				if net.IsZero() {
					continue
				}
				result = result.Add(net)
				lines = append(lines, offsetLine(sum.Code, net.Neg(), "Regularización"))
			}

			if len(lines) > 0 {
				if !result.IsZero() {
					lines = append(lines, offsetLine(cfg.Defaults.Result, result, "Resultado del ejercicio"))
				}
				draft := ledger.Draft{
					Date:        closeDate,
					Description: fmt.Sprintf("Regularización ejercicio %d", year),
					Lines:       lines,
					Origin:      ledger.OriginClosing,
					OriginID:    strconv.Itoa(year),
					Locked:      true,
				}
				if err := draft.Validate(); err != nil {
					return err
				}
				entry, err = s.postTx(ctx, tx, &draft, true)
				if err != nil {
					return err
				}
			}
			return tx.LockPeriod(ctx, ledger.PeriodLock{Year: year})
		})
	})
	if err != nil {
		return nil, err
	}
	if entry != nil && !entry.Existing {
		s.metrics.EntriesPosted.WithLabelValues(s.tenant, string(entry.Origin)).Inc()
	}
	s.log.Info("fiscal year closed", "year", year)
	return entry, nil
}

// OpenFiscalYear posts the opening entry of year carrying the closing
// balances of groups 1 to 5 from the previous year. Income and expense
// left unclosed in that year are folded into the result account so the
// entry always balances. date defaults to the first day of the year.
func (s *Service) OpenFiscalYear(ctx context.Context, year int, date *time.Time) (*ledger.JournalEntry, error) {
	var entry *ledger.JournalEntry
	err := s.withRetry(ctx, "open_year", func() error {
		return s.store.WithTx(ctx, func(tx *store.Tx) error {
			cfg, err := s.fiscalConfigTx(ctx, tx)
			if err != nil {
				return err
			}
			start, end := ledger.FiscalYearBounds(year, cfg.YearStartMonth)
			openDate, err := yearEndDate(date, start, start, end)
			if err != nil {
				return err
			}

			sums, err := tx.SumsByAccount(ctx, store.LineFilter{FiscalYear: year - 1})
			if err != nil {
				return err
			}
			nets := map[string]decimal.Decimal{}
			for _, sum := range sums {
				net := sum.Net()
				switch sum.Code[0] {
				case '6', '7':
					nets[cfg.Defaults.Result] = nets[cfg.Defaults.Result].Add(net)
				default:
					nets[sum.Code] = nets[sum.Code].Add(net)
				}
			}
			codes := make([]string, 0, len(nets))
			for code, net := range nets {
				if !net.IsZero() {
					codes = append(codes, code)
				}
			}
			if len(codes) == 0 {
				return &ledger.ValidationError{Field: "year", Reason: fmt.Sprintf("fiscal year %d has no balances to carry forward", year-1)}
			}
			sort.Strings(codes)

			lines := make([]ledger.DraftLine, 0, len(codes))
			for _, code := range codes {
				lines = append(lines, offsetLine(code, nets[code], "Apertura"))
			}
			draft := ledger.Draft{
				Date:        openDate,
				Description: fmt.Sprintf("Asiento de apertura ejercicio %d", year),
				Lines:       lines,
				Origin:      ledger.OriginOpening,
				OriginID:    strconv.Itoa(year),
				Locked:      true,
			}
			if err := draft.Validate(); err != nil {
				return err
			}
			entry, err = s.postTx(ctx, tx, &draft, false)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if !entry.Existing {
		s.metrics.EntriesPosted.WithLabelValues(s.tenant, string(entry.Origin)).Inc()
		s.log.Info("fiscal year opened", "year", year, "number", entry.Number)
	}
	return entry, nil
}

// offsetLine books a signed amount: positive on the debit side, negative
// on the credit side.
func offsetLine(code string, net decimal.Decimal, memo string) ledger.DraftLine {
	l := ledger.DraftLine{AccountCode: code, Debit: decimal.Zero, Credit: decimal.Zero, Memo: memo}
	if net.IsPositive() {
		l.Debit = net
	} else {
		l.Credit = net.Neg()
	}
	return l
}

func yearEndDate(date *time.Time, def, start, end time.Time) (time.Time, error) {
	if date == nil {
		return def, nil
	}
	d := ledger.DateOnly(*date)
	if d.Before(start) || d.After(end) {
		return time.Time{}, &ledger.ValidationError{Field: "date", Reason: fmt.Sprintf("%s is outside the fiscal year", d.Format(ledger.DateLayout))}
	}
	return d, nil
}
