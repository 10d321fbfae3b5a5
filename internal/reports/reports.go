// Package reports builds the statutory accounting reports. Every report
// reads one consistent snapshot of the tenant's ledger and never writes.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

type Engine struct {
	store *store.Store
}

func New(st *store.Store) *Engine {
	return &Engine{store: st}
}

// DateRange is an inclusive range of days.
type DateRange struct {
	From time.Time `json:"desde"`
	To   time.Time `json:"hasta"`
}

func (r DateRange) validate() (DateRange, error) {
	if r.From.IsZero() || r.To.IsZero() {
		return r, &ledger.ValidationError{Field: "range", Reason: "both dates are required"}
	}
	r.From, r.To = ledger.DateOnly(r.From), ledger.DateOnly(r.To)
	if r.To.Before(r.From) {
		return r, &ledger.ValidationError{Field: "range", Reason: fmt.Sprintf("%s is before %s",
			r.To.Format(ledger.DateLayout), r.From.Format(ledger.DateLayout))}
	}
	return r, nil
}

func (r DateRange) filter() store.LineFilter {
	from, to := r.From, r.To
	return store.LineFilter{From: &from, To: &to}
}

// groupCode trims a code to the grouping level; 0 keeps the full code.
func groupCode(code string, level int) string {
	if level <= 0 || len(code) <= level {
		return code
	}
	return code[:level]
}

// accountNames resolves display names for (possibly grouped) codes.
func accountNames(ctx context.Context, tx *store.Tx, codes []string) (map[string]string, error) {
	accounts, err := tx.AccountsByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(accounts))
	for code, a := range accounts {
		names[code] = a.Name
	}
	for _, code := range codes {
		if _, ok := names[code]; !ok {
			if ce := ledger.LookupChartEntry(code); ce != nil {
				names[code] = ce.Name
			}
		}
	}
	return names, nil
}


// cumulativeSums sums every year up to the filter's cutoff. Opening
// entries restate the closing balances of the previous year, so they only
// count when that year has no movements of its own in the ledger. A filter
// scoped to one fiscal year is summed as is.
func cumulativeSums(ctx context.Context, tx *store.Tx, f store.LineFilter) ([]store.AccountSum, error) {
	if f.FiscalYear != 0 {
		return tx.SumsByAccount(ctx, f)
	}

	history := f
	history.ExcludeOrigin = ledger.OriginOpening
	sums, err := tx.SumsByAccount(ctx, history)
	if err != nil {
		return nil, err
	}

	ef := store.EntryFilter{Origin: ledger.OriginOpening, Status: ledger.StatusPosted, To: f.To}
	if f.Before != nil {
		last := f.Before.AddDate(0, 0, -1)
		ef.To = &last
	}
	openings, err := tx.ListEntries(ctx, ef)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]store.AccountSum, len(sums))
	for _, s := range sums {
		merged[s.Code] = s
	}
	changed := false
	for _, e := range openings {
		prior, err := tx.JournalTotals(ctx, store.LineFilter{FiscalYear: e.FiscalYear - 1, ExcludeOrigin: ledger.OriginOpening})
		if err != nil {
			return nil, err
		}
		if prior.Lines > 0 {
			continue
		}
		for _, l := range e.Lines {
			if !matchesCode(f, l.AccountCode) {
				continue
			}
			s, ok := merged[l.AccountCode]
			if !ok {
				s = store.AccountSum{Code: l.AccountCode, Name: l.AccountName, Debit: decimal.Zero, Credit: decimal.Zero}
				if cls, err := ledger.Classify(l.AccountCode); err == nil {
					s.Nature = cls.Nature
				}
			}
			s.Debit = s.Debit.Add(l.Debit)
			s.Credit = s.Credit.Add(l.Credit)
			merged[l.AccountCode] = s
			changed = true
		}
	}
	if !changed {
		return sums, nil
	}

	out := make([]store.AccountSum, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// matchesCode applies the account conditions of a line filter to a code.
func matchesCode(f store.LineFilter, code string) bool {
	if f.Code != "" && code != f.Code {
		return false
	}
	if f.CodePrefix != "" && !strings.HasPrefix(code, f.CodePrefix) {
		return false
	}
	if f.CodeFrom != "" && prefixOf(code, len(f.CodeFrom)) < f.CodeFrom {
		return false
	}
	if f.CodeTo != "" && prefixOf(code, len(f.CodeTo)) > f.CodeTo {
		return false
	}
	return true
}

func prefixOf(code string, n int) string {
	if len(code) <= n {
		return code
	}
	return code[:n]
}
