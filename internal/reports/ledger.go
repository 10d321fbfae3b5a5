package reports

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

// LedgerQuery selects accounts by code prefix or by an inclusive code
// range; prefix wins when both are set.
type LedgerQuery struct {
	DateRange
	Code       string
	CodeFrom   string
	CodeTo     string
	FiscalYear *int
}

type LedgerMovement struct {
	Fecha     string          `json:"fecha"`
	Numero    int64           `json:"numero"`
	AsientoID string          `json:"asientoId"`
	Concepto  string          `json:"concepto"`
	Documento string          `json:"documento,omitempty"`
	Debe      decimal.Decimal `json:"debe"`
	Haber     decimal.Decimal `json:"haber"`
	Saldo     decimal.Decimal `json:"saldo"`
}

type LedgerAccount struct {
	Codigo       string           `json:"codigo"`
	Nombre       string           `json:"nombre"`
	SaldoInicial decimal.Decimal  `json:"saldoInicial"`
	Movimientos  []LedgerMovement `json:"movimientos"`
	TotalDebe    decimal.Decimal  `json:"totalDebe"`
	TotalHaber   decimal.Decimal  `json:"totalHaber"`
	SaldoFinal   decimal.Decimal  `json:"saldoFinal"`
}

// LedgerReport is the Libro Mayor. Balances are debit minus credit.
type LedgerReport struct {
	Desde   string          `json:"desde"`
	Hasta   string          `json:"hasta"`
	Cuentas []LedgerAccount `json:"cuentas"`
}

// GeneralLedger walks every selected account: the opening balance sums
// everything strictly before the range (only within FiscalYear when set,
// otherwise carried the way cumulativeSums does),
// then in-range lines accumulate a running balance in (date, number)
// order.
func (e *Engine) GeneralLedger(ctx context.Context, q LedgerQuery) (*LedgerReport, error) {
	r, err := q.DateRange.validate()
	if err != nil {
		return nil, err
	}
	if q.Code == "" && q.CodeFrom == "" && q.CodeTo == "" {
		return nil, &ledger.ValidationError{Field: "code", Reason: "an account code or code range is required"}
	}

	scope := store.LineFilter{CodePrefix: q.Code}
	if q.Code == "" {
		scope.CodeFrom, scope.CodeTo = q.CodeFrom, q.CodeTo
	}
	if q.FiscalYear != nil {
		scope.FiscalYear = *q.FiscalYear
	}

	rep := &LedgerReport{Desde: r.From.Format(ledger.DateLayout), Hasta: r.To.Format(ledger.DateLayout)}
	err = e.store.Snapshot(ctx, func(tx *store.Tx) error {
		before := scope
		before.Before = &r.From
		opening, err := cumulativeSums(ctx, tx, before)
		if err != nil {
			return err
		}

		in := scope
		in.From, in.To = &r.From, &r.To
		lines, err := tx.Lines(ctx, in, 0, 0)
		if err != nil {
			return err
		}

		accounts := map[string]*LedgerAccount{}
		get := func(code, name string) *LedgerAccount {
			a, ok := accounts[code]
			if !ok {
				a = &LedgerAccount{
					Codigo:       code,
					Nombre:       name,
					SaldoInicial: decimal.Zero,
					Movimientos:  []LedgerMovement{},
					TotalDebe:    decimal.Zero,
					TotalHaber:   decimal.Zero,
				}
				accounts[code] = a
			}
			return a
		}
		for _, s := range opening {
			if !s.Net().IsZero() {
				get(s.Code, s.Name).SaldoInicial = s.Net()
			}
		}
		for _, l := range lines {
			get(l.AccountCode, l.AccountName)
		}

		codes := make([]string, 0, len(accounts))
		for code := range accounts {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		running := map[string]decimal.Decimal{}
		for code, a := range accounts {
			running[code] = a.SaldoInicial
		}
		// Lines arrive ordered by account, date, number and line.
		for _, l := range lines {
			a := accounts[l.AccountCode]
			bal := running[l.AccountCode].Add(l.Debit).Sub(l.Credit)
			running[l.AccountCode] = bal
			a.TotalDebe = a.TotalDebe.Add(l.Debit)
			a.TotalHaber = a.TotalHaber.Add(l.Credit)
			a.Movimientos = append(a.Movimientos, LedgerMovement{
				Fecha:     l.Date.Format(ledger.DateLayout),
				Numero:    l.Number,
				AsientoID: l.EntryID,
				Concepto:  concept(l),
				Documento: l.DocumentRef,
				Debe:      l.Debit,
				Haber:     l.Credit,
				Saldo:     bal,
			})
		}

		rep.Cuentas = make([]LedgerAccount, 0, len(codes))
		for _, code := range codes {
			a := accounts[code]
			a.SaldoFinal = running[code]
			rep.Cuentas = append(rep.Cuentas, *a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func concept(l store.PostedLine) string {
	if l.Memo != "" {
		return l.Description + " - " + l.Memo
	}
	return l.Description
}
