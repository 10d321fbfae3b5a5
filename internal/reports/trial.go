package reports

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

type TrialBalanceQuery struct {
	DateRange
	// Level groups rows by code prefix of this length; 0 lists every
	// account.
	Level int
}

type TrialBalanceRow struct {
	Codigo        string          `json:"codigo"`
	Nombre        string          `json:"nombre"`
	SumaDebe      decimal.Decimal `json:"sumaDebe"`
	SumaHaber     decimal.Decimal `json:"sumaHaber"`
	SaldoDeudor   decimal.Decimal `json:"saldoDeudor"`
	SaldoAcreedor decimal.Decimal `json:"saldoAcreedor"`
}

type TrialBalanceSummary struct {
	TotalDebe          decimal.Decimal `json:"totalDebe"`
	TotalHaber         decimal.Decimal `json:"totalHaber"`
	TotalSaldoDeudor   decimal.Decimal `json:"totalSaldoDeudor"`
	TotalSaldoAcreedor decimal.Decimal `json:"totalSaldoAcreedor"`
	CuadradoSumas      bool            `json:"cuadradoSumas"`
	CuadradoSaldos     bool            `json:"cuadradoSaldos"`
}

// TrialBalanceReport is the Balance de Sumas y Saldos.
type TrialBalanceReport struct {
	Desde   string              `json:"desde"`
	Hasta   string              `json:"hasta"`
	Nivel   int                 `json:"nivel"`
	Filas   []TrialBalanceRow   `json:"filas"`
	Resumen TrialBalanceSummary `json:"resumen"`
}

// TrialBalance sums debits and credits per account or prefix group and
// splits each row's balance into debtor or creditor by the sign of
// debit minus credit. The summary carries both reconciliation checks.
func (e *Engine) TrialBalance(ctx context.Context, q TrialBalanceQuery) (*TrialBalanceReport, error) {
	r, err := q.DateRange.validate()
	if err != nil {
		return nil, err
	}
	if q.Level < 0 {
		return nil, &ledger.ValidationError{Field: "level", Reason: "grouping level cannot be negative"}
	}

	rep := &TrialBalanceReport{
		Desde: r.From.Format(ledger.DateLayout),
		Hasta: r.To.Format(ledger.DateLayout),
		Nivel: q.Level,
		Filas: []TrialBalanceRow{},
	}
	err = e.store.Snapshot(ctx, func(tx *store.Tx) error {
		sums, err := tx.SumsByAccount(ctx, r.filter())
		if err != nil {
			return err
		}

		rows := map[string]*TrialBalanceRow{}
		for _, s := range sums {
			code := groupCode(s.Code, q.Level)
			row, ok := rows[code]
			if !ok {
				row = &TrialBalanceRow{Codigo: code, SumaDebe: decimal.Zero, SumaHaber: decimal.Zero}
				if code == s.Code {
					row.Nombre = s.Name
				}
				rows[code] = row
			}
			row.SumaDebe = row.SumaDebe.Add(s.Debit)
			row.SumaHaber = row.SumaHaber.Add(s.Credit)
		}

		codes := make([]string, 0, len(rows))
		var unnamed []string
		for code, row := range rows {
			codes = append(codes, code)
			if row.Nombre == "" {
				unnamed = append(unnamed, code)
			}
		}
		sort.Strings(codes)
		names, err := accountNames(ctx, tx, unnamed)
		if err != nil {
			return err
		}

		sum := TrialBalanceSummary{
			TotalDebe:          decimal.Zero,
			TotalHaber:         decimal.Zero,
			TotalSaldoDeudor:   decimal.Zero,
			TotalSaldoAcreedor: decimal.Zero,
		}
		for _, code := range codes {
			row := rows[code]
			if row.Nombre == "" {
				row.Nombre = names[code]
			}
			row.SaldoDeudor, row.SaldoAcreedor = splitBalance(row.SumaDebe.Sub(row.SumaHaber))

			sum.TotalDebe = sum.TotalDebe.Add(row.SumaDebe)
			sum.TotalHaber = sum.TotalHaber.Add(row.SumaHaber)
			sum.TotalSaldoDeudor = sum.TotalSaldoDeudor.Add(row.SaldoDeudor)
			sum.TotalSaldoAcreedor = sum.TotalSaldoAcreedor.Add(row.SaldoAcreedor)
			rep.Filas = append(rep.Filas, *row)
		}
		sum.CuadradoSumas = ledger.WithinTolerance(sum.TotalDebe, sum.TotalHaber)
		sum.CuadradoSaldos = ledger.WithinTolerance(sum.TotalSaldoDeudor, sum.TotalSaldoAcreedor)
		rep.Resumen = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// splitBalance puts a debit-minus-credit net on the debtor or creditor
// side.
func splitBalance(net decimal.Decimal) (debtor, creditor decimal.Decimal) {
	if net.IsPositive() {
		return net, decimal.Zero
	}
	return decimal.Zero, net.Neg()
}
