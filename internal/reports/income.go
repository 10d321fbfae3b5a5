package reports

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

type IncomeStatementQuery struct {
	DateRange
	// Level adds detail lines grouped by code prefix of this length.
	Level                int
	CompareWithPriorYear bool
}

type IncomeCategory string

const (
	CategoryOperatingIncome  IncomeCategory = "ingresosExplotacion"
	CategoryOperatingExpense IncomeCategory = "gastosExplotacion"
	CategoryFinancialIncome  IncomeCategory = "ingresosFinancieros"
	CategoryFinancialExpense IncomeCategory = "gastosFinancieros"
	CategoryTax              IncomeCategory = "impuestoBeneficios"
)

// taxPrefixes are the income tax accounts reported below pre-tax result.
var taxPrefixes = []string{"630", "633", "638"}

type IncomeLine struct {
	Codigo    string          `json:"codigo"`
	Nombre    string          `json:"nombre"`
	Categoria IncomeCategory  `json:"categoria"`
	Importe   decimal.Decimal `json:"importe"`
}

type IncomeStatementPeriod struct {
	Desde                   string          `json:"desde"`
	Hasta                   string          `json:"hasta"`
	IngresosExplotacion     decimal.Decimal `json:"ingresosExplotacion"`
	GastosExplotacion       decimal.Decimal `json:"gastosExplotacion"`
	ResultadoExplotacion    decimal.Decimal `json:"resultadoExplotacion"`
	IngresosFinancieros     decimal.Decimal `json:"ingresosFinancieros"`
	GastosFinancieros       decimal.Decimal `json:"gastosFinancieros"`
	ResultadoFinanciero     decimal.Decimal `json:"resultadoFinanciero"`
	ResultadoAntesImpuestos decimal.Decimal `json:"resultadoAntesImpuestos"`
	ImpuestoBeneficios      decimal.Decimal `json:"impuestoBeneficios"`
	ResultadoEjercicio      decimal.Decimal `json:"resultadoEjercicio"`
	Detalle                 []IncomeLine    `json:"detalle,omitempty"`
}

// IncomeStatementReport is the Cuenta de Pérdidas y Ganancias.
type IncomeStatementReport struct {
	Nivel    int                    `json:"nivel"`
	Actual   IncomeStatementPeriod  `json:"actual"`
	Anterior *IncomeStatementPeriod `json:"anterior,omitempty"`
}

// categorize returns the statement category of an income or expense code,
// and false for codes outside groups 6 and 7.
func categorize(code string) (IncomeCategory, bool) {
	for _, p := range taxPrefixes {
		if strings.HasPrefix(code, p) {
			return CategoryTax, true
		}
	}
	switch {
	case strings.HasPrefix(code, "66"):
		return CategoryFinancialExpense, true
	case strings.HasPrefix(code, "76"):
		return CategoryFinancialIncome, true
	case code[0] == '6':
		return CategoryOperatingExpense, true
	case code[0] == '7':
		return CategoryOperatingIncome, true
	}
	return "", false
}

// IncomeStatement aggregates income and expense over the range. Closing
// entries are left out so a closed year still shows its activity.
func (e *Engine) IncomeStatement(ctx context.Context, q IncomeStatementQuery) (*IncomeStatementReport, error) {
	r, err := q.DateRange.validate()
	if err != nil {
		return nil, err
	}

	rep := &IncomeStatementReport{Nivel: q.Level}
	err = e.store.Snapshot(ctx, func(tx *store.Tx) error {
		cur, err := incomePeriod(ctx, tx, r, q.Level)
		if err != nil {
			return err
		}
		rep.Actual = *cur
		if q.CompareWithPriorYear {
			prior := DateRange{From: r.From.AddDate(-1, 0, 0), To: r.To.AddDate(-1, 0, 0)}
			rep.Anterior, err = incomePeriod(ctx, tx, prior, q.Level)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func incomePeriod(ctx context.Context, tx *store.Tx, r DateRange, level int) (*IncomeStatementPeriod, error) {
	f := r.filter()
	f.ExcludeOrigin = ledger.OriginClosing
	sums, err := tx.SumsByAccount(ctx, f)
	if err != nil {
		return nil, err
	}

	p := &IncomeStatementPeriod{
		Desde:               r.From.Format(ledger.DateLayout),
		Hasta:               r.To.Format(ledger.DateLayout),
		IngresosExplotacion: decimal.Zero,
		GastosExplotacion:   decimal.Zero,
		IngresosFinancieros: decimal.Zero,
		GastosFinancieros:   decimal.Zero,
		ImpuestoBeneficios:  decimal.Zero,
	}
	type detailKey struct {
		code string
		cat  IncomeCategory
	}
	detail := map[detailKey]decimal.Decimal{}

	for _, s := range sums {
		cat, ok := categorize(s.Code)
		if !ok {
			continue
		}
		// Expenses are reported as debit balances, income as credit
		// balances.
		amount := s.Net()
		if s.Code[0] == '7' {
			amount = amount.Neg()
		}
		switch cat {
		case CategoryOperatingIncome:
			p.IngresosExplotacion = p.IngresosExplotacion.Add(amount)
		case CategoryOperatingExpense:
			p.GastosExplotacion = p.GastosExplotacion.Add(amount)
		case CategoryFinancialIncome:
			p.IngresosFinancieros = p.IngresosFinancieros.Add(amount)
		case CategoryFinancialExpense:
			p.GastosFinancieros = p.GastosFinancieros.Add(amount)
		case CategoryTax:
			p.ImpuestoBeneficios = p.ImpuestoBeneficios.Add(amount)
		}
		if level > 0 {
			k := detailKey{code: groupCode(s.Code, level), cat: cat}
			detail[k] = detail[k].Add(amount)
		}
	}

	p.ResultadoExplotacion = p.IngresosExplotacion.Sub(p.GastosExplotacion)
	p.ResultadoFinanciero = p.IngresosFinancieros.Sub(p.GastosFinancieros)
	p.ResultadoAntesImpuestos = p.ResultadoExplotacion.Add(p.ResultadoFinanciero)
	p.ResultadoEjercicio = p.ResultadoAntesImpuestos.Sub(p.ImpuestoBeneficios)

	if len(detail) > 0 {
		keys := make([]detailKey, 0, len(detail))
		codes := make([]string, 0, len(detail))
		for k := range detail {
			keys = append(keys, k)
			codes = append(codes, k.code)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].code != keys[j].code {
				return keys[i].code < keys[j].code
			}
			return keys[i].cat < keys[j].cat
		})
		names, err := accountNames(ctx, tx, codes)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			p.Detalle = append(p.Detalle, IncomeLine{Codigo: k.code, Nombre: names[k.code], Categoria: k.cat, Importe: detail[k]})
		}
	}
	return p, nil
}
