package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

type BalanceSheetQuery struct {
	AsOf time.Time
	// Level adds detail lines grouped by code prefix of this length; 0
	// reports section totals only.
	Level int
}

type BalanceLine struct {
	Codigo  string          `json:"codigo"`
	Nombre  string          `json:"nombre"`
	Importe decimal.Decimal `json:"importe"`
}

type BalanceSection struct {
	Nombre string          `json:"nombre"`
	Total  decimal.Decimal `json:"total"`
	Lineas []BalanceLine   `json:"lineas,omitempty"`
}

type AssetSide struct {
	NoCorriente BalanceSection  `json:"noCorriente"`
	Corriente   BalanceSection  `json:"corriente"`
	Total       decimal.Decimal `json:"total"`
}

type LiabilitySide struct {
	PatrimonioNeto BalanceSection  `json:"patrimonioNeto"`
	NoCorriente    BalanceSection  `json:"noCorriente"`
	Corriente      BalanceSection  `json:"corriente"`
	Total          decimal.Decimal `json:"total"`
}

// BalanceSheetReport is the Balance de Situación. Cuadrado and Descuadre
// report whether assets equal equity plus liabilities.
type BalanceSheetReport struct {
	Fecha                string          `json:"fecha"`
	EjercicioFiscal      int             `json:"ejercicioFiscal"`
	Activo               AssetSide       `json:"activo"`
	PasivoPatrimonio     LiabilitySide   `json:"pasivoPatrimonio"`
	ResultadoEjercicio   decimal.Decimal `json:"resultadoEjercicio"`
	ResultadosPendientes decimal.Decimal `json:"resultadosPendientes"`
	Cuadrado             bool            `json:"cuadrado"`
	Descuadre            decimal.Decimal `json:"descuadre"`
}

type bucket int

const (
	bucketNonCurrentAsset bucket = iota
	bucketCurrentAsset
	bucketEquity
	bucketNonCurrentLiability
	bucketCurrentLiability
	bucketResult
)

// classifyBalance places an account by its code and the sign of its
// debit-minus-credit net.
func classifyBalance(code string, net decimal.Decimal) bucket {
	switch code[0] {
	case '2':
		return bucketNonCurrentAsset
	case '3':
		return bucketCurrentAsset
	case '1':
		if len(code) >= 2 && code[1] >= '4' && code[1] <= '8' {
			return bucketNonCurrentLiability
		}
		return bucketEquity
	case '4', '5':
		if net.IsNegative() {
			return bucketCurrentLiability
		}
		return bucketCurrentAsset
	default:
		return bucketResult
	}
}

type sectionBuilder struct {
	name  string
	level int
	total decimal.Decimal
	lines map[string]decimal.Decimal
}

func newSection(name string, level int) *sectionBuilder {
	return &sectionBuilder{name: name, level: level, total: decimal.Zero, lines: map[string]decimal.Decimal{}}
}

func (b *sectionBuilder) add(code string, amount decimal.Decimal) {
	b.total = b.total.Add(amount)
	if b.level > 0 {
		g := groupCode(code, b.level)
		b.lines[g] = b.lines[g].Add(amount)
	}
}

func (b *sectionBuilder) codes() []string {
	out := make([]string, 0, len(b.lines))
	for c := range b.lines {
		out = append(out, c)
	}
	return out
}

func (b *sectionBuilder) build(names map[string]string) BalanceSection {
	s := BalanceSection{Nombre: b.name, Total: b.total}
	codes := b.codes()
	sort.Strings(codes)
	for _, c := range codes {
		s.Lineas = append(s.Lineas, BalanceLine{Codigo: c, Nombre: names[c], Importe: b.lines[c]})
	}
	return s
}

// BalanceSheet reports the position as of a date. Income and expense of
// the current fiscal year become the period result, and income and expense
// of earlier years that were never closed are shown as pending results;
// both are part of equity.
func (e *Engine) BalanceSheet(ctx context.Context, q BalanceSheetQuery) (*BalanceSheetReport, error) {
	if q.AsOf.IsZero() {
		return nil, &ledger.ValidationError{Field: "as_of", Reason: "date is required"}
	}
	asOf := ledger.DateOnly(q.AsOf)

	var rep *BalanceSheetReport
	err := e.store.Snapshot(ctx, func(tx *store.Tx) error {
		cfg, _, err := tx.FiscalConfig(ctx)
		if err != nil {
			return err
		}
		year := ledger.FiscalYearOf(asOf, cfg.YearStartMonth)

		all, err := cumulativeSums(ctx, tx, store.LineFilter{To: &asOf})
		if err != nil {
			return err
		}
		current, err := tx.SumsByAccount(ctx, store.LineFilter{To: &asOf, FiscalYear: year})
		if err != nil {
			return err
		}

		nonCurrentAssets := newSection("Activo no corriente", q.Level)
		currentAssets := newSection("Activo corriente", q.Level)
		equity := newSection("Patrimonio neto", q.Level)
		nonCurrentLiab := newSection("Pasivo no corriente", q.Level)
		currentLiab := newSection("Pasivo corriente", q.Level)

		resultAll := decimal.Zero
		for _, s := range all {
			net := s.Net()
			if net.IsZero() {
				continue
			}
			switch classifyBalance(s.Code, net) {
			case bucketNonCurrentAsset:
				nonCurrentAssets.add(s.Code, net)
			case bucketCurrentAsset:
				currentAssets.add(s.Code, net)
			case bucketEquity:
				equity.add(s.Code, net.Neg())
			case bucketNonCurrentLiability:
				nonCurrentLiab.add(s.Code, net.Neg())
			case bucketCurrentLiability:
				currentLiab.add(s.Code, net.Neg())
			case bucketResult:
				resultAll = resultAll.Add(net.Neg())
			}
		}
		period := decimal.Zero
		for _, s := range current {
			if s.Code[0] == '6' || s.Code[0] == '7' {
				period = period.Add(s.Net().Neg())
			}
		}
		pending := resultAll.Sub(period)

		resultCode := cfg.Defaults.Result
		if resultCode == "" {
			resultCode = "129"
		}
		equity.total = equity.total.Add(period).Add(pending)
		if q.Level > 0 {
			if !period.IsZero() {
				key := groupCode(resultCode, q.Level)
				equity.lines[key] = equity.lines[key].Add(period)
			}
			if !pending.IsZero() {
				key := groupCode("12", q.Level)
				equity.lines[key] = equity.lines[key].Add(pending)
			}
		}

		var codes []string
		for _, b := range []*sectionBuilder{nonCurrentAssets, currentAssets, equity, nonCurrentLiab, currentLiab} {
			codes = append(codes, b.codes()...)
		}
		names, err := accountNames(ctx, tx, codes)
		if err != nil {
			return err
		}

		rep = &BalanceSheetReport{
			Fecha:                asOf.Format(ledger.DateLayout),
			EjercicioFiscal:      year,
			ResultadoEjercicio:   period,
			ResultadosPendientes: pending,
		}
		rep.Activo = AssetSide{
			NoCorriente: nonCurrentAssets.build(names),
			Corriente:   currentAssets.build(names),
			Total:       nonCurrentAssets.total.Add(currentAssets.total),
		}
		rep.PasivoPatrimonio = LiabilitySide{
			PatrimonioNeto: equity.build(names),
			NoCorriente:    nonCurrentLiab.build(names),
			Corriente:      currentLiab.build(names),
			Total:          equity.total.Add(nonCurrentLiab.total).Add(currentLiab.total),
		}
		rep.Descuadre = rep.Activo.Total.Sub(rep.PasivoPatrimonio.Total)
		rep.Cuadrado = rep.Descuadre.Abs().LessThan(ledger.Tolerance)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}
