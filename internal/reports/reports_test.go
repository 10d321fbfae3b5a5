package reports

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/contaledger/internal/accounting"
	"github.com/simonvc/contaledger/internal/autopost"
	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/log"
	"github.com/simonvc/contaledger/internal/store"
)

type fixture struct {
	svc    *accounting.Service
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := accounting.New(st, accounting.Options{
		Tenant:  "test",
		Metrics: accounting.NewMetrics(prometheus.NewRegistry()),
		Logger:  log.Nop(),
		Clock:   func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, svc.Init(context.Background()))
	return &fixture{svc: svc, engine: New(st)}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse(ledger.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dr(code, amount string) ledger.DraftLine {
	return ledger.DraftLine{AccountCode: code, Debit: dec(amount), Credit: decimal.Zero}
}

func cr(code, amount string) ledger.DraftLine {
	return ledger.DraftLine{AccountCode: code, Debit: decimal.Zero, Credit: dec(amount)}
}

func (f *fixture) post(t *testing.T, date string, lines ...ledger.DraftLine) *ledger.JournalEntry {
	t.Helper()
	e, err := f.svc.PostEntry(context.Background(), ledger.Draft{Date: day(date), Description: "test", Lines: lines})
	require.NoError(t, err)
	return e
}

// invoice posts a 100.00 + 21% VAT sales invoice through the generators.
func (f *fixture) invoice(t *testing.T, id, date string) *ledger.JournalEntry {
	t.Helper()
	gen := autopost.New(f.svc, log.Nop())
	e, err := gen.PostSalesInvoice(context.Background(), autopost.SalesInvoice{
		ID:              id,
		Number:          id,
		Date:            day(date),
		CustomerAccount: "430",
		Base:            dec("100.00"),
		Taxes:           []autopost.TaxLine{{Rate: dec("21"), Base: dec("100.00"), Amount: dec("21.00")}},
	})
	require.NoError(t, err)
	return e
}

func year2024() DateRange {
	return DateRange{From: day("2024-01-01"), To: day("2024-12-31")}
}

func rowsByCode(rep *TrialBalanceReport) map[string]TrialBalanceRow {
	out := map[string]TrialBalanceRow{}
	for _, r := range rep.Filas {
		out[r.Codigo] = r
	}
	return out
}

func TestTrialBalanceSingleInvoice(t *testing.T) {
	f := newFixture(t)
	f.invoice(t, "F-1", "2024-05-10")

	rep, err := f.engine.TrialBalance(context.Background(), TrialBalanceQuery{DateRange: year2024()})
	require.NoError(t, err)

	rows := rowsByCode(rep)
	require.Len(t, rows, 3)
	assert.Equal(t, "121.00", rows["430"].SumaDebe.StringFixed(2))
	assert.Equal(t, "121.00", rows["430"].SaldoDeudor.StringFixed(2))
	assert.True(t, rows["430"].SaldoAcreedor.IsZero())
	assert.Equal(t, "100.00", rows["700"].SumaHaber.StringFixed(2))
	assert.Equal(t, "100.00", rows["700"].SaldoAcreedor.StringFixed(2))
	assert.Equal(t, "21.00", rows["477"].SaldoAcreedor.StringFixed(2))
	assert.NotEmpty(t, rows["700"].Nombre)

	assert.True(t, rep.Resumen.CuadradoSumas)
	assert.True(t, rep.Resumen.CuadradoSaldos)
	assert.Equal(t, "121.00", rep.Resumen.TotalDebe.StringFixed(2))
	assert.Equal(t, "121.00", rep.Resumen.TotalHaber.StringFixed(2))
}

func TestTrialBalanceGrouping(t *testing.T) {
	f := newFixture(t)
	f.invoice(t, "F-1", "2024-05-10")
	f.post(t, "2024-05-20", dr("572", "121.00"), cr("430", "121.00"))

	rep, err := f.engine.TrialBalance(context.Background(), TrialBalanceQuery{DateRange: year2024(), Level: 1})
	require.NoError(t, err)

	rows := rowsByCode(rep)
	assert.Len(t, rows, 3)
	assert.Equal(t, "121.00", rows["4"].SumaDebe.StringFixed(2))
	assert.Equal(t, "142.00", rows["4"].SumaHaber.StringFixed(2))
	assert.Equal(t, "21.00", rows["4"].SaldoAcreedor.StringFixed(2))
	assert.Equal(t, "121.00", rows["5"].SaldoDeudor.StringFixed(2))
	assert.Equal(t, "Ventas e ingresos", rows["7"].Nombre)
	assert.True(t, rep.Resumen.CuadradoSaldos)

	_, err = f.engine.TrialBalance(context.Background(), TrialBalanceQuery{DateRange: year2024(), Level: -1})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestVoidedEntriesLeaveReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before, err := f.svc.Balance(ctx, "430")
	require.NoError(t, err)

	e := f.invoice(t, "F-1", "2024-05-10")
	res, err := f.svc.VoidEntry(ctx, e.ID, accounting.VoidRequest{Reason: "duplicada"})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusVoided, res.Original.Status)
	assert.Equal(t, ledger.OriginAdjustment, res.Contra.Origin)

	after, err := f.svc.Balance(ctx, "430")
	require.NoError(t, err)
	assert.True(t, before.NetBalance.Equal(after.NetBalance))

	trial, err := f.engine.TrialBalance(ctx, TrialBalanceQuery{DateRange: year2024()})
	require.NoError(t, err)
	assert.Empty(t, trial.Filas)

	journal, err := f.engine.Journal(ctx, JournalQuery{DateRange: year2024()})
	require.NoError(t, err)
	assert.Empty(t, journal.Asientos)
	assert.Zero(t, journal.Totales.NumAsientos)

	withVoided, err := f.engine.Journal(ctx, JournalQuery{DateRange: year2024(), IncludeVoided: true})
	require.NoError(t, err)
	assert.Len(t, withVoided.Asientos, 2)
	assert.Equal(t, int64(2), withVoided.Totales.NumAsientos)
	assert.True(t, withVoided.Totales.Cuadrado)
}

func TestJournalTotalsIgnorePaging(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.post(t, "2024-03-01", dr("572", "10.00"), cr("100", "10.00"))
	}
	ctx := context.Background()

	var totals []JournalTotals
	for _, size := range []int{1, 2, 100} {
		rep, err := f.engine.Journal(ctx, JournalQuery{DateRange: year2024(), PageSize: size, Page: 2})
		require.NoError(t, err)
		totals = append(totals, rep.Totales)
		assert.Equal(t, (5+size-1)/size, rep.TotalPaginas)
	}
	for _, tot := range totals {
		assert.Equal(t, "50.00", tot.TotalDebe.StringFixed(2))
		assert.Equal(t, "50.00", tot.TotalHaber.StringFixed(2))
		assert.Equal(t, int64(5), tot.NumAsientos)
		assert.Equal(t, int64(10), tot.NumLineas)
		assert.True(t, tot.Cuadrado)
	}

	rep, err := f.engine.Journal(ctx, JournalQuery{DateRange: year2024(), PageSize: 2, Page: 3})
	require.NoError(t, err)
	require.Len(t, rep.Asientos, 1)
	assert.Equal(t, int64(5), rep.Asientos[0].Number)
	assert.Len(t, rep.Asientos[0].Lines, 2)

	rep, err = f.engine.Journal(ctx, JournalQuery{DateRange: year2024(), PageSize: MaxPageSize + 1})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, rep.TamanoPagina)

	_, err = f.engine.Journal(ctx, JournalQuery{DateRange: DateRange{From: day("2024-02-01"), To: day("2024-01-01")}})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestJournalFilters(t *testing.T) {
	f := newFixture(t)
	f.invoice(t, "F-1", "2024-05-10")
	f.post(t, "2024-05-11", dr("572", "10.00"), cr("100", "10.00"))
	ctx := context.Background()

	rep, err := f.engine.Journal(ctx, JournalQuery{DateRange: year2024(), Origin: ledger.OriginSalesInvoice})
	require.NoError(t, err)
	require.Len(t, rep.Asientos, 1)
	assert.Equal(t, "F-1", rep.Asientos[0].OriginID)

	rep, err = f.engine.Journal(ctx, JournalQuery{DateRange: year2024(), AccountPrefix: "57"})
	require.NoError(t, err)
	require.Len(t, rep.Asientos, 1)
	// The whole entry is listed even though only one line matches.
	assert.Len(t, rep.Asientos[0].Lines, 2)
}

func TestGeneralLedgerRunningBalance(t *testing.T) {
	f := newFixture(t)
	f.invoice(t, "F-1", "2024-01-15")
	f.invoice(t, "F-2", "2024-02-10")
	f.post(t, "2024-02-20", dr("572", "100.00"), cr("430", "100.00"))
	f.invoice(t, "F-3", "2024-03-05")

	rep, err := f.engine.GeneralLedger(context.Background(), LedgerQuery{
		DateRange: DateRange{From: day("2024-02-01"), To: day("2024-02-29")},
		Code:      "430",
	})
	require.NoError(t, err)
	require.Len(t, rep.Cuentas, 1)

	acct := rep.Cuentas[0]
	assert.Equal(t, "430", acct.Codigo)
	assert.Equal(t, "121.00", acct.SaldoInicial.StringFixed(2))
	require.Len(t, acct.Movimientos, 2)
	assert.Equal(t, "242.00", acct.Movimientos[0].Saldo.StringFixed(2))
	assert.Equal(t, "F-2", acct.Movimientos[0].Documento)
	assert.Equal(t, "142.00", acct.Movimientos[1].Saldo.StringFixed(2))
	assert.Equal(t, "121.00", acct.TotalDebe.StringFixed(2))
	assert.Equal(t, "100.00", acct.TotalHaber.StringFixed(2))
	assert.Equal(t, "142.00", acct.SaldoFinal.StringFixed(2))

	assert.True(t, acct.SaldoInicial.Add(acct.TotalDebe).Sub(acct.TotalHaber).Equal(acct.SaldoFinal))
}

func TestGeneralLedgerCodeRange(t *testing.T) {
	f := newFixture(t)
	f.invoice(t, "F-1", "2024-01-15")

	rep, err := f.engine.GeneralLedger(context.Background(), LedgerQuery{
		DateRange: year2024(),
		CodeFrom:  "4",
		CodeTo:    "5",
	})
	require.NoError(t, err)
	codes := make([]string, 0, len(rep.Cuentas))
	for _, c := range rep.Cuentas {
		codes = append(codes, c.Codigo)
	}
	assert.Equal(t, []string{"430", "477"}, codes)
	// Credit-natured accounts carry a negative debit-minus-credit balance.
	assert.Equal(t, "-21.00", rep.Cuentas[1].SaldoFinal.StringFixed(2))

	_, err = f.engine.GeneralLedger(context.Background(), LedgerQuery{DateRange: year2024()})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestBalanceSheetBalancesWithPeriodResult(t *testing.T) {
	f := newFixture(t)
	f.post(t, "2024-01-02", dr("572", "1000.00"), cr("100", "1000.00"))
	f.invoice(t, "F-1", "2024-05-10")
	f.post(t, "2024-05-12", dr("600", "40.00"), cr("572", "40.00"))

	rep, err := f.engine.BalanceSheet(context.Background(), BalanceSheetQuery{AsOf: day("2024-06-30"), Level: 3})
	require.NoError(t, err)

	assert.Equal(t, 2024, rep.EjercicioFiscal)
	assert.Equal(t, "60.00", rep.ResultadoEjercicio.StringFixed(2))
	assert.True(t, rep.ResultadosPendientes.IsZero())

	assert.Equal(t, "1081.00", rep.Activo.Total.StringFixed(2))
	assert.Equal(t, "1081.00", rep.Activo.Corriente.Total.StringFixed(2))
	assert.Equal(t, "1060.00", rep.PasivoPatrimonio.PatrimonioNeto.Total.StringFixed(2))
	assert.Equal(t, "21.00", rep.PasivoPatrimonio.Corriente.Total.StringFixed(2))
	assert.True(t, rep.Cuadrado)
	assert.True(t, rep.Descuadre.IsZero())

	lines := map[string]string{}
	for _, l := range rep.PasivoPatrimonio.PatrimonioNeto.Lineas {
		lines[l.Codigo] = l.Importe.StringFixed(2)
	}
	assert.Equal(t, map[string]string{"100": "1000.00", "129": "60.00"}, lines)

	_, err = f.engine.BalanceSheet(context.Background(), BalanceSheetQuery{})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestBalanceSheetAfterYearEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.post(t, "2023-01-02", dr("572", "1000.00"), cr("100", "1000.00"))
	f.post(t, "2023-03-01", dr("572", "500.00"), cr("700", "500.00"))

	pre, err := f.engine.BalanceSheet(ctx, BalanceSheetQuery{AsOf: day("2024-01-31")})
	require.NoError(t, err)
	assert.Equal(t, "500.00", pre.ResultadosPendientes.StringFixed(2))
	assert.True(t, pre.ResultadoEjercicio.IsZero())
	assert.True(t, pre.Cuadrado)

	_, err = f.svc.CloseFiscalYear(ctx, 2023, nil)
	require.NoError(t, err)

	post, err := f.engine.BalanceSheet(ctx, BalanceSheetQuery{AsOf: day("2024-01-31")})
	require.NoError(t, err)
	assert.True(t, post.ResultadosPendientes.IsZero())
	assert.Equal(t, "1500.00", post.PasivoPatrimonio.PatrimonioNeto.Total.StringFixed(2))
	assert.True(t, post.Cuadrado)

	// The opening entry restates 2023 balances and must not double them.
	_, err = f.svc.OpenFiscalYear(ctx, 2024, nil)
	require.NoError(t, err)
	opened, err := f.engine.BalanceSheet(ctx, BalanceSheetQuery{AsOf: day("2024-01-31")})
	require.NoError(t, err)
	assert.Equal(t, "1500.00", opened.Activo.Total.StringFixed(2))
	assert.True(t, opened.Cuadrado)

	mayor, err := f.engine.GeneralLedger(ctx, LedgerQuery{
		DateRange: DateRange{From: day("2024-02-01"), To: day("2024-02-29")},
		Code:      "572",
	})
	require.NoError(t, err)
	require.Len(t, mayor.Cuentas, 1)
	assert.Equal(t, "1500.00", mayor.Cuentas[0].SaldoInicial.StringFixed(2))
}

func TestOpeningEntryWithoutHistoryCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.PostEntry(ctx, ledger.Draft{
		Date:        day("2024-01-01"),
		Description: "Apertura",
		Origin:      ledger.OriginOpening,
		OriginID:    "2024",
		Lines:       []ledger.DraftLine{dr("572", "800.00"), cr("100", "800.00")},
	})
	require.NoError(t, err)

	rep, err := f.engine.BalanceSheet(ctx, BalanceSheetQuery{AsOf: day("2024-03-31")})
	require.NoError(t, err)
	assert.Equal(t, "800.00", rep.Activo.Total.StringFixed(2))
	assert.Equal(t, "800.00", rep.PasivoPatrimonio.PatrimonioNeto.Total.StringFixed(2))
	assert.True(t, rep.Cuadrado)
}

func TestIncomeStatement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.post(t, "2023-04-01", dr("572", "50.00"), cr("700", "50.00"))
	f.invoice(t, "F-1", "2024-05-10")
	f.post(t, "2024-05-12", dr("600", "30.00"), cr("572", "30.00"))
	f.post(t, "2024-06-01", dr("662", "10.00"), cr("572", "10.00"))
	f.post(t, "2024-06-02", dr("572", "5.00"), cr("769", "5.00"))
	f.post(t, "2024-06-03", dr("630", "15.00"), cr("572", "15.00"))

	rep, err := f.engine.IncomeStatement(ctx, IncomeStatementQuery{
		DateRange:            year2024(),
		Level:                3,
		CompareWithPriorYear: true,
	})
	require.NoError(t, err)

	cur := rep.Actual
	assert.Equal(t, "100.00", cur.IngresosExplotacion.StringFixed(2))
	assert.Equal(t, "30.00", cur.GastosExplotacion.StringFixed(2))
	assert.Equal(t, "70.00", cur.ResultadoExplotacion.StringFixed(2))
	assert.Equal(t, "5.00", cur.IngresosFinancieros.StringFixed(2))
	assert.Equal(t, "10.00", cur.GastosFinancieros.StringFixed(2))
	assert.Equal(t, "-5.00", cur.ResultadoFinanciero.StringFixed(2))
	assert.Equal(t, "65.00", cur.ResultadoAntesImpuestos.StringFixed(2))
	assert.Equal(t, "15.00", cur.ImpuestoBeneficios.StringFixed(2))
	assert.Equal(t, "50.00", cur.ResultadoEjercicio.StringFixed(2))

	cats := map[string]IncomeCategory{}
	for _, l := range cur.Detalle {
		cats[l.Codigo] = l.Categoria
	}
	assert.Equal(t, map[string]IncomeCategory{
		"600": CategoryOperatingExpense,
		"630": CategoryTax,
		"662": CategoryFinancialExpense,
		"700": CategoryOperatingIncome,
		"769": CategoryFinancialIncome,
	}, cats)

	require.NotNil(t, rep.Anterior)
	assert.Equal(t, "2023-01-01", rep.Anterior.Desde)
	assert.Equal(t, "50.00", rep.Anterior.IngresosExplotacion.StringFixed(2))
	assert.Equal(t, "50.00", rep.Anterior.ResultadoEjercicio.StringFixed(2))
}

func TestIncomeStatementIgnoresClosingEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.post(t, "2023-03-01", dr("572", "500.00"), cr("700", "500.00"))
	_, err := f.svc.CloseFiscalYear(ctx, 2023, nil)
	require.NoError(t, err)

	rep, err := f.engine.IncomeStatement(ctx, IncomeStatementQuery{
		DateRange: DateRange{From: day("2023-01-01"), To: day("2023-12-31")},
	})
	require.NoError(t, err)
	assert.Equal(t, "500.00", rep.Actual.ResultadoEjercicio.StringFixed(2))
	assert.Nil(t, rep.Anterior)
	assert.Empty(t, rep.Actual.Detalle)
}

func TestCategorize(t *testing.T) {
	cases := map[string]IncomeCategory{
		"600":     CategoryOperatingExpense,
		"6300001": CategoryTax,
		"633":     CategoryTax,
		"638":     CategoryTax,
		"631":     CategoryOperatingExpense,
		"662":     CategoryFinancialExpense,
		"700":     CategoryOperatingIncome,
		"769":     CategoryFinancialIncome,
	}
	for code, want := range cases {
		got, ok := categorize(code)
		assert.True(t, ok, code)
		assert.Equal(t, want, got, code)
	}
	_, ok := categorize("430")
	assert.False(t, ok)
}
