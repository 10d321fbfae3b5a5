package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/reports"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	Aliases: []string{"informe"},
	Short:   "Statutory books and statements",
}

var (
	rptFrom    string
	rptTo      string
	rptLevel   int
	rptAccount string
	rptPage    int
	rptSize    int
	rptCompare bool
	rptVoided  bool
)

// reportRange defaults to the current calendar year.
func reportRange() (reports.DateRange, error) {
	now := time.Now()
	r := reports.DateRange{
		From: time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(now.Year(), 12, 31, 0, 0, 0, 0, time.UTC),
	}
	if rptFrom != "" {
		from, err := parseDay(rptFrom)
		if err != nil {
			return r, err
		}
		r.From = from
	}
	if rptTo != "" {
		to, err := parseDay(rptTo)
		if err != nil {
			return r, err
		}
		r.To = to
	}
	return r, nil
}

var journalCmd = &cobra.Command{
	Use:     "journal",
	Aliases: []string{"diario"},
	Short:   "Libro Diario",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := reportRange()
		if err != nil {
			return err
		}
		rep, err := newClient().Journal(context.Background(), reports.JournalQuery{
			DateRange:     r,
			AccountPrefix: rptAccount,
			IncludeVoided: rptVoided,
			Page:          rptPage,
			PageSize:      rptSize,
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(rep)
		}

		t := newTable(fmt.Sprintf("Libro Diario %s - %s (página %d de %d)", rep.Desde, rep.Hasta, rep.Pagina, rep.TotalPaginas))
		t.AppendHeader(table.Row{"Asiento", "Fecha", "Cuenta", "Nombre", "Debe", "Haber", "Concepto"})
		for _, e := range rep.Asientos {
			for i, l := range e.Lines {
				num, date, desc := "", "", ""
				if i == 0 {
					num, date, desc = fmt.Sprint(e.Number), e.Date.Format(ledger.DateLayout), e.Description
				}
				t.AppendRow(table.Row{num, date, l.AccountCode, l.AccountName, fmtSide(l.Debit), fmtSide(l.Credit), desc})
			}
			t.AppendSeparator()
		}
		tot := rep.Totales
		t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d asientos", tot.NumAsientos), tot.TotalDebe.StringFixed(2), tot.TotalHaber.StringFixed(2), checkMark(tot.Cuadrado)})
		alignAmounts(t, 5, 6)
		t.Render()
		return nil
	},
}

var ledgerCmd = &cobra.Command{
	Use:     "ledger [account]",
	Aliases: []string{"mayor"},
	Short:   "Libro Mayor of an account or code prefix",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := reportRange()
		if err != nil {
			return err
		}
		rep, err := newClient().GeneralLedger(context.Background(), reports.LedgerQuery{DateRange: r, Code: args[0]})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(rep)
		}
		for _, a := range rep.Cuentas {
			t := newTable(fmt.Sprintf("Mayor %s %s  (%s - %s)", a.Codigo, a.Nombre, rep.Desde, rep.Hasta))
			t.AppendHeader(table.Row{"Fecha", "Asiento", "Concepto", "Debe", "Haber", "Saldo"})
			t.AppendRow(table.Row{"", "", "Saldo inicial", "", "", fmtDec(a.SaldoInicial)})
			for _, m := range a.Movimientos {
				t.AppendRow(table.Row{m.Fecha, m.Numero, m.Concepto, fmtSide(m.Debe), fmtSide(m.Haber), fmtDec(m.Saldo)})
			}
			t.AppendFooter(table.Row{"", "", "Totales", a.TotalDebe.StringFixed(2), a.TotalHaber.StringFixed(2), fmtDec(a.SaldoFinal)})
			alignAmounts(t, 4, 5, 6)
			t.Render()
			fmt.Println()
		}
		return nil
	},
}

var trialCmd = &cobra.Command{
	Use:     "trial",
	Aliases: []string{"sumas-saldos"},
	Short:   "Balance de Sumas y Saldos",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := reportRange()
		if err != nil {
			return err
		}
		rep, err := newClient().TrialBalance(context.Background(), reports.TrialBalanceQuery{DateRange: r, Level: rptLevel})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(rep)
		}

		t := newTable(fmt.Sprintf("Sumas y Saldos %s - %s", rep.Desde, rep.Hasta))
		t.AppendHeader(table.Row{"Cuenta", "Nombre", "Suma Debe", "Suma Haber", "Saldo Deudor", "Saldo Acreedor"})
		for _, row := range rep.Filas {
			t.AppendRow(table.Row{row.Codigo, row.Nombre, row.SumaDebe.StringFixed(2), row.SumaHaber.StringFixed(2), fmtSide(row.SaldoDeudor), fmtSide(row.SaldoAcreedor)})
		}
		s := rep.Resumen
		t.AppendFooter(table.Row{"", "TOTALES", s.TotalDebe.StringFixed(2), s.TotalHaber.StringFixed(2), s.TotalSaldoDeudor.StringFixed(2), s.TotalSaldoAcreedor.StringFixed(2)})
		alignAmounts(t, 3, 4, 5, 6)
		t.Render()
		fmt.Printf("Sumas %s  Saldos %s\n", checkMark(s.CuadradoSumas), checkMark(s.CuadradoSaldos))
		return nil
	},
}

var balanceSheetCmd = &cobra.Command{
	Use:     "balance-sheet",
	Aliases: []string{"balance"},
	Short:   "Balance de Situación",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf := time.Now()
		if rptTo != "" {
			d, err := parseDay(rptTo)
			if err != nil {
				return err
			}
			asOf = d
		}
		rep, err := newClient().BalanceSheet(context.Background(), reports.BalanceSheetQuery{AsOf: asOf, Level: rptLevel})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(rep)
		}

		t := newTable(fmt.Sprintf("Balance de Situación a %s (ejercicio %d)", rep.Fecha, rep.EjercicioFiscal))
		t.AppendHeader(table.Row{"Epígrafe", "Importe"})
		addSection := func(s reports.BalanceSection) {
			t.AppendRow(table.Row{s.Nombre, fmtDec(s.Total)})
			for _, l := range s.Lineas {
				t.AppendRow(table.Row{"    " + l.Codigo + " " + l.Nombre, fmtDec(l.Importe)})
			}
		}
		addTotal := func(label string, d decimal.Decimal) {
			t.AppendSeparator()
			t.AppendRow(table.Row{label, fmtDec(d)})
			t.AppendSeparator()
		}
		addSection(rep.Activo.NoCorriente)
		addSection(rep.Activo.Corriente)
		addTotal("TOTAL ACTIVO", rep.Activo.Total)
		addSection(rep.PasivoPatrimonio.PatrimonioNeto)
		addSection(rep.PasivoPatrimonio.NoCorriente)
		addSection(rep.PasivoPatrimonio.Corriente)
		addTotal("TOTAL PATRIMONIO NETO Y PASIVO", rep.PasivoPatrimonio.Total)
		t.AppendFooter(table.Row{checkMark(rep.Cuadrado), fmtDec(rep.Descuadre)})
		alignAmounts(t, 2)
		t.Render()
		return nil
	},
}

var incomeCmd = &cobra.Command{
	Use:     "income",
	Aliases: []string{"pyg"},
	Short:   "Cuenta de Pérdidas y Ganancias",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := reportRange()
		if err != nil {
			return err
		}
		rep, err := newClient().IncomeStatement(context.Background(), reports.IncomeStatementQuery{
			DateRange:            r,
			Level:                rptLevel,
			CompareWithPriorYear: rptCompare,
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(rep)
		}

		header := table.Row{"Concepto", rep.Actual.Desde + " / " + rep.Actual.Hasta}
		if rep.Anterior != nil {
			header = append(header, rep.Anterior.Desde+" / "+rep.Anterior.Hasta)
		}
		t := newTable("Cuenta de Pérdidas y Ganancias")
		t.AppendHeader(header)
		row := func(label string, pick func(p *reports.IncomeStatementPeriod) decimal.Decimal) {
			r := table.Row{label, fmtDec(pick(&rep.Actual))}
			if rep.Anterior != nil {
				r = append(r, fmtDec(pick(rep.Anterior)))
			}
			t.AppendRow(r)
		}
		row("Ingresos de explotación", func(p *reports.IncomeStatementPeriod) decimal.Decimal { return p.IngresosExplotacion })
		row("Gastos de explotación", func(p *reports.IncomeStatementPeriod) decimal.Decimal { return p.GastosExplotacion })
		row("RESULTADO DE EXPLOTACIÓN", func(p *reports.IncomeStatementPeriod) decimal.Decimal { return p.ResultadoExplotacion })
		t.AppendSeparator()
		row("Ingresos financieros", func(p *reports.IncomeStatementPeriod) decimal.Decimal { return p.IngresosFinancieros })
		row("Gastos financieros", func(p *reports.IncomeStatementPeriod) decimal.Decimal { return p.GastosFinancieros })
		row("RESULTADO FINANCIERO", func(p *reports.IncomeStatementPeriod) decimal.Decimal { return p.ResultadoFinanciero })
		t.AppendSeparator()
		row("RESULTADO ANTES DE IMPUESTOS", func(p *reports.IncomeStatementPeriod) decimal.Decimal { return p.ResultadoAntesImpuestos })
		row("Impuesto sobre beneficios", func(p *reports.IncomeStatementPeriod) decimal.Decimal { return p.ImpuestoBeneficios })
		t.AppendSeparator()
		row("RESULTADO DEL EJERCICIO", func(p *reports.IncomeStatementPeriod) decimal.Decimal { return p.ResultadoEjercicio })
		cols := []int{2}
		if rep.Anterior != nil {
			cols = append(cols, 3)
		}
		alignAmounts(t, cols...)
		t.Render()

		if len(rep.Actual.Detalle) > 0 {
			d := newTable("Detalle")
			d.AppendHeader(table.Row{"Cuenta", "Nombre", "Categoría", "Importe"})
			for _, l := range rep.Actual.Detalle {
				d.AppendRow(table.Row{l.Codigo, l.Nombre, l.Categoria, fmtDec(l.Importe)})
			}
			alignAmounts(d, 4)
			d.Render()
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{journalCmd, ledgerCmd, trialCmd, incomeCmd} {
		c.Flags().StringVar(&rptFrom, "from", "", "From date (YYYY-MM-DD), default January 1st")
		c.Flags().StringVar(&rptTo, "to", "", "To date (YYYY-MM-DD), default December 31st")
	}
	balanceSheetCmd.Flags().StringVar(&rptTo, "as-of", "", "Balance date (YYYY-MM-DD), default today")
	for _, c := range []*cobra.Command{trialCmd, balanceSheetCmd, incomeCmd} {
		c.Flags().IntVar(&rptLevel, "level", 0, "Group by code prefix of this length")
	}
	journalCmd.Flags().StringVar(&rptAccount, "account", "", "Only entries touching this code prefix")
	journalCmd.Flags().IntVar(&rptPage, "page", 1, "Page number")
	journalCmd.Flags().IntVar(&rptSize, "page-size", reports.DefaultPageSize, "Entries per page")
	journalCmd.Flags().BoolVar(&rptVoided, "include-voided", false, "Include voided entries and their contra entries")
	incomeCmd.Flags().BoolVar(&rptCompare, "compare", false, "Compare with the same range of the prior year")

	reportCmd.AddCommand(journalCmd, ledgerCmd, trialCmd, balanceSheetCmd, incomeCmd)
	rootCmd.AddCommand(reportCmd)
}
