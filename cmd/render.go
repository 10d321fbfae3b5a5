package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
)

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// alignAmounts right-aligns the given 1-based columns.
func alignAmounts(t table.Writer, cols ...int) {
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for _, c := range cols {
		cfgs = append(cfgs, table.ColumnConfig{Number: c, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	t.SetColumnConfigs(cfgs)
}

func fmtDec(d decimal.Decimal) string {
	return ledger.FormatAmount(d)
}

// fmtSide prints an amount, leaving zero cells empty.
func fmtSide(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkMark(ok bool) string {
	if ok {
		return "[CUADRADO]"
	}
	return "[DESCUADRADO]"
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(ledger.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func printEntry(e *ledger.JournalEntry) {
	t := newTable(fmt.Sprintf("Asiento %d/%d  %s  %s", e.Number, e.FiscalYear, e.Date.Format(ledger.DateLayout), e.Description))
	t.AppendHeader(table.Row{"#", "Cuenta", "Nombre", "Debe", "Haber", "Concepto"})
	for _, l := range e.Lines {
		t.AppendRow(table.Row{l.Order, l.AccountCode, l.AccountName, fmtSide(l.Debit), fmtSide(l.Credit), l.Memo})
	}
	t.AppendFooter(table.Row{"", "", "TOTAL", e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2), string(e.Status)})
	alignAmounts(t, 4, 5)
	t.Render()
	if e.Existing {
		fmt.Println("(already posted for this document)")
	}
}
