package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/simonvc/contaledger/internal/accounting"
	"github.com/simonvc/contaledger/internal/client"
	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/server"
)

var entryCmd = &cobra.Command{
	Use:     "entry",
	Aliases: []string{"asiento"},
	Short:   "Post, list and void journal entries",
}

// entry post
var (
	entryDate    string
	entryDesc    string
	entryDebits  []string
	entryCredits []string
	entryRef     string
)

// parseLine reads CODE=AMOUNT[:MEMO].
func parseLine(arg string, debit bool) (server.EntryLineRequest, error) {
	code, rest, ok := strings.Cut(arg, "=")
	if !ok || code == "" {
		return server.EntryLineRequest{}, fmt.Errorf("invalid line %q, expected CODE=AMOUNT[:MEMO]", arg)
	}
	amountStr, memo, _ := strings.Cut(rest, ":")
	amount, err := ledger.ParseAmount(amountStr)
	if err != nil {
		return server.EntryLineRequest{}, err
	}
	l := server.EntryLineRequest{AccountCode: code, Memo: memo, Debit: decimal.Zero, Credit: decimal.Zero, DocumentRef: entryRef}
	if debit {
		l.Debit = amount
	} else {
		l.Credit = amount
	}
	return l, nil
}

var entryPostCmd = &cobra.Command{
	Use:   "post",
	Short: "Post a manual entry",
	Example: `  contaledger entry post --date 2024-03-01 --desc "Aportación de capital" \
    --debit 572=1000.00 --credit 100=1000.00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDay(entryDate)
		if err != nil {
			return err
		}
		if date.IsZero() {
			date = ledger.DateOnly(time.Now())
		}
		req := server.EntryRequest{Date: date, Description: entryDesc}
		for _, arg := range entryDebits {
			l, err := parseLine(arg, true)
			if err != nil {
				return err
			}
			req.Lines = append(req.Lines, l)
		}
		for _, arg := range entryCredits {
			l, err := parseLine(arg, false)
			if err != nil {
				return err
			}
			req.Lines = append(req.Lines, l)
		}

		entry, err := newClient().PostEntry(context.Background(), req)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(entry)
		}
		printEntry(entry)
		return nil
	},
}

// entry list
var (
	entryListYear   int
	entryListFrom   string
	entryListTo     string
	entryListOrigin string
	entryListLimit  int
)

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseDay(entryListFrom)
		if err != nil {
			return err
		}
		to, err := parseDay(entryListTo)
		if err != nil {
			return err
		}
		entries, err := newClient().ListEntries(context.Background(), client.EntryQuery{
			FiscalYear: entryListYear,
			From:       from,
			To:         to,
			Origin:     ledger.Origin(entryListOrigin),
			Limit:      entryListLimit,
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No entries found.")
			return nil
		}

		t := newTable("")
		t.AppendHeader(table.Row{"Número", "Ejercicio", "Fecha", "Concepto", "Origen", "Estado", "Importe", "ID"})
		for _, e := range entries {
			desc := e.Description
			if len(desc) > 40 {
				desc = desc[:38] + ".."
			}
			t.AppendRow(table.Row{e.Number, e.FiscalYear, e.Date.Format(ledger.DateLayout), desc, e.Origin, e.Status, e.TotalDebit.StringFixed(2), e.ID})
		}
		alignAmounts(t, 7)
		t.Render()
		return nil
	},
}

var entryGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show an entry with its lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := newClient().GetEntry(context.Background(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(entry)
		}
		printEntry(entry)
		return nil
	},
}

// entry void
var (
	voidReason string
	voidDate   string
)

var entryVoidCmd = &cobra.Command{
	Use:   "void [id]",
	Short: "Void an entry with a contra entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := accounting.VoidRequest{Reason: voidReason}
		if voidDate != "" {
			d, err := parseDay(voidDate)
			if err != nil {
				return err
			}
			req.Date = &d
		}
		res, err := newClient().VoidEntry(context.Background(), args[0], req)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(res)
		}
		fmt.Printf("Entry %d voided by contra entry %d\n", res.Original.Number, res.Contra.Number)
		printEntry(res.Contra)
		return nil
	},
}

func init() {
	entryPostCmd.Flags().StringVar(&entryDate, "date", "", "Entry date (YYYY-MM-DD), default today")
	entryPostCmd.Flags().StringVar(&entryDesc, "desc", "", "Entry description")
	entryPostCmd.Flags().StringArrayVar(&entryDebits, "debit", nil, "Debit line CODE=AMOUNT[:MEMO] (repeatable)")
	entryPostCmd.Flags().StringArrayVar(&entryCredits, "credit", nil, "Credit line CODE=AMOUNT[:MEMO] (repeatable)")
	entryPostCmd.Flags().StringVar(&entryRef, "ref", "", "Document reference for every line")
	entryPostCmd.MarkFlagRequired("date")
	entryPostCmd.MarkFlagRequired("desc")

	entryListCmd.Flags().IntVar(&entryListYear, "year", 0, "Fiscal year")
	entryListCmd.Flags().StringVar(&entryListFrom, "from", "", "From date (YYYY-MM-DD)")
	entryListCmd.Flags().StringVar(&entryListTo, "to", "", "To date (YYYY-MM-DD)")
	entryListCmd.Flags().StringVar(&entryListOrigin, "origin", "", "Filter by origin")
	entryListCmd.Flags().IntVar(&entryListLimit, "limit", 100, "Maximum entries")

	entryVoidCmd.Flags().StringVar(&voidReason, "reason", "", "Reason for the void")
	entryVoidCmd.Flags().StringVar(&voidDate, "date", "", "Contra entry date (defaults to the original date)")
	entryVoidCmd.MarkFlagRequired("reason")

	entryCmd.AddCommand(entryPostCmd)
	entryCmd.AddCommand(entryListCmd)
	entryCmd.AddCommand(entryGetCmd)
	entryCmd.AddCommand(entryVoidCmd)

	rootCmd.AddCommand(entryCmd)
}
