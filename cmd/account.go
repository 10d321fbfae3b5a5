package cmd

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/simonvc/contaledger/internal/accounting"
	"github.com/simonvc/contaledger/internal/client"
	"github.com/simonvc/contaledger/internal/ledger"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the chart of accounts",
}

// account create
var (
	acctCreateCode        string
	acctCreateName        string
	acctCreateNonPostable bool
)

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := accounting.AccountInput{Code: acctCreateCode, Name: acctCreateName}
		if cmd.Flags().Changed("heading") {
			postable := !acctCreateNonPostable
			in.Postable = &postable
		}
		created, err := newClient().CreateAccount(context.Background(), in)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(created)
		}
		fmt.Printf("Account created: %s %s [%s, %s, level %d]\n",
			created.Code, created.Name, ledger.TypeLabel(created.Type), created.Nature, created.Level)
		return nil
	},
}

// account list
var (
	acctListType     string
	acctListPrefix   string
	acctListPostable bool
)

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		accounts, err := newClient().ListAccounts(context.Background(), client.AccountQuery{
			Type:         ledger.AccountType(acctListType),
			Prefix:       acctListPrefix,
			PostableOnly: acctListPostable,
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(accounts)
		}
		if len(accounts) == 0 {
			fmt.Println("No accounts found.")
			return nil
		}

		t := newTable("Plan de cuentas")
		t.AppendHeader(table.Row{"Código", "Nombre", "Tipo", "Nivel", "Imputable", "Saldo"})
		for _, a := range accounts {
			postable := ""
			if a.Postable {
				postable = "sí"
			}
			if !a.Active {
				postable += " (inactiva)"
			}
			t.AppendRow(table.Row{a.Code, a.Name, ledger.TypeLabel(a.Type), a.Level, postable, fmtDec(a.NetBalance)})
		}
		alignAmounts(t, 6)
		t.Render()
		return nil
	},
}

// account get
var accountGetCmd = &cobra.Command{
	Use:   "get [code]",
	Short: "Show account details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := newClient().GetAccount(context.Background(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(acct)
		}

		t := newTable("")
		t.AppendRows([]table.Row{
			{"Código", acct.Code},
			{"Nombre", acct.Name},
			{"Tipo", ledger.TypeLabel(acct.Type)},
			{"Naturaleza", acct.Nature},
			{"Cuenta padre", acct.ParentCode},
			{"Nivel", acct.Level},
			{"Imputable", acct.Postable},
			{"Sistema", acct.System},
			{"Activa", acct.Active},
			{"Debe", fmtDec(acct.DebitSum)},
			{"Haber", fmtDec(acct.CreditSum)},
			{"Saldo", fmtDec(acct.NetBalance)},
			{"Movimientos", acct.MovementCount},
		})
		if acct.PartyID != "" {
			t.AppendRow(table.Row{"Tercero", fmt.Sprintf("%s %s (%s)", acct.PartyType, acct.PartyName, acct.PartyTaxID)})
		}
		t.Render()
		return nil
	},
}

// account balance
var acctBalanceAsOf string

var accountBalanceCmd = &cobra.Command{
	Use:   "balance [code]",
	Short: "Show an account balance, optionally as of a date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseDay(acctBalanceAsOf)
		if err != nil {
			return err
		}
		bal, err := newClient().AccountBalance(context.Background(), args[0], asOf)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(bal)
		}
		fmt.Printf("Cuenta:  %s %s\n", bal.Code, bal.Name)
		fmt.Printf("Fecha:   %s\n", bal.AsOf.Format(ledger.DateLayout))
		fmt.Printf("Debe:    %s\n", fmtDec(bal.DebitSum))
		fmt.Printf("Haber:   %s\n", fmtDec(bal.CreditSum))
		fmt.Printf("Saldo:   %s (%s)\n", fmtDec(bal.NetBalance), bal.Nature)
		return nil
	},
}

var accountRenameCmd = &cobra.Command{
	Use:   "rename [code] [name]",
	Short: "Rename an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := newClient().RenameAccount(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Account %s renamed to %s\n", acct.Code, acct.Name)
		return nil
	},
}

var accountDeactivateCmd = &cobra.Command{
	Use:   "deactivate [code]",
	Short: "Deactivate an account without movements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DeactivateAccount(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Account %s deactivated\n", args[0])
		return nil
	},
}

// account subsidiary
var (
	subPartyType string
	subName      string
	subTaxID     string
)

var accountSubsidiaryCmd = &cobra.Command{
	Use:   "subsidiary [party-id]",
	Short: "Resolve or create the subsidiary account of a customer or supplier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		ctx := context.Background()
		pt := ledger.PartyType(subPartyType)
		if subName != "" {
			if err := c.UpsertParty(ctx, pt, args[0], subName, subTaxID); err != nil {
				return err
			}
		}
		acct, err := c.ResolveSubsidiary(ctx, args[0], pt)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(acct)
		}
		fmt.Printf("%s %s\n", acct.Code, acct.Name)
		return nil
	},
}

func init() {
	accountCreateCmd.Flags().StringVar(&acctCreateCode, "code", "", "PGC account code")
	accountCreateCmd.Flags().StringVar(&acctCreateName, "name", "", "Account name")
	accountCreateCmd.Flags().BoolVar(&acctCreateNonPostable, "heading", false, "Create as a heading that does not accept movements")
	accountCreateCmd.MarkFlagRequired("code")
	accountCreateCmd.MarkFlagRequired("name")

	accountListCmd.Flags().StringVar(&acctListType, "type", "", "Filter by type (asset, liability, equity, income, expense)")
	accountListCmd.Flags().StringVar(&acctListPrefix, "prefix", "", "Filter by code prefix")
	accountListCmd.Flags().BoolVar(&acctListPostable, "postable", false, "Only accounts that accept movements")

	accountBalanceCmd.Flags().StringVar(&acctBalanceAsOf, "as-of", "", "Recompute the balance as of this date (YYYY-MM-DD)")

	accountSubsidiaryCmd.Flags().StringVar(&subPartyType, "type", string(ledger.PartyCustomer), "Party type (customer or supplier)")
	accountSubsidiaryCmd.Flags().StringVar(&subName, "name", "", "Register the party with this name first")
	accountSubsidiaryCmd.Flags().StringVar(&subTaxID, "tax-id", "", "Party tax ID (NIF/CIF)")

	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountGetCmd)
	accountCmd.AddCommand(accountBalanceCmd)
	accountCmd.AddCommand(accountRenameCmd)
	accountCmd.AddCommand(accountDeactivateCmd)
	accountCmd.AddCommand(accountSubsidiaryCmd)

	rootCmd.AddCommand(accountCmd)
}
