package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var periodCmd = &cobra.Command{
	Use:   "period",
	Short: "Lock and unlock accounting periods",
}

// parsePeriod reads YEAR [MONTH]; a missing month locks the whole year.
func parsePeriod(args []string) (int, int, error) {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year %q", args[0])
	}
	month := 0
	if len(args) > 1 {
		if month, err = strconv.Atoi(args[1]); err != nil {
			return 0, 0, fmt.Errorf("invalid month %q", args[1])
		}
	}
	return year, month, nil
}

func periodLabel(year, month int) string {
	if month == 0 {
		return fmt.Sprintf("%d (whole year)", year)
	}
	return fmt.Sprintf("%d-%02d", year, month)
}

var periodLockCmd = &cobra.Command{
	Use:   "lock [year] [month]",
	Short: "Lock a month, or a whole fiscal year",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, month, err := parsePeriod(args)
		if err != nil {
			return err
		}
		if err := newClient().LockPeriod(context.Background(), year, month); err != nil {
			return err
		}
		fmt.Printf("Locked %s\n", periodLabel(year, month))
		return nil
	},
}

var periodUnlockCmd = &cobra.Command{
	Use:   "unlock [year] [month]",
	Short: "Remove a period lock",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, month, err := parsePeriod(args)
		if err != nil {
			return err
		}
		if err := newClient().UnlockPeriod(context.Background(), year, month); err != nil {
			return err
		}
		fmt.Printf("Unlocked %s\n", periodLabel(year, month))
		return nil
	},
}

var periodListCmd = &cobra.Command{
	Use:   "list",
	Short: "List period locks",
	RunE: func(cmd *cobra.Command, args []string) error {
		locks, err := newClient().PeriodLocks(context.Background())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(locks)
		}
		if len(locks) == 0 {
			fmt.Println("No locked periods.")
			return nil
		}
		t := newTable("Periodos cerrados")
		t.AppendHeader(table.Row{"Periodo"})
		for _, l := range locks {
			t.AppendRow(table.Row{periodLabel(l.Year, l.Month)})
		}
		t.Render()
		return nil
	},
}

var yearCmd = &cobra.Command{
	Use:     "year",
	Aliases: []string{"ejercicio"},
	Short:   "Fiscal year closing and opening",
}

var yearCloseCmd = &cobra.Command{
	Use:   "close [year]",
	Short: "Post the regularization entry and lock the year",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _, err := parsePeriod(args)
		if err != nil {
			return err
		}
		res, err := newClient().CloseYear(context.Background(), year)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(res)
		}
		if !res.Posted {
			fmt.Printf("Year %d locked; no income or expense to regularize\n", year)
			return nil
		}
		printEntry(res.Entry)
		return nil
	},
}

var yearOpenCmd = &cobra.Command{
	Use:   "open [year]",
	Short: "Post the opening entry carrying the prior year's balances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _, err := parsePeriod(args)
		if err != nil {
			return err
		}
		res, err := newClient().OpenYear(context.Background(), year)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(res)
		}
		if !res.Posted {
			fmt.Printf("Year %d opened; no balances to carry forward\n", year)
			return nil
		}
		printEntry(res.Entry)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the tenant's fiscal configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := newClient().FiscalConfig(context.Background())
		if err != nil {
			return err
		}
		return printJSON(cfg)
	},
}

func init() {
	periodCmd.AddCommand(periodLockCmd, periodUnlockCmd, periodListCmd)
	yearCmd.AddCommand(yearCloseCmd, yearOpenCmd)
	rootCmd.AddCommand(periodCmd, yearCmd, configCmd)
}
