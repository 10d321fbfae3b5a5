package cmd

import (
	"github.com/spf13/cobra"

	"github.com/simonvc/contaledger/internal/client"
)

var (
	flagServer string
	flagTenant string
	flagConfig string
	flagJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "contaledger",
	Short: "Multi-tenant double-entry ledger for the Spanish PGC",
	Long: "A double-entry accounting engine backed by one SQLite database per tenant, " +
		"with the PGC chart of accounts, automatic posting of business documents and the statutory books and statements.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8888", "Server address")
	rootCmd.PersistentFlags().StringVar(&flagTenant, "tenant", "default", "Tenant key")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file (serve only)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print raw JSON")
}

func Execute() error {
	return rootCmd.Execute()
}

func newClient() *client.Client {
	return client.New(flagServer, flagTenant)
}
