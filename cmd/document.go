package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simonvc/contaledger/internal/client"
	"github.com/simonvc/contaledger/internal/server"
)

var docFile string

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Post business documents automatically",
}

// postFromFile reads a JSON payload of type T and hands it to post.
func postFromFile[T any](post func(*client.Client, context.Context, T) (*server.DocumentResponse, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(docFile)
		if err != nil {
			return err
		}
		var doc T
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", docFile, err)
		}
		res, err := post(newClient(), context.Background(), doc)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(res)
		}
		if !res.Posted {
			fmt.Println("Automatic posting is disabled for this tenant; nothing posted.")
			return nil
		}
		printEntry(res.Entry)
		return nil
	}
}

func init() {
	kinds := []*cobra.Command{
		{Use: "sales-invoice", Short: "Post an issued invoice", RunE: postFromFile((*client.Client).PostSalesInvoice)},
		{Use: "purchase-invoice", Short: "Post a received invoice", RunE: postFromFile((*client.Client).PostPurchaseInvoice)},
		{Use: "receipt", Short: "Post a customer collection", RunE: postFromFile((*client.Client).PostReceipt)},
		{Use: "payment", Short: "Post a supplier payment", RunE: postFromFile((*client.Client).PostPayment)},
	}
	for _, c := range kinds {
		c.Flags().StringVarP(&docFile, "file", "f", "", "JSON document payload")
		c.MarkFlagRequired("file")
		documentCmd.AddCommand(c)
	}
	rootCmd.AddCommand(documentCmd)
}
