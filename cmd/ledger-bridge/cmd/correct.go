package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/ledger-bridge/internal/correction"
)

var correctInput string

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Apply a posting correction exactly once",
	Long: `Apply a posting correction described in a JSON file.

The correction moves an amount between two accounts with a balanced
two-row voucher referencing the original invoice. Repeating the same
logical correction returns the originally exported voucher instead of
creating a duplicate.

Example input:
  {
    "invoiceType": "customer",
    "invoiceId": 555,
    "side": "debit",
    "fromAccount": 3001,
    "toAccount": 3041,
    "amount": 400,
    "voucherSeries": "A",
    "transactionDate": "2026-03-31"
  }

Examples:
  ledger-bridge correct --input correction.json`,
	RunE: runCorrect,
}

func init() {
	rootCmd.AddCommand(correctCmd)

	correctCmd.Flags().StringVarP(&correctInput, "input", "i", "", "JSON file describing the correction (required)")
	correctCmd.MarkFlagRequired("input")
}

func runCorrect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(correctInput)
	if err != nil {
		return err
	}

	var raw correction.RawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse %s: %w", correctInput, err)
	}

	req, err := correction.Normalize(raw)
	if err != nil {
		return err
	}

	application, err := buildApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	result, err := application.corrections.Apply(ctx, req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if result.AlreadyApplied {
		fmt.Fprintf(os.Stderr, "Correction was already applied as voucher %s\n", result.VoucherRef)
	}
	return nil
}
