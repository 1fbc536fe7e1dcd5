package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/ledger-bridge/internal/vat"
)

var (
	reportDate   string
	reportFormat string
	reportOutput string
)

var vatReportCmd = &cobra.Command{
	Use:   "vatreport",
	Short: "Generate the VAT reconciliation report for a fiscal year",
	Long: `Generate the VAT reconciliation report for the fiscal year containing
the anchor date.

The report buckets invoices by effective VAT rate, reconciles outgoing
against incoming VAT, and proposes a balanced settlement journal.

Output formats:
  json   - Full report as JSON (default)
  sie    - SIE4 voucher file with the settlement journal
  excel  - Workbook with summary and journal sheets

Examples:
  # Report for the current fiscal year
  ledger-bridge vatreport

  # SIE export for the fiscal year containing a date
  ledger-bridge vatreport --date 2026-03-31 --format sie -o moms.se`,
	RunE: runVATReport,
}

func init() {
	rootCmd.AddCommand(vatReportCmd)

	vatReportCmd.Flags().StringVar(&reportDate, "date", "", "Anchor date YYYY-MM-DD (default: today)")
	vatReportCmd.Flags().StringVarP(&reportFormat, "format", "f", "json", "Output format (json, sie, excel)")
	vatReportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Output file (default: stdout)")
}

func runVATReport(cmd *cobra.Command, args []string) error {
	application, err := buildApp()
	if err != nil {
		return err
	}

	date := reportDate
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	printVerbose("Generating VAT report for fiscal year containing %s\n", date)
	report, err := application.reports.GenerateReport(ctx, date)
	if err != nil {
		return err
	}

	var out []byte
	switch reportFormat {
	case "json":
		out, err = json.MarshalIndent(report, "", "  ")
	case "sie":
		out = []byte(vat.ExportSIE(report, time.Now().UTC()))
	case "excel":
		out, err = vat.ExportExcel(report)
	default:
		return fmt.Errorf("unsupported format: %s", reportFormat)
	}
	if err != nil {
		return err
	}

	if reportOutput == "" {
		fmt.Println(string(out))
		return nil
	}
	if err := os.WriteFile(reportOutput, out, 0o644); err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n", reportOutput)
	if !report.Validation.OK {
		for _, warning := range report.Validation.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}
	return nil
}
