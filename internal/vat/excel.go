package vat

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportExcel renders the report as a workbook with a summary sheet and the
// proposed journal, for review outside the API.
func ExportExcel(report *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}

	rows := [][]interface{}{
		{"Company", report.Company.Name},
		{"Org number", report.Company.OrgNumber},
		{"Period", report.Period.FromDate + " - " + report.Period.ToDate},
		{},
		{"Total sales (net)", report.Summary.TotalSalesNet},
		{"Total costs (net)", report.Summary.TotalCostsNet},
		{"Outgoing VAT 25%", report.VAT.Outgoing25},
		{"Outgoing VAT 12%", report.VAT.Outgoing12},
		{"Outgoing VAT 6%", report.VAT.Outgoing6},
		{"Total outgoing VAT", report.VAT.TotalOutgoing},
		{"Incoming VAT", report.VAT.Incoming},
		{"Net VAT", report.VAT.Net},
		{},
		{"Invoices", report.Summary.InvoiceCount},
		{"Supplier invoices", report.Summary.SupplierInvoiceCount},
		{"Unbooked", report.Summary.UnbookedCount},
		{"Dropped", report.Summary.DroppedCount},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	const journalSheet = "Journal"
	if _, err := f.NewSheet(journalSheet); err != nil {
		return nil, err
	}
	header := []interface{}{"Account", "Name", "Debit", "Credit", "Description"}
	if err := f.SetSheetRow(journalSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, entry := range report.JournalEntries {
		row := []interface{}{entry.Account, entry.AccountName, entry.Debit, entry.Credit, entry.Description}
		if err := f.SetSheetRow(journalSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
