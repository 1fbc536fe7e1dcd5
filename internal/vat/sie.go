package vat

import (
	"fmt"
	"strings"
	"time"

	"github.com/rezonia/ledger-bridge/internal/money"
)

// SIE account names for the chart subset the settlement journal touches.
var sieAccountNames = map[string]string{
	AccountOutgoingVAT25:    "Utgående moms 25%",
	AccountOutgoingVAT12:    "Utgående moms 12%",
	AccountOutgoingVAT6:     "Utgående moms 6%",
	AccountOutgoingVATOther: "Utgående moms, övriga satser",
	AccountIncomingVAT:      "Ingående moms",
	AccountVATSettlement:    "Redovisningskonto för moms",
}

// ExportSIE renders the report's settlement journal as a SIE type 4 file,
// importable by Swedish bookkeeping programs. Transactions are signed
// debit-positive, so each voucher nets to zero.
func ExportSIE(report *Report, generatedAt time.Time) string {
	var b strings.Builder

	fyFrom := strings.ReplaceAll(report.Period.FromDate, "-", "")
	fyTo := strings.ReplaceAll(report.Period.ToDate, "-", "")

	b.WriteString("#FLAGGA 0\n")
	b.WriteString("#FORMAT PC8\n")
	b.WriteString("#SIETYP 4\n")
	b.WriteString("#PROGRAM \"ledger-bridge\" 1.0\n")
	fmt.Fprintf(&b, "#GEN %s\n", generatedAt.Format("20060102"))
	fmt.Fprintf(&b, "#FNAMN %q\n", report.Company.Name)
	fmt.Fprintf(&b, "#ORGNR %s\n", nonDigits.ReplaceAllString(report.Company.OrgNumber, ""))
	fmt.Fprintf(&b, "#RAR 0 %s %s\n", fyFrom, fyTo)
	b.WriteString("#KPTYP BAS2024\n\n")

	seen := map[string]bool{}
	for _, entry := range report.JournalEntries {
		if seen[entry.Account] {
			continue
		}
		seen[entry.Account] = true
		name := entry.AccountName
		if name == "" {
			name = sieAccountNames[entry.Account]
		}
		fmt.Fprintf(&b, "#KONTO %s %q\n", entry.Account, name)
	}
	b.WriteString("\n")

	if len(report.JournalEntries) > 0 {
		desc := fmt.Sprintf("Momsredovisning %s - %s", report.Period.FromDate, report.Period.ToDate)
		fmt.Fprintf(&b, "#VER \"\" 1 %s %q\n{\n", fyTo, desc)
		for _, entry := range report.JournalEntries {
			amount := money.RoundFloat2(entry.Debit - entry.Credit)
			if amount == 0 {
				continue
			}
			fmt.Fprintf(&b, "    #TRANS %s {} %.2f\n", entry.Account, amount)
		}
		b.WriteString("}\n")
	}

	return b.String()
}
