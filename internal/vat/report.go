package vat

import "github.com/rezonia/ledger-bridge/internal/model"

// Statutory Swedish VAT rates.
const (
	RateStandard = 25
	RateReduced  = 12
	RateReduced2 = 6
)

// BAS accounts used by the settlement journal.
const (
	AccountOutgoingVAT25    = "2611"
	AccountOutgoingVAT12    = "2621"
	AccountOutgoingVAT6     = "2631"
	AccountOutgoingVATOther = "2618"
	AccountIncomingVAT      = "2641"
	AccountVATSettlement    = "2650"
)

// RateBucket accumulates net and VAT for all lines sharing one effective
// rate. The rate is derived as round(vat/net*100); 0% buckets are labelled
// VAT-exempt.
type RateBucket struct {
	Rate  int     `json:"rate"`
	Label string  `json:"label"`
	Net   float64 `json:"net"`
	VAT   float64 `json:"vat"`
	Count int     `json:"count"`
}

// Company identifies whose books the report covers.
type Company struct {
	Name      string `json:"name"`
	OrgNumber string `json:"org_number"`
}

// Period is the fiscal-year range the report covers.
type Period struct {
	Label    string `json:"label,omitempty"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

// Summary carries the headline figures.
type Summary struct {
	TotalSalesNet        float64 `json:"total_sales_net"`
	TotalCostsNet        float64 `json:"total_costs_net"`
	InvoiceCount         int     `json:"invoice_count"`
	SupplierInvoiceCount int     `json:"supplier_invoice_count"`
	UnbookedCount        int     `json:"unbooked_count"`
	DroppedCount         int     `json:"dropped_count"`
}

// VATSummary is the statutory outgoing/incoming breakdown.
type VATSummary struct {
	Outgoing25    float64 `json:"outgoing_vat_25"`
	Outgoing12    float64 `json:"outgoing_vat_12"`
	Outgoing6     float64 `json:"outgoing_vat_6"`
	TotalOutgoing float64 `json:"total_outgoing_vat"`
	Incoming      float64 `json:"incoming_vat"`
	Net           float64 `json:"net_vat"`
	ToPay         float64 `json:"to_pay"`
	ToRefund      float64 `json:"to_refund"`
}

// Validation reports whether the journal balances and what to double-check.
// The report is still returned with warnings rather than failing hard, so
// the caller can inspect partial data.
type Validation struct {
	OK       bool     `json:"ok"`
	Balanced bool     `json:"balanced"`
	Warnings []string `json:"warnings,omitempty"`
}

// Report is the full VAT reconciliation result.
type Report struct {
	Company        Company              `json:"company"`
	Period         Period               `json:"period"`
	Summary        Summary              `json:"summary"`
	Sales          []RateBucket         `json:"sales"`
	Costs          []RateBucket         `json:"costs"`
	VAT            VATSummary           `json:"vat"`
	JournalEntries []model.JournalEntry `json:"journal_entries"`
	Validation     Validation           `json:"validation"`
}

// OutgoingVATAccount maps a derived rate to its BAS clearing account.
func OutgoingVATAccount(rate int) (account, name string) {
	switch rate {
	case RateStandard:
		return AccountOutgoingVAT25, "Utgående moms 25%"
	case RateReduced:
		return AccountOutgoingVAT12, "Utgående moms 12%"
	case RateReduced2:
		return AccountOutgoingVAT6, "Utgående moms 6%"
	default:
		return AccountOutgoingVATOther, "Utgående moms, övriga satser"
	}
}
