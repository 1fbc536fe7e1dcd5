package model

import "time"

// CorrectionSide indicates which side of the voucher the amount moves to.
type CorrectionSide string

const (
	SideDebit  CorrectionSide = "debit"
	SideCredit CorrectionSide = "credit"
)

// InvoiceType identifies the document family a correction applies to.
// Only customer invoices are supported; supplier corrections are rejected.
type InvoiceType string

const (
	InvoiceTypeCustomer InvoiceType = "customer"
	InvoiceTypeSupplier InvoiceType = "supplier"
)

// InvoiceDetail is the exact breakdown of a single invoice, fetched per item
// because the list endpoints only expose rounded totals.
type InvoiceDetail struct {
	Number           string    `json:"number"`
	CounterpartyName string    `json:"counterparty_name"`
	Date             time.Time `json:"date"`
	Net              float64   `json:"net"`
	VAT              float64   `json:"vat"`
	Total            float64   `json:"total"`
	Booked           bool      `json:"booked"`
}

// JournalEntry is one row of a double-entry journal proposal.
type JournalEntry struct {
	Account     string  `json:"account"`
	AccountName string  `json:"account_name"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description,omitempty"`
}

// VoucherReference ties a voucher back to its originating document.
type VoucherReference struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

const ReferenceTypeInvoice = "INVOICE"

// VoucherRow is a single debit or credit line on a voucher.
type VoucherRow struct {
	Account int     `json:"account"`
	Debit   float64 `json:"debit"`
	Credit  float64 `json:"credit"`
}

// Voucher is a balanced double-entry record ready for export.
type Voucher struct {
	Series          string           `json:"series"`
	TransactionDate string           `json:"transaction_date"`
	Description     string           `json:"description"`
	Rows            []VoucherRow     `json:"rows"`
	Reference       VoucherReference `json:"reference"`
}

// Correction describes how an amount should move between two accounts.
type Correction struct {
	Side            CorrectionSide `json:"side"`
	FromAccount     int            `json:"fromAccount"`
	ToAccount       int            `json:"toAccount"`
	Amount          float64        `json:"amount"`
	VoucherSeries   string         `json:"voucherSeries"`
	TransactionDate string         `json:"transactionDate"`
	Reason          string         `json:"reason,omitempty"`
}

// PostingCorrectionRequest is a validated, immutable corrective-posting
// request. It is constructed once by correction.Normalize and consumed to
// build exactly one voucher.
type PostingCorrectionRequest struct {
	InvoiceType    InvoiceType `json:"invoiceType"`
	InvoiceID      int         `json:"invoiceId"`
	Correction     Correction  `json:"correction"`
	IdempotencyKey string      `json:"idempotencyKey"`
	SourceContext  string      `json:"sourceContext,omitempty"`
	AIDecisionID   string      `json:"aiDecisionId,omitempty"`
}
