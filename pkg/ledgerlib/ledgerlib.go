// Package ledgerlib provides a public API for bridging a hosted ledger.
//
// This package exposes the core types for the token lifecycle, the
// rate-limited API pipeline, VAT reconciliation, and posting corrections.
//
// Example usage:
//
//	bridge := ledgerlib.NewBridge(ledgerlib.Options{
//	    ClientID:     os.Getenv("FORTNOX_CLIENT_ID"),
//	    ClientSecret: os.Getenv("FORTNOX_CLIENT_SECRET"),
//	    Subject:      "acme-ab",
//	})
//	report, err := bridge.GenerateVATReport(ctx, "2026-03-31")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.VAT.Net)
package ledgerlib

import (
	"github.com/rezonia/ledger-bridge/internal/correction"
	"github.com/rezonia/ledger-bridge/internal/model"
	"github.com/rezonia/ledger-bridge/internal/vat"
)

// Re-export core types for public API
type (
	CorrectionSide           = model.CorrectionSide
	InvoiceType              = model.InvoiceType
	JournalEntry             = model.JournalEntry
	Voucher                  = model.Voucher
	VoucherRow               = model.VoucherRow
	PostingCorrectionRequest = model.PostingCorrectionRequest
	VATReport                = vat.Report
	RateBucket               = vat.RateBucket
	CorrectionRequest        = correction.RawRequest
	CorrectionBlock          = correction.RawCorrection
	CorrectionResult         = correction.ApplyResult
)

// Re-export correction sides
const (
	SideDebit  = model.SideDebit
	SideCredit = model.SideCredit
)

// Re-export invoice types
const (
	InvoiceTypeCustomer = model.InvoiceTypeCustomer
	InvoiceTypeSupplier = model.InvoiceTypeSupplier
)

// Re-export error types
type (
	APIError        = model.APIError
	ValidationError = model.ValidationError
	ErrorKind       = model.ErrorKind
)

// Re-export error kinds
const (
	KindTimeout     = model.KindTimeout
	KindRateLimited = model.KindRateLimited
	KindServer      = model.KindServer
	KindClient      = model.KindClient
	KindUnknown     = model.KindUnknown
)

// Re-export sentinel errors
var (
	ErrReauthRequired      = model.ErrReauthRequired
	ErrCredentialsNotFound = model.ErrCredentialsNotFound
)
