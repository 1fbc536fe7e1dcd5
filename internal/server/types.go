package server

import (
	"encoding/json"

	"github.com/rezonia/ledger-bridge/internal/fortnox"
)

// ActionRequest is the envelope for the action dispatch endpoint.
type ActionRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// ListPayload narrows list actions to a date range and page window.
type ListPayload struct {
	FromDate string `json:"fromDate"`
	ToDate   string `json:"toDate"`
	Filter   string `json:"filter"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
	AllPages bool   `json:"allPages"`
}

func (p ListPayload) options() fortnox.ListOptions {
	return fortnox.ListOptions{
		FromDate: p.FromDate,
		ToDate:   p.ToDate,
		Filter:   p.Filter,
		Page: fortnox.PageOptions{
			Page:     p.Page,
			Limit:    p.Limit,
			AllPages: p.AllPages,
		},
	}
}

// PaymentPayload registers a payment, optionally bookkeeping it in the same
// action.
type PaymentPayload struct {
	InvoiceNumber int     `json:"invoiceNumber"`
	Amount        float64 `json:"amount"`
	PaymentDate   string  `json:"paymentDate"`
	ModeOfPayment string  `json:"modeOfPayment"`
	Bookkeep      bool    `json:"bookkeep"`
}

// SupplierPaymentPayload registers a supplier invoice payment.
type SupplierPaymentPayload struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	Amount        float64 `json:"amount"`
	PaymentDate   string  `json:"paymentDate"`
	Bookkeep      bool    `json:"bookkeep"`
}

// VATReportPayload selects the fiscal year containing the anchor date.
type VATReportPayload struct {
	Date string `json:"date"`
}

// ListResponse is the response for list actions.
type ListResponse struct {
	Items interface{}             `json:"items"`
	Meta  fortnox.MetaInformation `json:"meta"`
}

// SupplierResponse is the response for supplier actions.
type SupplierResponse struct {
	Supplier *fortnox.Supplier `json:"supplier"`
	Created  bool              `json:"created"`
}
