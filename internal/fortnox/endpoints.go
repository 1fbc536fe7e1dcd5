package fortnox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ListOptions narrows a list call to a date range and pagination window.
type ListOptions struct {
	FromDate string
	ToDate   string
	Filter   string
	Page     PageOptions
}

func (o ListOptions) params() url.Values {
	params := url.Values{}
	if o.FromDate != "" {
		params.Set("fromdate", o.FromDate)
	}
	if o.ToDate != "" {
		params.Set("todate", o.ToDate)
	}
	if o.Filter != "" {
		params.Set("filter", o.Filter)
	}
	return params
}

func decodeItems[T any](items []json.RawMessage, what string) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, raw := range items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode %s item: %w", what, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// ListInvoices returns customer invoices for the given range.
func (c *Client) ListInvoices(ctx context.Context, opts ListOptions) ([]Invoice, MetaInformation, error) {
	result, err := c.requestPaginatedList(ctx, "/invoices", "Invoices", opts.params(), opts.Page)
	if err != nil {
		return nil, MetaInformation{}, err
	}
	items, err := decodeItems[Invoice](result.Items, "invoice")
	return items, result.Meta, err
}

// GetInvoice fetches one customer invoice with its exact net/VAT breakdown.
func (c *Client) GetInvoice(ctx context.Context, documentNumber string) (*InvoiceDetail, error) {
	var envelope struct {
		Invoice InvoiceDetail `json:"Invoice"`
	}
	err := c.request(ctx, http.MethodGet, "/invoices/"+url.PathEscape(documentNumber), nil, nil, &envelope, true)
	if err != nil {
		return nil, err
	}
	return &envelope.Invoice, nil
}

// CreateInvoice creates a customer invoice. Not retried: invoice creation is
// not idempotent.
func (c *Client) CreateInvoice(ctx context.Context, invoice CreateInvoice) (*InvoiceDetail, error) {
	body := map[string]interface{}{"Invoice": invoice}
	var envelope struct {
		Invoice InvoiceDetail `json:"Invoice"`
	}
	if err := c.request(ctx, http.MethodPost, "/invoices", nil, body, &envelope, false); err != nil {
		return nil, err
	}
	return &envelope.Invoice, nil
}

// BookkeepInvoice books a customer invoice.
func (c *Client) BookkeepInvoice(ctx context.Context, documentNumber string) error {
	return c.request(ctx, http.MethodPut, "/invoices/"+url.PathEscape(documentNumber)+"/bookkeep", nil, nil, nil, false)
}

// CreateInvoicePayment registers a payment against a customer invoice.
func (c *Client) CreateInvoicePayment(ctx context.Context, payment InvoicePayment) (*InvoicePayment, error) {
	body := map[string]interface{}{"InvoicePayment": payment}
	var envelope struct {
		InvoicePayment InvoicePayment `json:"InvoicePayment"`
	}
	if err := c.request(ctx, http.MethodPost, "/invoicepayments", nil, body, &envelope, false); err != nil {
		return nil, err
	}
	return &envelope.InvoicePayment, nil
}

// BookkeepInvoicePayment books a registered invoice payment.
func (c *Client) BookkeepInvoicePayment(ctx context.Context, number string) error {
	return c.request(ctx, http.MethodPut, "/invoicepayments/"+url.PathEscape(number)+"/bookkeep", nil, nil, nil, false)
}

// ListSupplierInvoices returns supplier invoices for the given range.
func (c *Client) ListSupplierInvoices(ctx context.Context, opts ListOptions) ([]SupplierInvoice, MetaInformation, error) {
	result, err := c.requestPaginatedList(ctx, "/supplierinvoices", "SupplierInvoices", opts.params(), opts.Page)
	if err != nil {
		return nil, MetaInformation{}, err
	}
	items, err := decodeItems[SupplierInvoice](result.Items, "supplier invoice")
	return items, result.Meta, err
}

// GetSupplierInvoice fetches one supplier invoice.
func (c *Client) GetSupplierInvoice(ctx context.Context, givenNumber string) (*SupplierInvoiceDetail, error) {
	var envelope struct {
		SupplierInvoice SupplierInvoiceDetail `json:"SupplierInvoice"`
	}
	err := c.request(ctx, http.MethodGet, "/supplierinvoices/"+url.PathEscape(givenNumber), nil, nil, &envelope, true)
	if err != nil {
		return nil, err
	}
	return &envelope.SupplierInvoice, nil
}

// CreateSupplierInvoicePayment registers a payment against a supplier invoice.
func (c *Client) CreateSupplierInvoicePayment(ctx context.Context, payment SupplierInvoicePayment) (*SupplierInvoicePayment, error) {
	body := map[string]interface{}{"SupplierInvoicePayment": payment}
	var envelope struct {
		SupplierInvoicePayment SupplierInvoicePayment `json:"SupplierInvoicePayment"`
	}
	if err := c.request(ctx, http.MethodPost, "/supplierinvoicepayments", nil, body, &envelope, false); err != nil {
		return nil, err
	}
	return &envelope.SupplierInvoicePayment, nil
}

// BookkeepSupplierInvoicePayment books a registered supplier invoice payment.
func (c *Client) BookkeepSupplierInvoicePayment(ctx context.Context, number string) error {
	return c.request(ctx, http.MethodPut, "/supplierinvoicepayments/"+url.PathEscape(number)+"/bookkeep", nil, nil, nil, false)
}

// ListCustomers returns customer master records.
func (c *Client) ListCustomers(ctx context.Context, opts ListOptions) ([]Customer, MetaInformation, error) {
	result, err := c.requestPaginatedList(ctx, "/customers", "Customers", opts.params(), opts.Page)
	if err != nil {
		return nil, MetaInformation{}, err
	}
	items, err := decodeItems[Customer](result.Items, "customer")
	return items, result.Meta, err
}

// GetCustomer fetches one customer.
func (c *Client) GetCustomer(ctx context.Context, customerNumber string) (*Customer, error) {
	var envelope struct {
		Customer Customer `json:"Customer"`
	}
	err := c.request(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerNumber), nil, nil, &envelope, true)
	if err != nil {
		return nil, err
	}
	return &envelope.Customer, nil
}

// CreateCustomer creates a customer master record.
func (c *Client) CreateCustomer(ctx context.Context, customer Customer) (*Customer, error) {
	body := map[string]interface{}{"Customer": customer}
	var envelope struct {
		Customer Customer `json:"Customer"`
	}
	if err := c.request(ctx, http.MethodPost, "/customers", nil, body, &envelope, false); err != nil {
		return nil, err
	}
	return &envelope.Customer, nil
}

// ListArticles returns article master records.
func (c *Client) ListArticles(ctx context.Context, opts ListOptions) ([]Article, MetaInformation, error) {
	result, err := c.requestPaginatedList(ctx, "/articles", "Articles", opts.params(), opts.Page)
	if err != nil {
		return nil, MetaInformation{}, err
	}
	items, err := decodeItems[Article](result.Items, "article")
	return items, result.Meta, err
}

// ListSuppliers returns supplier master records.
func (c *Client) ListSuppliers(ctx context.Context, opts ListOptions) ([]Supplier, MetaInformation, error) {
	result, err := c.requestPaginatedList(ctx, "/suppliers", "Suppliers", opts.params(), opts.Page)
	if err != nil {
		return nil, MetaInformation{}, err
	}
	items, err := decodeItems[Supplier](result.Items, "supplier")
	return items, result.Meta, err
}

// GetSupplier fetches one supplier.
func (c *Client) GetSupplier(ctx context.Context, supplierNumber string) (*Supplier, error) {
	var envelope struct {
		Supplier Supplier `json:"Supplier"`
	}
	err := c.request(ctx, http.MethodGet, "/suppliers/"+url.PathEscape(supplierNumber), nil, nil, &envelope, true)
	if err != nil {
		return nil, err
	}
	return &envelope.Supplier, nil
}

// CreateSupplier creates a supplier master record.
func (c *Client) CreateSupplier(ctx context.Context, supplier Supplier) (*Supplier, error) {
	body := map[string]interface{}{"Supplier": supplier}
	var envelope struct {
		Supplier Supplier `json:"Supplier"`
	}
	if err := c.request(ctx, http.MethodPost, "/suppliers", nil, body, &envelope, false); err != nil {
		return nil, err
	}
	return &envelope.Supplier, nil
}

// FindOrCreateSupplier looks a supplier up by organisation number, creating
// it when absent.
func (c *Client) FindOrCreateSupplier(ctx context.Context, supplier Supplier) (*Supplier, bool, error) {
	if supplier.OrganisationNumber != "" {
		existing, _, err := c.ListSuppliers(ctx, ListOptions{Page: PageOptions{AllPages: true}})
		if err != nil {
			return nil, false, err
		}
		for i := range existing {
			if existing[i].OrganisationNumber == supplier.OrganisationNumber {
				return &existing[i], false, nil
			}
		}
	}
	created, err := c.CreateSupplier(ctx, supplier)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// CreateVoucher exports a voucher. Callers supply idempotency protection
// through the correction applier; the HTTP call itself is not retried.
func (c *Client) CreateVoucher(ctx context.Context, voucher Voucher) (*Voucher, error) {
	body := map[string]interface{}{"Voucher": voucher}
	var envelope struct {
		Voucher Voucher `json:"Voucher"`
	}
	if err := c.request(ctx, http.MethodPost, "/vouchers", nil, body, &envelope, false); err != nil {
		return nil, err
	}
	return &envelope.Voucher, nil
}

// GetCompanyInformation fetches the company master record.
func (c *Client) GetCompanyInformation(ctx context.Context) (*CompanyInformation, error) {
	var envelope struct {
		CompanyInformation CompanyInformation `json:"CompanyInformation"`
	}
	err := c.request(ctx, http.MethodGet, "/companyinformation", nil, nil, &envelope, true)
	if err != nil {
		return nil, err
	}
	return &envelope.CompanyInformation, nil
}

// ListFinancialYears returns the configured fiscal years.
func (c *Client) ListFinancialYears(ctx context.Context) ([]FinancialYear, error) {
	result, err := c.requestPaginatedList(ctx, "/financialyears", "FinancialYears", nil, PageOptions{AllPages: true})
	if err != nil {
		return nil, err
	}
	return decodeItems[FinancialYear](result.Items, "financial year")
}

// CurrentFinancialYear returns the fiscal year containing date (YYYY-MM-DD),
// falling back to the latest year when none matches.
func (c *Client) CurrentFinancialYear(ctx context.Context, date string) (*FinancialYear, error) {
	years, err := c.ListFinancialYears(ctx)
	if err != nil {
		return nil, err
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no financial years configured")
	}
	for i := range years {
		if years[i].FromDate <= date && date <= years[i].ToDate {
			return &years[i], nil
		}
	}
	latest := &years[0]
	for i := range years {
		if years[i].ToDate > latest.ToDate {
			latest = &years[i]
		}
	}
	return latest, nil
}
