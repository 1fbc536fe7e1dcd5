package fortnox

// Wire types for the subset of the ledger API this client consumes. Dates
// stay as YYYY-MM-DD strings on the wire; amounts are plain JSON numbers.

// MetaInformation is the pagination block reported by list endpoints.
type MetaInformation struct {
	TotalResources int `json:"@TotalResources"`
	TotalPages     int `json:"@TotalPages"`
	CurrentPage    int `json:"@CurrentPage"`
}

// Invoice is a customer invoice list row. The list endpoint only exposes
// rounded totals; use GetInvoice for the exact net/VAT breakdown.
type Invoice struct {
	DocumentNumber string  `json:"DocumentNumber"`
	CustomerName   string  `json:"CustomerName"`
	CustomerNumber string  `json:"CustomerNumber"`
	InvoiceDate    string  `json:"InvoiceDate"`
	DueDate        string  `json:"DueDate,omitempty"`
	Total          float64 `json:"Total"`
	Balance        float64 `json:"Balance"`
	Booked         bool    `json:"Booked"`
	Cancelled      bool    `json:"Cancelled"`
}

// InvoiceDetail is the full customer invoice record.
type InvoiceDetail struct {
	DocumentNumber string  `json:"DocumentNumber"`
	CustomerName   string  `json:"CustomerName"`
	CustomerNumber string  `json:"CustomerNumber"`
	InvoiceDate    string  `json:"InvoiceDate"`
	Net            float64 `json:"Net"`
	TotalVAT       float64 `json:"TotalVAT"`
	Total          float64 `json:"Total"`
	Booked         bool    `json:"Booked"`
	Cancelled      bool    `json:"Cancelled"`
	OCR            string  `json:"OCR,omitempty"`
	Currency       string  `json:"Currency,omitempty"`
}

// SupplierInvoice is a supplier invoice list row.
type SupplierInvoice struct {
	GivenNumber    string  `json:"GivenNumber"`
	SupplierName   string  `json:"SupplierName"`
	SupplierNumber string  `json:"SupplierNumber"`
	InvoiceDate    string  `json:"InvoiceDate"`
	Total          float64 `json:"Total"`
	Booked         bool    `json:"Booked"`
	Cancelled      bool    `json:"Cancelled"`
}

// SupplierInvoiceDetail is the full supplier invoice record. The remote does
// not expose net directly; derive it as Total - VAT.
type SupplierInvoiceDetail struct {
	GivenNumber    string  `json:"GivenNumber"`
	SupplierName   string  `json:"SupplierName"`
	SupplierNumber string  `json:"SupplierNumber"`
	InvoiceDate    string  `json:"InvoiceDate"`
	Total          float64 `json:"Total"`
	VAT            float64 `json:"VAT"`
	Booked         bool    `json:"Booked"`
	Cancelled      bool    `json:"Cancelled"`
}

// Customer is a customer master record.
type Customer struct {
	CustomerNumber     string `json:"CustomerNumber,omitempty"`
	Name               string `json:"Name"`
	OrganisationNumber string `json:"OrganisationNumber,omitempty"`
	Email              string `json:"Email,omitempty"`
}

// Supplier is a supplier master record.
type Supplier struct {
	SupplierNumber     string `json:"SupplierNumber,omitempty"`
	Name               string `json:"Name"`
	OrganisationNumber string `json:"OrganisationNumber,omitempty"`
	Email              string `json:"Email,omitempty"`
}

// Article is an article master record.
type Article struct {
	ArticleNumber string  `json:"ArticleNumber"`
	Description   string  `json:"Description"`
	SalesPrice    float64 `json:"SalesPrice,omitempty"`
}

// InvoiceRow is one line on an invoice being created.
type InvoiceRow struct {
	ArticleNumber string  `json:"ArticleNumber,omitempty"`
	Description   string  `json:"Description"`
	Price         float64 `json:"Price"`
	DeliveredQuantity string `json:"DeliveredQuantity,omitempty"`
	VAT           int     `json:"VAT,omitempty"`
	AccountNumber int     `json:"AccountNumber,omitempty"`
}

// CreateInvoice is the payload for creating a customer invoice.
type CreateInvoice struct {
	CustomerNumber string       `json:"CustomerNumber"`
	InvoiceDate    string       `json:"InvoiceDate,omitempty"`
	DueDate        string       `json:"DueDate,omitempty"`
	InvoiceRows    []InvoiceRow `json:"InvoiceRows"`
}

// InvoicePayment registers a payment against a customer invoice.
type InvoicePayment struct {
	Number        string  `json:"Number,omitempty"`
	InvoiceNumber int     `json:"InvoiceNumber"`
	Amount        float64 `json:"Amount"`
	PaymentDate   string  `json:"PaymentDate"`
	ModeOfPayment string  `json:"ModeOfPayment,omitempty"`
}

// SupplierInvoicePayment registers a payment against a supplier invoice.
type SupplierInvoicePayment struct {
	Number        string  `json:"Number,omitempty"`
	InvoiceNumber string  `json:"InvoiceNumber"`
	Amount        float64 `json:"Amount"`
	PaymentDate   string  `json:"PaymentDate"`
}

// VoucherRow is one debit or credit line on a voucher.
type VoucherRow struct {
	Account     int     `json:"Account"`
	Debit       float64 `json:"Debit"`
	Credit      float64 `json:"Credit"`
	Description string  `json:"Description,omitempty"`
}

// Voucher is a double-entry journal voucher.
type Voucher struct {
	VoucherSeries   string       `json:"VoucherSeries"`
	VoucherNumber   int          `json:"VoucherNumber,omitempty"`
	TransactionDate string       `json:"TransactionDate"`
	Description     string       `json:"Description"`
	VoucherRows     []VoucherRow `json:"VoucherRows"`
	ReferenceType   string       `json:"ReferenceType,omitempty"`
	ReferenceNumber string       `json:"ReferenceNumber,omitempty"`
}

// CompanyInformation is the company master record.
type CompanyInformation struct {
	CompanyName        string `json:"CompanyName"`
	OrganizationNumber string `json:"OrganizationNumber"`
	Address            string `json:"Address,omitempty"`
	City               string `json:"City,omitempty"`
}

// FinancialYear is one fiscal year definition.
type FinancialYear struct {
	ID       int    `json:"Id"`
	FromDate string `json:"FromDate"`
	ToDate   string `json:"ToDate"`
}
