package vat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rezonia/ledger-bridge/internal/fortnox"
	"github.com/rezonia/ledger-bridge/internal/model"
	"github.com/rezonia/ledger-bridge/internal/money"
)

const (
	// Bound on in-flight detail fetches; list endpoints only expose rounded
	// totals so every invoice is fetched individually.
	detailFetchConcurrency = 4

	balanceEpsilon = 0.01
)

// LedgerClient is the pipeline surface the engine composes over.
type LedgerClient interface {
	GetCompanyInformation(ctx context.Context) (*fortnox.CompanyInformation, error)
	CurrentFinancialYear(ctx context.Context, date string) (*fortnox.FinancialYear, error)
	ListInvoices(ctx context.Context, opts fortnox.ListOptions) ([]fortnox.Invoice, fortnox.MetaInformation, error)
	ListSupplierInvoices(ctx context.Context, opts fortnox.ListOptions) ([]fortnox.SupplierInvoice, fortnox.MetaInformation, error)
	GetInvoice(ctx context.Context, documentNumber string) (*fortnox.InvoiceDetail, error)
	GetSupplierInvoice(ctx context.Context, givenNumber string) (*fortnox.SupplierInvoiceDetail, error)
}

// Engine derives a balanced VAT settlement journal from raw invoice data.
type Engine struct {
	ledger LedgerClient
	log    *logrus.Entry
	now    func() time.Time
}

// EngineOption configures the engine
type EngineOption func(*Engine)

// WithClock injects a deterministic clock for testing
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a VAT reconciliation engine
func NewEngine(ledger LedgerClient, log *logrus.Entry, opts ...EngineOption) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Engine{
		ledger: ledger,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// line is one invoice reduced to its exact breakdown.
type line struct {
	net    decimal.Decimal
	vat    decimal.Decimal
	booked bool
}

// GenerateReport builds the VAT report for the fiscal year containing the
// anchor date (YYYY-MM-DD, empty for today). It always returns a report;
// reconciliation problems surface as validation warnings, not errors.
func (e *Engine) GenerateReport(ctx context.Context, anchorDate string) (*Report, error) {
	if anchorDate == "" {
		anchorDate = e.now().Format("2006-01-02")
	}

	company, fy, err := e.fetchCompanyAndYear(ctx, anchorDate)
	if err != nil {
		return nil, err
	}

	opts := fortnox.ListOptions{
		FromDate: fy.FromDate,
		ToDate:   fy.ToDate,
		Page:     fortnox.PageOptions{AllPages: true},
	}
	invoices, _, err := e.ledger.ListInvoices(ctx, opts)
	if err != nil {
		return nil, err
	}
	supplierInvoices, _, err := e.ledger.ListSupplierInvoices(ctx, opts)
	if err != nil {
		return nil, err
	}

	// Cancelled customer invoices never reach the books.
	active := invoices[:0]
	for _, inv := range invoices {
		if !inv.Cancelled {
			active = append(active, inv)
		}
	}
	invoices = active

	sales, droppedSales := e.fetchInvoiceDetails(ctx, invoices)
	costs, droppedCosts := e.fetchSupplierDetails(ctx, supplierInvoices)
	dropped := droppedSales + droppedCosts

	salesBuckets := bucketize(sales)
	costBuckets := bucketize(costs)

	report := &Report{
		Company: Company{Name: company.CompanyName, OrgNumber: company.OrganizationNumber},
		Period:  Period{FromDate: fy.FromDate, ToDate: fy.ToDate},
		Sales:   salesBuckets,
		Costs:   costBuckets,
	}

	unbooked := 0
	for _, l := range sales {
		if !l.booked {
			unbooked++
		}
	}
	for _, l := range costs {
		if !l.booked {
			unbooked++
		}
	}

	report.Summary = Summary{
		TotalSalesNet:        sumNet(salesBuckets),
		TotalCostsNet:        sumNet(costBuckets),
		InvoiceCount:         len(invoices),
		SupplierInvoiceCount: len(supplierInvoices),
		UnbookedCount:        unbooked,
		DroppedCount:         dropped,
	}
	report.VAT = summarizeVAT(salesBuckets, costBuckets)
	report.JournalEntries = buildJournal(salesBuckets, report.VAT)

	e.validate(report)
	if company.OrganizationNumber != "" {
		if err := ValidateOrgNumber(company.OrganizationNumber); err != nil {
			report.Validation.Warnings = append(report.Validation.Warnings,
				fmt.Sprintf("company organisation number looks invalid: %v", err))
		}
	}

	e.log.WithFields(logrus.Fields{
		"from":     fy.FromDate,
		"to":       fy.ToDate,
		"invoices": len(invoices),
		"costs":    len(supplierInvoices),
		"dropped":  dropped,
		"ok":       report.Validation.OK,
	}).Info("vat report generated")

	return report, nil
}

func (e *Engine) fetchCompanyAndYear(ctx context.Context, anchorDate string) (*fortnox.CompanyInformation, *fortnox.FinancialYear, error) {
	var (
		wg         sync.WaitGroup
		company    *fortnox.CompanyInformation
		fy         *fortnox.FinancialYear
		companyErr error
		fyErr      error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		company, companyErr = e.ledger.GetCompanyInformation(ctx)
	}()
	go func() {
		defer wg.Done()
		fy, fyErr = e.ledger.CurrentFinancialYear(ctx, anchorDate)
	}()
	wg.Wait()
	if companyErr != nil {
		return nil, nil, companyErr
	}
	if fyErr != nil {
		return nil, nil, fyErr
	}
	return company, fy, nil
}

// fetchInvoiceDetails fetches each invoice individually with bounded
// concurrency. A failed detail fetch drops that invoice from aggregation;
// the drop is logged and counted, never fatal, so the report stays
// available at the cost of completeness.
func (e *Engine) fetchInvoiceDetails(ctx context.Context, invoices []fortnox.Invoice) ([]line, int) {
	var (
		mu      sync.Mutex
		lines   []line
		dropped int
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, detailFetchConcurrency)
	for _, inv := range invoices {
		wg.Add(1)
		sem <- struct{}{}
		go func(inv fortnox.Invoice) {
			defer wg.Done()
			defer func() { <-sem }()
			detail, err := e.ledger.GetInvoice(ctx, inv.DocumentNumber)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				dropped++
				e.log.WithField("invoice", inv.DocumentNumber).WithError(err).Warn("dropping invoice from vat aggregation")
				return
			}
			lines = append(lines, line{
				net:    money.FromFloat(detail.Net),
				vat:    money.FromFloat(detail.TotalVAT),
				booked: detail.Booked,
			})
		}(inv)
	}
	wg.Wait()
	return lines, dropped
}

func (e *Engine) fetchSupplierDetails(ctx context.Context, invoices []fortnox.SupplierInvoice) ([]line, int) {
	var (
		mu      sync.Mutex
		lines   []line
		dropped int
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, detailFetchConcurrency)
	for _, inv := range invoices {
		wg.Add(1)
		sem <- struct{}{}
		go func(inv fortnox.SupplierInvoice) {
			defer wg.Done()
			defer func() { <-sem }()
			detail, err := e.ledger.GetSupplierInvoice(ctx, inv.GivenNumber)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				dropped++
				e.log.WithField("supplier_invoice", inv.GivenNumber).WithError(err).Warn("dropping supplier invoice from vat aggregation")
				return
			}
			// The remote does not expose supplier net directly.
			total := money.FromFloat(detail.Total)
			vat := money.FromFloat(detail.VAT)
			lines = append(lines, line{
				net:    total.Sub(vat),
				vat:    vat,
				booked: detail.Booked,
			})
		}(inv)
	}
	wg.Wait()
	return lines, dropped
}

// bucketize groups lines by their derived effective rate.
func bucketize(lines []line) []RateBucket {
	type acc struct {
		net   decimal.Decimal
		vat   decimal.Decimal
		count int
	}
	accs := map[int]*acc{}
	for _, l := range lines {
		netF, _ := l.net.Float64()
		vatF, _ := l.vat.Float64()
		rate := money.DeriveRate(netF, vatF)
		bucket, ok := accs[rate]
		if !ok {
			bucket = &acc{net: money.Zero, vat: money.Zero}
			accs[rate] = bucket
		}
		bucket.net = bucket.net.Add(l.net)
		bucket.vat = bucket.vat.Add(l.vat)
		bucket.count++
	}

	rates := make([]int, 0, len(accs))
	for rate := range accs {
		rates = append(rates, rate)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rates)))

	buckets := make([]RateBucket, 0, len(rates))
	for _, rate := range rates {
		label := fmt.Sprintf("%d%% moms", rate)
		if rate == 0 {
			label = "VAT-exempt"
		}
		net, _ := money.Round2(accs[rate].net).Float64()
		vat, _ := money.Round2(accs[rate].vat).Float64()
		buckets = append(buckets, RateBucket{
			Rate:  rate,
			Label: label,
			Net:   net,
			VAT:   vat,
			Count: accs[rate].count,
		})
	}
	return buckets
}

func sumNet(buckets []RateBucket) float64 {
	total := money.Zero
	for _, b := range buckets {
		total = total.Add(money.FromFloat(b.Net))
	}
	f, _ := total.Float64()
	return f
}

func summarizeVAT(sales, costs []RateBucket) VATSummary {
	var summary VATSummary
	outgoing := money.Zero
	for _, b := range sales {
		switch b.Rate {
		case RateStandard:
			summary.Outgoing25 = b.VAT
		case RateReduced:
			summary.Outgoing12 = b.VAT
		case RateReduced2:
			summary.Outgoing6 = b.VAT
		}
		outgoing = outgoing.Add(money.FromFloat(b.VAT))
	}
	incoming := money.Zero
	for _, b := range costs {
		incoming = incoming.Add(money.FromFloat(b.VAT))
	}
	net := outgoing.Sub(incoming)

	summary.TotalOutgoing, _ = outgoing.Float64()
	summary.Incoming, _ = incoming.Float64()
	summary.Net, _ = net.Float64()
	if net.IsPositive() {
		summary.ToPay = summary.Net
	} else {
		summary.ToRefund, _ = net.Abs().Float64()
	}
	return summary
}

// buildJournal proposes the settlement voucher: clear each outgoing VAT
// bucket, clear incoming VAT, and book the net against the settlement
// account.
func buildJournal(sales []RateBucket, summary VATSummary) []model.JournalEntry {
	var entries []model.JournalEntry
	for _, b := range sales {
		if b.VAT == 0 {
			continue
		}
		account, name := OutgoingVATAccount(b.Rate)
		entries = append(entries, model.JournalEntry{
			Account:     account,
			AccountName: name,
			Debit:       b.VAT,
			Credit:      0,
			Description: fmt.Sprintf("Utgående moms %d%%", b.Rate),
		})
	}
	if summary.Incoming != 0 {
		entries = append(entries, model.JournalEntry{
			Account:     AccountIncomingVAT,
			AccountName: "Ingående moms",
			Debit:       0,
			Credit:      summary.Incoming,
			Description: "Ingående moms",
		})
	}
	if summary.Net > 0 {
		entries = append(entries, model.JournalEntry{
			Account:     AccountVATSettlement,
			AccountName: "Redovisningskonto för moms",
			Debit:       0,
			Credit:      summary.Net,
			Description: "Moms att betala",
		})
	} else if summary.Net < 0 {
		entries = append(entries, model.JournalEntry{
			Account:     AccountVATSettlement,
			AccountName: "Redovisningskonto för moms",
			Debit:       -summary.Net,
			Credit:      0,
			Description: "Moms att återfå",
		})
	}
	return entries
}

func (e *Engine) validate(report *Report) {
	debit := money.Zero
	credit := money.Zero
	for _, entry := range report.JournalEntries {
		debit = debit.Add(money.FromFloat(entry.Debit))
		credit = credit.Add(money.FromFloat(entry.Credit))
	}
	balanced := money.Balanced(debit, credit, balanceEpsilon)

	var warnings []string
	if !balanced {
		warnings = append(warnings, "journal entries do not balance")
	}
	if report.Summary.UnbookedCount > 0 {
		warnings = append(warnings, fmt.Sprintf("%d unbooked invoices in period", report.Summary.UnbookedCount))
	}
	if report.Summary.DroppedCount > 0 {
		warnings = append(warnings, fmt.Sprintf("%d invoices dropped after failed detail fetches; report may be incomplete", report.Summary.DroppedCount))
	}
	if report.Summary.InvoiceCount == 0 && report.Summary.SupplierInvoiceCount == 0 {
		warnings = append(warnings, "no invoices found in period")
	}

	report.Validation = Validation{
		OK:       balanced && report.Summary.UnbookedCount == 0,
		Balanced: balanced,
		Warnings: warnings,
	}
}
