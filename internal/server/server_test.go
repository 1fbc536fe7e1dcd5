package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/ledger-bridge/internal/audit"
	"github.com/rezonia/ledger-bridge/internal/correction"
	"github.com/rezonia/ledger-bridge/internal/fortnox"
	"github.com/rezonia/ledger-bridge/internal/model"
	"github.com/rezonia/ledger-bridge/internal/server"
	"github.com/rezonia/ledger-bridge/internal/vat"
)

type stubLedger struct {
	err           error
	vouchers      []fortnox.Voucher
	payments      []fortnox.SupplierInvoicePayment
	bookkeptCount int
}

func (s *stubLedger) ListInvoices(context.Context, fortnox.ListOptions) ([]fortnox.Invoice, fortnox.MetaInformation, error) {
	if s.err != nil {
		return nil, fortnox.MetaInformation{}, s.err
	}
	return []fortnox.Invoice{{DocumentNumber: "1001", Total: 125}}, fortnox.MetaInformation{TotalResources: 1, TotalPages: 1, CurrentPage: 1}, nil
}

func (s *stubLedger) CreateInvoice(_ context.Context, invoice fortnox.CreateInvoice) (*fortnox.InvoiceDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &fortnox.InvoiceDetail{DocumentNumber: "1002", CustomerNumber: invoice.CustomerNumber}, nil
}

func (s *stubLedger) CreateInvoicePayment(_ context.Context, payment fortnox.InvoicePayment) (*fortnox.InvoicePayment, error) {
	if s.err != nil {
		return nil, s.err
	}
	payment.Number = "P1"
	return &payment, nil
}

func (s *stubLedger) BookkeepInvoicePayment(context.Context, string) error {
	s.bookkeptCount++
	return s.err
}

func (s *stubLedger) ListSupplierInvoices(context.Context, fortnox.ListOptions) ([]fortnox.SupplierInvoice, fortnox.MetaInformation, error) {
	if s.err != nil {
		return nil, fortnox.MetaInformation{}, s.err
	}
	return []fortnox.SupplierInvoice{{GivenNumber: "S1"}}, fortnox.MetaInformation{TotalResources: 1}, nil
}

func (s *stubLedger) CreateSupplierInvoicePayment(_ context.Context, payment fortnox.SupplierInvoicePayment) (*fortnox.SupplierInvoicePayment, error) {
	if s.err != nil {
		return nil, s.err
	}
	payment.Number = "SP1"
	s.payments = append(s.payments, payment)
	return &payment, nil
}

func (s *stubLedger) BookkeepSupplierInvoicePayment(context.Context, string) error {
	s.bookkeptCount++
	return s.err
}

func (s *stubLedger) CreateSupplier(_ context.Context, supplier fortnox.Supplier) (*fortnox.Supplier, error) {
	if s.err != nil {
		return nil, s.err
	}
	supplier.SupplierNumber = "7"
	return &supplier, nil
}

func (s *stubLedger) FindOrCreateSupplier(_ context.Context, supplier fortnox.Supplier) (*fortnox.Supplier, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	supplier.SupplierNumber = "8"
	return &supplier, true, nil
}

func (s *stubLedger) CreateVoucher(_ context.Context, voucher fortnox.Voucher) (*fortnox.Voucher, error) {
	if s.err != nil {
		return nil, s.err
	}
	voucher.VoucherNumber = 42
	s.vouchers = append(s.vouchers, voucher)
	return &voucher, nil
}

type stubReports struct {
	err error
}

func (s *stubReports) GenerateReport(context.Context, string) (*vat.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &vat.Report{
		Company:    vat.Company{Name: "Acme AB"},
		Validation: vat.Validation{OK: true, Balanced: true},
	}, nil
}

type stubCorrections struct {
	err error
}

func (s *stubCorrections) Apply(_ context.Context, req *model.PostingCorrectionRequest) (*correction.ApplyResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &correction.ApplyResult{
		VoucherRef:     "A-42",
		IdempotencyKey: req.IdempotencyKey,
	}, nil
}

type testEnv struct {
	srv         *server.Server
	ledger      *stubLedger
	reports     *stubReports
	corrections *stubCorrections
	audits      *audit.MemoryLogger
}

func newTestEnv() *testEnv {
	env := &testEnv{
		ledger:      &stubLedger{},
		reports:     &stubReports{},
		corrections: &stubCorrections{},
		audits:      audit.NewMemoryLogger(),
	}
	env.srv = server.NewServer(&server.Config{Address: ":8080", Debug: true},
		env.ledger, env.reports, env.corrections, env.audits, nil)
	return env
}

func (e *testEnv) do(t *testing.T, action string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body := map[string]interface{}{"action": action}
	if payload != nil {
		body["payload"] = payload
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
}

func TestUnknownAction(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "teleportMoney", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "validation", response["code"])
}

func TestMissingAction(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetInvoicesAction(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "getInvoices", map[string]interface{}{"fromDate": "2026-01-01"})
	require.Equal(t, http.StatusOK, w.Code)

	var response server.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Meta.TotalResources)
}

func TestCreateInvoiceRequiresCustomer(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "createInvoice", map[string]interface{}{"InvoiceRows": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "validation", response["code"])
}

func TestGetVATReportAction(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "getVATReport", map[string]interface{}{"date": "2026-06-30"})
	require.Equal(t, http.StatusOK, w.Code)

	var report vat.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "Acme AB", report.Company.Name)
	assert.True(t, report.Validation.OK)
}

func TestApplyPostingCorrectionAction(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "applyPostingCorrection", map[string]interface{}{
		"invoiceType": "customer",
		"invoiceId":   555,
		"correction": map[string]interface{}{
			"side":            "debit",
			"fromAccount":     3001,
			"toAccount":       3041,
			"amount":          400,
			"voucherSeries":   "A",
			"transactionDate": "2026-03-31",
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result correction.ApplyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "A-42", result.VoucherRef)
	assert.Equal(t, "v1:customer:555:debit:3001:3041:400.00:A:2026-03-31", result.IdempotencyKey)
}

func TestApplyPostingCorrectionValidationFailure(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "applyPostingCorrection", map[string]interface{}{
		"invoiceType": "supplier",
		"invoiceId":   1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "validation", response["code"])
	assert.Contains(t, response["error"], "invoiceType")
}

func TestApplyPostingCorrectionInProgress(t *testing.T) {
	env := newTestEnv()
	env.corrections.err = correction.ErrCorrectionInProgress

	w := env.do(t, "applyPostingCorrection", map[string]interface{}{
		"invoiceType": "customer",
		"invoiceId":   555,
		"correction": map[string]interface{}{
			"side":            "debit",
			"fromAccount":     3001,
			"toAccount":       3041,
			"amount":          400,
			"voucherSeries":   "A",
			"transactionDate": "2026-03-31",
		},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReauthRequiredMapsTo401(t *testing.T) {
	env := newTestEnv()
	env.ledger.err = fmt.Errorf("token refresh: %w", model.ErrReauthRequired)

	w := env.do(t, "getInvoices", map[string]interface{}{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "reauth_required", response["code"])
}

func TestRateLimitedMapsTo429(t *testing.T) {
	env := newTestEnv()
	env.ledger.err = &model.APIError{Kind: model.KindRateLimited, StatusCode: 429, Message: "slow down"}

	w := env.do(t, "getInvoices", map[string]interface{}{})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "rate_limited", response["code"])
}

func TestUnexpectedErrorMapsTo500(t *testing.T) {
	env := newTestEnv()
	env.ledger.err = errors.New("connection reset")

	w := env.do(t, "getInvoices", map[string]interface{}{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "internal", response["code"])
}

func TestExportVoucherWritesAuditRecord(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "exportVoucher", map[string]interface{}{
		"VoucherSeries":   "A",
		"TransactionDate": "2026-03-31",
		"Description":     "settlement",
		"VoucherRows": []map[string]interface{}{
			{"Account": 2611, "Debit": 250},
			{"Account": 2650, "Credit": 250},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, env.audits.Records, 1)
	for _, record := range env.audits.Records {
		assert.Equal(t, "voucher_export", record.Kind)
		assert.Equal(t, audit.StatusCompleted, record.Status)
		assert.Equal(t, "A-42", record.Detail)
	}
}

func TestExportVoucherFailureMarksAuditFailed(t *testing.T) {
	env := newTestEnv()
	env.ledger.err = errors.New("export rejected")

	w := env.do(t, "exportVoucher", map[string]interface{}{
		"VoucherSeries":   "A",
		"TransactionDate": "2026-03-31",
		"VoucherRows": []map[string]interface{}{
			{"Account": 2611, "Debit": 250},
		},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	require.Len(t, env.audits.Records, 1)
	for _, record := range env.audits.Records {
		assert.Equal(t, audit.StatusFailed, record.Status)
		assert.Contains(t, record.Detail, "export rejected")
	}
}

func TestExportSupplierInvoiceBookkeeps(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "exportSupplierInvoice", map[string]interface{}{
		"invoiceNumber": "1234",
		"amount":        625.0,
		"paymentDate":   "2026-04-01",
		"bookkeep":      true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, env.ledger.payments, 1)
	assert.Equal(t, "1234", env.ledger.payments[0].InvoiceNumber)
	assert.Equal(t, 1, env.ledger.bookkeptCount)

	require.Len(t, env.audits.Records, 1)
	for _, record := range env.audits.Records {
		assert.Equal(t, "supplier_invoice_export", record.Kind)
		assert.Equal(t, audit.StatusCompleted, record.Status)
	}
}

func TestFindOrCreateSupplierAction(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "findOrCreateSupplier", map[string]interface{}{
		"Name":               "Byggarna AB",
		"OrganisationNumber": "556677-8899",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var response server.SupplierResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Created)
	assert.Equal(t, "8", response.Supplier.SupplierNumber)
}

func TestMissingPayload(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, "getVATReport", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
