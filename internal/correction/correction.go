package correction

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/rezonia/ledger-bridge/internal/model"
	"github.com/rezonia/ledger-bridge/internal/money"
)

const (
	minAccount      = 1000
	maxAccount      = 9999
	maxReasonLength = 200

	// Version tag prefixing every idempotency key so the derivation can
	// evolve without colliding with previously issued keys.
	keyVersion = "v1"
)

var voucherSeriesPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,6}$`)

// RawRequest is the unvalidated wire shape of a corrective-posting request.
// Numeric fields are float64 so malformed payloads fail validation instead of
// JSON decoding.
type RawRequest struct {
	InvoiceType   string        `json:"invoiceType"`
	InvoiceID     float64       `json:"invoiceId"`
	Correction    RawCorrection `json:"correction"`
	SourceContext string        `json:"sourceContext"`
	AIDecisionID  string        `json:"aiDecisionId"`
}

// RawCorrection is the unvalidated correction block.
type RawCorrection struct {
	Side            string  `json:"side"`
	FromAccount     float64 `json:"fromAccount"`
	ToAccount       float64 `json:"toAccount"`
	Amount          float64 `json:"amount"`
	VoucherSeries   string  `json:"voucherSeries"`
	TransactionDate string  `json:"transactionDate"`
	Reason          string  `json:"reason"`
}

// Normalize validates a raw payload field by field, in a fixed order so error
// messages are deterministic, and returns the immutable request with its
// idempotency key stamped.
func Normalize(raw RawRequest) (*model.PostingCorrectionRequest, error) {
	if raw.InvoiceType != string(model.InvoiceTypeCustomer) {
		return nil, model.NewValidationError("invoiceType", "only customer invoice corrections are supported")
	}

	if raw.InvoiceID <= 0 || raw.InvoiceID != math.Trunc(raw.InvoiceID) {
		return nil, model.NewValidationError("invoiceId", "must be a positive integer")
	}
	invoiceID := int(raw.InvoiceID)

	side := model.CorrectionSide(strings.ToLower(strings.TrimSpace(raw.Correction.Side)))
	if side != model.SideDebit && side != model.SideCredit {
		return nil, model.NewValidationError("correction.side", "must be debit or credit")
	}

	fromAccount, err := parseAccount(raw.Correction.FromAccount)
	if err != nil {
		return nil, model.NewValidationError("correction.fromAccount", err.Error())
	}
	toAccount, err := parseAccount(raw.Correction.ToAccount)
	if err != nil {
		return nil, model.NewValidationError("correction.toAccount", err.Error())
	}
	if fromAccount == toAccount {
		return nil, model.NewValidationError("correction.toAccount", "must differ from fromAccount")
	}

	if !money.IsFinite(raw.Correction.Amount) || raw.Correction.Amount <= 0 {
		return nil, model.NewValidationError("correction.amount", "must be a finite number greater than zero")
	}
	amount := money.RoundFloat2(raw.Correction.Amount)

	series := strings.TrimSpace(raw.Correction.VoucherSeries)
	if !voucherSeriesPattern.MatchString(series) {
		return nil, model.NewValidationError("correction.voucherSeries", "must be 1-6 alphanumeric characters")
	}
	series = strings.ToUpper(series)

	date := strings.TrimSpace(raw.Correction.TransactionDate)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, model.NewValidationError("correction.transactionDate", "must be a valid YYYY-MM-DD date")
	}

	reason := strings.TrimSpace(raw.Correction.Reason)
	if reason == "" {
		reason = fmt.Sprintf("Correction of invoice %d", invoiceID)
	}
	if len(reason) > maxReasonLength {
		reason = reason[:maxReasonLength]
	}

	req := &model.PostingCorrectionRequest{
		InvoiceType: model.InvoiceTypeCustomer,
		InvoiceID:   invoiceID,
		Correction: model.Correction{
			Side:            side,
			FromAccount:     fromAccount,
			ToAccount:       toAccount,
			Amount:          amount,
			VoucherSeries:   series,
			TransactionDate: date,
			Reason:          reason,
		},
		SourceContext: strings.TrimSpace(raw.SourceContext),
		AIDecisionID:  strings.TrimSpace(raw.AIDecisionID),
	}
	req.IdempotencyKey = IdempotencyKey(req)
	return req, nil
}

func parseAccount(v float64) (int, error) {
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("must be a 4-digit account code")
	}
	account := int(v)
	if account < minAccount || account > maxAccount {
		return 0, fmt.Errorf("must be a 4-digit account code between %d and %d", minAccount, maxAccount)
	}
	return account, nil
}

// IdempotencyKey derives the deterministic key for a validated request.
// Structurally equal corrections always produce the same key, so the caller
// can guarantee at-most-once application by persisting it.
func IdempotencyKey(req *model.PostingCorrectionRequest) string {
	return fmt.Sprintf("%s:%s:%d:%s:%d:%d:%.2f:%s:%s",
		keyVersion,
		req.InvoiceType,
		req.InvoiceID,
		req.Correction.Side,
		req.Correction.FromAccount,
		req.Correction.ToAccount,
		req.Correction.Amount,
		req.Correction.VoucherSeries,
		req.Correction.TransactionDate,
	)
}

// BuildVoucher emits the balanced two-row corrective voucher. On the debit
// side the amount moves into toAccount; on the credit side the roles invert.
func BuildVoucher(req *model.PostingCorrectionRequest) model.Voucher {
	amount := req.Correction.Amount
	debitAccount := req.Correction.ToAccount
	creditAccount := req.Correction.FromAccount
	if req.Correction.Side == model.SideCredit {
		debitAccount, creditAccount = creditAccount, debitAccount
	}

	return model.Voucher{
		Series:          req.Correction.VoucherSeries,
		TransactionDate: req.Correction.TransactionDate,
		Description:     req.Correction.Reason,
		Rows: []model.VoucherRow{
			{Account: debitAccount, Debit: amount, Credit: 0},
			{Account: creditAccount, Debit: 0, Credit: amount},
		},
		Reference: model.VoucherReference{
			Type:   model.ReferenceTypeInvoice,
			Number: fmt.Sprintf("%d", req.InvoiceID),
		},
	}
}
