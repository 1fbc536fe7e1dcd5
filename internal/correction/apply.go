package correction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rezonia/ledger-bridge/internal/fortnox"
	"github.com/rezonia/ledger-bridge/internal/kvstore"
	"github.com/rezonia/ledger-bridge/internal/model"
)

const (
	pendingMarker = "PENDING"
	// Keys outlive any realistic duplicate-submission window.
	keyTTL = 90 * 24 * time.Hour
)

// ErrCorrectionInProgress is returned when an identical correction is being
// applied by a concurrent caller.
var ErrCorrectionInProgress = errors.New("correction: identical correction in progress")

// VoucherCreator is the pipeline surface the applier needs.
type VoucherCreator interface {
	CreateVoucher(ctx context.Context, voucher fortnox.Voucher) (*fortnox.Voucher, error)
}

// ApplyResult describes the outcome of applying a correction.
type ApplyResult struct {
	Voucher        model.Voucher `json:"voucher"`
	VoucherRef     string        `json:"voucherRef"`
	IdempotencyKey string        `json:"idempotencyKey"`
	AlreadyApplied bool          `json:"alreadyApplied"`
}

// Applier applies validated corrections at most once, keyed by the
// deterministic idempotency key persisted in the KV collaborator.
type Applier struct {
	ledger VoucherCreator
	keys   kvstore.Store
	log    *logrus.Entry
}

// NewApplier creates a correction applier
func NewApplier(ledger VoucherCreator, keys kvstore.Store, log *logrus.Entry) *Applier {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Applier{ledger: ledger, keys: keys, log: log}
}

// Apply builds the corrective voucher and exports it, guaranteeing
// at-most-once application per idempotency key. A repeated logical correction
// returns the originally exported voucher reference.
func (a *Applier) Apply(ctx context.Context, req *model.PostingCorrectionRequest) (*ApplyResult, error) {
	key := req.IdempotencyKey
	claimed, err := a.keys.SetNX(ctx, key, pendingMarker, keyTTL)
	if err != nil {
		return nil, err
	}
	if !claimed {
		existing, getErr := a.keys.Get(ctx, key)
		if getErr != nil && !errors.Is(getErr, kvstore.ErrNotFound) {
			return nil, getErr
		}
		if existing == pendingMarker {
			return nil, ErrCorrectionInProgress
		}
		return &ApplyResult{
			Voucher:        BuildVoucher(req),
			VoucherRef:     existing,
			IdempotencyKey: key,
			AlreadyApplied: true,
		}, nil
	}

	voucher := BuildVoucher(req)
	rows := make([]fortnox.VoucherRow, 0, len(voucher.Rows))
	for _, row := range voucher.Rows {
		rows = append(rows, fortnox.VoucherRow{
			Account: row.Account,
			Debit:   row.Debit,
			Credit:  row.Credit,
		})
	}
	exported, err := a.ledger.CreateVoucher(ctx, fortnox.Voucher{
		VoucherSeries:   voucher.Series,
		TransactionDate: voucher.TransactionDate,
		Description:     voucher.Description,
		VoucherRows:     rows,
		ReferenceType:   voucher.Reference.Type,
		ReferenceNumber: voucher.Reference.Number,
	})
	if err != nil {
		// Release the claim so the caller can retry once the transient
		// condition clears.
		if delErr := a.keys.Delete(ctx, key); delErr != nil {
			a.log.WithField("key", key).WithError(delErr).Warn("failed to release idempotency claim")
		}
		return nil, err
	}

	ref := fmt.Sprintf("%s-%d", exported.VoucherSeries, exported.VoucherNumber)
	if err := a.keys.Set(ctx, key, ref, keyTTL); err != nil {
		a.log.WithField("key", key).WithError(err).Warn("failed to record voucher under idempotency key")
	}
	a.log.WithFields(logrus.Fields{
		"invoice_id": req.InvoiceID,
		"voucher":    ref,
	}).Info("posting correction applied")

	return &ApplyResult{
		Voucher:        voucher,
		VoucherRef:     ref,
		IdempotencyKey: key,
		AlreadyApplied: false,
	}, nil
}
