package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rezonia/ledger-bridge/internal/audit"
	"github.com/rezonia/ledger-bridge/internal/correction"
	"github.com/rezonia/ledger-bridge/internal/fortnox"
	"github.com/rezonia/ledger-bridge/internal/model"
	"github.com/rezonia/ledger-bridge/internal/vat"
)

// Ledger is the slice of the API client the server dispatches to.
type Ledger interface {
	ListInvoices(ctx context.Context, opts fortnox.ListOptions) ([]fortnox.Invoice, fortnox.MetaInformation, error)
	CreateInvoice(ctx context.Context, invoice fortnox.CreateInvoice) (*fortnox.InvoiceDetail, error)
	CreateInvoicePayment(ctx context.Context, payment fortnox.InvoicePayment) (*fortnox.InvoicePayment, error)
	BookkeepInvoicePayment(ctx context.Context, number string) error
	ListSupplierInvoices(ctx context.Context, opts fortnox.ListOptions) ([]fortnox.SupplierInvoice, fortnox.MetaInformation, error)
	CreateSupplierInvoicePayment(ctx context.Context, payment fortnox.SupplierInvoicePayment) (*fortnox.SupplierInvoicePayment, error)
	BookkeepSupplierInvoicePayment(ctx context.Context, number string) error
	CreateSupplier(ctx context.Context, supplier fortnox.Supplier) (*fortnox.Supplier, error)
	FindOrCreateSupplier(ctx context.Context, supplier fortnox.Supplier) (*fortnox.Supplier, bool, error)
	CreateVoucher(ctx context.Context, voucher fortnox.Voucher) (*fortnox.Voucher, error)
}

// ReportGenerator produces the VAT reconciliation report.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, anchorDate string) (*vat.Report, error)
}

// CorrectionApplier applies validated posting corrections at most once.
type CorrectionApplier interface {
	Apply(ctx context.Context, req *model.PostingCorrectionRequest) (*correction.ApplyResult, error)
}

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config      *Config
	router      *gin.Engine
	ledger      Ledger
	reports     ReportGenerator
	corrections CorrectionApplier
	audits      audit.Logger
	log         *logrus.Entry
}

// NewServer creates a new API server
func NewServer(config *Config, ledger Ledger, reports ReportGenerator, corrections CorrectionApplier, audits audit.Logger, log *logrus.Entry) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:      config,
		router:      router,
		ledger:      ledger,
		reports:     reports,
		corrections: corrections,
		audits:      audits,
		log:         log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/actions", s.handleAction)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": "validation"})
		return
	}
	if req.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required", "code": "validation"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	result, err := s.dispatch(ctx, req.Action, req.Payload)
	if err != nil {
		s.writeError(c, req.Action, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) dispatch(ctx context.Context, action string, payload json.RawMessage) (interface{}, error) {
	switch action {
	case "getInvoices":
		var p ListPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		items, meta, err := s.ledger.ListInvoices(ctx, p.options())
		if err != nil {
			return nil, err
		}
		return ListResponse{Items: items, Meta: meta}, nil

	case "createInvoice":
		var p fortnox.CreateInvoice
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if p.CustomerNumber == "" {
			return nil, &model.ValidationError{Field: "customerNumber", Message: "customerNumber is required"}
		}
		return s.ledger.CreateInvoice(ctx, p)

	case "registerInvoicePayment":
		var p PaymentPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		payment, err := s.ledger.CreateInvoicePayment(ctx, fortnox.InvoicePayment{
			InvoiceNumber: p.InvoiceNumber,
			Amount:        p.Amount,
			PaymentDate:   p.PaymentDate,
			ModeOfPayment: p.ModeOfPayment,
		})
		if err != nil {
			return nil, err
		}
		if p.Bookkeep {
			if err := s.ledger.BookkeepInvoicePayment(ctx, payment.Number); err != nil {
				return nil, err
			}
		}
		return payment, nil

	case "getSupplierInvoices":
		var p ListPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		items, meta, err := s.ledger.ListSupplierInvoices(ctx, p.options())
		if err != nil {
			return nil, err
		}
		return ListResponse{Items: items, Meta: meta}, nil

	case "exportSupplierInvoice":
		var p SupplierPaymentPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return s.exportSupplierInvoice(ctx, p)

	case "createSupplier":
		var p fortnox.Supplier
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, &model.ValidationError{Field: "name", Message: "name is required"}
		}
		return s.ledger.CreateSupplier(ctx, p)

	case "findOrCreateSupplier":
		var p fortnox.Supplier
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, &model.ValidationError{Field: "name", Message: "name is required"}
		}
		supplier, created, err := s.ledger.FindOrCreateSupplier(ctx, p)
		if err != nil {
			return nil, err
		}
		return SupplierResponse{Supplier: supplier, Created: created}, nil

	case "exportVoucher":
		var p fortnox.Voucher
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if len(p.VoucherRows) == 0 {
			return nil, &model.ValidationError{Field: "voucherRows", Message: "at least one voucher row is required"}
		}
		return s.exportVoucher(ctx, p)

	case "getVATReport":
		var p VATReportPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return s.reports.GenerateReport(ctx, p.Date)

	case "applyPostingCorrection":
		var p correction.RawRequest
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		req, err := correction.Normalize(p)
		if err != nil {
			return nil, err
		}
		return s.corrections.Apply(ctx, req)

	default:
		return nil, &model.ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", action)}
	}
}

func (s *Server) exportVoucher(ctx context.Context, voucher fortnox.Voucher) (*fortnox.Voucher, error) {
	auditID, err := s.audits.Start(ctx, "voucher_export", voucher.Description)
	if err != nil {
		s.log.WithError(err).Warn("failed to open audit record")
	}
	exported, err := s.ledger.CreateVoucher(ctx, voucher)
	if err != nil {
		s.failAudit(ctx, auditID, err)
		return nil, err
	}
	s.completeAudit(ctx, auditID, fmt.Sprintf("%s-%d", exported.VoucherSeries, exported.VoucherNumber))
	return exported, nil
}

func (s *Server) exportSupplierInvoice(ctx context.Context, p SupplierPaymentPayload) (*fortnox.SupplierInvoicePayment, error) {
	auditID, err := s.audits.Start(ctx, "supplier_invoice_export", p.InvoiceNumber)
	if err != nil {
		s.log.WithError(err).Warn("failed to open audit record")
	}
	payment, err := s.ledger.CreateSupplierInvoicePayment(ctx, fortnox.SupplierInvoicePayment{
		InvoiceNumber: p.InvoiceNumber,
		Amount:        p.Amount,
		PaymentDate:   p.PaymentDate,
	})
	if err != nil {
		s.failAudit(ctx, auditID, err)
		return nil, err
	}
	if p.Bookkeep {
		if err := s.ledger.BookkeepSupplierInvoicePayment(ctx, payment.Number); err != nil {
			s.failAudit(ctx, auditID, err)
			return nil, err
		}
	}
	s.completeAudit(ctx, auditID, payment.Number)
	return payment, nil
}

func (s *Server) failAudit(ctx context.Context, id string, cause error) {
	if id == "" {
		return
	}
	if err := s.audits.Fail(ctx, id, cause.Error()); err != nil {
		s.log.WithError(err).Warn("failed to close audit record")
	}
}

func (s *Server) completeAudit(ctx context.Context, id, detail string) {
	if id == "" {
		return
	}
	if err := s.audits.Complete(ctx, id, detail); err != nil {
		s.log.WithError(err).Warn("failed to close audit record")
	}
}

func (s *Server) writeError(c *gin.Context, action string, err error) {
	s.log.WithFields(logrus.Fields{"action": action}).WithError(err).Warn("action failed")

	var validation *model.ValidationError
	var apiErr *model.APIError
	switch {
	case errors.Is(err, model.ErrReauthRequired), errors.Is(err, model.ErrCredentialsNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "reauth_required"})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "code": "validation"})
	case errors.Is(err, correction.ErrCorrectionInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "in_progress"})
	case errors.As(err, &apiErr) && apiErr.Kind == model.KindRateLimited:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "code": "rate_limited"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "internal"})
	}
}

func decodePayload(payload json.RawMessage, out interface{}) error {
	if len(payload) == 0 {
		return &model.ValidationError{Field: "payload", Message: "payload is required"}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &model.ValidationError{Field: "payload", Message: "invalid payload: " + err.Error()}
	}
	return nil
}
