package ledgerlib

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rezonia/ledger-bridge/internal/correction"
	"github.com/rezonia/ledger-bridge/internal/credentials"
	"github.com/rezonia/ledger-bridge/internal/fortnox"
	"github.com/rezonia/ledger-bridge/internal/kvstore"
	"github.com/rezonia/ledger-bridge/internal/vat"
)

// Options configures a Bridge
type Options struct {
	// OAuth client configuration
	ClientID     string
	ClientSecret string
	TokenURL     string // default: provider token endpoint

	// API configuration
	BaseURL string // default: provider API base URL
	Subject string
	Scope   string

	// Storage. Both default to in-memory implementations; supply
	// persistent ones for anything beyond a single process.
	Credentials credentials.Store
	Keys        kvstore.Store

	Log *logrus.Entry
}

// Bridge is the high-level entry point combining the token lifecycle, the
// API pipeline, VAT reconciliation, and posting corrections.
type Bridge struct {
	subject     string
	scope       string
	tokens      *credentials.Manager
	ledger      *fortnox.Client
	reports     *vat.Engine
	corrections *correction.Applier
}

// NewBridge creates a new bridge with the given options
func NewBridge(opts Options) *Bridge {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	store := opts.Credentials
	if store == nil {
		store = credentials.NewMemoryStore()
	}
	keys := opts.Keys
	if keys == nil {
		keys = kvstore.NewMemoryStore()
	}

	oauth := credentials.NewOAuthClient(credentials.OAuthConfig{
		TokenURL:     opts.TokenURL,
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
	})
	tokens := credentials.NewManager(store, oauth, log)

	ledger := fortnox.NewClient(fortnox.Config{
		BaseURL: opts.BaseURL,
		Subject: opts.Subject,
		Scope:   opts.Scope,
		Tokens:  tokens,
		Log:     log,
	})

	return &Bridge{
		subject:     opts.Subject,
		scope:       opts.Scope,
		tokens:      tokens,
		ledger:      ledger,
		reports:     vat.NewEngine(ledger, log),
		corrections: correction.NewApplier(ledger, keys, log),
	}
}

// Connect exchanges an authorization code and stores the resulting tokens.
func (b *Bridge) Connect(ctx context.Context, code, redirectURI string) error {
	return b.tokens.Connect(ctx, b.subject, b.scope, code, redirectURI)
}

// Disconnect removes the stored credentials.
func (b *Bridge) Disconnect(ctx context.Context) error {
	return b.tokens.Disconnect(ctx, b.subject, b.scope)
}

// Ledger exposes the underlying API client.
func (b *Bridge) Ledger() *fortnox.Client {
	return b.ledger
}

// GenerateVATReport reconciles VAT for the fiscal year containing anchorDate.
func (b *Bridge) GenerateVATReport(ctx context.Context, anchorDate string) (*VATReport, error) {
	return b.reports.GenerateReport(ctx, anchorDate)
}

// ApplyCorrection validates and applies a posting correction exactly once.
func (b *Bridge) ApplyCorrection(ctx context.Context, raw CorrectionRequest) (*CorrectionResult, error) {
	req, err := correction.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return b.corrections.Apply(ctx, req)
}
