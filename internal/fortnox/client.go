package fortnox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rezonia/ledger-bridge/internal/model"
	"github.com/rezonia/ledger-bridge/internal/ratelimit"
	"github.com/rezonia/ledger-bridge/internal/retry"
)

const (
	DefaultBaseURL = "https://api.fortnox.se/3"

	requestTimeout       = 30 * time.Second
	maxResponseBodyBytes = 4 << 20

	defaultPageLimit = 100
	maxPageLimit     = 500
	// Hard guard against a remote that keeps reporting more pages.
	maxPageIterations = 1000
)

// HTTPDoer is the minimal http client surface the pipeline needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies a valid bearer token for each attempt. Tokens are
// re-acquired on every retry in case a refresh happened during backoff.
type TokenSource interface {
	AccessToken(ctx context.Context, subject, scope string) (string, error)
}

// Config configures a Client
type Config struct {
	BaseURL    string
	Subject    string
	Scope      string
	Tokens     TokenSource
	Limiter    *ratelimit.Limiter
	Policy     *retry.Policy
	HTTPClient HTTPDoer
	Log        *logrus.Entry
}

// Client is the authenticated, rate-limited, retrying request pipeline for
// the ledger API. It is bound to one (subject, scope) pair.
type Client struct {
	baseURL string
	subject string
	scope   string
	tokens  TokenSource
	limiter *ratelimit.Limiter
	policy  retry.Policy
	http    HTTPDoer
	log     *logrus.Entry
}

// NewClient creates a new ledger API client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewLimiter(ratelimit.DefaultMaxCalls, ratelimit.DefaultWindow)
	}
	policy := retry.DefaultPolicy(Classify)
	if cfg.Policy != nil {
		policy = *cfg.Policy
		if policy.Classify == nil {
			policy.Classify = Classify
		}
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		baseURL: cfg.BaseURL,
		subject: cfg.Subject,
		scope:   cfg.Scope,
		tokens:  cfg.Tokens,
		limiter: cfg.Limiter,
		policy:  policy,
		http:    cfg.HTTPClient,
		log:     log,
	}
}

// request issues one authenticated call through the full pipeline: rate
// limiter gate, fresh bearer token, hard timeout, classified error, retry on
// transient failure classes. Mutating methods are only retried when the
// caller supplies an idempotency key, so callers pass retryable=false for
// non-idempotent creates.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, out interface{}, retryable bool) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = encoded
	}

	op := func(ctx context.Context) error {
		return c.attempt(ctx, method, path, query, payload, out)
	}
	if !retryable {
		return op(ctx)
	}
	return retry.Do(ctx, c.policy, op)
}

func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, payload []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := c.tokens.AccessToken(ctx, c.subject, c.scope)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return model.NewAPIError(model.KindTimeout, 0, fmt.Sprintf("%s %s timed out", method, path), err)
		}
		return model.NewAPIError(model.KindUnknown, 0, fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return model.NewAPIError(model.KindUnknown, resp.StatusCode, "read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := model.NewAPIError(ClassifyStatus(resp.StatusCode), resp.StatusCode, fmt.Sprintf("%s %s", method, path), nil)
		apiErr.Body = string(raw)
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"kind":   apiErr.Kind,
		}).Warn("ledger api call failed")
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return model.NewAPIError(model.KindUnknown, resp.StatusCode, "decode response body", err)
		}
	}
	return nil
}

// PageOptions controls pagination for list endpoints.
type PageOptions struct {
	Page     int
	Limit    int
	AllPages bool
}

// PagedResult aggregates list items across pages in request order, together
// with the last page's metadata.
type PagedResult struct {
	Items []json.RawMessage
	Meta  MetaInformation
}

// requestPaginatedList drives page/limit pagination for a list endpoint.
// listKey names the top-level array in the response envelope. When AllPages
// is set it continues while the API-reported total-pages value exceeds the
// current page, falling back to a full-page heuristic when the remote omits
// the metadata.
func (c *Client) requestPaginatedList(ctx context.Context, path, listKey string, params url.Values, opts PageOptions) (PagedResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}

	var result PagedResult
	for iteration := 0; iteration < maxPageIterations; iteration++ {
		query := url.Values{}
		for key, values := range params {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(limit))

		var envelope map[string]json.RawMessage
		if err := c.request(ctx, http.MethodGet, path, query, nil, &envelope, true); err != nil {
			return PagedResult{}, err
		}

		var items []json.RawMessage
		if raw, ok := envelope[listKey]; ok {
			if err := json.Unmarshal(raw, &items); err != nil {
				return PagedResult{}, model.NewAPIError(model.KindUnknown, 0, fmt.Sprintf("decode %s list", listKey), err)
			}
		}
		result.Items = append(result.Items, items...)

		result.Meta = MetaInformation{CurrentPage: page}
		if raw, ok := envelope["MetaInformation"]; ok {
			if err := json.Unmarshal(raw, &result.Meta); err != nil {
				return PagedResult{}, model.NewAPIError(model.KindUnknown, 0, "decode meta information", err)
			}
		}

		if !opts.AllPages {
			return result, nil
		}
		hasMore := result.Meta.TotalPages > page
		if result.Meta.TotalPages == 0 {
			// Remote omitted total pages; assume more while pages come back
			// full-sized.
			hasMore = len(items) == limit
		}
		if !hasMore {
			return result, nil
		}
		page++
	}
	c.log.WithField("path", path).Warn("pagination guard tripped, returning partial list")
	return result, nil
}
