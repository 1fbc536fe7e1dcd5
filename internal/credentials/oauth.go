package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rezonia/ledger-bridge/internal/model"
)

// DefaultTokenURL is the ledger provider's token endpoint.
const DefaultTokenURL = "https://apps.fortnox.se/oauth-v1/token"

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20
)

// ErrInvalidGrant is returned when the remote rejects the refresh token.
// Under concurrency this usually means another caller already rotated it.
var ErrInvalidGrant = errors.New("oauth: invalid_grant")

// HTTPDoer is the minimal http client surface the exchanger needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSet is the result of a successful token or refresh exchange.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenExchanger talks to the remote OAuth endpoint.
type TokenExchanger interface {
	Exchange(ctx context.Context, code, redirectURI string) (TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (TokenSet, error)
}

// OAuthConfig configures the OAuth client
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   HTTPDoer
	Now          func() time.Time
}

// OAuthClient performs form-encoded grant requests with HTTP Basic client
// auth against the ledger API's token endpoint.
type OAuthClient struct {
	config     OAuthConfig
	httpClient HTTPDoer
}

// NewOAuthClient creates a new OAuth client
func NewOAuthClient(cfg OAuthConfig) *OAuthClient {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTokenRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OAuthClient{config: cfg, httpClient: httpClient}
}

func (c *OAuthClient) Exchange(ctx context.Context, code, redirectURI string) (TokenSet, error) {
	values := url.Values{}
	values.Set("grant_type", "authorization_code")
	values.Set("code", strings.TrimSpace(code))
	values.Set("redirect_uri", redirectURI)
	return c.grant(ctx, values)
}

func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", strings.TrimSpace(refreshToken))
	return c.grant(ctx, values)
}

func (c *OAuthClient) grant(ctx context.Context, values url.Values) (TokenSet, error) {
	if strings.TrimSpace(c.config.ClientID) == "" || strings.TrimSpace(c.config.ClientSecret) == "" {
		return TokenSet{}, fmt.Errorf("oauth: client id and client secret are required")
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		c.config.TokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return TokenSet{}, fmt.Errorf("oauth: build grant request: %w", err)
	}
	req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || requestCtx.Err() != nil {
			return TokenSet{}, fmt.Errorf("%w: %v", model.ErrRefreshTimeout, err)
		}
		return TokenSet{}, fmt.Errorf("oauth: grant request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBodyBytes))
	if err != nil {
		return TokenSet{}, fmt.Errorf("oauth: read grant response: %w", err)
	}

	var payload struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		ExpiresIn        int64  `json:"expires_in"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil && resp.StatusCode < 300 {
			return TokenSet{}, fmt.Errorf("oauth: decode grant response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || payload.Error != "" {
		if payload.Error == "invalid_grant" {
			return TokenSet{}, fmt.Errorf("%w: %s", ErrInvalidGrant, payload.ErrorDescription)
		}
		msg := payload.ErrorDescription
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return TokenSet{}, fmt.Errorf("oauth: grant rejected (status=%d): %s", resp.StatusCode, msg)
	}

	if payload.AccessToken == "" {
		return TokenSet{}, fmt.Errorf("oauth: grant response missing access token")
	}

	expiresAt := c.config.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return TokenSet{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

var _ TokenExchanger = (*OAuthClient)(nil)
