// ABOUTME: Google Ads REST client authenticated with an OAuth2 refresh token
// ABOUTME: Adds developer-token headers, retries transient failures, and classifies API errors
package ads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"

	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/errs"
	"github.com/harperreed/leadsync/retry"
)

const (
	// Scope is the OAuth scope required by the Google Ads API.
	Scope = "https://www.googleapis.com/auth/adwords"

	// RedirectURL is where the local auth flow listens for the callback.
	RedirectURL = "http://localhost:8080/oauth/callback"

	defaultBaseURL    = "https://googleads.googleapis.com"
	defaultAPIVersion = "v21"
)

const refreshRemedy = "run `leadsync auth` to mint a new LEADSYNC_ADS_REFRESH_TOKEN and check LEADSYNC_ADS_CLIENT_ID/SECRET"

// OAuthConfig builds the OAuth2 config for the Google Ads scope.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  RedirectURL,
		Scopes:       []string{Scope},
		Endpoint:     google.Endpoint,
	}
}

// Client calls the Google Ads REST API for a single customer account.
type Client struct {
	endpoint        string
	customerID      string
	loginCustomerID string
	developerToken  string
	http            *http.Client
	retry           retry.Policy
	logger          *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the OAuth transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the retry policy applied to every API call.
func WithRetry(p retry.Policy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client whose access tokens are refreshed from cfg.RefreshToken.
func NewClient(ctx context.Context, cfg config.AdsConfig, opts ...Option) (*Client, error) {
	if cfg.CustomerID == "" {
		return nil, errs.Config("ads client", "set LEADSYNC_ADS_CUSTOMER_ID", "customer id is empty")
	}
	if cfg.DeveloperToken == "" {
		return nil, errs.Config("ads client", "set LEADSYNC_ADS_DEVELOPER_TOKEN", "developer token is empty")
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}

	oauthConfig := OAuthConfig(cfg.ClientID, cfg.ClientSecret)
	ts := oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = 60 * time.Second

	c := &Client{
		endpoint:        base + "/" + version,
		customerID:      cfg.CustomerID,
		loginCustomerID: cfg.LoginCustomerID,
		developerToken:  cfg.DeveloperToken,
		http:            hc,
		retry:           retry.DefaultPolicy(),
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CustomerID returns the account the client operates on.
func (c *Client) CustomerID() string {
	return c.customerID
}

// customerPath joins the customer resource with a method suffix such as
// "/googleAds:search" or ":uploadClickConversions".
func (c *Client) customerPath(suffix string) string {
	return "customers/" + c.customerID + suffix
}

// post sends body as JSON to path (relative to the versioned endpoint) and
// decodes the response into out when out is non-nil.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	op := "POST " + methodName(path)
	url := c.endpoint + "/" + strings.TrimLeft(path, "/")

	return retry.Do(ctx, c.retry, c.logger, op, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(errs.Transport(op, err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("developer-token", c.developerToken)
		if c.loginCustomerID != "" {
			req.Header.Set("login-customer-id", c.loginCustomerID)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return classifyTransport(ctx, op, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := googleapi.CheckResponse(resp); err != nil {
			return classifyAPIError(op, err)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(errs.Transport(op, fmt.Errorf("failed to decode response: %w", err)))
		}
		return nil
	})
}

func classifyTransport(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return retry.Permanent(errs.Transport(op, ctx.Err()))
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return errs.Auth(op, fmt.Errorf("token refresh failed: %w", err), refreshRemedy)
	}
	return errs.Transport(op, err)
}

func classifyAPIError(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return errs.Transport(op, err)
	}

	switch {
	case gerr.Code == http.StatusUnauthorized:
		return errs.Auth(op, gerr, refreshRemedy)
	case gerr.Code == http.StatusForbidden:
		return errs.Auth(op, gerr,
			"check LEADSYNC_ADS_DEVELOPER_TOKEN access level and that LEADSYNC_ADS_LOGIN_CUSTOMER_ID manages LEADSYNC_ADS_CUSTOMER_ID")
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		return errs.Transport(op, gerr)
	default:
		return retry.Permanent(errs.Transport(op, gerr))
	}
}

// methodName trims account ids out of a path so logs name the call, not the resource.
func methodName(path string) string {
	if i := strings.LastIndexAny(path, "/:"); i >= 0 && path[i] == ':' {
		return path[i+1:]
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
