// ABOUTME: HTTP client for the CRM contacts and deals endpoints
// ABOUTME: Bearer-authenticated GETs with retry, error classification, and JSON decoding
package crm

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

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/harperreed/leadsync/errs"
	"github.com/harperreed/leadsync/retry"
)

const (
	// DefaultPageSize is used when a query does not set one.
	DefaultPageSize = 100
	// DefaultCeiling caps how many records a single fetch may return.
	DefaultCeiling = 10000

	maxErrorBody = 4 << 10
)

// Client talks to the CRM REST API.
type Client struct {
	baseURL string
	http    *http.Client
	retry   retry.Policy
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the authenticated transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the retry policy for every page request.
func WithRetry(p retry.Policy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a CRM client authenticating with a static bearer API key.
func NewClient(ctx context.Context, baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errs.Config("crm client", "set LEADSYNC_CRM_BASE_URL", "base URL is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errs.Config("crm client", "set LEADSYNC_CRM_BASE_URL to a valid URL", "invalid base URL: %v", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = 30 * time.Second

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		retry:   retry.DefaultPolicy(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// get fetches resource with params and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, resource string, params url.Values, out any) error {
	endpoint := c.baseURL + "/" + strings.TrimLeft(resource, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	op := "GET /" + strings.TrimLeft(resource, "/")

	return retry.Do(ctx, c.retry, c.logger, op, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(errs.Transport(op, err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(errs.Transport(op, ctx.Err()))
			}
			return errs.Transport(op, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := classifyStatus(op, resp); err != nil {
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(errs.Transport(op, fmt.Errorf("failed to decode response: %w", err)))
		}
		return nil
	})
}

func classifyStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.Auth(op, cause, "check LEADSYNC_CRM_API_KEY; the CRM rejected the credentials")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return errs.Transport(op, cause)
	default:
		return retry.Permanent(errs.Transport(op, cause))
	}
}

// flexID accepts ids encoded as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// flexString accepts any JSON scalar and keeps its text form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*f = ""
	case string:
		*f = flexString(val)
	case json.Number:
		*f = flexString(val.String())
	case bool:
		*f = flexString(fmt.Sprint(val))
	default:
		// nested objects and arrays are not identity fields
		*f = ""
	}
	return nil
}

var errBadTime = errors.New("unrecognized timestamp")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errBadTime, s)
}
