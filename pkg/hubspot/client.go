// Package hubspot provides a client for the HubSpot CRM v3 contacts API.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/callsync/internal/resilience"
)

const (
	defaultBaseURL       = "https://api.hubapi.com"
	defaultPhoneProperty = "phone"
	contactsPath         = "/crm/v3/objects/contacts"
)

// Properties is a set of contact property values keyed by internal name.
type Properties map[string]string

// Contact is a contact returned by search.
type Contact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Client defines the CRM operations used by the sync engine.
type Client interface {
	// SearchByPhone returns the best contact whose phone property contains
	// the given digits as a token, or nil when nothing matches.
	SearchByPhone(ctx context.Context, phone string) (*Contact, error)
	// CreateContact creates a contact and returns its id.
	CreateContact(ctx context.Context, props Properties) (string, error)
	// UpdateContact merges props into an existing contact.
	UpdateContact(ctx context.Context, id string, props Properties) error
}

// APIError is an application-level rejection from HubSpot.
type APIError struct {
	StatusCode    int    `json:"-"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	Category      string `json:"category"`
	CorrelationID string `json:"correlationId"`
}

func (e *APIError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("hubspot: status %d %s: %s", e.StatusCode, e.Category, e.Message)
	}
	return fmt.Sprintf("hubspot: status %d: %s", e.StatusCode, e.Message)
}

// Option configures the HubSpot client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second across all operations.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry sets the retry policy for searches. Writes are never retried.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithPhoneProperty sets the property searched by SearchByPhone.
func WithPhoneProperty(name string) Option {
	return func(c *httpClient) {
		if name != "" {
			c.phoneProperty = name
		}
	}
}

// WithCircuitBreaker routes every request through cb. Only transient
// failures count toward opening it.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

type httpClient struct {
	token         string
	baseURL       string
	phoneProperty string
	limiter       *rate.Limiter
	breaker       *resilience.CircuitBreaker
	retry         resilience.RetryConfig
	http          *http.Client
}

// NewClient creates a HubSpot client authenticated with a private app token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:         token,
		baseURL:       defaultBaseURL,
		phoneProperty: defaultPhoneProperty,
		retry:         resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("hubspot", "search")
	}
	return c
}

type searchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type filterGroup struct {
	Filters []searchFilter `json:"filters"`
}

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties,omitempty"`
	Limit        int           `json:"limit"`
}

type searchResponse struct {
	Total   int       `json:"total"`
	Results []Contact `json:"results"`
}

func (c *httpClient) SearchByPhone(ctx context.Context, phone string) (*Contact, error) {
	if phone == "" {
		return nil, eris.New("hubspot: phone is required")
	}

	req := searchRequest{
		FilterGroups: []filterGroup{{Filters: []searchFilter{{
			PropertyName: c.phoneProperty,
			Operator:     "CONTAINS_TOKEN",
			Value:        phone,
		}}}},
		Properties: []string{c.phoneProperty, "firstname"},
		Limit:      1,
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Contact, error) {
		var resp searchResponse
		if err := c.do(ctx, http.MethodPost, contactsPath+"/search", req, &resp); err != nil {
			return nil, eris.Wrap(err, "hubspot: search contacts")
		}
		if resp.Total == 0 || len(resp.Results) == 0 {
			return nil, nil
		}
		return &resp.Results[0], nil
	})
}

func (c *httpClient) CreateContact(ctx context.Context, props Properties) (string, error) {
	if len(props) == 0 {
		return "", eris.New("hubspot: no properties to create")
	}
	var resp Contact
	body := map[string]any{"properties": props}
	if err := c.do(ctx, http.MethodPost, contactsPath, body, &resp); err != nil {
		return "", eris.Wrap(err, "hubspot: create contact")
	}
	if resp.ID == "" {
		return "", eris.New("hubspot: create contact returned no id")
	}
	return resp.ID, nil
}

func (c *httpClient) UpdateContact(ctx context.Context, id string, props Properties) error {
	if id == "" {
		return eris.New("hubspot: contact id is required")
	}
	if len(props) == 0 {
		return eris.New("hubspot: no properties to update")
	}
	body := map[string]any{"properties": props}
	if err := c.do(ctx, http.MethodPatch, contactsPath+"/"+url.PathEscape(id), body, nil); err != nil {
		return eris.Wrapf(err, "hubspot: update contact %s", id)
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	if c.breaker == nil {
		return c.exchange(ctx, method, path, in, out)
	}
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.exchange(ctx, method, path, in, out)
	})
}

func (c *httpClient) exchange(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = string(body)
		}
		return resilience.MarkStatus(apiErr, resp.StatusCode)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
