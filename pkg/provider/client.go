package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/tkariuki-dev/sokohub-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://payments.sokohub.africa/v1"
	requestBodyReadLimit int64 = 1024
)

var errAPIKeyRequired = errors.New("payment provider api key is required")

// Client wraps the upstream payment provider's collection API. The provider
// reports statuses in its own vocabulary; callers are expected to run the
// raw status strings through the payments status mapper.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured provider base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout overrides the default HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds the provider client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// ChargeRequest describes a collection request pushed to the provider.
type ChargeRequest struct {
	InvoiceID    string `json:"invoice_id"`
	AmountCents  int    `json:"amount_cents"`
	Currency     string `json:"currency"`
	Method       string `json:"method"`
	PayerContact string `json:"payer_contact,omitempty"`
	PayerEmail   string `json:"payer_email,omitempty"`
	Narrative    string `json:"narrative,omitempty"`
}

// ChargeResponse carries the provider's acknowledgment of a collection request.
type ChargeResponse struct {
	APIRef    string `json:"api_ref"`
	RawStatus string `json:"state"`
}

// StatusResponse is the provider's view of a payment, verbatim. RawStatus is
// whatever string the provider chose; TxRef is set once money actually moved.
type StatusResponse struct {
	InvoiceID     string `json:"invoice_id"`
	RawStatus     string `json:"state"`
	TxRef         string `json:"mpesa_reference,omitempty"`
	FailedReason  string `json:"failed_reason,omitempty"`
	FailedCode    string `json:"failed_code,omitempty"`
	UpdatedAtUnix int64  `json:"updated_at,omitempty"`
}

// InitiateCharge asks the provider to start collecting the payment.
func (c *Client) InitiateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment provider client not configured")
	}
	if strings.TrimSpace(req.InvoiceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal charge request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("collections/charge"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build charge request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute charge request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "charge request failed")
	}

	var out ChargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode charge response")
	}
	return &out, nil
}

// PollStatus fetches the provider's current view of an invoice.
func (c *Client) PollStatus(ctx context.Context, invoiceID string) (*StatusResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment provider client not configured")
	}
	trimmed := strings.TrimSpace(invoiceID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}

	endpoint := fmt.Sprintf("%s/collections/%s/status", strings.TrimRight(c.baseURL, "/"), url.PathEscape(trimmed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build status request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute status request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "status request failed")
	}

	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode status response")
	}
	return &out, nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}
