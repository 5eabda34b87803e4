// Package client is the typed HTTP client for the PopForge engine API. The
// embedded widget runtime and integration tooling both speak to the engine
// through it; HTTP statuses map back to typed engine error kinds.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/domain/popup"
)

// Client talks to one engine deployment on behalf of one shop.
type Client struct {
	baseURL    string
	shopDomain string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a client for the given engine base URL and shop domain.
func New(baseURL, shopDomain string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		shopDomain: shopDomain,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session is the session state as returned by the engine.
type Session struct {
	SessionToken string            `json:"sessionToken"`
	CurrentStep  int               `json:"currentStep"`
	TotalSteps   int               `json:"totalSteps"`
	Responses    map[string]string `json:"responses"`
	IsCompleted  bool              `json:"isCompleted"`
	Popup        *popup.Popup      `json:"popup,omitempty"`
	NextStep     *popup.Step       `json:"nextStep,omitempty"`
}

// Embed is the page-load bootstrap payload.
type Embed struct {
	Enabled bool         `json:"enabled"`
	Popup   *popup.Popup `json:"popup,omitempty"`
}

// Discount is an issued discount code with its reveal copy.
type Discount struct {
	DiscountCode string                 `json:"discountCode"`
	DiscountInfo *popup.DiscountContent `json:"discountInfo,omitempty"`
}

// Capture is the outcome of an email submission.
type Capture struct {
	ID           string `json:"id"`
	DiscountCode string `json:"discountCode,omitempty"`
	ProfileToken string `json:"profileToken,omitempty"`
}

// GetEmbed fetches the shop's active popup for page bootstrap.
func (c *Client) GetEmbed(ctx context.Context, pageURL string) (*Embed, error) {
	endpoint := fmt.Sprintf("%s/api/v1/popups/embed?shopDomain=%s&url=%s",
		c.baseURL, url.QueryEscape(c.shopDomain), url.QueryEscape(pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, engine.Internal("client.embed", err)
	}

	var out Embed
	if err := c.do(req, "client.embed", http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession starts a conversation against a popup.
func (c *Client) CreateSession(ctx context.Context, popupID, pageURL, userAgent string) (*Session, error) {
	body := map[string]any{
		"shopDomain": c.shopDomain,
		"popupId":    popupID,
		"pageUrl":    pageURL,
		"userAgent":  userAgent,
	}
	var out Session
	if err := c.post(ctx, "/api/v1/session/create", "client.session.create", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateSession resolves a stored token to live session state.
func (c *Client) ValidateSession(ctx context.Context, token string) (*Session, error) {
	body := map[string]any{
		"shopDomain":   c.shopDomain,
		"sessionToken": token,
	}
	var out Session
	if err := c.post(ctx, "/api/v1/session/validate", "client.session.validate", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress applies one action to the session.
func (c *Client) Progress(ctx context.Context, token string, action engine.Action, stepNumber int, stepResponse string) (*Session, error) {
	body := map[string]any{
		"shopDomain":   c.shopDomain,
		"sessionToken": token,
		"action":       action,
		"stepNumber":   stepNumber,
		"stepResponse": stepResponse,
	}
	var out Session
	if err := c.post(ctx, "/api/v1/session/progress", "client.session.progress", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateDiscount requests the session's discount code.
func (c *Client) GenerateDiscount(ctx context.Context, token string) (*Discount, error) {
	body := map[string]any{
		"shopDomain":   c.shopDomain,
		"sessionToken": token,
	}
	var out Discount
	if err := c.post(ctx, "/api/v1/discount/generate", "client.discount", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CollectEmail submits a visitor email.
func (c *Client) CollectEmail(ctx context.Context, email, popupID, token string, quizResponses map[string]string) (*Capture, error) {
	body := map[string]any{
		"shopDomain":    c.shopDomain,
		"email":         email,
		"popupId":       popupID,
		"sessionToken":  token,
		"quizResponses": quizResponses,
	}
	var out Capture
	if err := c.post(ctx, "/api/v1/collect-email", "client.email", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordStepView fires a step-view analytics event.
func (c *Client) RecordStepView(ctx context.Context, popupID, token string, stepNumber int, stepType string) error {
	body := map[string]any{
		"shopDomain":   c.shopDomain,
		"popupId":      popupID,
		"sessionToken": token,
		"stepNumber":   stepNumber,
		"stepType":     stepType,
	}
	return c.post(ctx, "/api/v1/analytics/step-view", "client.analytics", body, http.StatusAccepted, nil)
}

func (c *Client) post(ctx context.Context, path, op string, body any, wantStatus int, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return engine.Internal(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return engine.Internal(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, op, wantStatus, out)
}

func (c *Client) do(req *http.Request, op string, wantStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return engine.Internal(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return statusError(op, resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return engine.Internal(op, err)
	}
	return nil
}

// statusError maps an unexpected HTTP status back to a typed engine error.
func statusError(op string, status int) error {
	switch status {
	case http.StatusNotFound:
		return engine.NotFound(op, "not found")
	case http.StatusBadRequest:
		return engine.InvalidRequest(op, "invalid request")
	case http.StatusConflict:
		return engine.InvalidState(op, "operation not allowed in current state")
	default:
		return engine.Internal(op, fmt.Errorf("unexpected status %d", status))
	}
}
