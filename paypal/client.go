// Package paypal talks to the PayPal Orders v2 REST API. Every call exchanges
// client credentials for a fresh access token; nothing is cached or retried.
package paypal

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

	"storefront-svc/apperr"
	"storefront-svc/circuitbreaker"
	"storefront-svc/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

var (
	ErrAuthFailure    = apperr.New(apperr.ErrGateway, "paypal credential exchange failed")
	ErrRequestFailure = apperr.New(apperr.ErrGateway, "paypal request failed")
	ErrCaptureFailure = apperr.New(apperr.ErrGateway, "paypal capture failed")
)

// Error carries the provider's raw response so callers can surface it for diagnostics.
type Error struct {
	Kind       error
	StatusCode int
	Payload    json.RawMessage
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
	HTTPClient   *http.Client
}

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	currency     string
	httpClient   *http.Client
	breaker      *circuitbreaker.CircuitBreaker
	logger       *zap.Logger
	requestID    func() string
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}

	breaker := circuitbreaker.NewCircuitBreaker(5, 30*time.Second)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("PayPal circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		currency:     currency,
		httpClient:   httpClient,
		breaker:      breaker,
		logger:       logger,
		requestID:    uuid.NewString,
	}
}

// Order is the provider-side order created for a cart.
type Order struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Raw    json.RawMessage `json:"-"`
}

// Capture is the provider's confirmation that funds moved.
type Capture struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Raw    json.RawMessage `json:"-"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Kind: ErrAuthFailure, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	status, body, err := c.do(req)
	if err != nil {
		return "", &Error{Kind: ErrAuthFailure, Err: err}
	}
	if status/100 != 2 {
		return "", &Error{Kind: ErrAuthFailure, StatusCode: status, Payload: rawPayload(body)}
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return "", &Error{Kind: ErrAuthFailure, StatusCode: status, Payload: rawPayload(body), Err: errors.New("no access token in response")}
	}
	return token.AccessToken, nil
}

// CreateOrder opens a CAPTURE-intent order for the given lines and grand total.
func (c *Client) CreateOrder(ctx context.Context, items []models.CheckoutItem, total decimal.Decimal) (*Order, error) {
	body, err := json.Marshal(NewOrderRequest(items, total, c.currency))
	if err != nil {
		return nil, &Error{Kind: ErrRequestFailure, Err: err}
	}

	var order Order
	err = c.guarded(ctx, ErrRequestFailure, func(ctx context.Context) error {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/checkout/orders", bytes.NewReader(body))
		if err != nil {
			return &Error{Kind: ErrRequestFailure, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("PayPal-Request-Id", c.requestID())

		status, respBody, err := c.do(req)
		if err != nil {
			return &Error{Kind: ErrRequestFailure, Err: err}
		}
		if status/100 != 2 {
			return &Error{Kind: ErrRequestFailure, StatusCode: status, Payload: rawPayload(respBody)}
		}
		if err := json.Unmarshal(respBody, &order); err != nil {
			return &Error{Kind: ErrRequestFailure, StatusCode: status, Payload: rawPayload(respBody), Err: err}
		}
		order.Raw = respBody
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("PayPal order created", zap.String("paypal_order_id", order.ID), zap.String("status", order.Status))
	return &order, nil
}

// CaptureOrder finalizes a previously approved order. Failure is terminal for
// the checkout attempt.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	var capture Capture
	err := c.guarded(ctx, ErrCaptureFailure, func(ctx context.Context) error {
		token, err := c.accessToken(ctx)
		if err != nil {
			return asCaptureFailure(err)
		}

		endpoint := c.baseURL + "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
		if err != nil {
			return &Error{Kind: ErrCaptureFailure, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		status, respBody, err := c.do(req)
		if err != nil {
			return &Error{Kind: ErrCaptureFailure, Err: err}
		}
		if status/100 != 2 {
			return &Error{Kind: ErrCaptureFailure, StatusCode: status, Payload: rawPayload(respBody)}
		}
		if err := json.Unmarshal(respBody, &capture); err != nil {
			return &Error{Kind: ErrCaptureFailure, StatusCode: status, Payload: rawPayload(respBody), Err: err}
		}
		capture.Raw = respBody
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("PayPal order captured", zap.String("paypal_order_id", capture.ID), zap.String("status", capture.Status))
	return &capture, nil
}

// guarded runs fn through the circuit breaker. Only transport errors and 5xx
// responses count against the breaker; provider rejections are returned as is.
// A call rejected by the open breaker is reported under kind.
func (c *Client) guarded(ctx context.Context, kind error, fn func(ctx context.Context) error) error {
	var callErr error
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		callErr = fn(ctx)
		if isOutage(ctx, callErr) {
			return callErr
		}
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return &Error{Kind: kind, Err: err}
	}
	return callErr
}

// isOutage reports whether err says something about the provider's health.
// A caller that gave up on its own context says nothing.
func isOutage(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return false
	}
	var pe *Error
	if !errors.As(err, &pe) {
		return true
	}
	return pe.StatusCode == 0 || pe.StatusCode >= 500
}

// asCaptureFailure keeps the token error's kind and status while marking the
// failure as a capture failure.
func asCaptureFailure(err error) error {
	var pe *Error
	if !errors.As(err, &pe) {
		return &Error{Kind: ErrCaptureFailure, Err: err}
	}
	return &Error{Kind: ErrCaptureFailure, StatusCode: pe.StatusCode, Payload: pe.Payload, Err: err}
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func rawPayload(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
