package paymentgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL        = "https://api.tosspayments.com"
	defaultTimeout        = 10 * time.Second
	confirmPath           = "v1/payments/confirm"
	orderLookupPath       = "v1/payments/orders"
	responseBodyReadLimit = 64 * 1024
	errorBodyReadLimit    = 4 * 1024

	// StatusDone is the gateway's settled status.
	StatusDone = "DONE"
	// CodeAlreadyProcessed is returned when the payment key was confirmed before.
	CodeAlreadyProcessed = "ALREADY_PROCESSED_PAYMENT"
)

var errSecretKeyRequired = errors.New("payment gateway secret key is required")

// Client calls the payment gateway's confirm and lookup endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authHeader string
	timeout    time.Duration
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

// WithBaseURL overrides the gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout. It applies to whichever HTTP
// client the options settle on, without mutating a caller-supplied client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient builds a gateway client authenticated with the merchant secret key.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(secretKey)
	if trimmed == "" {
		return nil, errSecretKeyRequired
	}

	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(trimmed+":")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.timeout > 0 {
		scoped := *client.httpClient
		scoped.Timeout = client.timeout
		client.httpClient = &scoped
	}
	return client, nil
}

// ConfirmRequest is the body of the confirm call.
type ConfirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

// Payment is the normalized gateway payment object.
type Payment struct {
	PaymentKey  string
	OrderID     string
	Status      string
	Method      string
	TotalAmount int64
	ApprovedAt  *time.Time
	Raw         json.RawMessage
}

// IsDone reports whether the gateway settled the payment.
func (p *Payment) IsDone() bool {
	return p != nil && p.Status == StatusDone
}

// GatewayError is a non-2xx answer from the gateway. Code and Message are set
// only when the body is the gateway's own {code, message} document; anything
// else (proxy pages, truncated bodies) is kept in Body for logs.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *GatewayError) Error() string {
	message := e.Message
	if message == "" {
		message = "unrecognized error response"
	}
	if e.Code == "" {
		return fmt.Sprintf("payment gateway status %d: %s", e.StatusCode, message)
	}
	return fmt.Sprintf("payment gateway %s (status %d): %s", e.Code, e.StatusCode, message)
}

// UpstreamCode exposes the gateway's own error code to error dumps.
func (e *GatewayError) UpstreamCode() string { return e.Code }

// UpstreamBody exposes an unrecognized response body to error dumps.
func (e *GatewayError) UpstreamBody() string { return e.Body }

// AsGatewayError extracts a GatewayError from an error chain.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// Confirm asks the gateway to capture a client-authorized payment.
func (c *Client) Confirm(ctx context.Context, req ConfirmRequest) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}
	if strings.TrimSpace(req.PaymentKey) == "" || strings.TrimSpace(req.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment key and order id are required")
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal confirm request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(confirmPath), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build confirm request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.OrderID+":"+req.PaymentKey)
	return c.do(httpReq, "confirm")
}

// GetByOrderID looks up the settlement recorded for an order id.
func (c *Client) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	endpoint := fmt.Sprintf("%s/%s", c.buildURL(orderLookupPath), url.PathEscape(trimmed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build lookup request")
	}
	return c.do(httpReq, "lookup")
}

func (c *Client) do(httpReq *http.Request, op string) (*Payment, error) {
	httpReq.Header.Set("Authorization", c.authHeader)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrapf(pkgerrors.CodeDependency, err, "execute %s request", op)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeGatewayError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrapf(pkgerrors.CodeDependency, err, "read %s response", op)
	}
	payment, err := decodePayment(body)
	if err != nil {
		return nil, pkgerrors.Wrapf(pkgerrors.CodeDependency, err, "decode %s response", op)
	}
	return payment, nil
}

type paymentResponse struct {
	PaymentKey  string          `json:"paymentKey"`
	OrderID     string          `json:"orderId"`
	Status      string          `json:"status"`
	Method      string          `json:"method"`
	TotalAmount decimal.NullDecimal `json:"totalAmount"`
	ApprovedAt  *string             `json:"approvedAt"`
}

func decodePayment(body []byte) (*Payment, error) {
	var apiResp paymentResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, err
	}
	if !apiResp.TotalAmount.Valid {
		return nil, errors.New("missing totalAmount")
	}
	amount := apiResp.TotalAmount.Decimal
	if !amount.IsInteger() {
		return nil, fmt.Errorf("non-integer amount %s", amount.String())
	}

	payment := &Payment{
		PaymentKey:  apiResp.PaymentKey,
		OrderID:     apiResp.OrderID,
		Status:      apiResp.Status,
		Method:      apiResp.Method,
		TotalAmount: amount.IntPart(),
		Raw:         json.RawMessage(append([]byte(nil), body...)),
	}
	if apiResp.ApprovedAt != nil && *apiResp.ApprovedAt != "" {
		approved, err := time.Parse(time.RFC3339, *apiResp.ApprovedAt)
		if err != nil {
			return nil, fmt.Errorf("parse approvedAt: %w", err)
		}
		approved = approved.UTC()
		payment.ApprovedAt = &approved
	}
	return payment, nil
}

func decodeGatewayError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	gwErr := &GatewayError{StatusCode: resp.StatusCode}

	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && (apiErr.Code != "" || apiErr.Message != "") {
		gwErr.Code = strings.TrimSpace(apiErr.Code)
		gwErr.Message = strings.TrimSpace(apiErr.Message)
		return gwErr
	}
	gwErr.Body = strings.TrimSpace(string(body))
	return gwErr
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
