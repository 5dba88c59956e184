package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	sdk "github.com/razorpay/razorpay-go"
)

const (
	defaultTimeout   = 10 * time.Second
	maxReceiptLength = 40
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
)

// Client wraps the Razorpay SDK's Orders resource.
type Client struct {
	api   *sdk.Client
	keyID string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the SDK's HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.api.Request.HTTPClient = client
		}
	}
}

// WithBaseURL overrides the Razorpay API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			c.api.Request.BaseURL = trimmed
		}
	}
}

// WithTimeout bounds every gateway call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.api.Request.HTTPClient.Timeout = timeout
		}
	}
}

// NewClient builds a Razorpay client from API key credentials.
func NewClient(keyID, keySecret string, opts ...Option) (*Client, error) {
	trimmedID := strings.TrimSpace(keyID)
	if trimmedID == "" {
		return nil, errKeyIDRequired
	}
	trimmedSecret := strings.TrimSpace(keySecret)
	if trimmedSecret == "" {
		return nil, errKeySecretRequired
	}

	api := sdk.NewClient(trimmedID, trimmedSecret)
	api.Request.HTTPClient = &http.Client{Timeout: defaultTimeout}
	client := &Client{api: api, keyID: trimmedID}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// KeyID is the public key the browser checkout needs.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// CreateOrderRequest is the payload for POST /v1/orders. Amount is in minor units.
type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

func (r CreateOrderRequest) params() map[string]interface{} {
	params := map[string]interface{}{
		"amount":   r.Amount,
		"currency": r.Currency,
	}
	if r.Receipt != "" {
		params["receipt"] = r.Receipt
	}
	if len(r.Notes) > 0 {
		notes := make(map[string]interface{}, len(r.Notes))
		for k, v := range r.Notes {
			notes[k] = v
		}
		params["notes"] = notes
	}
	return params
}

// Order is the gateway order returned by Razorpay.
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`

	// Raw keeps the full response body for auditing.
	Raw json.RawMessage `json:"-"`
}

type createResult struct {
	body map[string]interface{}
	err  error
}

// CreateOrder requests a gateway order for the given amount. The SDK call has
// no context, so ctx is honoured by abandoning the call when it is done.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if c == nil || c.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "razorpay client not configured")
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAmount, "amount must be a positive number of minor units")
	}
	if strings.TrimSpace(req.Currency) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency is required")
	}
	if len(req.Receipt) > maxReceiptLength {
		req.Receipt = req.Receipt[:maxReceiptLength]
	}
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "execute order request")
	}

	done := make(chan createResult, 1)
	go func() {
		body, err := c.api.Order.Create(req.params(), nil)
		done <- createResult{body: body, err: err}
	}()

	var res createResult
	select {
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, ctx.Err(), "execute order request")
	case res = <-done:
	}
	if res.err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, res.err, "order request failed")
	}
	return decodeOrder(res.body)
}

func decodeOrder(body map[string]interface{}) (*Order, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "encode order response")
	}
	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode order response")
	}
	if order.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "order response missing id")
	}
	order.Raw = raw
	return &order, nil
}
