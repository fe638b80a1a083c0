// SPDX-License-Identifier: GPL-3.0-only

package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"silently-server/commons"
	"silently-server/crypto"
)

const razorpayAPIURL = "https://api.razorpay.com"

// Order is a gateway order the client completes in the checkout widget.
type Order struct {
	ID       string            `json:"id"`
	Amount   uint              `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type OrderRequest struct {
	Amount   uint              `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Gateway creates payment orders.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// KeyID is the public key the checkout widget is opened with.
	KeyID() string
}

type RazorpayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
}

type RazorpayClient struct {
	BaseURL    *url.URL
	keyID      string
	keySecret  string
	HTTPClient *http.Client
}

func NewRazorpayClient(c RazorpayConfig) (*RazorpayClient, error) {
	if c.BaseURL == "" {
		c.BaseURL = commons.GetEnv("RAZORPAY_API_URL", razorpayAPIURL)
	}
	if c.KeyID == "" {
		c.KeyID = commons.GetEnv("RAZORPAY_KEY_ID")
	}
	if c.KeySecret == "" {
		c.KeySecret = commons.GetEnv("RAZORPAY_KEY_SECRET")
	}
	if c.KeyID == "" || c.KeySecret == "" {
		return nil, fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		commons.Logger.Error("Failed to parse Razorpay API base URL:", err)
		return nil, err
	}
	commons.Logger.Debugf("Razorpay client initialized for %s", c.BaseURL)
	return &RazorpayClient{
		BaseURL:    parsedURL,
		keyID:      c.KeyID,
		keySecret:  c.KeySecret,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *RazorpayClient) KeyID() string {
	return c.keyID
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, order OrderRequest) (*Order, error) {
	commons.Logger.Debugf("Creating Razorpay order for receipt %s", order.Receipt)
	u := c.BaseURL.ResolveReference(&url.URL{Path: "/v1/orders"})

	jsonBody, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		commons.Logger.Error("HTTP request to create Razorpay order failed:", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		commons.Logger.Errorf("Failed to create Razorpay order %s: %s %s", order.Receipt, resp.Status, body)
		return nil, fmt.Errorf("failed to create order: %s", resp.Status)
	}

	var created Order
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, err
	}
	commons.Logger.Infof("Razorpay order created: %s", created.ID)
	return &created, nil
}

// MockGateway creates orders locally for development and tests.
type MockGateway struct{}

func (MockGateway) KeyID() string {
	return "rzp_test_mock"
}

func (MockGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	id, err := crypto.GenerateRandomString("order_", 7, "hex")
	if err != nil {
		return nil, err
	}
	commons.Logger.Infof("[MOCK] Razorpay order created: %s", id)
	return &Order{
		ID:       id,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
		Notes:    req.Notes,
	}, nil
}

// NewGateway returns the mock gateway when RAZORPAY_MOCK is set and the
// live client otherwise.
func NewGateway() (Gateway, error) {
	if commons.GetEnvBool("RAZORPAY_MOCK", false) {
		commons.Logger.Warn("Razorpay mock mode enabled, orders are not sent to the gateway")
		return MockGateway{}, nil
	}
	return NewRazorpayClient(RazorpayConfig{})
}
