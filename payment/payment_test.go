// SPDX-License-Identifier: GPL-3.0-only

package payment

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"silently-server/crypto"
	"silently-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestVerifyAcceptsGatewaySignature(t *testing.T) {
	v := NewVerifier("rzp_secret")
	sig := v.Sign("order_abc", "pay_123")

	assert.True(t, v.Verify("order_abc", "pay_123", sig))
	assert.True(t, v.Verify("order_abc", "pay_123", strings.ToUpper(sig)), "hex case must not matter")
	assert.False(t, v.Verify("order_abc", "pay_124", sig))
	assert.False(t, v.Verify("order_abd", "pay_123", sig))
	assert.False(t, NewVerifier("other").Verify("order_abc", "pay_123", sig))
}

func TestVerifyRejectsEveryBitFlip(t *testing.T) {
	v := NewVerifier("rzp_secret")
	sig := v.Sign("order_abc", "pay_123")
	raw, err := hex.DecodeString(sig)
	require.NoError(t, err)

	for i := range raw {
		for bit := range 8 {
			flipped := append([]byte(nil), raw...)
			flipped[i] ^= 1 << bit
			assert.False(t, v.Verify("order_abc", "pay_123", hex.EncodeToString(flipped)), "byte %d bit %d", i, bit)
		}
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	v := NewVerifier("rzp_secret")
	for _, sig := range []string{"", "zz", "abc", strings.Repeat("0", 64), "🙂"} {
		assert.False(t, v.Verify("order_abc", "pay_123", sig), "signature %q", sig)
	}
}

func TestVerifyMatchesHMACForAnyInput(t *testing.T) {
	v := NewVerifier("rzp_secret")
	assert.True(t, v.Verify("", "pay_1", crypto.SignHMACSHA256("rzp_secret", "|pay_1")))
	assert.True(t, v.Verify("order_1", "", crypto.SignHMACSHA256("rzp_secret", "order_1|")))
	assert.False(t, v.Verify("", "pay_1", crypto.SignHMACSHA256("rzp_secret", "pay_1")))
	assert.True(t, v.Configured())

	unset := NewVerifier("")
	assert.False(t, unset.Configured())
	assert.True(t, unset.Verify("order_abc", "pay_123", crypto.SignHMACSHA256("", "order_abc|pay_123")))
}

func TestRazorpayCreateOrder(t *testing.T) {
	var got OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_key", user)
		assert.Equal(t, "rzp_secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_live_1",
			"entity":   "order",
			"amount":   got.Amount,
			"currency": got.Currency,
			"receipt":  got.Receipt,
			"status":   "created",
		})
	}))
	defer srv.Close()

	client, err := NewRazorpayClient(RazorpayConfig{BaseURL: srv.URL, KeyID: "rzp_key", KeySecret: "rzp_secret"})
	require.NoError(t, err)

	order, err := client.CreateOrder(context.Background(), OrderRequest{
		Amount:   49900,
		Currency: "INR",
		Receipt:  "plan_pro_1",
		Notes:    map[string]string{"plan": "pro"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_live_1", order.ID)
	assert.Equal(t, uint(49900), order.Amount)
	assert.Equal(t, "pro", got.Notes["plan"])
	assert.Equal(t, "rzp_key", client.KeyID())
}

func TestRazorpayCreateOrderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"BAD_REQUEST_ERROR"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewRazorpayClient(RazorpayConfig{BaseURL: srv.URL, KeyID: "k", KeySecret: "s"})
	require.NoError(t, err)
	_, err = client.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR", Receipt: "r"})
	assert.Error(t, err)
}

func TestMockGatewayCreatesUniqueOrders(t *testing.T) {
	var gw Gateway = MockGateway{}
	a, err := gw.CreateOrder(context.Background(), OrderRequest{Amount: 90000, Currency: "INR", Receipt: "topup"})
	require.NoError(t, err)
	b, err := gw.CreateOrder(context.Background(), OrderRequest{Amount: 90000, Currency: "INR", Receipt: "topup"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.ID, "order_"))
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, uint(90000), a.Amount)
}

func signedStripePayload(t *testing.T, secret, payload string) (body []byte, header string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func TestStripeEventsCheckoutCompleted(t *testing.T) {
	const secret = "whsec_test_secret"
	events := NewStripeEvents(secret)

	body, header := signedStripePayload(t, secret, `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","customer":"cus_1","subscription":"sub_1","customer_details":{"email":"buyer@example.com"},"client_reference_id":"7","metadata":{"plan":"advanced"}}}}`)
	ev, err := events.Parse(body, header)
	require.NoError(t, err)

	assert.Equal(t, ActionActivate, ev.Action)
	assert.Equal(t, "cus_1", ev.CustomerID)
	assert.Equal(t, "sub_1", ev.SubscriptionID)
	assert.Equal(t, "buyer@example.com", ev.Email)
	assert.Equal(t, "7", ev.AccountID)
	assert.Equal(t, models.AdvancedPlan, ev.Plan)
}

func TestStripeEventsSubscriptionLifecycle(t *testing.T) {
	const secret = "whsec_test_secret"
	events := NewStripeEvents(secret)

	body, header := signedStripePayload(t, secret, `{"id":"evt_2","object":"event","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","customer":"cus_1","status":"active","items":{"data":[{"current_period_end":1790000000,"price":{"metadata":{"plan":"pro"}}}]}}}}`)
	ev, err := events.Parse(body, header)
	require.NoError(t, err)
	assert.Equal(t, ActionActivate, ev.Action)
	assert.Equal(t, models.ProPlan, ev.Plan)
	require.NotNil(t, ev.PeriodEnd)
	assert.Equal(t, int64(1790000000), ev.PeriodEnd.Unix())

	body, header = signedStripePayload(t, secret, `{"id":"evt_3","object":"event","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","customer":"cus_1","status":"past_due"}}}`)
	ev, err = events.Parse(body, header)
	require.NoError(t, err)
	assert.Equal(t, ActionIgnore, ev.Action)

	body, header = signedStripePayload(t, secret, `{"id":"evt_4","object":"event","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","customer":"cus_1","status":"canceled"}}}`)
	ev, err = events.Parse(body, header)
	require.NoError(t, err)
	assert.Equal(t, ActionDeactivate, ev.Action)

	body, header = signedStripePayload(t, secret, `{"id":"evt_5","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)
	ev, err = events.Parse(body, header)
	require.NoError(t, err)
	assert.Equal(t, ActionIgnore, ev.Action)
}

func TestStripeEventsRejectsBadSignature(t *testing.T) {
	body, header := signedStripePayload(t, "whsec_other", `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)

	_, err := NewStripeEvents("whsec_test_secret").Parse(body, header)
	assert.ErrorIs(t, err, ErrInvalidWebhook)

	_, err = NewStripeEvents("whsec_test_secret").Parse(body, "")
	assert.ErrorIs(t, err, ErrInvalidWebhook)

	_, err = NewStripeEvents("").Parse(body, header)
	assert.ErrorIs(t, err, ErrWebhookNotConfigured)
}

type stripeAPICall struct {
	Path string
	Form url.Values
}

// stubStripeAPI points the stripe client at a local server answering the
// customer, checkout and billing portal endpoints.
func stubStripeAPI(t *testing.T) func() []stripeAPICall {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []stripeAPICall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		calls = append(calls, stripeAPICall{Path: r.URL.Path, Form: r.PostForm})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/customers":
			_, _ = w.Write([]byte(`{"id":"cus_stub","object":"customer"}`))
		case "/v1/checkout/sessions":
			_, _ = w.Write([]byte(`{"id":"cs_stub","object":"checkout.session","url":"https://checkout.stripe.test/cs_stub"}`))
		case "/v1/billing_portal/sessions":
			_, _ = w.Write([]byte(`{"id":"bps_stub","object":"billing_portal.session","url":"https://billing.stripe.test/bps_stub"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"unknown path"}}`))
		}
	}))

	original := stripelib.GetBackend(stripelib.APIBackend)
	stripelib.SetBackend(stripelib.APIBackend, stripelib.GetBackendWithConfig(stripelib.APIBackend, &stripelib.BackendConfig{
		URL:               stripelib.String(srv.URL),
		MaxNetworkRetries: stripelib.Int64(0),
		LeveledLogger:     &stripelib.LeveledLogger{Level: stripelib.LevelNull},
	}))
	t.Cleanup(func() {
		stripelib.SetBackend(stripelib.APIBackend, original)
		srv.Close()
	})

	return func() []stripeAPICall {
		mu.Lock()
		defer mu.Unlock()
		return append([]stripeAPICall(nil), calls...)
	}
}

func TestStripeBillingCheckoutAndPortal(t *testing.T) {
	calls := stubStripeAPI(t)
	b := NewStripeBilling(StripeBillingConfig{
		APIKey:          "sk_test_stub",
		PriceIDs:        map[models.PlanName]string{models.ProPlan: "price_pro"},
		PortalReturnURL: "https://app.example.com/dashboard",
	})
	require.True(t, b.Configured())
	ctx := context.Background()

	customerID, err := b.CreateCustomer(ctx, &models.Account{ID: 7, Email: "buyer@example.com", DisplayName: "Buyer"})
	require.NoError(t, err)
	assert.Equal(t, "cus_stub", customerID)

	session, err := b.CreateCheckoutSession(ctx, CheckoutRequest{
		AccountID:  7,
		CustomerID: customerID,
		Plan:       models.ProPlan,
		SuccessURL: "https://app.example.com/success",
		CancelURL:  "https://app.example.com/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_stub", session.ID)
	assert.Equal(t, "https://checkout.stripe.test/cs_stub", session.URL)

	portalURL, err := b.CreatePortalSession(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/bps_stub", portalURL)

	got := calls()
	require.Len(t, got, 3)

	assert.Equal(t, "/v1/customers", got[0].Path)
	assert.Equal(t, "buyer@example.com", got[0].Form.Get("email"))
	assert.Equal(t, "Buyer", got[0].Form.Get("name"))
	assert.Equal(t, "7", got[0].Form.Get("metadata[account_id]"))

	checkout := got[1].Form
	assert.Equal(t, "/v1/checkout/sessions", got[1].Path)
	assert.Equal(t, "subscription", checkout.Get("mode"))
	assert.Equal(t, "cus_stub", checkout.Get("customer"))
	assert.Equal(t, "7", checkout.Get("client_reference_id"))
	assert.Equal(t, "price_pro", checkout.Get("line_items[0][price]"))
	assert.Equal(t, "pro", checkout.Get("metadata[plan]"))
	assert.Equal(t, "7", checkout.Get("subscription_data[metadata][account_id]"))

	assert.Equal(t, "/v1/billing_portal/sessions", got[2].Path)
	assert.Equal(t, "https://app.example.com/dashboard", got[2].Form.Get("return_url"))
}

func TestStripeBillingRefusesWithoutKeyOrPrice(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_ADVANCED_PRICE_ID", "")
	unconfigured := NewStripeBilling(StripeBillingConfig{})
	assert.False(t, unconfigured.Configured())
	_, err := unconfigured.CreatePortalSession(context.Background(), "cus_1")
	assert.ErrorIs(t, err, ErrBillingNotConfigured)

	b := NewStripeBilling(StripeBillingConfig{APIKey: "sk_test_stub", PriceIDs: map[models.PlanName]string{models.ProPlan: "price_pro"}})
	_, err = b.CreateCheckoutSession(context.Background(), CheckoutRequest{AccountID: 1, CustomerID: "cus_1", Plan: models.AdvancedPlan})
	assert.ErrorIs(t, err, ErrNoPriceForPlan)
}
