// SPDX-License-Identifier: GPL-3.0-only

package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"silently-server/commons"
	"silently-server/models"

	stripelib "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
)

var (
	ErrBillingNotConfigured = errors.New("payment: stripe api key not configured")
	ErrNoPriceForPlan       = errors.New("payment: no stripe price configured for plan")
)

type StripeBillingConfig struct {
	APIKey string
	// PriceIDs maps each paid plan to its recurring Stripe price.
	PriceIDs map[models.PlanName]string
	// PortalReturnURL is where the billing portal sends the customer back to.
	PortalReturnURL string
}

// StripeBilling opens hosted Stripe checkout and billing portal sessions.
type StripeBilling struct {
	apiKey          string
	priceIDs        map[models.PlanName]string
	PortalReturnURL string

	createCustomer        func(params *stripelib.CustomerParams) (*stripelib.Customer, error)
	createCheckoutSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
	createPortalSession   func(params *stripelib.BillingPortalSessionParams) (*stripelib.BillingPortalSession, error)
}

// NewStripeBilling fills unset fields from STRIPE_SECRET_KEY,
// STRIPE_<PLAN>_PRICE_ID and FRONTEND_URL.
func NewStripeBilling(c StripeBillingConfig) *StripeBilling {
	if c.APIKey == "" {
		c.APIKey = commons.GetEnv("STRIPE_SECRET_KEY")
	}
	prices := map[models.PlanName]string{}
	for _, plan := range []models.PlanName{models.ProPlan, models.AdvancedPlan} {
		price := strings.TrimSpace(c.PriceIDs[plan])
		if price == "" {
			price = strings.TrimSpace(commons.GetEnv("STRIPE_" + strings.ToUpper(string(plan)) + "_PRICE_ID"))
		}
		if price != "" {
			prices[plan] = price
		}
	}
	if c.PortalReturnURL == "" {
		c.PortalReturnURL = strings.TrimRight(commons.GetEnv("FRONTEND_URL", "http://localhost:3000"), "/") + "/dashboard"
	}

	b := &StripeBilling{
		apiKey:                strings.TrimSpace(c.APIKey),
		priceIDs:              prices,
		PortalReturnURL:       c.PortalReturnURL,
		createCustomer:        customer.New,
		createCheckoutSession: stripesession.New,
		createPortalSession:   portalsession.New,
	}
	if b.apiKey != "" {
		stripelib.Key = b.apiKey
	}
	return b
}

func (b *StripeBilling) Configured() bool {
	return b != nil && b.apiKey != ""
}

func (b *StripeBilling) PriceID(plan models.PlanName) (string, bool) {
	price, ok := b.priceIDs[plan]
	return price, ok
}

// CreateCustomer registers the account with Stripe and returns the customer ID.
func (b *StripeBilling) CreateCustomer(ctx context.Context, acct *models.Account) (string, error) {
	if !b.Configured() {
		return "", ErrBillingNotConfigured
	}
	params := &stripelib.CustomerParams{
		Params: stripelib.Params{Context: ctx},
		Email:  stripelib.String(acct.Email),
	}
	if name := strings.TrimSpace(acct.DisplayName); name != "" {
		params.Name = stripelib.String(name)
	}
	params.AddMetadata("account_id", fmt.Sprint(acct.ID))

	created, err := b.createCustomer(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	commons.Logger.Infof("Stripe customer %s created for account %d", created.ID, acct.ID)
	return created.ID, nil
}

type CheckoutRequest struct {
	AccountID  uint
	CustomerID string
	Plan       models.PlanName
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckoutSession opens a subscription checkout for the plan's price.
// The account ID travels as client_reference_id and, with the plan, as
// metadata on both the session and the subscription so webhooks can route
// the payment back to the account.
func (b *StripeBilling) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if !b.Configured() {
		return nil, ErrBillingNotConfigured
	}
	price, ok := b.PriceID(req.Plan)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPriceForPlan, req.Plan)
	}

	accountID := fmt.Sprint(req.AccountID)
	params := &stripelib.CheckoutSessionParams{
		Params:            stripelib.Params{Context: ctx},
		Mode:              stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		Customer:          stripelib.String(req.CustomerID),
		ClientReferenceID: stripelib.String(accountID),
		SuccessURL:        stripelib.String(req.SuccessURL),
		CancelURL:         stripelib.String(req.CancelURL),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(price),
				Quantity: stripelib.Int64(1),
			},
		},
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"account_id": accountID, "plan": string(req.Plan)},
		},
	}
	params.AddMetadata("account_id", accountID)
	params.AddMetadata("plan", string(req.Plan))

	session, err := b.createCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	commons.Logger.Infof("Stripe checkout session %s opened for account %d (%s)", session.ID, req.AccountID, req.Plan)
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession returns the URL of a billing portal session for the
// customer.
func (b *StripeBilling) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	if !b.Configured() {
		return "", ErrBillingNotConfigured
	}
	session, err := b.createPortalSession(&stripelib.BillingPortalSessionParams{
		Params:    stripelib.Params{Context: ctx},
		Customer:  stripelib.String(customerID),
		ReturnURL: stripelib.String(b.PortalReturnURL),
	})
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return session.URL, nil
}
