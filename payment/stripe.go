// SPDX-License-Identifier: GPL-3.0-only

package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"silently-server/models"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrWebhookNotConfigured = errors.New("payment: stripe webhook secret not configured")
	ErrInvalidWebhook       = errors.New("payment: invalid stripe signature")
)

type SubscriptionAction string

const (
	ActionActivate   SubscriptionAction = "activate"
	ActionDeactivate SubscriptionAction = "deactivate"
	ActionIgnore     SubscriptionAction = "ignore"
)

// SubscriptionEvent is a Stripe webhook reduced to what the ledger acts on.
type SubscriptionEvent struct {
	EventID        string
	Type           string
	Action         SubscriptionAction
	CustomerID     string
	SubscriptionID string
	Email          string
	AccountID      string
	Plan           models.PlanName
	Status         string
	PeriodEnd      *time.Time
}

// StripeEvents verifies and normalizes Stripe subscription webhooks.
type StripeEvents struct {
	secret string
}

func NewStripeEvents(secret string) *StripeEvents {
	return &StripeEvents{secret: strings.TrimSpace(secret)}
}

type checkoutSession struct {
	ID              string `json:"id"`
	Customer        string `json:"customer"`
	Subscription    string `json:"subscription"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type subscription struct {
	ID               string            `json:"id"`
	Customer         string            `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				Metadata map[string]string `json:"metadata"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// Parse checks the Stripe-Signature header and decodes the event.
// Event types other than checkout completion and subscription updates or
// deletions come back with ActionIgnore.
func (s *StripeEvents) Parse(payload []byte, sigHeader string) (*SubscriptionEvent, error) {
	if s.secret == "" {
		return nil, ErrWebhookNotConfigured
	}
	if strings.TrimSpace(sigHeader) == "" {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidWebhook)
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	return normalize(&event)
}

func normalize(event *stripelib.Event) (*SubscriptionEvent, error) {
	out := &SubscriptionEvent{
		EventID: event.ID,
		Type:    string(event.Type),
		Action:  ActionIgnore,
	}

	switch event.Type {
	case "checkout.session.completed":
		var session checkoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		out.Action = ActionActivate
		out.CustomerID = session.Customer
		out.SubscriptionID = session.Subscription
		out.Email = firstNonEmpty(session.CustomerEmail, session.CustomerDetails.Email)
		out.AccountID = firstNonEmpty(session.ClientReferenceID, session.Metadata["account_id"])
		out.Plan = planFromMetadata(session.Metadata)
		out.Status = string(models.ActiveSubscription)

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.CustomerID = sub.Customer
		out.SubscriptionID = sub.ID
		out.Status = sub.Status
		out.AccountID = sub.Metadata["account_id"]
		out.Plan = planFromMetadata(sub.Metadata)
		periodEnd := sub.CurrentPeriodEnd
		for _, item := range sub.Items.Data {
			if out.Plan == "" {
				out.Plan = planFromMetadata(item.Price.Metadata)
			}
			periodEnd = max(periodEnd, item.CurrentPeriodEnd)
		}
		if periodEnd > 0 {
			t := time.Unix(periodEnd, 0).UTC()
			out.PeriodEnd = &t
		}

		switch {
		case event.Type == "customer.subscription.deleted":
			out.Action = ActionDeactivate
		case sub.Status == "active" || sub.Status == "trialing":
			out.Action = ActionActivate
		case sub.Status == "canceled" || sub.Status == "unpaid" || sub.Status == "incomplete_expired":
			out.Action = ActionDeactivate
		}
	}

	if out.Action == ActionActivate && out.Plan == "" {
		out.Plan = models.ProPlan
	}
	return out, nil
}

func planFromMetadata(md map[string]string) models.PlanName {
	if md == nil {
		return ""
	}
	plan, ok := models.ParsePlanName(strings.ToLower(strings.TrimSpace(md["plan"])))
	if !ok || !plan.IsPaid() {
		return ""
	}
	return plan
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
