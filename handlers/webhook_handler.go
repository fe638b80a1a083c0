// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"silently-server/ledger"
	"silently-server/metrics"
	"silently-server/models"
	"silently-server/notifications"
	"silently-server/payment"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxWebhookBody = 64 << 10

// StripeWebhookHandler godoc
// @Summary      Stripe webhook
// @Description  Receives Stripe subscription events. Active subscriptions upgrade the account; deleted subscriptions downgrade it to free. Events are applied at most once.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature  header  string  true  "Stripe webhook signature"
// @Success      200 {object} WebhookResponse    "Event received"
// @Failure      400 {object} echo.HTTPError     "Invalid signature or payload"
// @Failure      503 {object} echo.HTTPError     "Webhook not configured"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/webhooks/stripe [post]
func (h *Handler) StripeWebhookHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		logger.Error("Failed to read webhook body:", err)
		return echo.ErrBadRequest
	}

	event, err := h.Stripe.Parse(payload, c.Request().Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrWebhookNotConfigured):
		logger.Error("Stripe webhook received but STRIPE_WEBHOOK_SECRET is not set")
		return &echo.HTTPError{
			Code:    http.StatusServiceUnavailable,
			Message: "Webhook not configured",
		}
	case err != nil:
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		logger.Warn("Rejected Stripe webhook:", err)
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "Invalid webhook signature",
		}
	}

	logger.Infof("Stripe event %s (%s) received: action=%s", event.EventID, event.Type, event.Action)
	if event.Action == payment.ActionIgnore {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		return c.JSON(http.StatusOK, WebhookResponse{Received: true})
	}

	acct, err := h.resolveStripeAccount(ctx, event)
	if errors.Is(err, ledger.ErrNotFound) {
		logger.Warnf("Stripe event %s does not match any account", event.EventID)
		return c.JSON(http.StatusOK, WebhookResponse{Received: true})
	}
	if err != nil {
		logger.Errorf("Failed to resolve account for Stripe event %s: %v", event.EventID, err)
		return echo.ErrInternalServerError
	}

	if event.CustomerID != "" && (acct.StripeCustomerID == nil || *acct.StripeCustomerID != event.CustomerID) {
		if acct, err = h.Ledger.LinkStripeCustomer(ctx, acct.ID, event.CustomerID); err != nil {
			logger.Errorf("Failed to link Stripe customer %s: %v", event.CustomerID, err)
			return echo.ErrInternalServerError
		}
	}

	switch event.Action {
	case payment.ActionActivate:
		err = h.activateStripePlan(c, acct, event)
	case payment.ActionDeactivate:
		err = h.deactivateStripePlan(c, acct, event)
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.Type, metrics.Outcome(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, WebhookResponse{Received: true})
}

func (h *Handler) resolveStripeAccount(ctx context.Context, event *payment.SubscriptionEvent) (*models.Account, error) {
	if event.AccountID != "" {
		if id, err := strconv.ParseUint(event.AccountID, 10, 64); err == nil {
			acct, err := h.Ledger.GetAccount(ctx, uint(id))
			if !errors.Is(err, ledger.ErrNotFound) {
				return acct, err
			}
		}
	}
	if event.CustomerID != "" {
		acct, err := h.Ledger.FindByStripeCustomer(ctx, event.CustomerID)
		if !errors.Is(err, ledger.ErrNotFound) {
			return acct, err
		}
	}
	if event.Email != "" {
		return h.Ledger.FindByEmail(ctx, event.Email)
	}
	return nil, ledger.ErrNotFound
}

type stripeGrant int

const (
	grantSkip stripeGrant = iota
	grantAdoptPeriod
	grantCredits
)

// decideStripeGrant grants a plan's credits once per billing period. The
// subscription row remembers the period end of the last grant; events inside
// that period only refresh the expiry.
func decideStripeGrant(acct *models.Account, sub *models.Subscription, event *payment.SubscriptionEvent) stripeGrant {
	if acct.Plan != event.Plan {
		return grantCredits
	}
	if event.SubscriptionID == "" {
		if acct.PlanExpiry != nil && (event.PeriodEnd == nil || !event.PeriodEnd.After(*acct.PlanExpiry)) {
			return grantSkip
		}
		return grantCredits
	}
	if sub == nil || sub.Status != models.ActiveSubscription || sub.Plan != event.Plan {
		return grantCredits
	}
	switch {
	case event.PeriodEnd == nil:
		return grantSkip
	case sub.CurrentPeriodEnd == nil:
		return grantAdoptPeriod
	case event.PeriodEnd.After(*sub.CurrentPeriodEnd):
		return grantCredits
	default:
		return grantSkip
	}
}

func (h *Handler) activateStripePlan(c echo.Context, acct *models.Account, event *payment.SubscriptionEvent) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	plan := models.Plan{}
	if err := h.DB.WithContext(ctx).Where("name = ?", event.Plan).First(&plan).Error; err != nil {
		logger.Errorf("Failed to load plan %s: %v", event.Plan, err)
		return echo.ErrInternalServerError
	}

	var sub *models.Subscription
	if event.SubscriptionID != "" {
		existing := models.Subscription{}
		err := h.DB.WithContext(ctx).
			Where("provider = ? AND provider_subscription_id = ?", models.Stripe, event.SubscriptionID).
			First(&existing).Error
		switch {
		case err == nil:
			sub = &existing
		case !errors.Is(err, gorm.ErrRecordNotFound):
			logger.Errorf("Failed to load Stripe subscription %s: %v", event.SubscriptionID, err)
			return echo.ErrInternalServerError
		}
	}

	switch decideStripeGrant(acct, sub, event) {
	case grantSkip:
		logger.Infof("Stripe event %s leaves account %d unchanged", event.EventID, acct.ID)
		return nil

	case grantAdoptPeriod:
		if _, err := h.Ledger.ExtendPlanExpiry(ctx, acct.ID, event.Plan, *event.PeriodEnd); err != nil {
			return ledgerHTTPError(c, err)
		}
		err := h.DB.WithContext(ctx).Model(sub).Updates(map[string]any{
			"current_period_end": *event.PeriodEnd,
			"expires_at":         *event.PeriodEnd,
		}).Error
		if err != nil {
			logger.Errorf("Failed to store period of Stripe subscription %s: %v", event.SubscriptionID, err)
			return echo.ErrInternalServerError
		}
		logger.Infof("Account %d keeps %s until %v", acct.ID, event.Plan, *event.PeriodEnd)
		return nil
	}

	expiry := event.PeriodEnd
	if expiry == nil {
		expiry = plan.ExpiryFrom(h.now())
	}

	updated, err := h.Ledger.UpgradePlan(ctx, acct.ID, event.Plan, plan.Credits, expiry, ledger.WithReference("stripe:"+event.EventID))
	if errors.Is(err, ledger.ErrDuplicatePayment) {
		logger.Infof("Stripe event %s already applied", event.EventID)
		return nil
	}
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	if event.SubscriptionID != "" {
		subID := event.SubscriptionID
		row := models.Subscription{
			Provider:               models.Stripe,
			ProviderSubscriptionID: &subID,
			Plan:                   event.Plan,
			Status:                 models.ActiveSubscription,
			StartedAt:              h.now(),
			ExpiresAt:              expiry,
			CurrentPeriodEnd:       event.PeriodEnd,
			AccountID:              acct.ID,
		}
		err := h.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"plan", "status", "expires_at", "current_period_end", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			logger.Errorf("Failed to store Stripe subscription %s: %v", subID, err)
		}
	}

	h.notify(notifications.PlanUpgraded(updated))
	logger.Infof("Account %d on %s via Stripe until %v", acct.ID, event.Plan, expiry)
	return nil
}

func (h *Handler) deactivateStripePlan(c echo.Context, acct *models.Account, event *payment.SubscriptionEvent) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	if acct.Plan == models.FreePlan {
		logger.Infof("Account %d already on free plan", acct.ID)
		return nil
	}

	if _, err := h.Ledger.DowngradeToFree(ctx, acct.ID); err != nil {
		return ledgerHTTPError(c, err)
	}

	if event.SubscriptionID != "" {
		err := h.DB.WithContext(ctx).Model(&models.Subscription{}).
			Where("provider = ? AND provider_subscription_id = ?", models.Stripe, event.SubscriptionID).
			Update("status", models.CanceledSubscription).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Errorf("Failed to cancel Stripe subscription %s: %v", event.SubscriptionID, err)
		}
	}

	logger.Infof("Account %d downgraded to free after Stripe event %s", acct.ID, event.EventID)
	return nil
}
