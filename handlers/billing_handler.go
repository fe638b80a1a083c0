// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"silently-server/middlewares"
	"silently-server/models"
	"silently-server/payment"

	"github.com/labstack/echo/v4"
)

var errBillingUnavailable = &echo.HTTPError{
	Code:    http.StatusServiceUnavailable,
	Message: "Card billing is not configured",
}

func isRedirectURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

// CreateCheckoutSessionHandler godoc
// @Summary      Start a Stripe checkout
// @Description  Opens a hosted Stripe subscription checkout for a paid plan. A Stripe customer is created and linked to the account on first use. Credits are granted by the Stripe webhook once the payment completes.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Param        checkoutRequest  body  CreateCheckoutSessionRequest  true  "Checkout request payload"
// @Success      200 {object} CheckoutSessionResponse "Checkout session created successfully"
// @Failure      400 {object} echo.HTTPError     "Bad request, missing fields or unknown plan"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      404 {object} echo.HTTPError     "Account not found"
// @Failure      502 {object} echo.HTTPError     "Stripe unavailable"
// @Failure      503 {object} echo.HTTPError     "Card billing is not configured"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/create-checkout-session [post]
func (h *Handler) CreateCheckoutSessionHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}
	if !h.Billing.Configured() {
		logger.Error("Checkout requested but STRIPE_SECRET_KEY is not set")
		return errBillingUnavailable
	}

	var req CreateCheckoutSessionRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid checkout request payload:", err)
		return echo.ErrBadRequest
	}
	if req.Plan == "" || req.SuccessURL == "" || req.CancelURL == "" {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "plan, success_url and cancel_url are required",
		}
	}
	if !isRedirectURL(req.SuccessURL) || !isRedirectURL(req.CancelURL) {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "success_url and cancel_url must be absolute http(s) URLs",
		}
	}
	plan, ok := models.ParsePlanName(strings.ToLower(strings.TrimSpace(req.Plan)))
	if !ok || !plan.IsPaid() {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "plan must be one of: pro, advanced",
		}
	}
	if _, ok := h.Billing.PriceID(plan); !ok {
		logger.Errorf("No Stripe price configured for plan %s", plan)
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "This plan is not available for card checkout",
		}
	}

	acct, err := h.Ledger.GetAccount(ctx, accountID)
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	customerID := ""
	if acct.StripeCustomerID != nil {
		customerID = *acct.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = h.Billing.CreateCustomer(ctx, acct)
		if err != nil {
			logger.Errorf("Failed to create Stripe customer for account %d: %v", accountID, err)
			return &echo.HTTPError{
				Code:    http.StatusBadGateway,
				Message: "Stripe is unavailable, please try again",
			}
		}
		if _, err := h.Ledger.LinkStripeCustomer(ctx, accountID, customerID); err != nil {
			return ledgerHTTPError(c, err)
		}
	}

	session, err := h.Billing.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		AccountID:  accountID,
		CustomerID: customerID,
		Plan:       plan,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		logger.Errorf("Failed to create checkout session for account %d: %v", accountID, err)
		return &echo.HTTPError{
			Code:    http.StatusBadGateway,
			Message: "Stripe is unavailable, please try again",
		}
	}

	return c.JSON(http.StatusOK, CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
		Message:   "Checkout session created successfully",
	})
}

// CreatePortalSessionHandler godoc
// @Summary      Open the Stripe billing portal
// @Description  Returns a billing portal URL where the account holder manages or cancels the Stripe subscription.
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Success      200 {object} PortalSessionResponse "Billing portal session created successfully"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      404 {object} echo.HTTPError     "No Stripe subscription found"
// @Failure      502 {object} echo.HTTPError     "Stripe unavailable"
// @Failure      503 {object} echo.HTTPError     "Card billing is not configured"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/create-portal-session [post]
func (h *Handler) CreatePortalSessionHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}
	if !h.Billing.Configured() {
		logger.Error("Billing portal requested but STRIPE_SECRET_KEY is not set")
		return errBillingUnavailable
	}

	acct, err := h.Ledger.GetAccount(ctx, accountID)
	if err != nil {
		return ledgerHTTPError(c, err)
	}
	if acct.StripeCustomerID == nil || *acct.StripeCustomerID == "" {
		return &echo.HTTPError{
			Code:    http.StatusNotFound,
			Message: "No Stripe subscription found for this account",
		}
	}

	portalURL, err := h.Billing.CreatePortalSession(ctx, *acct.StripeCustomerID)
	if err != nil {
		logger.Errorf("Failed to create billing portal session for account %d: %v", accountID, err)
		return &echo.HTTPError{
			Code:    http.StatusBadGateway,
			Message: "Stripe is unavailable, please try again",
		}
	}

	return c.JSON(http.StatusOK, PortalSessionResponse{
		URL:     portalURL,
		Message: "Billing portal session created successfully",
	})
}
