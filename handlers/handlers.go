// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"net/http"
	"time"

	"silently-server/crypto"
	"silently-server/ledger"
	"silently-server/license"
	"silently-server/middlewares"
	"silently-server/models"
	"silently-server/notifications"
	"silently-server/payment"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Handler carries the collaborators every endpoint needs.
type Handler struct {
	DB        *gorm.DB
	Ledger    *ledger.Ledger
	Issuer    *license.Issuer
	Validator *license.Validator
	Verifier  *payment.Verifier
	Gateway   payment.Gateway
	Stripe    *payment.StripeEvents
	Billing   *payment.StripeBilling
	Crypto    *crypto.Crypto
	Auth      *middlewares.Authenticator
	// Notify sends an email after a committed change. Nil disables email.
	Notify func(notifications.NotificationData)
	Now    func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) notify(data notifications.NotificationData) {
	if h.Notify != nil {
		h.Notify(data)
	}
}

// ledgerHTTPError maps domain errors to the HTTP error returned to clients.
func ledgerHTTPError(c echo.Context, err error) error {
	logger := c.Logger()

	switch {
	case errors.Is(err, ledger.ErrNotFound):
		logger.Warn("Not found: ", err)
		return &echo.HTTPError{Code: http.StatusNotFound, Message: "Resource not found"}
	case errors.Is(err, ledger.ErrInvalidArgument):
		logger.Warn("Invalid argument: ", err)
		return &echo.HTTPError{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, ledger.ErrPlanRequired):
		logger.Warn("Plan required: ", err)
		return &echo.HTTPError{Code: http.StatusForbidden, Message: "A paid plan is required for a license key"}
	case errors.Is(err, ledger.ErrAlreadyIssued):
		logger.Warn("License already issued: ", err)
		return &echo.HTTPError{Code: http.StatusConflict, Message: "A license key has already been issued for this account"}
	case errors.Is(err, ledger.ErrDuplicatePayment):
		logger.Warn("Duplicate payment: ", err)
		return &echo.HTTPError{Code: http.StatusConflict, Message: "This payment has already been applied"}
	case errors.Is(err, ledger.ErrPaymentRejected):
		logger.Warn("Payment rejected: ", err)
		return &echo.HTTPError{Code: http.StatusPaymentRequired, Message: "payment could not be verified"}
	case errors.Is(err, ledger.ErrAlreadyExists):
		logger.Warn("Already exists: ", err)
		return &echo.HTTPError{Code: http.StatusConflict, Message: "This email is already registered, please try another one."}
	case errors.Is(err, license.ErrRateLimited):
		logger.Warn("Rate limited: ", err)
		return &echo.HTTPError{Code: http.StatusTooManyRequests, Message: "Too many requests, please retry later"}
	default:
		logger.Error("Unexpected error: ", err)
		return echo.ErrInternalServerError
	}
}

func unauthorized(c echo.Context, err error) error {
	c.Logger().Error("Failed to get authenticated account:", err)
	return &echo.HTTPError{
		Code:    http.StatusUnauthorized,
		Message: "Invalid or expired authentication token, please login again",
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func accountDetails(acct *models.Account) AccountDetails {
	return AccountDetails{
		ID:             acct.ID,
		Email:          acct.Email,
		DisplayName:    acct.DisplayName,
		Plan:           string(acct.Plan),
		CreditBalance:  acct.CreditBalance,
		TotalCallsEver: acct.TotalCallsEver,
		LicenseKey:     license.MaskPtr(acct.LicenseKey),
		PlanExpiry:     formatTime(acct.PlanExpiry),
		CreatedAt:      acct.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func usageEventDetails(events []models.UsageEvent) []UsageEventDetails {
	out := make([]UsageEventDetails, 0, len(events))
	for _, event := range events {
		out = append(out, UsageEventDetails{
			ID:           event.EID.String(),
			Endpoint:     event.EndpointLabel,
			CreditsDelta: event.CreditsDelta,
			CreatedAt:    event.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
