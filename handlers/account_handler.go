// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"net/http"

	"silently-server/middlewares"
	"silently-server/models"

	"github.com/labstack/echo/v4"
)

const statsRecentEvents = 10

// GetAccountHandler godoc
// @Summary      Get account
// @Description  Returns the authenticated account. The license key is masked.
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Success      200 {object} AccountResponse    "Account retrieved successfully"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      404 {object} echo.HTTPError     "Account not found"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/account [get]
func (h *Handler) GetAccountHandler(c echo.Context) error {
	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	acct, err := h.Ledger.GetAccount(c.Request().Context(), accountID)
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	return c.JSON(http.StatusOK, AccountResponse{
		Account: accountDetails(acct),
		Message: "Account retrieved successfully",
	})
}

// UpdateAccountHandler godoc
// @Summary      Update account profile
// @Description  Changes the display name of the authenticated account. Plan, balance and license fields change only through payments and usage.
// @Tags         account
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Param        updateRequest  body  UpdateAccountRequest  true  "Profile update payload"
// @Success      200 {object} AccountResponse    "Account updated successfully"
// @Failure      400 {object} echo.HTTPError     "Bad request, empty or overlong display name"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      404 {object} echo.HTTPError     "Account not found"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/account [put]
func (h *Handler) UpdateAccountHandler(c echo.Context) error {
	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	var req UpdateAccountRequest
	if err := c.Bind(&req); err != nil {
		c.Logger().Error("Invalid account update payload:", err)
		return echo.ErrBadRequest
	}

	acct, err := h.Ledger.UpdateDisplayName(c.Request().Context(), accountID, req.DisplayName)
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	return c.JSON(http.StatusOK, AccountResponse{
		Account: accountDetails(acct),
		Message: "Account updated successfully",
	})
}

// GetStatsHandler godoc
// @Summary      Get dashboard stats
// @Description  Returns plan, balance, call totals and the most recent usage events of the authenticated account.
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Success      200 {object} StatsResponse      "Stats retrieved successfully"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      404 {object} echo.HTTPError     "Account not found"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/account/stats [get]
func (h *Handler) GetStatsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	acct, err := h.Ledger.GetAccount(ctx, accountID)
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	events, err := h.Ledger.Recorder().History(ctx, accountID, statsRecentEvents)
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	return c.JSON(http.StatusOK, StatsResponse{
		Plan:           string(acct.Plan),
		CreditBalance:  acct.CreditBalance,
		TotalCallsEver: acct.TotalCallsEver,
		PlanExpiry:     formatTime(acct.PlanExpiry),
		DaysRemaining:  models.DaysRemaining(acct.PlanExpiry, h.now()),
		LicenseIssued:  acct.LicenseKey != nil,
		RecentUsage:    usageEventDetails(events),
		Message:        "Stats retrieved successfully",
	})
}
