// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"net/http"
	"strconv"

	"silently-server/ledger"
	"silently-server/middlewares"

	"github.com/labstack/echo/v4"
)

// RecordUsageHandler godoc
// @Summary      Record usage
// @Description  Charges credits for one call to a metered endpoint. The balance never drops below zero.
// @Tags         usage
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Session token or license key as a bearer token."  default(Bearer <your_token_here>)
// @Param        usageRequest  body  RecordUsageRequest  true  "Usage payload"
// @Success      200 {object} RecordUsageResponse "Usage recorded successfully"
// @Failure      400 {object} echo.HTTPError     "Bad request, missing or invalid fields"
// @Failure      401 {object} echo.HTTPError     "Unauthorized"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/usage [post]
func (h *Handler) RecordUsageHandler(c echo.Context) error {
	logger := c.Logger()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	var req RecordUsageRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid usage request payload:", err)
		return echo.ErrBadRequest
	}
	if req.CreditsUsed == 0 {
		req.CreditsUsed = 1
	}

	acct, err := h.Ledger.ApplyUsage(c.Request().Context(), accountID, req.Endpoint, req.CreditsUsed)
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	return c.JSON(http.StatusOK, RecordUsageResponse{
		NewBalance: acct.CreditBalance,
		TotalCalls: acct.TotalCallsEver,
		Message:    "Usage recorded successfully",
	})
}

// GetUsageHistoryHandler godoc
// @Summary      Usage history
// @Description  Returns the most recent usage events of the authenticated account, newest first.
// @Tags         usage
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Param        limit  query  int  false  "Number of events (default 50, max 100)"
// @Success      200 {object} UsageHistoryResponse "Usage history retrieved successfully"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/usage [get]
func (h *Handler) GetUsageHistoryHandler(c echo.Context) error {
	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	limit := ledger.DefaultHistoryLimit
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	events, err := h.Ledger.Recorder().History(c.Request().Context(), accountID, limit)
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	return c.JSON(http.StatusOK, UsageHistoryResponse{
		Data:    usageEventDetails(events),
		Message: "Usage history retrieved successfully",
	})
}
