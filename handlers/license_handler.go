// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"net/http"

	"silently-server/license"
	"silently-server/middlewares"
	"silently-server/notifications"

	"github.com/labstack/echo/v4"
)

// IssueLicenseHandler godoc
// @Summary      Issue a license key
// @Description  Issues the desktop license key for a paid account. A key is issued at most once.
// @Tags         license
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Success      201 {object} LicenseResponse    "License key issued successfully"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      403 {object} echo.HTTPError     "A paid plan is required"
// @Failure      409 {object} echo.HTTPError     "License key already issued"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/license [post]
func (h *Handler) IssueLicenseHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	key, err := h.Issuer.Issue(ctx, accountID)
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	if acct, err := h.Ledger.GetAccount(ctx, accountID); err == nil {
		h.notify(notifications.LicenseIssued(acct, license.Mask(key)))
	} else {
		logger.Warnf("License issued but account %d could not be reloaded for email: %v", accountID, err)
	}

	logger.Infof("License key %s issued for account %d", license.Mask(key), accountID)
	return c.JSON(http.StatusCreated, LicenseResponse{
		LicenseKey: key,
		Message:    "License key issued successfully",
	})
}

// RevealLicenseHandler godoc
// @Summary      Reveal license key
// @Description  Returns the full license key of the authenticated account.
// @Tags         license
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Success      200 {object} LicenseResponse    "License key retrieved successfully"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      404 {object} echo.HTTPError     "No license key issued"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/license/reveal [get]
func (h *Handler) RevealLicenseHandler(c echo.Context) error {
	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	key, err := h.Issuer.Reveal(c.Request().Context(), accountID)
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	return c.JSON(http.StatusOK, LicenseResponse{
		LicenseKey: key,
		Message:    "License key retrieved successfully",
	})
}

// ValidateLicenseHandler godoc
// @Summary      Validate a license key
// @Description  Called by the desktop tool. A valid key is charged one credit. Invalid, expired and exhausted keys return valid=false with a message.
// @Tags         license
// @Accept       json
// @Produce      json
// @Param        validateRequest  body  ValidateLicenseRequest  true  "Validation request payload"
// @Success      200 {object} ValidateLicenseResponse "Validation result"
// @Failure      400 {object} echo.HTTPError     "Bad request, missing required fields"
// @Failure      429 {object} echo.HTTPError     "Too many requests"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/license/validate [post]
func (h *Handler) ValidateLicenseHandler(c echo.Context) error {
	logger := c.Logger()

	var req ValidateLicenseRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid validate request payload:", err)
		return echo.ErrBadRequest
	}

	result, err := h.Validator.Validate(c.Request().Context(), license.Attempt{
		LicenseKey:   req.LicenseKey,
		HardwareHash: req.HardwareHash,
		IPAddress:    c.RealIP(),
		UserAgent:    c.Request().UserAgent(),
	})
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	return c.JSON(http.StatusOK, ValidateLicenseResponse{
		Valid:         result.Valid,
		APICallsLeft:  result.CreditsLeft,
		DaysRemaining: result.DaysRemaining,
		Message:       result.Message,
	})
}
