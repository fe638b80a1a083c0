// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"net/http"
	"time"

	"silently-server/middlewares"
	"silently-server/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// GetSubscriptionHandler godoc
// @Summary      Get current subscription
// @Description  Returns the most recent subscription of the authenticated account.
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Success      200 {object} SubscriptionResponse "Subscription retrieved successfully"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      404 {object} echo.HTTPError     "No subscription found"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/subscription [get]
func (h *Handler) GetSubscriptionHandler(c echo.Context) error {
	logger := c.Logger()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	sub := models.Subscription{}
	err = h.DB.WithContext(c.Request().Context()).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warnf("No subscription found for account %d", accountID)
			return &echo.HTTPError{
				Code:    http.StatusNotFound,
				Message: "No subscription found",
			}
		}
		logger.Errorf("Failed to fetch subscription: %v", err)
		return echo.ErrInternalServerError
	}

	return c.JSON(http.StatusOK, SubscriptionResponse{
		ID:            sub.ID,
		Provider:      string(sub.Provider),
		Plan:          string(sub.Plan),
		Status:        string(sub.Status),
		StartedAt:     sub.StartedAt.UTC().Format(time.RFC3339),
		ExpiresAt:     formatTime(sub.ExpiresAt),
		DaysRemaining: models.DaysRemaining(sub.ExpiresAt, h.now()),
		Message:       "Subscription retrieved successfully",
	})
}
