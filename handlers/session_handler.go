// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"silently-server/middlewares"
	"silently-server/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// GetSessionsHandler godoc
// @Summary      List sessions
// @Description  Lists the sessions of the authenticated account, most recently used first.
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Param        page     query   int     false  "Page number (default 1)"
// @Param        page_size query  int     false  "Page size (default 10, max 100)"
// @Success      200 {object} SessionListResponse "Paginated list of sessions"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/sessions [get]
func (h *Handler) GetSessionsHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}
	currentSession, currentSessionExists := middlewares.GetSession(c)

	page := 1
	pageSize := 10
	if p := c.QueryParam("page"); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &page); err != nil || page < 1 {
			page = 1
		}
	}
	if ps := c.QueryParam("page_size"); ps != "" {
		if _, err := fmt.Sscanf(ps, "%d", &pageSize); err != nil || pageSize < 1 {
			pageSize = 10
		}
	}
	pageSize = min(pageSize, 100)

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Session{}).Where("account_id = ?", accountID).Count(&total).Error; err != nil {
		logger.Errorf("Failed to count sessions: %v", err)
		return echo.ErrInternalServerError
	}

	var sessions []models.Session
	if err := h.DB.WithContext(ctx).Where("account_id = ?", accountID).
		Order("last_used_at DESC, created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&sessions).Error; err != nil {
		logger.Errorf("Failed to fetch sessions: %v", err)
		return echo.ErrInternalServerError
	}

	now := h.now()
	details := make([]SessionDetails, 0, len(sessions))
	for _, session := range sessions {
		details = append(details, SessionDetails{
			ID:         session.ID,
			IsCurrent:  currentSessionExists && currentSession.ID == session.ID,
			IsExpired:  session.ExpiresAt.Before(now),
			LastUsedAt: formatTime(session.LastUsedAt),
			IPAddress:  session.IPAddress,
			UserAgent:  session.UserAgent,
			CreatedAt:  session.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, SessionListResponse{
		Data: details,
		Pagination: PaginationDetails{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
		Message: "Sessions retrieved successfully",
	})
}

// DeleteSessionHandler godoc
// @Summary      Delete a session
// @Description  Deletes another session of the authenticated account. Use logout for the current session.
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Param        session_id    path    string  true  "Session ID"
// @Success      200 {object} GenericResponse    "Session deleted successfully"
// @Failure      400 {object} echo.HTTPError     "Bad request, cannot delete current session"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      404 {object} echo.HTTPError     "Session not found"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/sessions/{session_id} [delete]
func (h *Handler) DeleteSessionHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	var sessionID uint
	if _, err := fmt.Sscanf(c.Param("session_id"), "%d", &sessionID); err != nil {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "Invalid session ID format",
		}
	}

	if current, ok := middlewares.GetSession(c); ok && current.ID == sessionID {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "Cannot delete current session. Use logout endpoint instead.",
		}
	}

	session := models.Session{}
	if err := h.DB.WithContext(ctx).Where("id = ? AND account_id = ?", sessionID, accountID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Errorf("Session not found: %v", err)
			return &echo.HTTPError{
				Code:    http.StatusNotFound,
				Message: "Session not found",
			}
		}
		logger.Errorf("Failed to fetch session: %v", err)
		return echo.ErrInternalServerError
	}

	if err := middlewares.RevokeSession(ctx, h.DB, &session); err != nil {
		logger.Errorf("Failed to delete session: %v", err)
		return echo.ErrInternalServerError
	}

	logger.Infof("Session %d deleted for account %d", sessionID, accountID)
	return c.JSON(http.StatusOK, GenericResponse{
		Message: "Session deleted successfully",
	})
}

// DeleteAllSessionsHandler godoc
// @Summary      Delete all other sessions
// @Description  Deletes every session of the authenticated account except the current one.
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Success      200 {object} DeleteAllSessionsResponse "Sessions deleted successfully"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/sessions [delete]
func (h *Handler) DeleteAllSessionsHandler(c echo.Context) error {
	logger := c.Logger()

	current, ok := middlewares.GetSession(c)
	if !ok {
		return unauthorized(c, errors.New("request was not authenticated with a session"))
	}

	result := h.DB.WithContext(c.Request().Context()).Unscoped().
		Where("account_id = ? AND id <> ?", current.AccountID, current.ID).
		Delete(&models.Session{})
	if result.Error != nil {
		logger.Errorf("Failed to delete sessions: %v", result.Error)
		return echo.ErrInternalServerError
	}

	logger.Infof("Deleted %d sessions for account %d", result.RowsAffected, current.AccountID)
	return c.JSON(http.StatusOK, DeleteAllSessionsResponse{
		DeletedCount: int(result.RowsAffected),
		Message:      "All other sessions deleted successfully",
	})
}
