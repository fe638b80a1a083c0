// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"silently-server/ledger"
	"silently-server/middlewares"
	"silently-server/passwordcheck"

	"github.com/labstack/echo/v4"
)

// SignupHandler godoc
// @Summary      Create an account
// @Description  Creates a free account with the starter credit grant and returns a session token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        signupRequest  body  SignupRequest  true  "Signup request payload"
// @Success      201 {object} AuthResponse       "Account created"
// @Failure      400 {object} echo.HTTPError     "Bad request, missing or invalid fields"
// @Failure      409 {object} echo.HTTPError     "Email already registered"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/auth/signup [post]
func (h *Handler) SignupHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid signup request payload:", err)
		return echo.ErrBadRequest
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		logger.Error("Email is required.")
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "email field is required",
		}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Error("Invalid email address:", err)
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "email field is not a valid email address",
		}
	}
	if req.Password == "" {
		logger.Error("Password is required.")
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "password field is required",
		}
	}
	if err := passwordcheck.ValidatePassword(ctx, req.Password); err != nil {
		logger.Error("Password validation failed:", err)
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
		}
	}

	hash, err := h.Crypto.HashPassword(req.Password)
	if err != nil {
		logger.Errorf("Failed to hash password: %v", err)
		return echo.ErrInternalServerError
	}

	acct, err := h.Ledger.CreateAccount(ctx, req.Email, req.DisplayName, hash)
	if err != nil {
		return ledgerHTTPError(c, err)
	}

	token, _, err := h.Auth.IssueSession(ctx, acct.ID, sessionInfo(c))
	if err != nil {
		logger.Errorf("Failed to create session: %v", err)
		return echo.ErrInternalServerError
	}

	logger.Infof("Account %d signed up", acct.ID)
	return c.JSON(http.StatusCreated, AuthResponse{
		SessionToken: token,
		Account:      accountDetails(acct),
		Message:      "Signup successful",
	})
}

// LoginHandler godoc
// @Summary      Login
// @Description  Authenticates an account and returns a session token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest  body  LoginRequest  true  "Login request payload"
// @Success      200 {object} AuthResponse       "Login successful"
// @Failure      400 {object} echo.HTTPError     "Bad request, missing required fields"
// @Failure      401 {object} echo.HTTPError     "Unauthorized"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/auth/login [post]
func (h *Handler) LoginHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid login request payload:", err)
		return echo.ErrBadRequest
	}

	if req.Email == "" {
		logger.Error("Email is required.")
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "email field is required",
		}
	}
	if req.Password == "" {
		logger.Error("Password is required.")
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "password field is required",
		}
	}

	acct, err := h.Ledger.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			logger.Error("Account not found.")
			return &echo.HTTPError{
				Code:    http.StatusUnauthorized,
				Message: "Credentials are incorrect, please check your email and password",
			}
		}
		logger.Errorf("Failed to find account: %v", err)
		return echo.ErrInternalServerError
	}

	if err := h.Crypto.VerifyPassword(req.Password, acct.Password); err != nil {
		logger.Error("Password verification failed.")
		return &echo.HTTPError{
			Code:    http.StatusUnauthorized,
			Message: "Credentials are incorrect, please check your email and password",
		}
	}

	token, _, err := h.Auth.IssueSession(ctx, acct.ID, sessionInfo(c))
	if err != nil {
		logger.Errorf("Failed to create session: %v", err)
		return echo.ErrInternalServerError
	}

	logger.Infof("Account %d logged in", acct.ID)
	return c.JSON(http.StatusOK, AuthResponse{
		SessionToken: token,
		Account:      accountDetails(acct),
		Message:      "Login successful",
	})
}

// LogoutHandler godoc
// @Summary      Logout
// @Description  Revokes the session used to authenticate this request.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Success      200 {object} GenericResponse    "Logout successful"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/auth/logout [post]
func (h *Handler) LogoutHandler(c echo.Context) error {
	logger := c.Logger()

	session, ok := middlewares.GetSession(c)
	if !ok {
		return unauthorized(c, errors.New("request was not authenticated with a session"))
	}

	if err := middlewares.RevokeSession(c.Request().Context(), h.DB, session); err != nil {
		logger.Errorf("Failed to delete session: %v", err)
		return echo.ErrInternalServerError
	}

	logger.Infof("Session %d revoked for account %d", session.ID, session.AccountID)
	return c.JSON(http.StatusOK, GenericResponse{
		Message: "Logout successful",
	})
}

func sessionInfo(c echo.Context) middlewares.SessionInfo {
	return middlewares.SessionInfo{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
