// SPDX-License-Identifier: GPL-3.0-only

package middlewares

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"silently-server/ledger"
	"silently-server/license"
	"silently-server/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type AuthMethod int

const (
	AuthMethodSession AuthMethod = iota
	AuthMethodLicenseKey
)

const (
	ctxSession    = "session"
	ctxAccountID  = "account_id"
	ctxAuthMethod = "auth_method"
)

// Authenticator resolves the bearer token of a request to an account.
type Authenticator struct {
	DB         *gorm.DB
	Ledger     *ledger.Ledger
	JWTSecret  string
	SessionTTL time.Duration
	Now        func() time.Time
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// VerifyAuthMiddleware accepts a session JWT by default. License keys are
// accepted as bearer tokens only when AuthMethodLicenseKey is listed.
func (a *Authenticator) VerifyAuthMiddleware(authMethods ...AuthMethod) echo.MiddlewareFunc {
	if len(authMethods) == 0 {
		authMethods = []AuthMethod{AuthMethodSession}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			logger := c.Logger()
			ctx := c.Request().Context()

			bearer, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
			bearer = strings.TrimSpace(bearer)
			if !ok || bearer == "" {
				logger.Error("Authorization header missing or invalid.")
				return &echo.HTTPError{
					Code:    http.StatusUnauthorized,
					Message: "Bearer token is required",
				}
			}

			if slices.Contains(authMethods, AuthMethodLicenseKey) && strings.HasPrefix(bearer, license.KeyPrefix) {
				acct, err := a.Ledger.FindByLicenseKey(ctx, bearer)
				if err == nil {
					c.Set(ctxAccountID, acct.ID)
					c.Set(ctxAuthMethod, AuthMethodLicenseKey)
					return next(c)
				}
				if !errors.Is(err, ledger.ErrNotFound) {
					logger.Errorf("License key lookup failed: %v", err)
					return echo.ErrInternalServerError
				}
			}

			if slices.Contains(authMethods, AuthMethodSession) {
				session, err := a.parseSession(ctx, bearer)
				if err == nil {
					c.Set(ctxSession, *session)
					c.Set(ctxAccountID, session.AccountID)
					c.Set(ctxAuthMethod, AuthMethodSession)
					return next(c)
				}
				logger.Debugf("Session verification failed: %v", err)
			}

			logger.Error("Authentication failed.")
			return &echo.HTTPError{
				Code:    http.StatusUnauthorized,
				Message: "Invalid or expired authentication token",
			}
		}
	}
}

func GetAuthenticatedAccountID(c echo.Context) (uint, error) {
	if id, ok := c.Get(ctxAccountID).(uint); ok && id != 0 {
		return id, nil
	}
	return 0, errors.New("no authenticated account found")
}

func GetAuthMethod(c echo.Context) (AuthMethod, bool) {
	m, ok := c.Get(ctxAuthMethod).(AuthMethod)
	return m, ok
}

// GetSession returns the session of a request authenticated with a session JWT.
func GetSession(c echo.Context) (*models.Session, bool) {
	session, ok := c.Get(ctxSession).(models.Session)
	if !ok {
		return nil, false
	}
	return &session, true
}
