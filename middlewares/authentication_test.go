// SPDX-License-Identifier: GPL-3.0-only

package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"silently-server/db"
	"silently-server/ledger"
	"silently-server/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	auth      *Authenticator
	e         *echo.Echo
	accountID uint
	now       time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	conn, err := db.Open("sqlite", filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	l := ledger.New(ledger.NewGormStore(conn))
	acct, err := l.CreateAccount(context.Background(), "auth@example.com", "", "hash")
	require.NoError(t, err)

	f := &authFixture{accountID: acct.ID, now: time.Now()}
	f.auth = &Authenticator{
		DB:         conn,
		Ledger:     l,
		JWTSecret:  "secret",
		SessionTTL: time.Hour,
		Now:        func() time.Time { return f.now },
	}

	whoami := func(c echo.Context) error {
		id, err := GetAuthenticatedAccountID(c)
		if err != nil {
			return err
		}
		method, _ := GetAuthMethod(c)
		return c.String(http.StatusOK, fmt.Sprintf("%d:%d", id, method))
	}
	f.e = echo.New()
	f.e.GET("/session-only", whoami, f.auth.VerifyAuthMiddleware())
	f.e.GET("/either", whoami, f.auth.VerifyAuthMiddleware(AuthMethodSession, AuthMethodLicenseKey))
	return f
}

func (f *authFixture) get(path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestSessionTokenLifecycle(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	token, session, err := f.auth.IssueSession(ctx, f.accountID, SessionInfo{IPAddress: "203.0.113.7", UserAgent: "test"})
	require.NoError(t, err)
	require.NotNil(t, session.IPAddress)
	assert.Equal(t, "203.0.113.7", *session.IPAddress)

	rec := f.get("/session-only", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprintf("%d:%d", f.accountID, AuthMethodSession), rec.Body.String())

	f.now = f.now.Add(2 * time.Hour)
	assert.Equal(t, http.StatusUnauthorized, f.get("/session-only", token).Code)
	f.now = f.now.Add(-2 * time.Hour)

	require.NoError(t, RevokeSession(ctx, f.auth.DB, session))
	assert.Equal(t, http.StatusUnauthorized, f.get("/session-only", token).Code)
}

func TestSessionTokenRejectsForgeries(t *testing.T) {
	f := newAuthFixture(t)

	_, session, err := f.auth.IssueSession(context.Background(), f.accountID, SessionInfo{})
	require.NoError(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		SessionID: session.ID,
		AccountID: f.accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ID:        session.Token,
			ExpiresAt: jwt.NewNumericDate(f.now.Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.get("/session-only", signed).Code)

	wrongJTI := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		SessionID: session.ID,
		AccountID: f.accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ID:        "st_guessed",
			ExpiresAt: jwt.NewNumericDate(f.now.Add(time.Hour)),
		},
	})
	signed, err = wrongJTI.SignedString([]byte(f.auth.JWTSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.get("/session-only", signed).Code)

	assert.Equal(t, http.StatusUnauthorized, f.get("/session-only", "").Code)
}

func TestLicenseKeyBearer(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	expiry := f.now.Add(30 * 24 * time.Hour)
	_, err := f.auth.Ledger.UpgradePlan(ctx, f.accountID, models.ProPlan, 100, &expiry)
	require.NoError(t, err)
	const key = "SL-TEST-0123456789ABCDEF"
	_, err = f.auth.Ledger.AssignLicenseKey(ctx, f.accountID, key)
	require.NoError(t, err)

	rec := f.get("/either", key)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprintf("%d:%d", f.accountID, AuthMethodLicenseKey), rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, f.get("/session-only", key).Code)
	assert.Equal(t, http.StatusUnauthorized, f.get("/either", "SL-UNKNOWN").Code)
}
