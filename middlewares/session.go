// SPDX-License-Identifier: GPL-3.0-only

package middlewares

import (
	"context"
	"errors"

	"silently-server/crypto"
	"silently-server/models"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	tokenIssuer   = "https://silently.ai"
	tokenAudience = "https://api.silently.ai"
)

// SessionClaims are carried by every session JWT. The jti is the random
// session token stored on the Session row.
type SessionClaims struct {
	SessionID uint `json:"sid"`
	AccountID uint `json:"uid"`
	jwt.RegisteredClaims
}

// SessionInfo describes the client a session is created for.
type SessionInfo struct {
	IPAddress string
	UserAgent string
}

// IssueSession stores a new session for the account and returns its signed JWT.
func (a *Authenticator) IssueSession(ctx context.Context, accountID uint, info SessionInfo) (string, *models.Session, error) {
	sessionToken, err := crypto.GenerateRandomString("st_", 32, "hex")
	if err != nil {
		return "", nil, err
	}

	now := a.now()
	session := models.Session{
		Token:      sessionToken,
		LastUsedAt: &now,
		ExpiresAt:  now.Add(a.SessionTTL),
		AccountID:  accountID,
	}
	if info.IPAddress != "" {
		session.IPAddress = &info.IPAddress
	}
	if info.UserAgent != "" {
		session.UserAgent = &info.UserAgent
	}
	if err := a.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return "", nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		SessionID: session.ID,
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ID:        sessionToken,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString([]byte(a.JWTSecret))
	if err != nil {
		return "", nil, err
	}
	return signed, &session, nil
}

func (a *Authenticator) parseSession(ctx context.Context, tokenString string) (*models.Session, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(a.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid session token")
	}

	session := models.Session{}
	err = a.DB.WithContext(ctx).
		Where("id = ? AND account_id = ? AND token = ?", claims.SessionID, claims.AccountID, claims.ID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ExpiresAt.Before(a.now()) {
		return nil, errors.New("session expired")
	}

	now := a.now()
	if err := a.DB.WithContext(ctx).Model(&session).UpdateColumn("last_used_at", now).Error; err != nil {
		return nil, err
	}
	session.LastUsedAt = &now
	return &session, nil
}

// RevokeSession deletes the session so its JWT stops working.
func RevokeSession(ctx context.Context, db *gorm.DB, session *models.Session) error {
	return db.WithContext(ctx).Unscoped().Delete(session).Error
}
