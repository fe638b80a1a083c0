// SPDX-License-Identifier: GPL-3.0-only

// Package license issues desktop license keys to paid accounts and
// validates them for the desktop tool.
package license

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"silently-server/commons"
	"silently-server/crypto"
	"silently-server/ledger"
	"silently-server/metrics"
)

const (
	KeyPrefix = "SL-"

	// maxIssueAttempts bounds re-rolls when a generated key collides.
	maxIssueAttempts = 5
)

// KeyGenerator returns a fresh candidate license key.
type KeyGenerator func() (string, error)

type Issuer struct {
	ledger  *ledger.Ledger
	newKey  KeyGenerator
	onIssue func(ctx context.Context, accountID uint)
}

type IssuerOption func(*Issuer)

func WithKeyGenerator(gen KeyGenerator) IssuerOption {
	return func(i *Issuer) {
		i.newKey = gen
	}
}

// WithIssueHook runs fn after a key has been committed.
func WithIssueHook(fn func(ctx context.Context, accountID uint)) IssuerOption {
	return func(i *Issuer) {
		i.onIssue = fn
	}
}

func NewIssuer(l *ledger.Ledger, opts ...IssuerOption) *Issuer {
	i := &Issuer{ledger: l, newKey: GenerateKey}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// GenerateKey builds SL-<base36 unix millis>-<128 random bits as hex>, upper case.
func GenerateKey() (string, error) {
	random, err := crypto.GenerateRandomString("", 16, "hex")
	if err != nil {
		return "", fmt.Errorf("license: generate key: %w", err)
	}
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return strings.ToUpper(KeyPrefix + stamp + "-" + random), nil
}

// Issue assigns a new license key to a paid account that has none.
func (i *Issuer) Issue(ctx context.Context, accountID uint) (string, error) {
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		key, err := i.newKey()
		if err != nil {
			return "", err
		}

		_, err = i.ledger.AssignLicenseKey(ctx, accountID, key)
		if errors.Is(err, ledger.ErrLicenseKeyTaken) {
			commons.Logger.Warnf("Generated license key collided for account %d, attempt %d", accountID, attempt)
			continue
		}
		if err != nil {
			return "", err
		}

		metrics.LicensesIssuedTotal.Inc()
		commons.Logger.Infof("License key %s issued to account %d", Mask(key), accountID)
		if i.onIssue != nil {
			i.onIssue(ctx, accountID)
		}
		return key, nil
	}
	return "", fmt.Errorf("license: no unique key after %d attempts: %w", maxIssueAttempts, ledger.ErrLicenseKeyTaken)
}

// Reveal returns the full key to its owner.
func (i *Issuer) Reveal(ctx context.Context, accountID uint) (string, error) {
	acct, err := i.ledger.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if acct.LicenseKey == nil {
		return "", fmt.Errorf("%w: no license key issued", ledger.ErrNotFound)
	}
	return *acct.LicenseKey, nil
}

// Mask renders a key for listings, keeping only its last four characters.
func Mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= len(KeyPrefix)+4 {
		return KeyPrefix + "…"
	}
	return KeyPrefix + "…" + key[len(key)-4:]
}

// MaskPtr is Mask for optional keys.
func MaskPtr(key *string) *string {
	if key == nil {
		return nil
	}
	m := Mask(*key)
	return &m
}
