// SPDX-License-Identifier: GPL-3.0-only

package license

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"silently-server/commons"
	"silently-server/ledger"
	"silently-server/metrics"
	"silently-server/models"

	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

var ErrRateLimited = errors.New("license: too many validation attempts")

const (
	MessageInvalidKey   = "Invalid license key"
	MessageExpired      = "License expired"
	MessageNoCallsLeft  = "No API calls remaining"
	defaultLimiterTTL   = 10 * time.Minute
	limiterSweepTrigger = 1024
)

// Result is what the desktop tool receives for a validation attempt.
type Result struct {
	Valid         bool   `json:"valid"`
	CreditsLeft   *int64 `json:"api_calls_left,omitempty"`
	DaysRemaining *int   `json:"days_remaining,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Attempt describes the caller of a validation.
type Attempt struct {
	LicenseKey   string
	HardwareHash string
	IPAddress    string
	UserAgent    string
}

// ValidationLog stores one row per validation attempt.
type ValidationLog interface {
	LogValidation(ctx context.Context, entry *models.LicenseValidation) error
}

type GormValidationLog struct {
	DB *gorm.DB
}

func (g GormValidationLog) LogValidation(ctx context.Context, entry *models.LicenseValidation) error {
	return g.DB.WithContext(ctx).Create(entry).Error
}

type NopValidationLog struct{}

func (NopValidationLog) LogValidation(context.Context, *models.LicenseValidation) error { return nil }

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Validator struct {
	ledger *ledger.Ledger
	log    ValidationLog
	now    func() time.Time

	rate  rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type ValidatorOption func(*Validator)

// WithRateLimit sets the per-key token bucket: r validations per second with
// the given burst.
func WithRateLimit(r float64, burst int) ValidatorOption {
	return func(v *Validator) {
		v.rate = rate.Limit(r)
		v.burst = burst
	}
}

func WithValidationLog(log ValidationLog) ValidatorOption {
	return func(v *Validator) {
		v.log = log
	}
}

func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.now = now
	}
}

func NewValidator(l *ledger.Ledger, opts ...ValidatorOption) *Validator {
	v := &Validator{
		ledger:   l,
		log:      NopValidationLog{},
		now:      time.Now,
		rate:     rate.Limit(1),
		burst:    5,
		ttl:      defaultLimiterTTL,
		limiters: make(map[string]*limiterEntry),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks a license key for the desktop tool and, when it is good,
// charges one credit to the owning account. Invalid, expired and exhausted
// keys yield a Result with Valid false rather than an error.
func (v *Validator) Validate(ctx context.Context, attempt Attempt) (*Result, error) {
	attempt.LicenseKey = strings.TrimSpace(attempt.LicenseKey)
	attempt.HardwareHash = strings.TrimSpace(attempt.HardwareHash)
	if attempt.LicenseKey == "" || attempt.HardwareHash == "" {
		return nil, fmt.Errorf("%w: license key and hardware hash are required", ledger.ErrInvalidArgument)
	}

	if !v.allow(attempt.LicenseKey) {
		metrics.LicenseValidationsTotal.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	acct, err := v.ledger.FindByLicenseKey(ctx, attempt.LicenseKey)
	if errors.Is(err, ledger.ErrNotFound) {
		v.record(ctx, 0, attempt, false, nil, MessageInvalidKey)
		return v.reject(MessageInvalidKey, "invalid_key"), nil
	}
	if err != nil {
		return nil, err
	}

	updated, err := v.ledger.ConsumeLicenseCall(ctx, acct.ID, attempt.LicenseKey, attempt.HardwareHash)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		v.record(ctx, acct.ID, attempt, false, nil, MessageInvalidKey)
		return v.reject(MessageInvalidKey, "invalid_key"), nil
	case errors.Is(err, ledger.ErrPlanExpired):
		v.record(ctx, acct.ID, attempt, false, &acct.CreditBalance, MessageExpired)
		return v.reject(MessageExpired, "expired"), nil
	case errors.Is(err, ledger.ErrNoCreditsLeft):
		v.record(ctx, acct.ID, attempt, false, &acct.CreditBalance, MessageNoCallsLeft)
		return v.reject(MessageNoCallsLeft, "no_credits"), nil
	case err != nil:
		return nil, err
	}

	left := updated.CreditBalance
	v.record(ctx, updated.ID, attempt, true, &left, "")
	metrics.LicenseValidationsTotal.WithLabelValues("valid").Inc()
	return &Result{
		Valid:         true,
		CreditsLeft:   &left,
		DaysRemaining: models.DaysRemaining(updated.PlanExpiry, v.now()),
	}, nil
}

func (v *Validator) reject(message, outcome string) *Result {
	metrics.LicenseValidationsTotal.WithLabelValues(outcome).Inc()
	return &Result{Valid: false, Message: message}
}

func (v *Validator) record(ctx context.Context, accountID uint, attempt Attempt, success bool, creditsLeft *int64, reason string) {
	entry := &models.LicenseValidation{
		AccountID:      accountID,
		LicenseKeyHint: Mask(attempt.LicenseKey),
		HardwareHash:   attempt.HardwareHash,
		Success:        success,
		CreditsLeft:    creditsLeft,
		IPAddress:      optional(attempt.IPAddress),
		UserAgent:      optional(attempt.UserAgent),
		CreatedAt:      v.now(),
	}
	if reason != "" {
		entry.Reason = &reason
	}
	if err := v.log.LogValidation(context.WithoutCancel(ctx), entry); err != nil {
		commons.Logger.Errorf("Failed to log license validation for account %d: %v", accountID, err)
	}
}

// allow takes a token from the key's bucket. Idle buckets are swept once
// the map grows past limiterSweepTrigger entries.
func (v *Validator) allow(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if len(v.limiters) >= limiterSweepTrigger {
		for k, e := range v.limiters {
			if now.Sub(e.lastSeen) > v.ttl {
				delete(v.limiters, k)
			}
		}
	}

	e, ok := v.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(v.rate, v.burst)}
		v.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
