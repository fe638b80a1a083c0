// SPDX-License-Identifier: GPL-3.0-only

// Package ledger owns each account's plan, credit balance, license key and
// the append-only usage trail that explains the balance.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"silently-server/commons"
	"silently-server/metrics"
	"silently-server/models"
)

const (
	LabelTopUp           = "topup"
	LabelStarterGrant    = "grant:starter"
	LabelLicenseIssued   = "license.issued"
	LabelLicenseValidate = "license.validate"
)

const MaxDisplayNameLength = 100

// PlanLabel is the usage label recorded when an account moves to plan.
func PlanLabel(plan models.PlanName) string {
	return "plan:" + string(plan)
}

type Ledger struct {
	store    Store
	recorder *Recorder
	locks    *accountLocks
	now      func() time.Time
}

type Option func(*Ledger)

// WithPublisher forwards committed usage events to p.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) {
		l.recorder.publisher = p
	}
}

// WithClock overrides the time source used for event timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
		l.recorder.now = now
	}
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		recorder: newRecorder(store),
		locks:    newAccountLocks(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Recorder() *Recorder {
	return l.recorder
}

type mutationOptions struct {
	reference *string
}

type MutationOption func(*mutationOptions)

// WithReference tags the mutation's usage event with an external payment id.
// A reference can be applied at most once.
func WithReference(ref string) MutationOption {
	return func(o *mutationOptions) {
		if ref != "" {
			o.reference = &ref
		}
	}
}

func (l *Ledger) CreateAccount(ctx context.Context, email, displayName, passwordHash string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidArgument)
	}
	acct := &models.Account{
		Email:         email,
		DisplayName:   strings.TrimSpace(displayName),
		Password:      passwordHash,
		Plan:          models.FreePlan,
		CreditBalance: models.StarterGrant,
	}
	events := []models.UsageEvent{l.event(LabelStarterGrant, -models.StarterGrant, nil)}
	err := l.store.CreateAccount(ctx, acct, events)
	metrics.LedgerMutationsTotal.WithLabelValues("create_account", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	l.recorder.publish(ctx, events)
	commons.Logger.Infof("Account %d created on free plan with %d credits", acct.ID, acct.CreditBalance)
	return acct, nil
}

func (l *Ledger) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	return l.store.GetAccount(ctx, id)
}

func (l *Ledger) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return l.store.FindAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (l *Ledger) FindByLicenseKey(ctx context.Context, key string) (*models.Account, error) {
	return l.store.FindAccountByLicenseKey(ctx, key)
}

func (l *Ledger) FindByStripeCustomer(ctx context.Context, customerID string) (*models.Account, error) {
	return l.store.FindAccountByStripeCustomer(ctx, customerID)
}

// UpdateDisplayName replaces the account's display name. Names are trimmed
// and limited to MaxDisplayNameLength characters.
func (l *Ledger) UpdateDisplayName(ctx context.Context, id uint, name string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidArgument)
	}
	if n := utf8.RuneCountInString(name); n > MaxDisplayNameLength {
		return nil, fmt.Errorf("%w: display name is %d characters, at most %d allowed", ErrInvalidArgument, n, MaxDisplayNameLength)
	}
	return l.mutate(ctx, "update_profile", id, func(acct *models.Account) ([]models.UsageEvent, error) {
		acct.DisplayName = name
		return nil, nil
	})
}

// LinkStripeCustomer remembers the Stripe customer that pays for the account.
func (l *Ledger) LinkStripeCustomer(ctx context.Context, id uint, customerID string) (*models.Account, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: stripe customer id is required", ErrInvalidArgument)
	}
	return l.mutate(ctx, "link_stripe", id, func(acct *models.Account) ([]models.UsageEvent, error) {
		acct.StripeCustomerID = &customerID
		return nil, nil
	})
}

// ApplyTopUp adds credits to the balance and records a negative usage delta.
func (l *Ledger) ApplyTopUp(ctx context.Context, id uint, creditsToAdd int64, opts ...MutationOption) (*models.Account, error) {
	if creditsToAdd <= 0 {
		return nil, fmt.Errorf("%w: credits to add must be positive, got %d", ErrInvalidArgument, creditsToAdd)
	}
	o := applyOptions(opts)

	acct, err := l.mutate(ctx, "topup", id, func(acct *models.Account) ([]models.UsageEvent, error) {
		acct.CreditBalance += creditsToAdd
		return []models.UsageEvent{l.event(LabelTopUp, -creditsToAdd, o.reference)}, nil
	})
	if err == nil {
		metrics.CreditsGrantedTotal.Add(float64(creditsToAdd))
	}
	return acct, err
}

// ApplyUsage consumes credits for one call. The balance floors at zero; an
// insufficient balance is not an error.
func (l *Ledger) ApplyUsage(ctx context.Context, id uint, endpointLabel string, creditsUsed int64) (*models.Account, error) {
	endpointLabel = strings.TrimSpace(endpointLabel)
	if endpointLabel == "" {
		return nil, fmt.Errorf("%w: endpoint label is required", ErrInvalidArgument)
	}
	if creditsUsed <= 0 {
		return nil, fmt.Errorf("%w: credits used must be positive, got %d", ErrInvalidArgument, creditsUsed)
	}

	acct, err := l.mutate(ctx, "usage", id, func(acct *models.Account) ([]models.UsageEvent, error) {
		acct.CreditBalance = max(0, acct.CreditBalance-creditsUsed)
		acct.TotalCallsEver++
		return []models.UsageEvent{l.event(endpointLabel, creditsUsed, nil)}, nil
	})
	if err == nil {
		metrics.CreditsConsumedTotal.Add(float64(creditsUsed))
	}
	return acct, err
}

// UpgradePlan moves the account to a paid plan and overwrites its balance
// with creditsGranted.
func (l *Ledger) UpgradePlan(ctx context.Context, id uint, plan models.PlanName, creditsGranted int64, expiry *time.Time, opts ...MutationOption) (*models.Account, error) {
	if !plan.IsPaid() {
		return nil, fmt.Errorf("%w: %q is not a paid plan", ErrInvalidArgument, plan)
	}
	if creditsGranted < 0 {
		return nil, fmt.Errorf("%w: credits granted must not be negative, got %d", ErrInvalidArgument, creditsGranted)
	}
	o := applyOptions(opts)

	return l.mutate(ctx, "upgrade", id, func(acct *models.Account) ([]models.UsageEvent, error) {
		delta := acct.CreditBalance - creditsGranted
		acct.Plan = plan
		acct.CreditBalance = creditsGranted
		acct.PlanExpiry = copyTime(expiry)
		return []models.UsageEvent{l.event(PlanLabel(plan), delta, o.reference)}, nil
	})
}

// ExtendPlanExpiry moves the expiry of the account's current paid plan
// forward to expiry without granting credits. An earlier expiry leaves the
// account unchanged.
func (l *Ledger) ExtendPlanExpiry(ctx context.Context, id uint, plan models.PlanName, expiry time.Time) (*models.Account, error) {
	if !plan.IsPaid() {
		return nil, fmt.Errorf("%w: %q is not a paid plan", ErrInvalidArgument, plan)
	}
	return l.mutate(ctx, "extend_plan", id, func(acct *models.Account) ([]models.UsageEvent, error) {
		if acct.Plan != plan {
			return nil, fmt.Errorf("%w: account is on %q, not %q", ErrInvalidArgument, acct.Plan, plan)
		}
		if acct.PlanExpiry == nil || expiry.After(*acct.PlanExpiry) {
			acct.PlanExpiry = &expiry
		}
		return nil, nil
	})
}

// DowngradeToFree resets the account to the free plan and starter grant. Any
// issued license key is revoked because free accounts cannot hold one.
func (l *Ledger) DowngradeToFree(ctx context.Context, id uint) (*models.Account, error) {
	return l.mutate(ctx, "downgrade", id, func(acct *models.Account) ([]models.UsageEvent, error) {
		delta := acct.CreditBalance - models.StarterGrant
		acct.Plan = models.FreePlan
		acct.CreditBalance = models.StarterGrant
		acct.PlanExpiry = nil
		acct.LicenseKey = nil
		return []models.UsageEvent{l.event(PlanLabel(models.FreePlan), delta, nil)}, nil
	})
}

// AssignLicenseKey stores key on a paid account that has none yet.
func (l *Ledger) AssignLicenseKey(ctx context.Context, id uint, key string) (*models.Account, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: license key is required", ErrInvalidArgument)
	}
	return l.mutate(ctx, "assign_license", id, func(acct *models.Account) ([]models.UsageEvent, error) {
		if !acct.Plan.IsPaid() {
			return nil, ErrPlanRequired
		}
		if acct.LicenseKey != nil {
			return nil, ErrAlreadyIssued
		}
		acct.LicenseKey = &key
		return []models.UsageEvent{l.event(LabelLicenseIssued, 0, nil)}, nil
	})
}

// ConsumeLicenseCall charges one credit for a desktop tool call made with
// licenseKey. Unlike ApplyUsage it refuses expired plans and empty balances,
// and it remembers the caller's hardware fingerprint.
func (l *Ledger) ConsumeLicenseCall(ctx context.Context, id uint, licenseKey, hardwareHash string) (*models.Account, error) {
	return l.mutate(ctx, "license_call", id, func(acct *models.Account) ([]models.UsageEvent, error) {
		if acct.LicenseKey == nil || *acct.LicenseKey != licenseKey {
			return nil, fmt.Errorf("%w: license key not held by account", ErrNotFound)
		}
		if acct.IsPlanExpired(l.now()) {
			return nil, ErrPlanExpired
		}
		if acct.CreditBalance <= 0 {
			return nil, ErrNoCreditsLeft
		}
		acct.CreditBalance--
		acct.TotalCallsEver++
		if hardwareHash != "" {
			acct.HardwareHash = &hardwareHash
		}
		return []models.UsageEvent{l.event(LabelLicenseValidate, 1, nil)}, nil
	})
}

func (l *Ledger) mutate(ctx context.Context, op string, id uint, fn MutateFunc) (*models.Account, error) {
	unlock := l.locks.lock(id)
	acct, events, err := l.store.UpdateAccount(ctx, id, fn)
	unlock()

	metrics.LedgerMutationsTotal.WithLabelValues(op, metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	l.recorder.publish(ctx, events)
	return acct, nil
}

func (l *Ledger) event(label string, delta int64, reference *string) models.UsageEvent {
	return models.UsageEvent{
		EndpointLabel: label,
		CreditsDelta:  delta,
		Reference:     reference,
		CreatedAt:     l.now(),
	}
}

func applyOptions(opts []MutationOption) mutationOptions {
	var o mutationOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
