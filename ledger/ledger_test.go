// SPDX-License-Identifier: GPL-3.0-only

package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"silently-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type recordingPublisher struct {
	events []models.UsageEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event models.UsageEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return New(store, opts...), store
}

func createAccount(t *testing.T, l *Ledger, email string) *models.Account {
	t.Helper()
	acct, err := l.CreateAccount(context.Background(), email, "Test User", "hash")
	require.NoError(t, err)
	return acct
}

func TestCreateAccountStartsOnFreePlan(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	acct := createAccount(t, l, "  Alice@Example.com ")
	assert.Equal(t, "alice@example.com", acct.Email)
	assert.Equal(t, models.FreePlan, acct.Plan)
	assert.Equal(t, models.StarterGrant, acct.CreditBalance)
	assert.Nil(t, acct.LicenseKey)

	history, err := l.Recorder().History(ctx, acct.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, LabelStarterGrant, history[0].EndpointLabel)
	assert.Equal(t, -models.StarterGrant, history[0].CreditsDelta)

	_, err = l.CreateAccount(ctx, "alice@example.com", "Again", "hash")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = l.CreateAccount(ctx, "", "Nobody", "hash")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestApplyUsageFloorsBalanceAtZero(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	acct := createAccount(t, l, "usage@example.com")

	acct, err := l.ApplyUsage(ctx, acct.ID, "/v1/transcribe", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), acct.CreditBalance)
	assert.Equal(t, int64(1), acct.TotalCallsEver)

	acct, err = l.ApplyUsage(ctx, acct.ID, "/v1/transcribe", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.CreditBalance)
	assert.Equal(t, int64(2), acct.TotalCallsEver)

	history, err := l.Recorder().History(ctx, acct.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(10), history[0].CreditsDelta)
	assert.Equal(t, "/v1/transcribe", history[0].EndpointLabel)
}

func TestApplyUsageRejectsInvalidArguments(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	acct := createAccount(t, l, "bad@example.com")

	_, err := l.ApplyUsage(ctx, acct.ID, "/v1/x", 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.ApplyUsage(ctx, acct.ID, "  ", 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.ApplyTopUp(ctx, acct.ID, -5)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	got, err := l.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StarterGrant, got.CreditBalance)
	assert.Zero(t, got.TotalCallsEver)
}

func TestMissingAccountIsNotMutated(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ApplyUsage(ctx, 42, "/v1/x", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.ApplyTopUp(ctx, 42, 10)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.UpgradePlan(ctx, 42, models.ProPlan, 100, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, store.accounts)
	assert.Empty(t, store.events)
}

func TestApplyTopUp(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	acct := createAccount(t, l, "topup@example.com")

	_, err := l.ApplyTopUp(ctx, acct.ID, 5)
	require.NoError(t, err)
	acct, err = l.ApplyTopUp(ctx, acct.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(60), acct.CreditBalance)

	history, err := l.Recorder().History(ctx, acct.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(-50), history[0].CreditsDelta)
	assert.Equal(t, LabelTopUp, history[0].EndpointLabel)
}

func TestApplyTopUpRejectsReplayedReference(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	acct := createAccount(t, l, "replay@example.com")

	_, err := l.ApplyTopUp(ctx, acct.ID, 100, WithReference("pay_123"))
	require.NoError(t, err)

	_, err = l.ApplyTopUp(ctx, acct.ID, 100, WithReference("pay_123"))
	assert.ErrorIs(t, err, ErrDuplicatePayment)

	got, err := l.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StarterGrant+100, got.CreditBalance)
}

func TestUpgradeAndDowngrade(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	acct := createAccount(t, l, "plan@example.com")

	expiry := now.AddDate(0, 0, 30)
	acct, err := l.UpgradePlan(ctx, acct.ID, models.ProPlan, 100, &expiry)
	require.NoError(t, err)
	assert.Equal(t, models.ProPlan, acct.Plan)
	assert.Equal(t, int64(100), acct.CreditBalance)
	require.NotNil(t, acct.PlanExpiry)
	assert.True(t, expiry.Equal(*acct.PlanExpiry))

	history, err := l.Recorder().History(ctx, acct.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, PlanLabel(models.ProPlan), history[0].EndpointLabel)
	assert.Equal(t, models.StarterGrant-100, history[0].CreditsDelta)

	_, err = l.UpgradePlan(ctx, acct.ID, models.FreePlan, 5, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	acct, err = l.AssignLicenseKey(ctx, acct.ID, "SL-TEST-KEY")
	require.NoError(t, err)
	require.NotNil(t, acct.LicenseKey)

	acct, err = l.DowngradeToFree(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FreePlan, acct.Plan)
	assert.Equal(t, models.StarterGrant, acct.CreditBalance)
	assert.Nil(t, acct.PlanExpiry)
	assert.Nil(t, acct.LicenseKey)
}

func TestExtendPlanExpiryKeepsBalance(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	acct := createAccount(t, l, "extend@example.com")

	_, err := l.ExtendPlanExpiry(ctx, acct.ID, models.ProPlan, now.AddDate(0, 1, 0))
	assert.ErrorIs(t, err, ErrInvalidArgument, "free accounts have no plan to extend")

	expiry := now.AddDate(0, 0, 30)
	_, err = l.UpgradePlan(ctx, acct.ID, models.ProPlan, 100, &expiry)
	require.NoError(t, err)
	_, err = l.ApplyUsage(ctx, acct.ID, "/v1/transcribe", 60)
	require.NoError(t, err)

	later := now.AddDate(0, 1, 0)
	acct, err = l.ExtendPlanExpiry(ctx, acct.ID, models.ProPlan, later)
	require.NoError(t, err)
	assert.Equal(t, int64(40), acct.CreditBalance)
	require.NotNil(t, acct.PlanExpiry)
	assert.True(t, later.Equal(*acct.PlanExpiry))

	acct, err = l.ExtendPlanExpiry(ctx, acct.ID, models.ProPlan, now)
	require.NoError(t, err)
	assert.True(t, later.Equal(*acct.PlanExpiry), "an earlier expiry must not shorten the plan")

	_, err = l.ExtendPlanExpiry(ctx, acct.ID, models.AdvancedPlan, later)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	history, err := l.Recorder().History(ctx, acct.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "/v1/transcribe", history[0].EndpointLabel)
}

func TestUpdateDisplayName(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	acct := createAccount(t, l, "rename@example.com")

	acct, err := l.UpdateDisplayName(ctx, acct.ID, "  Jane Doe ")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", acct.DisplayName)
	assert.Equal(t, models.StarterGrant, acct.CreditBalance)

	for _, name := range []string{"", "   ", strings.Repeat("é", MaxDisplayNameLength+1)} {
		_, err = l.UpdateDisplayName(ctx, acct.ID, name)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
	acct, err = l.UpdateDisplayName(ctx, acct.ID, strings.Repeat("é", MaxDisplayNameLength))
	require.NoError(t, err)

	_, err = l.UpdateDisplayName(ctx, acct.ID+100, "Ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := l.Recorder().History(ctx, acct.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "renaming records no usage")
}

func TestAssignLicenseKey(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	acct := createAccount(t, l, "license@example.com")

	_, err := l.AssignLicenseKey(ctx, acct.ID, "SL-ONE")
	assert.ErrorIs(t, err, ErrPlanRequired)
	got, err := l.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LicenseKey)

	_, err = l.UpgradePlan(ctx, acct.ID, models.AdvancedPlan, 300, nil)
	require.NoError(t, err)
	_, err = l.AssignLicenseKey(ctx, acct.ID, "SL-ONE")
	require.NoError(t, err)

	_, err = l.AssignLicenseKey(ctx, acct.ID, "SL-TWO")
	assert.ErrorIs(t, err, ErrAlreadyIssued)
	got, err = l.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "SL-ONE", *got.LicenseKey)

	other := createAccount(t, l, "other@example.com")
	_, err = l.UpgradePlan(ctx, other.ID, models.ProPlan, 100, nil)
	require.NoError(t, err)
	_, err = l.AssignLicenseKey(ctx, other.ID, "SL-ONE")
	assert.ErrorIs(t, err, ErrLicenseKeyTaken)

	found, err := l.FindByLicenseKey(ctx, "SL-ONE")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, found.ID)
}

func TestConsumeLicenseCall(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	acct := createAccount(t, l, "desktop@example.com")

	expiry := now.AddDate(0, 0, 30)
	_, err := l.UpgradePlan(ctx, acct.ID, models.ProPlan, 1, &expiry)
	require.NoError(t, err)
	_, err = l.AssignLicenseKey(ctx, acct.ID, "SL-DESK")
	require.NoError(t, err)

	_, err = l.ConsumeLicenseCall(ctx, acct.ID, "SL-WRONG", "hw-1")
	assert.ErrorIs(t, err, ErrNotFound)

	acct, err = l.ConsumeLicenseCall(ctx, acct.ID, "SL-DESK", "hw-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.CreditBalance)
	assert.Equal(t, int64(1), acct.TotalCallsEver)
	require.NotNil(t, acct.HardwareHash)
	assert.Equal(t, "hw-1", *acct.HardwareHash)

	_, err = l.ConsumeLicenseCall(ctx, acct.ID, "SL-DESK", "hw-1")
	assert.ErrorIs(t, err, ErrNoCreditsLeft)

	past := now.AddDate(0, 0, -1)
	_, err = l.UpgradePlan(ctx, acct.ID, models.ProPlan, 10, &past)
	require.NoError(t, err)
	_, err = l.ConsumeLicenseCall(ctx, acct.ID, "SL-DESK", "hw-1")
	assert.ErrorIs(t, err, ErrPlanExpired)
}

func TestConcurrentUsageNeverGoesNegative(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	acct := createAccount(t, l, "race@example.com")

	const calls = 40
	var g errgroup.Group
	for range calls {
		g.Go(func() error {
			_, err := l.ApplyUsage(ctx, acct.ID, "/v1/race", 1)
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := l.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.CreditBalance)
	assert.Equal(t, int64(calls), got.TotalCallsEver)
	assert.Zero(t, l.locks.size())
}

func TestPublisherReceivesCommittedEvents(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	l, _ := newTestLedger(t, WithPublisher(pub))
	ctx := context.Background()
	acct := createAccount(t, l, "pub@example.com")

	_, err := l.ApplyUsage(ctx, acct.ID, "/v1/pub", 2)
	require.NoError(t, err, "publish failures must not fail the mutation")

	_, err = l.ApplyUsage(ctx, acct.ID, "/v1/pub", 0)
	require.Error(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, LabelStarterGrant, pub.events[0].EndpointLabel)
	assert.Equal(t, "/v1/pub", pub.events[1].EndpointLabel)
	assert.Equal(t, acct.ID, pub.events[1].AccountID)
}
