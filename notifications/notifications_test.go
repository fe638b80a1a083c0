// SPDX-License-Identifier: GPL-3.0-only

package notifications

import (
	"testing"
	"time"

	"silently-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplatesRender(t *testing.T) {
	expiry := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	acct := &models.Account{
		Email:         "jo@example.com",
		DisplayName:   "Jo",
		Plan:          models.ProPlan,
		CreditBalance: 100,
		PlanExpiry:    &expiry,
	}

	for _, data := range []NotificationData{
		LicenseIssued(acct, "SL-…ABCD"),
		PlanUpgraded(acct),
		TopUpReceived(acct, 500),
	} {
		require.NoError(t, validate(data))
		body, err := renderTemplate(data.Template, data.Variables)
		require.NoError(t, err, data.Template)
		assert.Contains(t, body, "Hi Jo")
	}

	body, err := renderTemplate(PlanUpgradedTemplate, PlanUpgraded(acct).Variables)
	require.NoError(t, err)
	assert.Contains(t, body, "2026-12-31")
}

func TestDisplayNameFallsBackToEmail(t *testing.T) {
	data := TopUpReceived(&models.Account{Email: "anon@example.com"}, 10)
	require.NotNil(t, data.ToName)
	assert.Equal(t, "anon@example.com", *data.ToName)
}

func TestDispatchUsesMockProvider(t *testing.T) {
	t.Setenv("MOCK_EMAIL_NOTIFICATIONS", "true")
	acct := &models.Account{Email: "jo@example.com", Plan: models.AdvancedPlan}
	assert.NoError(t, DispatchNotification(Email, SMTP, PlanUpgraded(acct)))

	assert.Error(t, DispatchNotification("SMS", SMTP, PlanUpgraded(acct)))
	assert.Error(t, MockEmailClient(NotificationData{Template: "missing"}))
}
