// SPDX-License-Identifier: GPL-3.0-only

package notifications

import (
	"fmt"
	"silently-server/commons"
	"silently-server/models"
	"time"
)

func DispatchNotification(_type NotificationTypes, provider NotificationProviders, data NotificationData) error {
	commons.Logger.Debugf("Dispatching notification:\n- type=%s\n- provider=%s", _type, provider)

	var err error
	switch _type {
	case Email:
		if commons.GetEnvBool("MOCK_EMAIL_NOTIFICATIONS", false) {
			commons.Logger.Debug("Mock email notifications enabled, using mock provider")
			provider = Mock
		}
		err = dispatchEmail(provider, data)
	default:
		err = fmt.Errorf("unsupported notification type: %s", _type)
	}

	if err != nil {
		commons.Logger.Errorf("Failed to dispatch notification:\n%v", err)
		return err
	}

	commons.Logger.Infof("Notification dispatched successfully:\n- type=%s\n- provider=%s", _type, provider)
	return nil
}

func dispatchEmail(provider NotificationProviders, data NotificationData) error {
	switch provider {
	case SMTP:
		return SMTPClient(data)
	case Mock:
		return MockEmailClient(data)
	default:
		return fmt.Errorf("unsupported email provider: %s", provider)
	}
}

func displayName(acct *models.Account) *string {
	name := acct.DisplayName
	if name == "" {
		name = acct.Email
	}
	return &name
}

// LicenseIssued builds the email sent after a license key is assigned.
// keyHint must already be masked.
func LicenseIssued(acct *models.Account, keyHint string) NotificationData {
	return NotificationData{
		To:       acct.Email,
		ToName:   displayName(acct),
		Subject:  "Your SilentlyAI license key is ready",
		Template: LicenseIssuedTemplate,
		Variables: map[string]any{
			"Name":    *displayName(acct),
			"KeyHint": keyHint,
			"Plan":    string(acct.Plan),
			"Credits": acct.CreditBalance,
		},
	}
}

func PlanUpgraded(acct *models.Account) NotificationData {
	var expiry string
	if acct.PlanExpiry != nil {
		expiry = acct.PlanExpiry.Format(time.DateOnly)
	}
	return NotificationData{
		To:       acct.Email,
		ToName:   displayName(acct),
		Subject:  fmt.Sprintf("Welcome to SilentlyAI %s", acct.Plan),
		Template: PlanUpgradedTemplate,
		Variables: map[string]any{
			"Name":    *displayName(acct),
			"Plan":    string(acct.Plan),
			"Credits": acct.CreditBalance,
			"Expiry":  expiry,
		},
	}
}

func TopUpReceived(acct *models.Account, added int64) NotificationData {
	return NotificationData{
		To:       acct.Email,
		ToName:   displayName(acct),
		Subject:  "Credits added to your SilentlyAI account",
		Template: TopUpTemplate,
		Variables: map[string]any{
			"Name":    *displayName(acct),
			"Added":   added,
			"Credits": acct.CreditBalance,
		},
	}
}

// Send dispatches an email in the background. Failures are logged only.
func Send(data NotificationData) {
	go func() {
		_ = DispatchNotification(Email, SMTP, data)
	}()
}
