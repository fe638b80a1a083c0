// SPDX-License-Identifier: GPL-3.0-only

package ledger

import (
	"context"

	"silently-server/models"
)

// MutateFunc changes acct in place and returns the usage events that must be
// appended in the same commit. Returning an error aborts the mutation.
type MutateFunc func(acct *models.Account) ([]models.UsageEvent, error)

// Store persists accounts and usage events. Implementations must apply an
// UpdateAccount call and its events atomically.
type Store interface {
	// CreateAccount inserts acct together with its opening events. It fails
	// with ErrAlreadyExists when the email is taken.
	CreateAccount(ctx context.Context, acct *models.Account, events []models.UsageEvent) error
	GetAccount(ctx context.Context, id uint) (*models.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	FindAccountByLicenseKey(ctx context.Context, key string) (*models.Account, error)
	FindAccountByStripeCustomer(ctx context.Context, customerID string) (*models.Account, error)

	// UpdateAccount loads the account, runs mutate on it and saves the
	// account together with the returned events. It fails with ErrNotFound
	// when the account does not exist, ErrLicenseKeyTaken when the new
	// license key is held by another account and ErrDuplicatePayment when an
	// event reference was already recorded.
	UpdateAccount(ctx context.Context, id uint, mutate MutateFunc) (*models.Account, []models.UsageEvent, error)

	AppendUsageEvent(ctx context.Context, event *models.UsageEvent) error
	// ListUsageEvents returns at most limit events of the account, most
	// recent first.
	ListUsageEvents(ctx context.Context, accountID uint, limit int) ([]models.UsageEvent, error)
}
