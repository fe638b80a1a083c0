// SPDX-License-Identifier: GPL-3.0-only

package ledger

import (
	"context"
	"errors"
	"fmt"

	"silently-server/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
	// rowLocks is false on SQLite, which has no SELECT ... FOR UPDATE and
	// serializes writers itself.
	rowLocks bool
}

// NewGormStore expects a connection opened with TranslateError enabled so
// unique violations surface as gorm.ErrDuplicatedKey.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:       db,
		rowLocks: db.Dialector.Name() != "sqlite",
	}
}

func (s *GormStore) CreateAccount(ctx context.Context, acct *models.Account, events []models.UsageEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(acct).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("db: create account: %w", err)
		}
		for i := range events {
			events[i].AccountID = acct.ID
			if err := tx.Create(&events[i]).Error; err != nil {
				return fmt.Errorf("db: usage event append failed: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	return s.findAccount(ctx, "id = ?", id)
}

func (s *GormStore) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findAccount(ctx, "email = ?", email)
}

func (s *GormStore) FindAccountByLicenseKey(ctx context.Context, key string) (*models.Account, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	return s.findAccount(ctx, "license_key = ?", key)
}

func (s *GormStore) FindAccountByStripeCustomer(ctx context.Context, customerID string) (*models.Account, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}
	return s.findAccount(ctx, "stripe_customer_id = ?", customerID)
}

func (s *GormStore) findAccount(ctx context.Context, query string, arg any) (*models.Account, error) {
	var acct models.Account
	if err := s.db.WithContext(ctx).Where(query, arg).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db: account fetch failed: %w", err)
	}
	return &acct, nil
}

func (s *GormStore) UpdateAccount(ctx context.Context, id uint, mutate MutateFunc) (*models.Account, []models.UsageEvent, error) {
	var acct models.Account
	var events []models.UsageEvent

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if s.rowLocks {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&acct, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("db: account fetch failed: %w", err)
		}

		var err error
		events, err = mutate(&acct)
		if err != nil {
			return err
		}

		if err := tx.Save(&acct).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrLicenseKeyTaken
			}
			return fmt.Errorf("db: account save failed: %w", err)
		}

		for i := range events {
			events[i].AccountID = acct.ID
			if err := tx.Create(&events[i]).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicatePayment
				}
				return fmt.Errorf("db: usage event append failed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &acct, events, nil
}

func (s *GormStore) AppendUsageEvent(ctx context.Context, event *models.UsageEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("db: usage event append failed: %w", err)
	}
	return nil
}

func (s *GormStore) ListUsageEvents(ctx context.Context, accountID uint, limit int) ([]models.UsageEvent, error) {
	var events []models.UsageEvent
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("db: usage history fetch failed: %w", err)
	}
	return events, nil
}
