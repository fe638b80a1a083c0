// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

var AllModels []any

// StarterGrant is the credit balance of a new or downgraded free account.
const StarterGrant int64 = 5

type Account struct {
	ID               uint     `gorm:"primaryKey"`
	Email            string   `gorm:"size:255;not null;uniqueIndex"`
	DisplayName      string   `gorm:"size:255;not null;default:''"`
	Password         string   `gorm:"not null"`
	Plan             PlanName `gorm:"size:32;not null;default:'free'"`
	CreditBalance    int64    `gorm:"not null;default:0"`
	TotalCallsEver   int64    `gorm:"not null;default:0"`
	LicenseKey       *string  `gorm:"size:128;uniqueIndex;default:null"`
	PlanExpiry       *time.Time
	HardwareHash     *string `gorm:"size:128;default:null"`
	StripeCustomerID *string `gorm:"size:255;index;default:null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

// IsPlanExpired reports whether a paid plan has passed its expiry at now.
func (a *Account) IsPlanExpired(now time.Time) bool {
	return a.Plan != FreePlan && a.PlanExpiry != nil && now.After(*a.PlanExpiry)
}

// DaysRemaining counts whole days, rounded up, from now until expiry. It is
// nil when there is no expiry and never negative.
func DaysRemaining(expiry *time.Time, now time.Time) *int {
	if expiry == nil {
		return nil
	}
	days := max(0, int(math.Ceil(expiry.Sub(now).Hours()/24)))
	return &days
}

func init() {
	AllModels = append(AllModels, &Account{})
}
