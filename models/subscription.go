// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"time"

	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	ActiveSubscription   SubscriptionStatus = "active"
	PastDueSubscription  SubscriptionStatus = "past_due"
	CanceledSubscription SubscriptionStatus = "canceled"
)

type PaymentProvider string

const (
	Razorpay PaymentProvider = "razorpay"
	Stripe   PaymentProvider = "stripe"
)

type Subscription struct {
	ID                     uint               `gorm:"primaryKey"`
	Provider               PaymentProvider    `gorm:"size:32;not null"`
	ProviderSubscriptionID *string            `gorm:"size:255;uniqueIndex;default:null"`
	ProviderPaymentID      *string            `gorm:"size:255;default:null"`
	Plan                   PlanName           `gorm:"size:32;not null"`
	Status                 SubscriptionStatus `gorm:"size:32;not null;default:'active'"`
	StartedAt              time.Time
	ExpiresAt              *time.Time
	// CurrentPeriodEnd is the end of the Stripe billing period whose credits
	// were last granted. Nil until Stripe has reported a period.
	CurrentPeriodEnd       *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	DeletedAt              gorm.DeletedAt `gorm:"index"`
	AccountID              uint           `gorm:"index"`
	Account                Account        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func init() {
	AllModels = append(AllModels, &Subscription{})
}
