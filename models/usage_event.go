// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageEvent is an append-only ledger row. Positive CreditsDelta is
// consumption, negative CreditsDelta is a credit.
type UsageEvent struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	EID           uuid.UUID `gorm:"size:36;not null;uniqueIndex" json:"id"`
	AccountID     uint      `gorm:"not null;index:idx_usage_account_created,priority:1" json:"account_id"`
	Account       Account   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	EndpointLabel string    `gorm:"size:255;not null" json:"endpoint"`
	CreditsDelta  int64     `gorm:"not null" json:"credits_delta"`
	Reference     *string   `gorm:"size:255;uniqueIndex;default:null" json:"reference,omitempty"`
	CreatedAt     time.Time `gorm:"index:idx_usage_account_created,priority:2" json:"created_at"`
}

func (event *UsageEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if event.EID == uuid.Nil {
		event.EID = uuid.New()
	}
	return
}

func init() {
	AllModels = append(AllModels, &UsageEvent{})
}
