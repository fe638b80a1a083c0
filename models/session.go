// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"time"

	"gorm.io/gorm"
)

type Session struct {
	ID         uint   `gorm:"primaryKey"`
	Token      string `gorm:"size:128;not null;uniqueIndex"`
	LastUsedAt *time.Time
	IPAddress  *string `gorm:"size:64;default:null"`
	UserAgent  *string `gorm:"type:text;default:null"`
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
	AccountID  uint           `gorm:"index"`
	Account    Account        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func init() {
	AllModels = append(AllModels, &Session{})
}
