// SPDX-License-Identifier: GPL-3.0-only

package models

import "time"

type LicenseValidation struct {
	ID             uint    `gorm:"primaryKey"`
	AccountID      uint    `gorm:"index"`
	LicenseKeyHint string  `gorm:"size:32;not null"`
	HardwareHash   string  `gorm:"size:128;not null"`
	Success        bool    `gorm:"not null"`
	CreditsLeft    *int64  `gorm:"default:null"`
	Reason         *string `gorm:"size:255;default:null"`
	IPAddress      *string `gorm:"size:64;default:null"`
	UserAgent      *string `gorm:"type:text;default:null"`
	CreatedAt      time.Time
}

func init() {
	AllModels = append(AllModels, &LicenseValidation{})
}
