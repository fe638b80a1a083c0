// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"time"

	"gorm.io/gorm"
)

type PlanName string

const (
	FreePlan     PlanName = "free"
	ProPlan      PlanName = "pro"
	AdvancedPlan PlanName = "advanced"
)

// ParsePlanName returns the known plan with the given name.
func ParsePlanName(name string) (PlanName, bool) {
	switch p := PlanName(name); p {
	case FreePlan, ProPlan, AdvancedPlan:
		return p, true
	}
	return "", false
}

func (p PlanName) IsPaid() bool {
	return p == ProPlan || p == AdvancedPlan
}

type Plan struct {
	ID             uint     `gorm:"primaryKey"`
	Name           PlanName `gorm:"size:32;not null;uniqueIndex"`
	Price          uint     `gorm:"not null;default:0"`
	Currency       string   `gorm:"size:10;not null;default:'INR'"`
	DurationInDays *uint    `gorm:"default:null"`
	Credits        int64    `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

// ExpiryFrom returns when a plan bought at start lapses, or nil for plans
// without a duration.
func (p *Plan) ExpiryFrom(start time.Time) *time.Time {
	if p.DurationInDays == nil {
		return nil
	}
	exp := start.Add(time.Duration(*p.DurationInDays) * 24 * time.Hour)
	return &exp
}

type CreditPackage struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"size:64;not null;uniqueIndex"`
	Credits   int64  `gorm:"not null"`
	Price     uint   `gorm:"not null"`
	Currency  string `gorm:"size:10;not null;default:'INR'"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func init() {
	AllModels = append(AllModels, &Plan{}, &CreditPackage{})
}
