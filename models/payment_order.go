// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"time"

	"gorm.io/gorm"
)

type OrderKind string

const (
	PlanOrder  OrderKind = "plan"
	TopUpOrder OrderKind = "topup"
)

type OrderStatus string

const (
	OrderCreated  OrderStatus = "created"
	OrderPaid     OrderStatus = "paid"
	OrderRejected OrderStatus = "rejected"
)

// PaymentOrder mirrors a gateway order together with the notes the server
// attached to it, so verification never trusts client-supplied amounts.
type PaymentOrder struct {
	ID        uint        `gorm:"primaryKey"`
	OrderID   string      `gorm:"size:255;not null;uniqueIndex"`
	Kind      OrderKind   `gorm:"size:16;not null"`
	PlanName  *PlanName   `gorm:"size:32;default:null"`
	Credits   int64       `gorm:"not null;default:0"`
	Amount    uint        `gorm:"not null"`
	Currency  string      `gorm:"size:10;not null"`
	Status    OrderStatus `gorm:"size:16;not null;default:'created'"`
	PaymentID *string     `gorm:"size:255;default:null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	AccountID uint           `gorm:"index"`
	Account   Account        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func init() {
	AllModels = append(AllModels, &PaymentOrder{})
}
