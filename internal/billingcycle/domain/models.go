// Package domain contains persistence models for billing cycles.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/droidtel/bss/internal/invoice/domain"
	"github.com/shopspring/decimal"
)

// CycleType is the cadence of a billing cycle.
type CycleType string

const (
	CycleTypeMonthly CycleType = "MONTHLY"
)

// CycleStatus is the cycle lifecycle state. Transitions are strictly
// PENDING -> GENERATED -> PROCESSED; both advances happen inside the
// processing transaction.
type CycleStatus string

const (
	CycleStatusPending   CycleStatus = "PENDING"
	CycleStatusGenerated CycleStatus = "GENERATED"
	CycleStatusProcessed CycleStatus = "PROCESSED"
)

// BillingCycle is one billing run over a usage period. CustomerID narrows
// the run to a single customer; zero means every customer with usage in the
// period is billed.
type BillingCycle struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	CustomerID snowflake.ID `gorm:"index"`

	// CycleStart and CycleEnd bound the usage period, inclusive on both
	// sides; BillingDate is when the run becomes due.
	CycleStart  time.Time `gorm:"not null"`
	CycleEnd    time.Time `gorm:"not null"`
	BillingDate time.Time `gorm:"not null;index"`

	Type   CycleType   `gorm:"type:text;not null;default:'MONTHLY'"`
	Status CycleStatus `gorm:"type:text;not null;default:'PENDING';index"`

	GeneratedAt *time.Time `gorm:""`
	ProcessedAt *time.Time `gorm:""`

	TotalAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalWithTax decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	InvoiceCount int             `gorm:"not null;default:0"`

	Invoices []invoicedomain.Invoice `gorm:"foreignKey:BillingCycleID"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingCycle) TableName() string { return "billing_cycles" }
