// Package domain contains persistence models for invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceType distinguishes cycle invoices from ad hoc ones.
type InvoiceType string

const (
	InvoiceTypeUsage  InvoiceType = "USAGE"
	InvoiceTypeManual InvoiceType = "MANUAL"
)

// InvoiceStatus is the invoice lifecycle state. Cycle processing only ever
// emits drafts; downstream dunning moves them forward.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice aggregates one customer's rated usage for one billing cycle.
//
// Invariant: TotalWithTax = TotalAmount + TaxAmount, and TotalAmount equals
// the sum of the line totals.
type Invoice struct {
	ID             snowflake.ID  `gorm:"primaryKey"`
	InvoiceNumber  string        `gorm:"type:text;not null;uniqueIndex"`
	CustomerID     snowflake.ID  `gorm:"not null;index"`
	BillingCycleID snowflake.ID  `gorm:"not null;index"`
	Type           InvoiceType   `gorm:"type:text;not null;default:'USAGE'"`
	Status         InvoiceStatus `gorm:"type:text;not null;default:'DRAFT'"`

	BillingPeriodStart time.Time `gorm:"not null"`
	BillingPeriodEnd   time.Time `gorm:"not null"`
	BillingDate        time.Time `gorm:"not null"`
	DueDate            time.Time `gorm:"not null"`

	TotalAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalWithTax decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency     string          `gorm:"type:text;not null"`

	Lines []InvoiceLine `gorm:"foreignKey:InvoiceID"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceLine is one rated usage record priced onto an invoice.
type InvoiceLine struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	InvoiceID     snowflake.ID    `gorm:"not null;index"`
	UsageRecordID snowflake.ID    `gorm:"not null;index"`
	ItemType      string          `gorm:"type:text;not null"`
	Description   string          `gorm:"type:text;not null"`
	Quantity      decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceLine) TableName() string { return "invoice_lines" }
