package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"gorm.io/gorm"
)

var (
	ErrInvoiceNotFound = errors.New("invoice_not_found")
	ErrEmptyInvoice    = errors.New("empty_invoice")
)

// EmitRequest is the emitter's input: one customer's rated usage for one
// cycle, with totals already computed by the orchestrator.
type EmitRequest struct {
	CustomerID     snowflake.ID
	BillingCycleID snowflake.ID

	PeriodStart time.Time
	PeriodEnd   time.Time
	BillingDate time.Time

	TotalAmount decimal.Decimal
	TaxAmount   decimal.Decimal
	Currency    string

	Records []*usagedomain.UsageRecord
}

// Service turns rated usage into draft invoices.
type Service interface {
	// Emit persists a draft invoice with one line per usage record, inside
	// the caller's transaction.
	Emit(ctx context.Context, tx *gorm.DB, req EmitRequest) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
}
