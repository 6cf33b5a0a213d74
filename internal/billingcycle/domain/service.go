package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrCycleNotFound = errors.New("billing_cycle_not_found")
	ErrInvalidState  = errors.New("invalid_billing_cycle_state")
	ErrInvalidPeriod = errors.New("invalid_billing_cycle_period")
)

// StartRequest opens a new cycle over a usage period. CustomerID is
// optional; zero starts an engine-wide run.
type StartRequest struct {
	CustomerID  snowflake.ID
	CycleStart  time.Time
	CycleEnd    time.Time
	BillingDate time.Time
	Type        CycleType
}

// Service is the billing cycle orchestrator.
type Service interface {
	// Start creates a PENDING cycle after validating the period.
	Start(ctx context.Context, req StartRequest) (*BillingCycle, error)

	// Process runs one cycle end to end in a single transaction: catch-up
	// rating, per-customer invoice emission, totals, PROCESSED. Reprocessing
	// returns ErrInvalidState.
	Process(ctx context.Context, id snowflake.ID) (*BillingCycle, error)

	FindByID(ctx context.Context, id snowflake.ID) (*BillingCycle, error)

	// FindDuePending lists PENDING cycles whose billing date has arrived.
	FindDuePending(ctx context.Context, asOf time.Time, limit int) ([]*BillingCycle, error)
}

// Repository is the billing cycle store.
type Repository interface {
	WithTrx(tx *gorm.DB) Repository

	Create(ctx context.Context, cycle *BillingCycle) error
	Save(ctx context.Context, cycle *BillingCycle) error
	FindByID(ctx context.Context, id snowflake.ID) (*BillingCycle, error)

	// FindByIDForUpdate locks the row for the enclosing transaction on
	// dialects that support it.
	FindByIDForUpdate(ctx context.Context, id snowflake.ID) (*BillingCycle, error)
	FindDuePending(ctx context.Context, asOf time.Time, limit int) ([]*BillingCycle, error)
}
