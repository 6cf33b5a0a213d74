package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidUsageType    = errors.New("invalid_usage_type")
	ErrInvalidUsageUnit    = errors.New("invalid_usage_unit")
	ErrInvalidUsageAmount  = errors.New("invalid_usage_amount")
	ErrInvalidUsageDate    = errors.New("invalid_usage_date")
)

// IngestRequest carries one CDR into the engine.
type IngestRequest struct {
	SubscriptionID  snowflake.ID
	UsageType       UsageType
	DestinationType *DestinationType
	RatePeriod      *RatePeriod
	UsageUnit       UsageUnit
	UsageAmount     decimal.Decimal
	RecordedAt      time.Time
	Source          string
	SourceFile      string
	IdempotencyKey  string
	Metadata        map[string]any
}

// Service ingests raw usage and rates it opportunistically.
type Service interface {
	Ingest(ctx context.Context, req IngestRequest) (*UsageRecord, error)
}

// RatedFields is the one-shot mutation the rating engine applies to a record.
type RatedFields struct {
	UnitRate     decimal.Decimal
	ChargeAmount decimal.Decimal
	Currency     string
	RatedAt      time.Time
}

// Repository is the usage record store.
type Repository interface {
	WithTrx(tx *gorm.DB) Repository

	// Insert stores the record, absorbing idempotency-key duplicates.
	// Returns false when an equal-keyed record already existed.
	Insert(ctx context.Context, record *UsageRecord) (bool, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*UsageRecord, error)
	FindByID(ctx context.Context, id snowflake.ID) (*UsageRecord, error)

	// Date-range queries use inclusive bounds on UsageDate.
	FindByDateRange(ctx context.Context, start, end time.Time) ([]*UsageRecord, error)
	FindRatedByDateRange(ctx context.Context, start, end time.Time) ([]*UsageRecord, error)
	FindUnrated(ctx context.Context) ([]*UsageRecord, error)
	FindUnratedByDateRange(ctx context.Context, start, end time.Time) ([]*UsageRecord, error)
	FindUnratedBySubscription(ctx context.Context, subscriptionID snowflake.ID, start, end time.Time) ([]*UsageRecord, error)

	// ClaimRated applies the rated fields if and only if the record is still
	// unrated. Returns false when another run already claimed it.
	ClaimRated(ctx context.Context, id snowflake.ID, fields RatedFields) (bool, error)
}
