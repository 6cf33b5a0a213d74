package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"gorm.io/gorm"
)

var (
	ErrRecordNotFound = errors.New("usage_record_not_found")
	ErrNoMatchingRule = errors.New("no_matching_rating_rule")
	ErrAmbiguousRule  = errors.New("ambiguous_rating_rule")
	ErrAlreadyRated   = errors.New("usage_record_already_rated")
	ErrInvalidUsage   = errors.New("invalid_usage_record")
)

// Service is the rating engine: it prices one usage record against the
// tariff and mutates it exactly once.
type Service interface {
	// WithTrx binds the engine to an enclosing transaction.
	WithTrx(tx *gorm.DB) Service

	// RateUsageRecord prices an unrated record. ErrNoMatchingRule leaves the
	// record untouched; ErrAlreadyRated signals a lost claim race.
	RateUsageRecord(ctx context.Context, record *usagedomain.UsageRecord) (*usagedomain.UsageRecord, error)

	// RateAllUnrated rates every unrated record. Per-record failures are
	// logged and skipped; the successfully rated records are returned.
	RateAllUnrated(ctx context.Context) ([]*usagedomain.UsageRecord, error)

	// RateUsageByPeriod rates a subscription's unrated records whose usage
	// date falls in [start, end], with the same partial-failure tolerance.
	RateUsageByPeriod(ctx context.Context, subscriptionID snowflake.ID, start, end time.Time) ([]*usagedomain.UsageRecord, error)

	// RateUnratedInRange is the cycle catch-up pass: it rates every unrated
	// record, any subscription, whose usage date falls in [start, end].
	RateUnratedInRange(ctx context.Context, start, end time.Time) ([]*usagedomain.UsageRecord, error)
}

// RuleRepository is the rating rule store. FindMatching returns candidate
// rules ordered by priority descending, then newest validity window first.
type RuleRepository interface {
	WithTrx(tx *gorm.DB) RuleRepository

	FindMatching(
		ctx context.Context,
		usageType usagedomain.UsageType,
		destinationType *usagedomain.DestinationType,
		ratePeriod *usagedomain.RatePeriod,
		date time.Time,
	) ([]RatingRule, error)
}
