package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/droidtel/bss/internal/clock"
	"github.com/droidtel/bss/internal/metrics"
	ratingdomain "github.com/droidtel/bss/internal/rating/domain"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	RuleRepo  ratingdomain.RuleRepository
	UsageRepo usagedomain.Repository
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock

	rulerepo  ratingdomain.RuleRepository
	usagerepo usagedomain.Repository
	metrics   *metrics.Metrics
}

func NewService(p ServiceParam) ratingdomain.Service {
	return &Service{
		log:   p.Log.Named("rating.service"),
		clock: p.Clock,

		rulerepo:  p.RuleRepo,
		usagerepo: p.UsageRepo,
		metrics:   p.Metrics,
	}
}

func (s *Service) WithTrx(tx *gorm.DB) ratingdomain.Service {
	return &Service{
		log:       s.log,
		clock:     s.clock,
		rulerepo:  s.rulerepo.WithTrx(tx),
		usagerepo: s.usagerepo.WithTrx(tx),
		metrics:   s.metrics,
	}
}

func (s *Service) RateUsageRecord(ctx context.Context, record *usagedomain.UsageRecord) (*usagedomain.UsageRecord, error) {
	if record == nil {
		return nil, ratingdomain.ErrInvalidUsage
	}
	if record.Rated {
		return nil, ratingdomain.ErrAlreadyRated
	}
	if record.UsageAmount.IsNegative() {
		return nil, ratingdomain.ErrInvalidUsage
	}

	rule, err := s.matchRule(ctx, record)
	if err != nil {
		return nil, err
	}
	s.metrics.IncRuleMatched()

	charge := computeCharge(record.UsageAmount, rule)
	fields := usagedomain.RatedFields{
		UnitRate:     rule.UnitRate,
		ChargeAmount: charge,
		Currency:     rule.Currency,
		RatedAt:      s.clock.Now(),
	}

	claimed, err := s.usagerepo.ClaimRated(ctx, record.ID, fields)
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.metrics.IncRatingFailure("already_rated")
		return nil, ratingdomain.ErrAlreadyRated
	}

	record.UnitRate = decimal.NullDecimal{Decimal: fields.UnitRate, Valid: true}
	record.ChargeAmount = decimal.NullDecimal{Decimal: fields.ChargeAmount, Valid: true}
	record.Currency = fields.Currency
	record.Rated = true
	record.RatedAt = &fields.RatedAt
	record.UpdatedAt = fields.RatedAt

	s.metrics.IncUsageRated()
	return record, nil
}

func (s *Service) RateAllUnrated(ctx context.Context) ([]*usagedomain.UsageRecord, error) {
	records, err := s.usagerepo.FindUnrated(ctx)
	if err != nil {
		return nil, err
	}
	return s.rateBatch(ctx, records), nil
}

func (s *Service) RateUsageByPeriod(ctx context.Context, subscriptionID snowflake.ID, start, end time.Time) ([]*usagedomain.UsageRecord, error) {
	records, err := s.usagerepo.FindUnratedBySubscription(ctx, subscriptionID, start, end)
	if err != nil {
		return nil, err
	}
	return s.rateBatch(ctx, records), nil
}

func (s *Service) RateUnratedInRange(ctx context.Context, start, end time.Time) ([]*usagedomain.UsageRecord, error) {
	records, err := s.usagerepo.FindUnratedByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return s.rateBatch(ctx, records), nil
}

// rateBatch applies the single-record operation with partial-failure
// tolerance: one bad record never blocks the rest.
func (s *Service) rateBatch(ctx context.Context, records []*usagedomain.UsageRecord) []*usagedomain.UsageRecord {
	rated := make([]*usagedomain.UsageRecord, 0, len(records))
	for _, record := range records {
		result, err := s.RateUsageRecord(ctx, record)
		if err != nil {
			s.logSkip(record, err)
			continue
		}
		rated = append(rated, result)
	}
	return rated
}

func (s *Service) logSkip(record *usagedomain.UsageRecord, err error) {
	fields := []zap.Field{
		zap.String("usage_record_id", record.ID.String()),
		zap.String("usage_type", string(record.UsageType)),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, ratingdomain.ErrNoMatchingRule):
		s.log.Warn("no rating rule found, record left unrated", fields...)
	case errors.Is(err, ratingdomain.ErrAlreadyRated):
		s.log.Debug("record claimed by a concurrent run", fields...)
	default:
		s.log.Error("rating failed, record skipped", fields...)
		s.metrics.IncRatingFailure("error")
	}
}

func (s *Service) matchRule(ctx context.Context, record *usagedomain.UsageRecord) (*ratingdomain.RatingRule, error) {
	rules, err := s.rulerepo.FindMatching(ctx, record.UsageType, record.DestinationType, record.RatePeriod, record.UsageDate)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		s.metrics.IncRatingFailure("no_matching_rule")
		return nil, ratingdomain.ErrNoMatchingRule
	}
	// Overlapping validity windows are resolved by priority; an exact tie is
	// a tariff configuration error, never a silent first-pick.
	if len(rules) > 1 && rules[0].Priority == rules[1].Priority {
		s.metrics.IncRatingFailure("ambiguous_rule")
		return nil, ratingdomain.ErrAmbiguousRule
	}
	return &rules[0], nil
}

// computeCharge applies the minimum-unit floor before pricing:
// charge = max(usageAmount, minimumUnits) * unitRate, rounded half-up to
// cents so the in-memory value matches the persisted column.
func computeCharge(usageAmount decimal.Decimal, rule *ratingdomain.RatingRule) decimal.Decimal {
	billable := usageAmount
	if minimum := decimal.NewFromInt(rule.MinimumUnits); billable.LessThan(minimum) {
		billable = minimum
	}
	return billable.Mul(rule.UnitRate).Round(2)
}
