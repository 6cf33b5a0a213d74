package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/droidtel/bss/internal/clock"
	"github.com/droidtel/bss/internal/metrics"
	ratingdomain "github.com/droidtel/bss/internal/rating/domain"
	subscriptiondomain "github.com/droidtel/bss/internal/subscription/domain"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"github.com/droidtel/bss/pkg/repository"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	UsageRepo usagedomain.Repository
	RatingSvc ratingdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock

	genID     *snowflake.Node
	usagerepo usagedomain.Repository
	subrepo   repository.Repository[subscriptiondomain.Subscription]
	ratingsvc ratingdomain.Service
	metrics   *metrics.Metrics
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		log:   p.Log.Named("usage.service"),
		clock: p.Clock,

		genID:     p.GenID,
		usagerepo: p.UsageRepo,
		subrepo:   repository.ProvideStore[subscriptiondomain.Subscription](p.DB),
		ratingsvc: p.RatingSvc,
		metrics:   p.Metrics,
	}
}

// Ingest stores one CDR and opportunistically rates it. A missing tariff is
// tolerated: the record stays unrated and is picked up by the next cycle run.
func (s *Service) Ingest(ctx context.Context, req usagedomain.IngestRequest) (*usagedomain.UsageRecord, error) {
	if err := validateIngestRequest(req); err != nil {
		return nil, err
	}

	subscription, err := s.subrepo.FindOne(ctx, &subscriptiondomain.Subscription{ID: req.SubscriptionID})
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	now := s.clock.Now()
	recordedAt := req.RecordedAt.UTC()
	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		// CDR sources without native dedup keys still get exactly-once
		// ingestion within a delivery attempt.
		idempotencyKey = uuid.NewString()
	}

	record := &usagedomain.UsageRecord{
		ID:              s.genID.Generate(),
		SubscriptionID:  req.SubscriptionID,
		UsageType:       req.UsageType,
		DestinationType: req.DestinationType,
		RatePeriod:      req.RatePeriod,
		UsageUnit:       req.UsageUnit,
		UsageAmount:     req.UsageAmount,
		UsageDate:       truncateToDay(recordedAt),
		RecordedAt:      recordedAt,
		Source:          req.Source,
		SourceFile:      req.SourceFile,
		IdempotencyKey:  idempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Metadata != nil {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}

	inserted, err := s.usagerepo.Insert(ctx, record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		existing, err := s.usagerepo.FindByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.log.Debug("duplicate usage delivery absorbed",
				zap.String("idempotency_key", idempotencyKey))
			return existing, nil
		}
	}

	s.metrics.IncUsageIngested()

	rated, err := s.ratingsvc.RateUsageRecord(ctx, record)
	if err != nil {
		if errors.Is(err, ratingdomain.ErrNoMatchingRule) || errors.Is(err, ratingdomain.ErrAmbiguousRule) {
			s.log.Warn("ingested usage left unrated",
				zap.String("usage_record_id", record.ID.String()),
				zap.String("usage_type", string(record.UsageType)),
				zap.Error(err))
			return record, nil
		}
		return nil, err
	}
	return rated, nil
}

func validateIngestRequest(req usagedomain.IngestRequest) error {
	if req.SubscriptionID == 0 {
		return usagedomain.ErrInvalidSubscription
	}
	if req.UsageType == "" {
		return usagedomain.ErrInvalidUsageType
	}
	if req.UsageUnit == "" {
		return usagedomain.ErrInvalidUsageUnit
	}
	if req.UsageAmount.IsNegative() {
		return usagedomain.ErrInvalidUsageAmount
	}
	if req.RecordedAt.IsZero() {
		return usagedomain.ErrInvalidUsageDate
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
