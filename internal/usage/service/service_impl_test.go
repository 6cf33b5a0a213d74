package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/droidtel/bss/internal/clock"
	ratingdomain "github.com/droidtel/bss/internal/rating/domain"
	ratingrepository "github.com/droidtel/bss/internal/rating/repository"
	ratingservice "github.com/droidtel/bss/internal/rating/service"
	subscriptiondomain "github.com/droidtel/bss/internal/subscription/domain"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	usagerepository "github.com/droidtel/bss/internal/usage/repository"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupUsageService(t *testing.T) (usagedomain.Service, *gorm.DB, *snowflake.Node, snowflake.ID) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&subscriptiondomain.Subscription{},
		&usagedomain.UsageRecord{},
		&ratingdomain.RatingRule{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	usageRepo := usagerepository.NewRepository(db)

	ratingSvc := ratingservice.NewService(ratingservice.ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     fake,
		RuleRepo:  ratingrepository.NewRuleRepository(db),
		UsageRepo: usageRepo,
	})

	subscriptionID := node.Generate()
	require.NoError(t, db.Create(&subscriptiondomain.Subscription{
		ID:          subscriptionID,
		CustomerID:  node.Generate(),
		ProductCode: "MOBILE_BASIC",
		Status:      subscriptiondomain.SubscriptionStatusActive,
	}).Error)

	svc := NewService(ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fake,
		UsageRepo: usageRepo,
		RatingSvc: ratingSvc,
	})
	return svc, db, node, subscriptionID
}

func seedSMSRule(t *testing.T, db *gorm.DB, node *snowflake.Node) {
	t.Helper()
	require.NoError(t, db.Create(&ratingdomain.RatingRule{
		ID:        node.Generate(),
		UsageType: usagedomain.UsageTypeSMS,
		ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		UnitRate:  decimal.RequireFromString("0.07"),
		Currency:  "EUR",
	}).Error)
}

func TestIngestStoresAndRates(t *testing.T) {
	svc, db, node, subscriptionID := setupUsageService(t)
	seedSMSRule(t, db, node)

	record, err := svc.Ingest(context.Background(), usagedomain.IngestRequest{
		SubscriptionID: subscriptionID,
		UsageType:      usagedomain.UsageTypeSMS,
		UsageUnit:      usagedomain.UsageUnitMessages,
		UsageAmount:    decimal.NewFromInt(2),
		RecordedAt:     time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		Source:         "mediation",
	})
	require.NoError(t, err)

	assert.True(t, record.Rated)
	assert.Equal(t, "0.14", record.ChargeAmount.Decimal.StringFixed(2))
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), record.UsageDate)
	assert.NotEmpty(t, record.IdempotencyKey)
}

func TestIngestWithoutTariffLeavesUnrated(t *testing.T) {
	svc, db, _, subscriptionID := setupUsageService(t)

	record, err := svc.Ingest(context.Background(), usagedomain.IngestRequest{
		SubscriptionID: subscriptionID,
		UsageType:      usagedomain.UsageTypeRoaming,
		UsageUnit:      usagedomain.UsageUnitMinutes,
		UsageAmount:    decimal.NewFromInt(4),
		RecordedAt:     time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.False(t, record.Rated)

	var stored usagedomain.UsageRecord
	require.NoError(t, db.First(&stored, "id = ?", record.ID).Error)
	assert.False(t, stored.Rated)
}

func TestIngestIdempotencyKeyDeduplicates(t *testing.T) {
	svc, db, node, subscriptionID := setupUsageService(t)
	seedSMSRule(t, db, node)

	req := usagedomain.IngestRequest{
		SubscriptionID: subscriptionID,
		UsageType:      usagedomain.UsageTypeSMS,
		UsageUnit:      usagedomain.UsageUnitMessages,
		UsageAmount:    decimal.NewFromInt(1),
		RecordedAt:     time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		IdempotencyKey: "cdr-batch-42-line-7",
	}

	first, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&usagedomain.UsageRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestIngestUnknownSubscription(t *testing.T) {
	svc, _, node, _ := setupUsageService(t)

	_, err := svc.Ingest(context.Background(), usagedomain.IngestRequest{
		SubscriptionID: node.Generate(),
		UsageType:      usagedomain.UsageTypeSMS,
		UsageUnit:      usagedomain.UsageUnitMessages,
		UsageAmount:    decimal.NewFromInt(1),
		RecordedAt:     time.Now().UTC(),
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)
}

func TestIngestValidation(t *testing.T) {
	svc, _, _, subscriptionID := setupUsageService(t)
	ctx := context.Background()

	base := usagedomain.IngestRequest{
		SubscriptionID: subscriptionID,
		UsageType:      usagedomain.UsageTypeSMS,
		UsageUnit:      usagedomain.UsageUnitMessages,
		UsageAmount:    decimal.NewFromInt(1),
		RecordedAt:     time.Now().UTC(),
	}

	missingSub := base
	missingSub.SubscriptionID = 0
	_, err := svc.Ingest(ctx, missingSub)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidSubscription)

	missingType := base
	missingType.UsageType = ""
	_, err = svc.Ingest(ctx, missingType)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidUsageType)

	missingUnit := base
	missingUnit.UsageUnit = ""
	_, err = svc.Ingest(ctx, missingUnit)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidUsageUnit)

	negative := base
	negative.UsageAmount = decimal.NewFromInt(-1)
	_, err = svc.Ingest(ctx, negative)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidUsageAmount)

	noDate := base
	noDate.RecordedAt = time.Time{}
	_, err = svc.Ingest(ctx, noDate)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidUsageDate)
}
