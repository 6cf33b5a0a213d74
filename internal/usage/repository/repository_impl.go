package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) usagedomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTrx(tx *gorm.DB) usagedomain.Repository {
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, record *usagedomain.UsageRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*usagedomain.UsageRecord, error) {
	var record usagedomain.UsageRecord
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*usagedomain.UsageRecord, error) {
	var record usagedomain.UsageRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByDateRange(ctx context.Context, start, end time.Time) ([]*usagedomain.UsageRecord, error) {
	var records []*usagedomain.UsageRecord
	err := r.db.WithContext(ctx).
		Where("usage_date >= ? AND usage_date <= ?", start, end).
		Order("usage_date, id").
		Find(&records).Error
	return records, err
}

func (r *repository) FindRatedByDateRange(ctx context.Context, start, end time.Time) ([]*usagedomain.UsageRecord, error) {
	var records []*usagedomain.UsageRecord
	err := r.db.WithContext(ctx).
		Where("usage_date >= ? AND usage_date <= ? AND rated = ?", start, end, true).
		Order("usage_date, id").
		Find(&records).Error
	return records, err
}

func (r *repository) FindUnrated(ctx context.Context) ([]*usagedomain.UsageRecord, error) {
	var records []*usagedomain.UsageRecord
	err := r.db.WithContext(ctx).
		Where("rated = ?", false).
		Order("usage_date, id").
		Find(&records).Error
	return records, err
}

func (r *repository) FindUnratedByDateRange(ctx context.Context, start, end time.Time) ([]*usagedomain.UsageRecord, error) {
	var records []*usagedomain.UsageRecord
	err := r.db.WithContext(ctx).
		Where("usage_date >= ? AND usage_date <= ? AND rated = ?", start, end, false).
		Order("usage_date, id").
		Find(&records).Error
	return records, err
}

func (r *repository) FindUnratedBySubscription(ctx context.Context, subscriptionID snowflake.ID, start, end time.Time) ([]*usagedomain.UsageRecord, error) {
	var records []*usagedomain.UsageRecord
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND usage_date >= ? AND usage_date <= ? AND rated = ?", subscriptionID, start, end, false).
		Order("usage_date, id").
		Find(&records).Error
	return records, err
}

// ClaimRated is a compare-and-swap on the rated flag: two concurrent cycle
// runs over overlapping ranges cannot rate the same record twice.
func (r *repository) ClaimRated(ctx context.Context, id snowflake.ID, fields usagedomain.RatedFields) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&usagedomain.UsageRecord{}).
		Where("id = ? AND rated = ?", id, false).
		Updates(map[string]any{
			"unit_rate":     decimal.NullDecimal{Decimal: fields.UnitRate, Valid: true},
			"charge_amount": decimal.NullDecimal{Decimal: fields.ChargeAmount, Valid: true},
			"currency":      fields.Currency,
			"rated":         true,
			"rated_at":      fields.RatedAt,
			"updated_at":    fields.RatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
