// Package seed bootstraps a demo tariff so a fresh development install can
// rate usage without manual setup.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ratingdomain "github.com/droidtel/bss/internal/rating/domain"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const seedCurrency = "EUR"

// EnsureDefaultRatingRules inserts a small voice/data/sms tariff when the
// rule table is empty. An already-populated table is left alone.
func EnsureDefaultRatingRules(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ratingdomain.RatingRule{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		validFrom := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		validTo := validFrom.AddDate(10, 0, 0)

		mobile := usagedomain.DestinationTypeMobile
		peak := usagedomain.RatePeriodPeak
		offPeak := usagedomain.RatePeriodOffPeak

		rules := []ratingdomain.RatingRule{
			{
				ID:              node.Generate(),
				UsageType:       usagedomain.UsageTypeVoiceCall,
				DestinationType: &mobile,
				RatePeriod:      &peak,
				ValidFrom:       validFrom,
				ValidTo:         validTo,
				UnitRate:        decimal.RequireFromString("0.10"),
				MinimumUnits:    1,
				Currency:        seedCurrency,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			{
				ID:              node.Generate(),
				UsageType:       usagedomain.UsageTypeVoiceCall,
				DestinationType: &mobile,
				RatePeriod:      &offPeak,
				ValidFrom:       validFrom,
				ValidTo:         validTo,
				UnitRate:        decimal.RequireFromString("0.05"),
				MinimumUnits:    1,
				Currency:        seedCurrency,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			{
				ID:           node.Generate(),
				UsageType:    usagedomain.UsageTypeData,
				ValidFrom:    validFrom,
				ValidTo:      validTo,
				UnitRate:     decimal.RequireFromString("0.05"),
				MinimumUnits: 1,
				Currency:     seedCurrency,
				CreatedAt:    now,
				UpdatedAt:    now,
			},
			{
				ID:        node.Generate(),
				UsageType: usagedomain.UsageTypeSMS,
				ValidFrom: validFrom,
				ValidTo:   validTo,
				UnitRate:  decimal.RequireFromString("0.07"),
				Currency:  seedCurrency,
				CreatedAt: now,
				UpdatedAt: now,
			},
		}
		return tx.Create(&rules).Error
	})
}
