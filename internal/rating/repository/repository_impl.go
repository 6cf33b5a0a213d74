package repository

import (
	"context"
	"time"

	ratingdomain "github.com/droidtel/bss/internal/rating/domain"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"gorm.io/gorm"
)

type ruleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) ratingdomain.RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) WithTrx(tx *gorm.DB) ratingdomain.RuleRepository {
	return &ruleRepository{db: tx}
}

func (r *ruleRepository) FindMatching(
	ctx context.Context,
	usageType usagedomain.UsageType,
	destinationType *usagedomain.DestinationType,
	ratePeriod *usagedomain.RatePeriod,
	date time.Time,
) ([]ratingdomain.RatingRule, error) {
	stmt := r.db.WithContext(ctx).
		Where("usage_type = ?", usageType).
		Where("valid_from <= ? AND valid_to >= ?", date, date)

	if destinationType != nil {
		stmt = stmt.Where("destination_type = ?", *destinationType)
	} else {
		stmt = stmt.Where("destination_type IS NULL")
	}
	if ratePeriod != nil {
		stmt = stmt.Where("rate_period = ?", *ratePeriod)
	} else {
		stmt = stmt.Where("rate_period IS NULL")
	}

	var rules []ratingdomain.RatingRule
	err := stmt.Order("priority DESC, valid_from DESC, id").Find(&rules).Error
	return rules, err
}
