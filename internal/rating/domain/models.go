// Package domain contains the tariff model and the rating engine contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"github.com/shopspring/decimal"
)

// RatingRule is one priced tariff entry. A rule matches a usage record when
// usage type, destination type and rate period are equal (including absent
// vs. absent) and the usage date falls inside the validity window, bounds
// inclusive. Priority breaks overlaps: the matcher picks the highest
// priority and treats a tie as a configuration error.
type RatingRule struct {
	ID              snowflake.ID                 `gorm:"primaryKey"`
	UsageType       usagedomain.UsageType        `gorm:"type:text;not null;index"`
	DestinationType *usagedomain.DestinationType `gorm:"type:text"`
	RatePeriod      *usagedomain.RatePeriod      `gorm:"type:text"`
	ValidFrom       time.Time                    `gorm:"not null"`
	ValidTo         time.Time                    `gorm:"not null"`
	UnitRate        decimal.Decimal              `gorm:"type:decimal(12,4);not null"`
	MinimumUnits    int64                        `gorm:"not null;default:0"`
	Currency        string                       `gorm:"type:text;not null"`
	Priority        int                          `gorm:"not null;default:0"`
	CreatedAt       time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RatingRule) TableName() string { return "rating_rules" }
