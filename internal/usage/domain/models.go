// Package domain contains persistence models for usage records (CDRs).
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// UsageType classifies the billable event.
type UsageType string

const (
	UsageTypeVoiceCall UsageType = "VOICE_CALL"
	UsageTypeData      UsageType = "DATA"
	UsageTypeSMS       UsageType = "SMS"
	UsageTypeMMS       UsageType = "MMS"
	UsageTypeRoaming   UsageType = "ROAMING"
)

// DestinationType classifies where the traffic terminated.
type DestinationType string

const (
	DestinationTypeMobile        DestinationType = "MOBILE"
	DestinationTypeFixed         DestinationType = "FIXED"
	DestinationTypeInternational DestinationType = "INTERNATIONAL"
	DestinationTypePremium       DestinationType = "PREMIUM"
)

// RatePeriod is the tariff time-of-day bucket.
type RatePeriod string

const (
	RatePeriodPeak    RatePeriod = "PEAK"
	RatePeriodOffPeak RatePeriod = "OFF_PEAK"
	RatePeriodWeekend RatePeriod = "WEEKEND"
)

// UsageUnit is the unit the usage amount is measured in.
type UsageUnit string

const (
	UsageUnitMinutes  UsageUnit = "MINUTES"
	UsageUnitMB       UsageUnit = "MB"
	UsageUnitMessages UsageUnit = "MESSAGES"
)

// UsageRecord is one telecom usage event. Created unrated by ingestion and
// mutated exactly once by the rating engine; never deleted.
//
// Invariant: Rated == true implies UnitRate, ChargeAmount, Currency and
// RatedAt are all set.
type UsageRecord struct {
	ID              snowflake.ID     `gorm:"primaryKey"`
	SubscriptionID  snowflake.ID     `gorm:"not null;index"`
	UsageType       UsageType        `gorm:"type:text;not null;index"`
	DestinationType *DestinationType `gorm:"type:text"`
	RatePeriod      *RatePeriod      `gorm:"type:text"`
	UsageUnit       UsageUnit        `gorm:"type:text;not null"`
	UsageAmount     decimal.Decimal  `gorm:"type:decimal(12,4);not null"`

	// UsageDate is the event date at UTC midnight; RecordedAt keeps the full
	// instant. Cycle selection ranges over UsageDate with inclusive bounds.
	UsageDate  time.Time `gorm:"not null;index"`
	RecordedAt time.Time `gorm:"not null"`

	UnitRate     decimal.NullDecimal `gorm:"type:decimal(12,4)"`
	ChargeAmount decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	Currency     string              `gorm:"type:text"`
	Rated        bool                `gorm:"not null;default:false;index"`
	RatedAt      *time.Time          `gorm:""`

	Source         string            `gorm:"type:text"`
	SourceFile     string            `gorm:"type:text"`
	IdempotencyKey string            `gorm:"type:text;not null;uniqueIndex"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }
