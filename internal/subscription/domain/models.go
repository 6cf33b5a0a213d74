// Package domain contains persistence models for subscriptions.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrSubscriptionNotFound = errors.New("subscription_not_found")

// SubscriptionStatus represents the subscription lifecycle state.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

// Subscription ties usage back to the owning customer. Usage records carry a
// subscription reference; the cycle orchestrator derives the customer from it.
type Subscription struct {
	ID          snowflake.ID       `gorm:"primaryKey"`
	CustomerID  snowflake.ID       `gorm:"not null;index"`
	ProductCode string             `gorm:"type:text;not null"`
	Status      SubscriptionStatus `gorm:"type:text;not null;default:'ACTIVE'"`
	ActivatedAt *time.Time         `gorm:""`
	CreatedAt   time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
