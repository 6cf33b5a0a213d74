// Package domain contains persistence models for customers.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CustomerStatus represents the customer lifecycle state.
type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "ACTIVE"
	CustomerStatusSuspended CustomerStatus = "SUSPENDED"
	CustomerStatusClosed    CustomerStatus = "CLOSED"
)

// Customer is the billable party invoices are issued to.
type Customer struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	Email     string         `gorm:"type:text;not null;uniqueIndex"`
	FirstName string         `gorm:"type:text;not null"`
	LastName  string         `gorm:"type:text;not null"`
	Phone     string         `gorm:"type:text"`
	Status    CustomerStatus `gorm:"type:text;not null;default:'ACTIVE'"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }
