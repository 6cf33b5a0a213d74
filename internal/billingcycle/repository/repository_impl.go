package repository

import (
	"context"
	"errors"
	"time"

	billingcycledomain "github.com/droidtel/bss/internal/billingcycle/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) billingcycledomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTrx(tx *gorm.DB) billingcycledomain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, cycle *billingcycledomain.BillingCycle) error {
	return r.db.WithContext(ctx).Create(cycle).Error
}

func (r *repository) Save(ctx context.Context, cycle *billingcycledomain.BillingCycle) error {
	return r.db.WithContext(ctx).Save(cycle).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*billingcycledomain.BillingCycle, error) {
	var cycle billingcycledomain.BillingCycle
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cycle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billingcycledomain.ErrCycleNotFound
		}
		return nil, err
	}
	return &cycle, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id snowflake.ID) (*billingcycledomain.BillingCycle, error) {
	stmt := r.db.WithContext(ctx)
	// sqlite serializes writers at the database level; FOR UPDATE is a
	// syntax error there.
	if r.db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var cycle billingcycledomain.BillingCycle
	err := stmt.Where("id = ?", id).First(&cycle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billingcycledomain.ErrCycleNotFound
		}
		return nil, err
	}
	return &cycle, nil
}

func (r *repository) FindDuePending(ctx context.Context, asOf time.Time, limit int) ([]*billingcycledomain.BillingCycle, error) {
	stmt := r.db.WithContext(ctx).
		Where("status = ?", billingcycledomain.CycleStatusPending).
		Where("billing_date <= ?", asOf).
		Order("billing_date, id")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}

	var cycles []*billingcycledomain.BillingCycle
	err := stmt.Find(&cycles).Error
	return cycles, err
}
