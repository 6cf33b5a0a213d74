package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	billingcycledomain "github.com/droidtel/bss/internal/billingcycle/domain"
	billingcyclerepository "github.com/droidtel/bss/internal/billingcycle/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/droidtel/bss/internal/clock"
	"github.com/droidtel/bss/internal/config"
	customerdomain "github.com/droidtel/bss/internal/customer/domain"
	invoicedomain "github.com/droidtel/bss/internal/invoice/domain"
	invoiceservice "github.com/droidtel/bss/internal/invoice/service"
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

type cycleFixture struct {
	svc   billingcycledomain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func setupCycleService(t *testing.T) *cycleFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&subscriptiondomain.Subscription{},
		&usagedomain.UsageRecord{},
		&ratingdomain.RatingRule{},
		&billingcycledomain.BillingCycle{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	billing := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	usageRepo := usagerepository.NewRepository(db)

	ratingSvc := ratingservice.NewService(ratingservice.ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     fake,
		RuleRepo:  ratingrepository.NewRuleRepository(db),
		UsageRepo: usageRepo,
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fake,
		Billing: billing,
	})
	svc := NewService(ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Billing:    billing,
		CycleRepo:  billingcyclerepository.NewRepository(db),
		UsageRepo:  usageRepo,
		RatingSvc:  ratingSvc,
		InvoiceSvc: invoiceSvc,
	})

	return &cycleFixture{svc: svc, db: db, node: node, clock: fake}
}

func (f *cycleFixture) seedCustomerWithSubscription(t *testing.T) (snowflake.ID, snowflake.ID) {
	t.Helper()
	customerID := f.node.Generate()
	require.NoError(t, f.db.Create(&customerdomain.Customer{
		ID:        customerID,
		Email:     fmt.Sprintf("c%s@example.com", customerID),
		FirstName: "Jan",
		LastName:  "Kowalski",
		Status:    customerdomain.CustomerStatusActive,
	}).Error)

	subscriptionID := f.node.Generate()
	require.NoError(t, f.db.Create(&subscriptiondomain.Subscription{
		ID:          subscriptionID,
		CustomerID:  customerID,
		ProductCode: "MOBILE_BASIC",
		Status:      subscriptiondomain.SubscriptionStatusActive,
	}).Error)
	return customerID, subscriptionID
}

func (f *cycleFixture) seedSMSRule(t *testing.T, rate string) {
	t.Helper()
	require.NoError(t, f.db.Create(&ratingdomain.RatingRule{
		ID:        f.node.Generate(),
		UsageType: usagedomain.UsageTypeSMS,
		ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		UnitRate:  decimal.RequireFromString(rate),
		Currency:  "EUR",
	}).Error)
}

func (f *cycleFixture) seedUsage(t *testing.T, subscriptionID snowflake.ID, usageType usagedomain.UsageType, amount string, usageDate time.Time) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Create(&usagedomain.UsageRecord{
		ID:             id,
		SubscriptionID: subscriptionID,
		UsageType:      usageType,
		UsageUnit:      usagedomain.UsageUnitMessages,
		UsageAmount:    decimal.RequireFromString(amount),
		UsageDate:      usageDate,
		RecordedAt:     usageDate.Add(10 * time.Hour),
		IdempotencyKey: id.String(),
	}).Error)
	return id
}

func marchCycle(t *testing.T, svc billingcycledomain.Service) *billingcycledomain.BillingCycle {
	t.Helper()
	cycle, err := svc.Start(context.Background(), billingcycledomain.StartRequest{
		CycleStart:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		CycleEnd:    time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		BillingDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return cycle
}

func TestProcessCycleEmitsPerCustomerInvoices(t *testing.T) {
	f := setupCycleService(t)
	f.seedSMSRule(t, "1.00")

	customerA, subA := f.seedCustomerWithSubscription(t)
	customerB, subB := f.seedCustomerWithSubscription(t)
	march := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	f.seedUsage(t, subA, usagedomain.UsageTypeSMS, "60", march)
	f.seedUsage(t, subA, usagedomain.UsageTypeSMS, "40", march.AddDate(0, 0, 5))
	f.seedUsage(t, subB, usagedomain.UsageTypeSMS, "50", march)

	cycle := marchCycle(t, f.svc)
	processed, err := f.svc.Process(context.Background(), cycle.ID)
	require.NoError(t, err)

	assert.Equal(t, billingcycledomain.CycleStatusProcessed, processed.Status)
	require.NotNil(t, processed.GeneratedAt)
	require.NotNil(t, processed.ProcessedAt)
	assert.Equal(t, 2, processed.InvoiceCount)
	assert.Equal(t, "150.00", processed.TotalAmount.StringFixed(2))
	assert.Equal(t, "34.50", processed.TaxAmount.StringFixed(2))
	assert.Equal(t, "184.50", processed.TotalWithTax.StringFixed(2))

	var invoices []invoicedomain.Invoice
	require.NoError(t, f.db.Order("customer_id").Find(&invoices).Error)
	require.Len(t, invoices, 2)

	byCustomer := map[snowflake.ID]invoicedomain.Invoice{}
	for _, inv := range invoices {
		byCustomer[inv.CustomerID] = inv
	}

	invA := byCustomer[customerA]
	assert.Equal(t, "100.00", invA.TotalAmount.StringFixed(2))
	assert.Equal(t, "23.00", invA.TaxAmount.StringFixed(2))
	assert.Equal(t, "123.00", invA.TotalWithTax.StringFixed(2))
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, invA.Status)
	assert.Equal(t, "EUR", invA.Currency)

	invB := byCustomer[customerB]
	assert.Equal(t, "50.00", invB.TotalAmount.StringFixed(2))
	assert.Equal(t, "11.50", invB.TaxAmount.StringFixed(2))
	assert.Equal(t, "61.50", invB.TotalWithTax.StringFixed(2))

	var lineCount int64
	require.NoError(t, f.db.Model(&invoicedomain.InvoiceLine{}).Where("invoice_id = ?", invA.ID).Count(&lineCount).Error)
	assert.EqualValues(t, 2, lineCount)
}

func TestProcessCycleRatesUnratedUsage(t *testing.T) {
	f := setupCycleService(t)
	f.seedSMSRule(t, "0.07")

	_, sub := f.seedCustomerWithSubscription(t)
	recordID := f.seedUsage(t, sub, usagedomain.UsageTypeSMS, "10", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))

	cycle := marchCycle(t, f.svc)
	processed, err := f.svc.Process(context.Background(), cycle.ID)
	require.NoError(t, err)

	assert.Equal(t, "0.70", processed.TotalAmount.StringFixed(2))

	var stored usagedomain.UsageRecord
	require.NoError(t, f.db.First(&stored, "id = ?", recordID).Error)
	assert.True(t, stored.Rated)
}

func TestProcessCycleToleratesUnratableRecords(t *testing.T) {
	f := setupCycleService(t)
	f.seedSMSRule(t, "1.00")

	_, sub := f.seedCustomerWithSubscription(t)
	march := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 9; i++ {
		f.seedUsage(t, sub, usagedomain.UsageTypeSMS, "1", march.AddDate(0, 0, i))
	}
	// No MMS tariff: this record must be skipped without failing the cycle.
	badID := f.seedUsage(t, sub, usagedomain.UsageTypeMMS, "1", march)

	cycle := marchCycle(t, f.svc)
	processed, err := f.svc.Process(context.Background(), cycle.ID)
	require.NoError(t, err)

	assert.Equal(t, billingcycledomain.CycleStatusProcessed, processed.Status)
	assert.Equal(t, "9.00", processed.TotalAmount.StringFixed(2))
	assert.Equal(t, 1, processed.InvoiceCount)

	var bad usagedomain.UsageRecord
	require.NoError(t, f.db.First(&bad, "id = ?", badID).Error)
	assert.False(t, bad.Rated)

	var lineCount int64
	require.NoError(t, f.db.Model(&invoicedomain.InvoiceLine{}).Count(&lineCount).Error)
	assert.EqualValues(t, 9, lineCount)
}

func TestProcessCycleOnlyBillsUsageInPeriod(t *testing.T) {
	f := setupCycleService(t)
	f.seedSMSRule(t, "1.00")

	_, sub := f.seedCustomerWithSubscription(t)
	f.seedUsage(t, sub, usagedomain.UsageTypeSMS, "5", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	f.seedUsage(t, sub, usagedomain.UsageTypeSMS, "7", time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	f.seedUsage(t, sub, usagedomain.UsageTypeSMS, "100", time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))
	f.seedUsage(t, sub, usagedomain.UsageTypeSMS, "100", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	cycle := marchCycle(t, f.svc)
	processed, err := f.svc.Process(context.Background(), cycle.ID)
	require.NoError(t, err)

	// Both period bounds are inclusive; February and April stay out.
	assert.Equal(t, "12.00", processed.TotalAmount.StringFixed(2))
}

func TestProcessCustomerScopedCycle(t *testing.T) {
	f := setupCycleService(t)
	f.seedSMSRule(t, "1.00")

	customerA, subA := f.seedCustomerWithSubscription(t)
	_, subB := f.seedCustomerWithSubscription(t)
	march := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	f.seedUsage(t, subA, usagedomain.UsageTypeSMS, "10", march)
	f.seedUsage(t, subB, usagedomain.UsageTypeSMS, "99", march)

	cycle, err := f.svc.Start(context.Background(), billingcycledomain.StartRequest{
		CustomerID:  customerA,
		CycleStart:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		CycleEnd:    time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		BillingDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	processed, err := f.svc.Process(context.Background(), cycle.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, processed.InvoiceCount)
	assert.Equal(t, "10.00", processed.TotalAmount.StringFixed(2))

	var invoices []invoicedomain.Invoice
	require.NoError(t, f.db.Find(&invoices).Error)
	require.Len(t, invoices, 1)
	assert.Equal(t, customerA, invoices[0].CustomerID)
}

func TestProcessCycleEmptyPeriod(t *testing.T) {
	f := setupCycleService(t)

	cycle := marchCycle(t, f.svc)
	processed, err := f.svc.Process(context.Background(), cycle.ID)
	require.NoError(t, err)

	assert.Equal(t, billingcycledomain.CycleStatusProcessed, processed.Status)
	assert.Equal(t, 0, processed.InvoiceCount)
	assert.Equal(t, "0.00", processed.TotalAmount.StringFixed(2))
}

func TestProcessCycleRejectsReprocessing(t *testing.T) {
	f := setupCycleService(t)

	cycle := marchCycle(t, f.svc)
	_, err := f.svc.Process(context.Background(), cycle.ID)
	require.NoError(t, err)

	_, err = f.svc.Process(context.Background(), cycle.ID)
	assert.ErrorIs(t, err, billingcycledomain.ErrInvalidState)

	var invoiceCount int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Count(&invoiceCount).Error)
	assert.EqualValues(t, 0, invoiceCount)
}

func TestProcessCycleNotFound(t *testing.T) {
	f := setupCycleService(t)

	_, err := f.svc.Process(context.Background(), f.node.Generate())
	assert.ErrorIs(t, err, billingcycledomain.ErrCycleNotFound)
}

func TestStartCycleValidatesPeriod(t *testing.T) {
	f := setupCycleService(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, billingcycledomain.StartRequest{})
	assert.ErrorIs(t, err, billingcycledomain.ErrInvalidPeriod)

	_, err = f.svc.Start(ctx, billingcycledomain.StartRequest{
		CycleStart:  time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		CycleEnd:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		BillingDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, billingcycledomain.ErrInvalidPeriod)
}

func TestFindDuePending(t *testing.T) {
	f := setupCycleService(t)
	ctx := context.Background()

	due := marchCycle(t, f.svc)
	_, err := f.svc.Start(ctx, billingcycledomain.StartRequest{
		CycleStart:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		CycleEnd:    time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		BillingDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	cycles, err := f.svc.FindDuePending(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, due.ID, cycles[0].ID)
}
