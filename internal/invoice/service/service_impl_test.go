package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/droidtel/bss/internal/clock"
	"github.com/droidtel/bss/internal/config"
	invoicedomain "github.com/droidtel/bss/internal/invoice/domain"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupInvoiceService(t *testing.T) (invoicedomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fake,
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})
	return svc, db, node
}

func ratedRecord(node *snowflake.Node, usageType usagedomain.UsageType, charge string) *usagedomain.UsageRecord {
	return &usagedomain.UsageRecord{
		ID:             node.Generate(),
		SubscriptionID: node.Generate(),
		UsageType:      usageType,
		UsageUnit:      usagedomain.UsageUnitMessages,
		UsageAmount:    decimal.NewFromInt(1),
		UsageDate:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ChargeAmount:   decimal.NullDecimal{Decimal: decimal.RequireFromString(charge), Valid: true},
		Currency:       "EUR",
		Rated:          true,
	}
}

func TestEmitCreatesDraftInvoiceWithLines(t *testing.T) {
	svc, db, node := setupInvoiceService(t)
	customerID := node.Generate()
	cycleID := node.Generate()
	billingDate := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	invoice, err := svc.Emit(context.Background(), db, invoicedomain.EmitRequest{
		CustomerID:     customerID,
		BillingCycleID: cycleID,
		PeriodStart:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		BillingDate:    billingDate,
		TotalAmount:    decimal.RequireFromString("100.00"),
		TaxAmount:      decimal.RequireFromString("23.00"),
		Currency:       "EUR",
		Records: []*usagedomain.UsageRecord{
			ratedRecord(node, usagedomain.UsageTypeSMS, "60.00"),
			ratedRecord(node, usagedomain.UsageTypeVoiceCall, "40.00"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.InvoiceStatusDraft, invoice.Status)
	assert.Equal(t, invoicedomain.InvoiceTypeUsage, invoice.Type)
	assert.Equal(t, "123.00", invoice.TotalWithTax.StringFixed(2))
	assert.Equal(t, billingDate.AddDate(0, 0, 14), invoice.DueDate)
	assert.True(t, strings.HasPrefix(invoice.InvoiceNumber, "INV-20260401-"))

	var lines []invoicedomain.InvoiceLine
	require.NoError(t, db.Where("invoice_id = ?", invoice.ID).Find(&lines).Error)
	require.Len(t, lines, 2)

	lineTotal := decimal.Zero
	for _, line := range lines {
		lineTotal = lineTotal.Add(line.TotalPrice)
	}
	assert.Equal(t, "100.00", lineTotal.StringFixed(2))
}

func TestEmitRejectsEmptyRequest(t *testing.T) {
	svc, db, node := setupInvoiceService(t)

	_, err := svc.Emit(context.Background(), db, invoicedomain.EmitRequest{
		CustomerID:     node.Generate(),
		BillingCycleID: node.Generate(),
	})
	assert.ErrorIs(t, err, invoicedomain.ErrEmptyInvoice)
}

func TestEmitGeneratesUniqueInvoiceNumbers(t *testing.T) {
	svc, db, node := setupInvoiceService(t)
	billingDate := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	numbers := map[string]struct{}{}
	for i := 0; i < 5; i++ {
		invoice, err := svc.Emit(context.Background(), db, invoicedomain.EmitRequest{
			CustomerID:     node.Generate(),
			BillingCycleID: node.Generate(),
			PeriodStart:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:      time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
			BillingDate:    billingDate,
			TotalAmount:    decimal.RequireFromString("1.00"),
			TaxAmount:      decimal.RequireFromString("0.23"),
			Currency:       "EUR",
			Records: []*usagedomain.UsageRecord{
				ratedRecord(node, usagedomain.UsageTypeSMS, "1.00"),
			},
		})
		require.NoError(t, err)
		numbers[invoice.InvoiceNumber] = struct{}{}
	}
	assert.Len(t, numbers, 5)
}

func TestFindByNumber(t *testing.T) {
	svc, db, node := setupInvoiceService(t)

	created, err := svc.Emit(context.Background(), db, invoicedomain.EmitRequest{
		CustomerID:     node.Generate(),
		BillingCycleID: node.Generate(),
		PeriodStart:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		BillingDate:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount:    decimal.RequireFromString("1.00"),
		TaxAmount:      decimal.RequireFromString("0.23"),
		Currency:       "EUR",
		Records: []*usagedomain.UsageRecord{
			ratedRecord(node, usagedomain.UsageTypeSMS, "1.00"),
		},
	})
	require.NoError(t, err)

	found, err := svc.FindByNumber(context.Background(), created.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Len(t, found.Lines, 1)

	_, err = svc.FindByNumber(context.Background(), "INV-00000000-0")
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}
