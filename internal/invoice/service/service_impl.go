package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/droidtel/bss/internal/clock"
	"github.com/droidtel/bss/internal/config"
	invoicedomain "github.com/droidtel/bss/internal/invoice/domain"
	"github.com/droidtel/bss/internal/metrics"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Billing *config.BillingConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock

	genID   *snowflake.Node
	billing *config.BillingConfigHolder
	metrics *metrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		clock: p.Clock,

		genID:   p.GenID,
		billing: p.Billing,
		metrics: p.Metrics,
	}
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, req invoicedomain.EmitRequest) (*invoicedomain.Invoice, error) {
	if len(req.Records) == 0 {
		return nil, invoicedomain.ErrEmptyInvoice
	}

	now := s.clock.Now()
	terms := s.billing.Get().PaymentTermsDays

	invoice := &invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		InvoiceNumber:  s.nextInvoiceNumber(req.BillingDate),
		CustomerID:     req.CustomerID,
		BillingCycleID: req.BillingCycleID,
		Type:           invoicedomain.InvoiceTypeUsage,
		Status:         invoicedomain.InvoiceStatusDraft,

		BillingPeriodStart: req.PeriodStart,
		BillingPeriodEnd:   req.PeriodEnd,
		BillingDate:        req.BillingDate,
		DueDate:            req.BillingDate.AddDate(0, 0, terms),

		TotalAmount:  req.TotalAmount,
		TaxAmount:    req.TaxAmount,
		TotalWithTax: req.TotalAmount.Add(req.TaxAmount),
		Currency:     req.Currency,

		CreatedAt: now,
		UpdatedAt: now,
	}

	lines := make([]invoicedomain.InvoiceLine, 0, len(req.Records))
	for _, record := range req.Records {
		lines = append(lines, invoicedomain.InvoiceLine{
			ID:            s.genID.Generate(),
			InvoiceID:     invoice.ID,
			UsageRecordID: record.ID,
			ItemType:      string(record.UsageType),
			Description:   lineDescription(record),
			Quantity:      decimal.NewFromInt(1),
			UnitPrice:     record.ChargeAmount.Decimal,
			TotalPrice:    record.ChargeAmount.Decimal,
			CreatedAt:     now,
		})
	}

	if err := tx.WithContext(ctx).Create(invoice).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&lines).Error; err != nil {
		return nil, err
	}
	invoice.Lines = lines

	s.metrics.IncInvoiceCreated()
	s.log.Info("draft invoice emitted",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("customer_id", invoice.CustomerID.String()),
		zap.String("total_with_tax", invoice.TotalWithTax.StringFixed(2)),
		zap.Int("line_count", len(lines)))
	return invoice, nil
}

func (s *Service) FindByNumber(ctx context.Context, number string) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Preload("Lines").
		Where("invoice_number = ?", number).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicedomain.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// nextInvoiceNumber builds a human-scannable, collision-free number: the
// billing date for the eye, a snowflake for uniqueness.
func (s *Service) nextInvoiceNumber(billingDate time.Time) string {
	return fmt.Sprintf("INV-%s-%s", billingDate.Format("20060102"), s.genID.Generate())
}

func lineDescription(record *usagedomain.UsageRecord) string {
	return fmt.Sprintf("%s %s %s on %s",
		record.UsageAmount.String(),
		record.UsageUnit,
		record.UsageType,
		record.UsageDate.Format("2006-01-02"))
}
