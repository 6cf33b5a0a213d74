package service

import (
	"context"
	"sort"
	"time"

	billingcycledomain "github.com/droidtel/bss/internal/billingcycle/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/droidtel/bss/internal/clock"
	"github.com/droidtel/bss/internal/config"
	invoicedomain "github.com/droidtel/bss/internal/invoice/domain"
	"github.com/droidtel/bss/internal/metrics"
	ratingdomain "github.com/droidtel/bss/internal/rating/domain"
	subscriptiondomain "github.com/droidtel/bss/internal/subscription/domain"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCurrency = "EUR"

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Billing    *config.BillingConfigHolder
	CycleRepo  billingcycledomain.Repository
	UsageRepo  usagedomain.Repository
	RatingSvc  ratingdomain.Service
	InvoiceSvc invoicedomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock

	genID      *snowflake.Node
	billing    *config.BillingConfigHolder
	cyclerepo  billingcycledomain.Repository
	usagerepo  usagedomain.Repository
	ratingsvc  ratingdomain.Service
	invoicesvc invoicedomain.Service
	metrics    *metrics.Metrics
}

func NewService(p ServiceParam) billingcycledomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billingcycle.service"),
		clock: p.Clock,

		genID:      p.GenID,
		billing:    p.Billing,
		cyclerepo:  p.CycleRepo,
		usagerepo:  p.UsageRepo,
		ratingsvc:  p.RatingSvc,
		invoicesvc: p.InvoiceSvc,
		metrics:    p.Metrics,
	}
}

func (s *Service) Start(ctx context.Context, req billingcycledomain.StartRequest) (*billingcycledomain.BillingCycle, error) {
	if req.CycleStart.IsZero() || req.CycleEnd.IsZero() || req.BillingDate.IsZero() {
		return nil, billingcycledomain.ErrInvalidPeriod
	}
	if req.CycleEnd.Before(req.CycleStart) {
		return nil, billingcycledomain.ErrInvalidPeriod
	}

	cycleType := req.Type
	if cycleType == "" {
		cycleType = billingcycledomain.CycleTypeMonthly
	}

	now := s.clock.Now()
	cycle := &billingcycledomain.BillingCycle{
		ID:          s.genID.Generate(),
		CustomerID:  req.CustomerID,
		CycleStart:  req.CycleStart,
		CycleEnd:    req.CycleEnd,
		BillingDate: req.BillingDate,
		Type:        cycleType,
		Status:      billingcycledomain.CycleStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.cyclerepo.Create(ctx, cycle); err != nil {
		return nil, err
	}

	s.metrics.IncCycleStarted()
	s.log.Info("billing cycle started",
		zap.String("billing_cycle_id", cycle.ID.String()),
		zap.Time("cycle_start", cycle.CycleStart),
		zap.Time("cycle_end", cycle.CycleEnd),
		zap.Time("billing_date", cycle.BillingDate))
	return cycle, nil
}

// Process runs one cycle inside a single transaction. Any error rolls the
// whole run back, so a cycle is either fully PROCESSED or untouched.
func (s *Service) Process(ctx context.Context, id snowflake.ID) (*billingcycledomain.BillingCycle, error) {
	started := time.Now()

	var result *billingcycledomain.BillingCycle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cycle, err := s.processInTrx(ctx, tx, id)
		if err != nil {
			return err
		}
		result = cycle
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCycleProcessed()
	s.metrics.ObserveCycleProcessing(time.Since(started))
	s.log.Info("billing cycle processed",
		zap.String("billing_cycle_id", result.ID.String()),
		zap.Int("invoice_count", result.InvoiceCount),
		zap.String("total_with_tax", result.TotalWithTax.StringFixed(2)))
	return result, nil
}

func (s *Service) processInTrx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*billingcycledomain.BillingCycle, error) {
	cyclerepo := s.cyclerepo.WithTrx(tx)
	usagerepo := s.usagerepo.WithTrx(tx)

	cycle, err := cyclerepo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if cycle.Status != billingcycledomain.CycleStatusPending {
		return nil, billingcycledomain.ErrInvalidState
	}

	now := s.clock.Now()
	cycle.Status = billingcycledomain.CycleStatusGenerated
	cycle.GeneratedAt = &now
	cycle.UpdatedAt = now
	if err := cyclerepo.Save(ctx, cycle); err != nil {
		return nil, err
	}

	// Catch-up pass: late CDRs that ingestion could not rate get a second
	// chance before aggregation. Unratable records stay out of the run.
	if _, err := s.ratingsvc.WithTrx(tx).RateUnratedInRange(ctx, cycle.CycleStart, cycle.CycleEnd); err != nil {
		return nil, err
	}

	records, err := usagerepo.FindRatedByDateRange(ctx, cycle.CycleStart, cycle.CycleEnd)
	if err != nil {
		return nil, err
	}

	groups, err := s.groupByCustomer(ctx, tx, records)
	if err != nil {
		return nil, err
	}
	if cycle.CustomerID != 0 {
		scoped := groups[:0]
		for _, group := range groups {
			if group.customerID == cycle.CustomerID {
				scoped = append(scoped, group)
			}
		}
		groups = scoped
	}

	taxRate := decimal.NewFromFloat(s.billing.Get().TaxRate)
	grandTotal := decimal.Zero
	grandTax := decimal.Zero
	invoiceCount := 0

	for _, group := range groups {
		total := decimal.Zero
		for _, record := range group.records {
			total = total.Add(record.ChargeAmount.Decimal)
		}
		tax := total.Mul(taxRate).Round(2)

		if _, err := s.invoicesvc.Emit(ctx, tx, invoicedomain.EmitRequest{
			CustomerID:     group.customerID,
			BillingCycleID: cycle.ID,
			PeriodStart:    cycle.CycleStart,
			PeriodEnd:      cycle.CycleEnd,
			BillingDate:    cycle.BillingDate,
			TotalAmount:    total,
			TaxAmount:      tax,
			Currency:       group.currency,
			Records:        group.records,
		}); err != nil {
			return nil, err
		}

		grandTotal = grandTotal.Add(total)
		grandTax = grandTax.Add(tax)
		invoiceCount++
	}

	processedAt := s.clock.Now()
	cycle.Status = billingcycledomain.CycleStatusProcessed
	cycle.ProcessedAt = &processedAt
	cycle.UpdatedAt = processedAt
	cycle.TotalAmount = grandTotal
	cycle.TaxAmount = grandTax
	cycle.TotalWithTax = grandTotal.Add(grandTax)
	cycle.InvoiceCount = invoiceCount
	if err := cyclerepo.Save(ctx, cycle); err != nil {
		return nil, err
	}
	return cycle, nil
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*billingcycledomain.BillingCycle, error) {
	return s.cyclerepo.FindByID(ctx, id)
}

func (s *Service) FindDuePending(ctx context.Context, asOf time.Time, limit int) ([]*billingcycledomain.BillingCycle, error) {
	return s.cyclerepo.FindDuePending(ctx, asOf, limit)
}

type customerGroup struct {
	customerID snowflake.ID
	currency   string
	records    []*usagedomain.UsageRecord
}

// groupByCustomer resolves each record's customer through its subscription
// and returns one group per customer, ordered by customer id so invoice
// emission is deterministic.
func (s *Service) groupByCustomer(ctx context.Context, tx *gorm.DB, records []*usagedomain.UsageRecord) ([]*customerGroup, error) {
	if len(records) == 0 {
		return nil, nil
	}

	seen := make(map[snowflake.ID]struct{}, len(records))
	subscriptionIDs := make([]snowflake.ID, 0, len(records))
	for _, record := range records {
		if _, ok := seen[record.SubscriptionID]; ok {
			continue
		}
		seen[record.SubscriptionID] = struct{}{}
		subscriptionIDs = append(subscriptionIDs, record.SubscriptionID)
	}

	var subscriptions []subscriptiondomain.Subscription
	if err := tx.WithContext(ctx).Where("id IN ?", subscriptionIDs).Find(&subscriptions).Error; err != nil {
		return nil, err
	}
	customerBySubscription := make(map[snowflake.ID]snowflake.ID, len(subscriptions))
	for _, sub := range subscriptions {
		customerBySubscription[sub.ID] = sub.CustomerID
	}

	byCustomer := make(map[snowflake.ID]*customerGroup)
	for _, record := range records {
		customerID, ok := customerBySubscription[record.SubscriptionID]
		if !ok {
			// Orphaned usage cannot be billed to anyone; leave it for
			// reconciliation rather than failing the cycle.
			s.log.Warn("rated usage without a subscription owner, skipped",
				zap.String("usage_record_id", record.ID.String()),
				zap.String("subscription_id", record.SubscriptionID.String()))
			continue
		}
		group, ok := byCustomer[customerID]
		if !ok {
			currency := record.Currency
			if currency == "" {
				currency = defaultCurrency
			}
			group = &customerGroup{customerID: customerID, currency: currency}
			byCustomer[customerID] = group
		}
		group.records = append(group.records, record)
	}

	groups := make([]*customerGroup, 0, len(byCustomer))
	for _, group := range byCustomer {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].customerID < groups[j].customerID })
	return groups, nil
}
