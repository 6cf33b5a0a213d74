package migration

import (
	billingcycledomain "github.com/droidtel/bss/internal/billingcycle/domain"
	"github.com/droidtel/bss/internal/config"
	customerdomain "github.com/droidtel/bss/internal/customer/domain"
	invoicedomain "github.com/droidtel/bss/internal/invoice/domain"
	ratingdomain "github.com/droidtel/bss/internal/rating/domain"
	"github.com/droidtel/bss/internal/seed"
	subscriptiondomain "github.com/droidtel/bss/internal/subscription/domain"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// mysql and sqlite deployments take the schema straight from
			// the models.
			if err := conn.AutoMigrate(
				&customerdomain.Customer{},
				&subscriptiondomain.Subscription{},
				&usagedomain.UsageRecord{},
				&ratingdomain.RatingRule{},
				&billingcycledomain.BillingCycle{},
				&invoicedomain.Invoice{},
				&invoicedomain.InvoiceLine{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedDemoTariffs {
			return seed.EnsureDefaultRatingRules(conn)
		}
		return nil
	}),
)
