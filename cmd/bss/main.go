package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/droidtel/bss/internal/billingcycle"
	"github.com/droidtel/bss/internal/clock"
	"github.com/droidtel/bss/internal/config"
	"github.com/droidtel/bss/internal/invoice"
	"github.com/droidtel/bss/internal/metrics"
	"github.com/droidtel/bss/internal/migration"
	"github.com/droidtel/bss/internal/rating"
	"github.com/droidtel/bss/internal/scheduler"
	"github.com/droidtel/bss/internal/server"
	"github.com/droidtel/bss/internal/usage"
	"github.com/droidtel/bss/pkg/db"
	"github.com/droidtel/bss/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		// Functional domains
		usage.Module,
		rating.Module,
		billingcycle.Module,
		invoice.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
