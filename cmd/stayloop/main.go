package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/stayloop/internal/billing"
	"github.com/stayloop/stayloop/internal/clock"
	"github.com/stayloop/stayloop/internal/config"
	"github.com/stayloop/stayloop/internal/gateway"
	"github.com/stayloop/stayloop/internal/lease"
	"github.com/stayloop/stayloop/internal/listing"
	"github.com/stayloop/stayloop/internal/migration"
	"github.com/stayloop/stayloop/internal/observability"
	"github.com/stayloop/stayloop/internal/pricing"
	"github.com/stayloop/stayloop/internal/providers/pdf"
	"github.com/stayloop/stayloop/internal/ratelimit"
	"github.com/stayloop/stayloop/internal/scheduler"
	"github.com/stayloop/stayloop/internal/server"
	"github.com/stayloop/stayloop/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure.
		config.Module,
		observability.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		ratelimit.Module,

		// Domain services.
		pricing.Module,
		listing.Module,
		lease.Module,
		gateway.Module,
		billing.Module,
		pdf.Module,
		scheduler.Module,

		// HTTP surface.
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
