// Package server exposes the marketplace HTTP surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/config"
	leasedomain "github.com/stayloop/stayloop/internal/lease/domain"
	listingdomain "github.com/stayloop/stayloop/internal/listing/domain"
	"github.com/stayloop/stayloop/internal/observability"
	obsmiddleware "github.com/stayloop/stayloop/internal/observability/logger"
	obsmetrics "github.com/stayloop/stayloop/internal/observability/metrics"
	obstracing "github.com/stayloop/stayloop/internal/observability/tracing"
	"github.com/stayloop/stayloop/internal/providers/pdf"
	"github.com/stayloop/stayloop/internal/ratelimit"
	"github.com/stayloop/stayloop/internal/scheduler"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	listingSvc     listingdomain.Service
	leaseSvc       leasedomain.Service
	billingSvc     billingdomain.Service
	pdfProvider    pdf.Provider
	paymentLimiter *ratelimit.PaymentLimiter
	obsMetrics     *obsmetrics.Metrics
	scheduler      *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	ListingSvc     listingdomain.Service
	LeaseSvc       leasedomain.Service
	BillingSvc     billingdomain.Service
	PDFProvider    pdf.Provider
	PaymentLimiter *ratelimit.PaymentLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
	Scheduler      *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		listingSvc:     p.ListingSvc,
		leaseSvc:       p.LeaseSvc,
		billingSvc:     p.BillingSvc,
		pdfProvider:    p.PDFProvider,
		paymentLimiter: p.PaymentLimiter,
		obsMetrics:     p.ObsMetrics,
		scheduler:      p.Scheduler,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Listings --------
	v1.POST("/listings", s.CreateListing)
	v1.GET("/listings", s.ListListings)
	v1.GET("/listings/:id", s.GetListingByID)

	// -------- Leases --------
	v1.POST("/leases", s.CreateLease)
	v1.GET("/leases", s.ListLeases)
	v1.GET("/leases/:id", s.GetLeaseByID)

	// -------- Billing: listing service charges --------
	listingBilling := v1.Group("/billing/listings/:id")
	listingBilling.POST("/orders", s.CreateListingOrder)
	listingBilling.POST("/payments", s.PaymentRateLimit(), s.ApplyListingPayment)
	listingBilling.GET("", s.GetListingObligation)
	listingBilling.GET("/ledger", s.ListListingLedger)
	listingBilling.GET("/ledger/:entryID/receipt", s.GetListingReceipt)

	// -------- Billing: lease rent --------
	leaseBilling := v1.Group("/billing/leases/:id")
	leaseBilling.POST("/orders", s.CreateLeaseOrder)
	leaseBilling.POST("/payments", s.PaymentRateLimit(), s.ApplyLeasePayment)
	leaseBilling.GET("", s.GetLeaseObligation)
	leaseBilling.GET("/ledger", s.ListLeaseLedger)
	leaseBilling.GET("/ledger/:entryID/receipt", s.GetLeaseReceipt)

	// -------- Reconciliation --------
	v1.POST("/billing/sweep", s.RunSweep)
}
