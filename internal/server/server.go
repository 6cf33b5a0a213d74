// Package server is the thin HTTP surface over the billing engine. The
// engine itself is transport-agnostic; these handlers only bind, delegate
// and map errors.
package server

import (
	"context"
	"net/http"
	"time"

	billingcycledomain "github.com/droidtel/bss/internal/billingcycle/domain"
	"github.com/droidtel/bss/internal/config"
	invoicedomain "github.com/droidtel/bss/internal/invoice/domain"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServerParams struct {
	fx.In

	Engine   *gin.Engine
	Cfg      config.Config
	Log      *zap.Logger
	UsageSvc usagedomain.Service
	CycleSvc billingcycledomain.Service
	InvSvc   invoicedomain.Service
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	usagesvc usagedomain.Service
	cyclesvc billingcycledomain.Service
	invsvc   invoicedomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:   p.Engine,
		cfg:      p.Cfg,
		log:      p.Log.Named("http.server"),
		usagesvc: p.UsageSvc,
		cyclesvc: p.CycleSvc,
		invsvc:   p.InvSvc,
	}
	s.registerRoutes()
	return s
}

func registerGin(cfg config.Config, registry *prometheus.Registry) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/usage", s.IngestUsage)
	v1.POST("/billing-cycles", s.StartBillingCycle)
	v1.POST("/billing-cycles/:id/process", s.ProcessBillingCycle)
	v1.GET("/billing-cycles/:id", s.GetBillingCycle)
	v1.GET("/invoices/:number", s.GetInvoice)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: s.engine,
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
