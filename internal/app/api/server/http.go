package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/carelink/clinicpay/docs"
	"github.com/carelink/clinicpay/internal/app/api/handlers"
	mw "github.com/carelink/clinicpay/internal/app/api/middleware"
	"github.com/carelink/clinicpay/internal/app/service/ledger"
	notificationlog "github.com/carelink/clinicpay/internal/app/service/notification_log"
	"github.com/carelink/clinicpay/internal/app/service/reconciliation"
	"github.com/carelink/clinicpay/internal/app/service/statistics"
	cfgpkg "github.com/carelink/clinicpay/pkg/config"
	metrics "github.com/carelink/clinicpay/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, recon *reconciliation.Service, notifSvc *notificationlog.Service, led *ledger.Service, stats *statistics.Service, cfg *cfgpkg.Config) {
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}
	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Admin APIs behind JWT auth
	apiAdmin := r.Group("/api/v1/admin")
	apiAdmin.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.AdminAuthMiddleware(cfg.Admin.JWTSecret))
	handlers.RegisterAdminPaymentRoutes(apiAdmin, recon, led, stats)

	// Provider webhooks: bearer credential checked before the body is read
	apiWebhook := r.Group("/api/v1/payment/webhook")
	apiWebhook.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.WebhookAuthMiddleware(cfg.Webhook.BearerToken))
	handlers.RegisterPaymentWebhookRoutes(apiWebhook, recon, notifSvc, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
