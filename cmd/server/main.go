// Command server runs the brokerage alerts API and its daily alert jobs.
//
// @title                      Brokerage Alerts API
// @version                    1.0
// @description                Alert feed, summaries and job control for insurance brokers.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/tbourn/brokerage-alerts/docs"
	"github.com/tbourn/brokerage-alerts/internal/config"
	"github.com/tbourn/brokerage-alerts/internal/domain"
	httpapi "github.com/tbourn/brokerage-alerts/internal/http"
	"github.com/tbourn/brokerage-alerts/internal/notify"
	"github.com/tbourn/brokerage-alerts/internal/observability"
	"github.com/tbourn/brokerage-alerts/internal/repo"
	"github.com/tbourn/brokerage-alerts/internal/rules"
	"github.com/tbourn/brokerage-alerts/internal/scheduler"
	"github.com/tbourn/brokerage-alerts/internal/services"
	"github.com/tbourn/brokerage-alerts/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 15 * time.Second

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("database open failed")
	}
	if cfg.OTEL.Enabled {
		if err := observability.InstrumentDB(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing disabled")
		}
	}
	if err := repo.AutoMigrate(db, cfg.DB.MigrateSources); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	alerts := services.NewAlertService(db, repo.Alerts{})
	alerts.RefireAfterRead = cfg.Alerts.RefireAfterRead
	var publisher *notify.RedisPublisher
	if cfg.Redis.Enabled {
		publisher = notify.NewRedisPublisher(cfg.Redis)
		if err := publisher.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; events will be retried per publish")
		}
		alerts.Publisher = publisher
	}

	sched, err := buildScheduler(cfg, db, alerts)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler setup failed")
	}

	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	httpapi.RegisterRoutes(r, db, cfg, httpapi.Deps{Alerts: alerts, Jobs: sched})
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.Version = ver
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if cfg.Scheduler.Enabled {
		sched.Start()
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", ver).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// Running job bodies still need Redis and the database.
	if err := sched.Stop(sctx); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown")
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(sctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
}

// buildScheduler wires the rule registry, the outbound channels and the
// alert service into the daily jobs.
func buildScheduler(cfg config.Config, db *gorm.DB, alerts *services.AlertService) (*scheduler.Scheduler, error) {
	var channels []notify.Channel
	if cfg.WhatsApp.Enabled {
		wa, err := notify.NewWhatsAppChannel(cfg.WhatsApp)
		if err != nil {
			return nil, err
		}
		channels = append(channels, wa)
	}
	if cfg.SMTP.Enabled {
		em, err := notify.NewEmailChannel(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		channels = append(channels, em)
	}

	deps := scheduler.Deps{
		Rules:         rules.NewRegistry(db, cfg.Alerts, sysutil.LoadLocation(cfg.Scheduler.Timezone)),
		Alerts:        alerts,
		RetentionDays: cfg.Alerts.RetentionDays,
	}
	if len(channels) > 0 {
		deps.Notifier = &notify.Dispatcher{
			DB:          db,
			Channels:    channels,
			MinPriority: domain.Priority(cfg.Alerts.DispatchMinPriority),
		}
	}
	return scheduler.New(cfg.Scheduler.Timezone, scheduler.DefaultJobs(cfg.Scheduler, deps))
}
