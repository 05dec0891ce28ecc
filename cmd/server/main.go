// Command server runs the foodcart dispatch HTTP API.
//
// @title          Foodcart Dispatch API
// @version        1.0
// @description    Order intake, restaurant matching and dispatch for a food delivery service.
// @BasePath       /api/v1
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-foodcart-dispatch/docs"
	"github.com/tbourn/go-foodcart-dispatch/internal/config"
	"github.com/tbourn/go-foodcart-dispatch/internal/events"
	"github.com/tbourn/go-foodcart-dispatch/internal/geocoder"
	httpapi "github.com/tbourn/go-foodcart-dispatch/internal/http"
	"github.com/tbourn/go-foodcart-dispatch/internal/observability"
	"github.com/tbourn/go-foodcart-dispatch/internal/repo"
	"github.com/tbourn/go-foodcart-dispatch/internal/sysutil"
)

// version is set at link time: -ldflags "-X main.version=1.2.3".
var version string

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	ver := sysutil.Version(version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}

	if cfg.Geocoder.APIKey == "" {
		log.Warn().Msg("geocoder API key not set; lookups will fail and rankings carry unknown distances")
	}
	gc := geocoder.New(cfg.Geocoder.URL, cfg.Geocoder.APIKey, cfg.Geocoder.Timeout, cfg.Geocoder.RPS)

	var pub events.Publisher = events.Noop{}
	if cfg.AMQP.URL != "" {
		p, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			// Events are best effort; the API serves without a broker.
			log.Error().Err(err).Msg("amqp unavailable, order events disabled")
		} else {
			pub = p
		}
	}

	go purgeIdempotency(ctx, db, purgeInterval(cfg.IdempotencyTTL))

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, gc, pub, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", ver).
			Str("base_path", cfg.APIBasePath).
			Bool("swagger", cfg.SwaggerEnabled).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := pub.Close(); err != nil {
		log.Error().Err(err).Msg("close event publisher")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("stopped")
}

// purgeInterval runs the purge a few times per TTL, at most hourly.
func purgeInterval(ttl time.Duration) time.Duration {
	every := ttl / 4
	if every <= 0 || every > time.Hour {
		every = time.Hour
	}
	if every < time.Minute {
		every = time.Minute
	}
	return every
}

// purgeIdempotency deletes expired idempotency records until ctx ends.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("expired idempotency records purged")
			}
		}
	}
}
