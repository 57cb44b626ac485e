package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/account"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/mirror"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/remote"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	lg := logger.Init(os.Stderr, cfg.LogLevel, cfg.ServiceName)
	if !dotenv {
		lg.Info(".env file not found, using system environment variables")
	}

	ctx := context.Background()
	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		lg.Error("tracing disabled", "error", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	backend, err := openMirror(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("failed to open mirror: %v", err)
	}
	m := mirror.New(backend, lg)
	defer m.Close()

	sess := session.New(m, session.NewBus())
	client := remote.NewClient(remote.Config{
		BaseURL:         cfg.APIBaseURL,
		Timeout:         cfg.RemoteTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
	}, sess, lg)

	cat := catalog.New(client, lg)
	reconciler := cart.NewReconciler(client, cat, m, sess, lg)
	ord := orders.NewService(client, m, lg)
	accounts := account.NewService(client, sess, m, lg)
	checkouts := checkout.NewService(reconciler, ord, m, sess, lg)

	if sess.Authenticated(ctx) {
		st := accounts.SyncPrefill(ctx)
		lg.Info("session restored", "prefill_source", st.Source, "issue", st.Issue)
	}

	router := h.NewRouter(h.Services{
		Cart:     reconciler,
		Catalog:  cat,
		Checkout: checkouts,
		Orders:   ord,
		Account:  accounts,
		Session:  sess,
	}, h.Options{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Logger:             lg,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout stays unset for the event stream; other routes are
		// bounded by the timeout middleware.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		lg.Info("storefront starting", "port", cfg.HTTPPort, "api", cfg.APIBaseURL, "mirror", cfg.MirrorBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		lg.Error("tracer shutdown failed", "error", err)
	}
	lg.Info("server exited")
}

func openMirror(ctx context.Context, cfg *config.Config, lg *slog.Logger) (mirror.Backend, error) {
	switch cfg.MirrorBackend {
	case config.MirrorMemory:
		return mirror.NewMemoryBackend(), nil
	case config.MirrorRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		lg.Info("redis ping succeeded", "addr", cfg.RedisAddr)
		return mirror.NewRedisBackend(client, cfg.MirrorNamespace, cfg.MirrorTTL), nil
	default:
		return mirror.NewSQLiteBackend(cfg.MirrorPath)
	}
}
