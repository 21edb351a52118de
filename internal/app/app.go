// Package app wires configuration, storage, services, and transport into
// runnable processes: the registrar API server and the lifecycle sweeper.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/juniorpayne/registry-core/internal/adapter/dns"
	"github.com/juniorpayne/registry-core/internal/adapter/postgres"
	"github.com/juniorpayne/registry-core/internal/adapter/postgres/billing"
	"github.com/juniorpayne/registry-core/internal/adapter/postgres/domainrepo"
	"github.com/juniorpayne/registry-core/internal/adapter/postgres/graceperiod"
	"github.com/juniorpayne/registry-core/internal/adapter/postgres/history"
	"github.com/juniorpayne/registry-core/internal/adapter/postgres/pollmessage"
	"github.com/juniorpayne/registry-core/internal/adapter/postgres/pricelist"
	"github.com/juniorpayne/registry-core/internal/adapter/postgres/tldrepo"
	tokenrepo "github.com/juniorpayne/registry-core/internal/adapter/postgres/token"
	"github.com/juniorpayne/registry-core/internal/adapter/premium"
	"github.com/juniorpayne/registry-core/internal/adapter/tasks"
	"github.com/juniorpayne/registry-core/internal/auth"
	"github.com/juniorpayne/registry-core/internal/config"
	"github.com/juniorpayne/registry-core/internal/metrics"
	"github.com/juniorpayne/registry-core/internal/service/fees"
	"github.com/juniorpayne/registry-core/internal/service/lifecycle"
	"github.com/juniorpayne/registry-core/internal/service/poll"
	"github.com/juniorpayne/registry-core/internal/service/sweep"
	"github.com/juniorpayne/registry-core/internal/service/token"
	"github.com/juniorpayne/registry-core/internal/transport/middleware"
	"github.com/juniorpayne/registry-core/internal/transport/rest"
	"github.com/juniorpayne/registry-core/pkg/clock"
)

// services holds the wired service layer and the resources it owns.
type services struct {
	Lifecycle *lifecycle.Service
	Poll      *poll.Service
	Sweep     *sweep.Service

	closers []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServices wires repositories, adapters, and services on top of a pool.
func buildServices(cfg *config.Config, pool *pgxpool.Pool, m *metrics.Metrics, logger *slog.Logger) (*services, error) {
	s := &services{}

	domains := domainrepo.New(pool)
	billingRepo := billing.New(pool)
	graceRepo := graceperiod.New(pool)
	pollRepo := pollmessage.New(pool)
	historyRepo := history.New(pool)
	tldRepo := tldrepo.New(pool)
	tokenRepo := tokenrepo.New(pool)
	priceRepo := pricelist.New(pool)
	taskQueue := tasks.NewEnqueuer(pool, logger)
	tx := postgres.NewTxManager(pool)
	clk := clock.NewSystem()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = rdb.Close() })
	}
	premiumCache := premium.NewCache(rdb, priceRepo, cfg.Redis.CacheTTL, logger)

	var dnsPub dns.Publisher = dns.NoopPublisher{}
	if len(cfg.DNS.Brokers) > 0 {
		kafkaPub, err := dns.NewKafkaPublisher(cfg.DNS.Brokers, cfg.DNS.Topic, m, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create dns publisher: %w", err)
		}
		s.closers = append(s.closers, kafkaPub.Close)
		dnsPub = kafkaPub
	}

	feeEngine := fees.NewEngine(logger, premiumCache, priceRepo)
	tokenSvc := token.NewService(logger, tokenRepo)
	pollSvc := poll.NewService(logger, pollRepo, clk)

	s.Lifecycle = lifecycle.NewService(logger, domains, billingRepo, graceRepo,
		pollSvc, tokenSvc, feeEngine, tldRepo, historyRepo, priceRepo,
		dnsPub, taskQueue, tx, clk)
	s.Poll = pollSvc
	s.Sweep = sweep.NewService(logger, domains, billingRepo, graceRepo,
		pollRepo, historyRepo, tldRepo, taskQueue, tx, clk, cfg.Sweep.BatchSize, m)

	return s, nil
}

// Run starts the registrar API server and blocks until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := NewLogger(cfg.Log)

	logger.Info("starting registry API",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, cfg.Database.DSN); err != nil {
		return err
	}

	m := metrics.New()
	svc, err := buildServices(cfg, pool, m, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	handler := rest.NewHandler(logger, svc.Lifecycle, svc.Poll, cfg.Registry.CheckBatchLimit)

	var rateLimit middleware.Middleware
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter := middleware.NewRateLimiter(5 * time.Minute)
		defer limiter.Stop()
		rateLimit = limiter.Limit(cfg.Server.RateLimitPerMinute)
	}

	router := rest.NewRouter(rest.RouterDeps{
		Handler:   handler,
		Health:    rest.NewHealthHandler(pool, BuildVersion()),
		Auth:      middleware.Auth(jwtManager),
		RateLimit: rateLimit,
		Metrics:   m,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

// RunSweeper starts the periodic sweep loop and blocks until ctx is cancelled.
func RunSweeper(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := NewLogger(cfg.Log)

	logger.Info("starting lifecycle sweeper",
		slog.String("version", BuildVersion()),
		slog.Duration("interval", cfg.Sweep.Interval),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	m := metrics.New()
	svc, err := buildServices(cfg, pool, m, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	ticker := time.NewTicker(cfg.Sweep.Interval)
	defer ticker.Stop()

	for {
		if err := svc.Sweep.Run(ctx); err != nil {
			logger.Error("sweep pass failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}
