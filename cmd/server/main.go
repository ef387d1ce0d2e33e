package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/internal/events"
	"github.com/aryan0dhankhar/expensehub/internal/handler"
	"github.com/aryan0dhankhar/expensehub/internal/infrastructure/amqp"
	"github.com/aryan0dhankhar/expensehub/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/expensehub/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/expensehub/internal/observability/tracing"
	"github.com/aryan0dhankhar/expensehub/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/expensehub/internal/reliability/retry"
	"github.com/aryan0dhankhar/expensehub/internal/repository"
	"github.com/aryan0dhankhar/expensehub/internal/repository/memory"
	"github.com/aryan0dhankhar/expensehub/internal/security"
	"github.com/aryan0dhankhar/expensehub/internal/security/audit"
	"github.com/aryan0dhankhar/expensehub/internal/security/auth"
	"github.com/aryan0dhankhar/expensehub/internal/security/ratelimit"
	"github.com/aryan0dhankhar/expensehub/internal/service"
	"github.com/aryan0dhankhar/expensehub/internal/worker"
	"github.com/aryan0dhankhar/expensehub/pkg/cache"
	"github.com/aryan0dhankhar/expensehub/pkg/config"
	"github.com/aryan0dhankhar/expensehub/pkg/database"
)

type expenseStore interface {
	domain.ExpenseRepository
	domain.ExpenseAggregator
}

// repositories is the data backend chosen by DATA_BACKEND
type repositories struct {
	companies domain.CompanyRepository
	users     domain.UserRepository
	expenses  expenseStore
	health    handler.CheckFunc
	close     func() error
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting expensehub server",
		slog.String("environment", cfg.Environment),
		slog.String("data_backend", cfg.DataBackend),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (no-op without an OTLP endpoint)
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "expensehub", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Initialize repositories
	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize data backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Initialize the analytics cache
	var (
		resultCache service.ResultCache
		redisClient *redis.Client
		memCache    *cache.Cache
	)
	switch cfg.CacheBackend {
	case config.BackendRedis:
		redisClient, err = retry.Do(ctx, retry.StartupConfig(), log, "redis connect",
			func(ctx context.Context) (*redis.Client, error) {
				return redis.NewClient(ctx, cfg.RedisURL, log)
			})
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		breaker := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
		resultCache = redis.NewAnalyticsCache(redisClient, breaker, log)
	case config.BackendMemory:
		memCache = cache.New()
		resultCache = memCache
	}

	// 6. Event fan-out: live subscribers, cache invalidation, optional broker
	hub := events.NewHub(events.DefaultBuffer, log)
	publishers := []domain.EventPublisher{hub}
	if resultCache != nil {
		publishers = append(publishers, service.NewCacheInvalidator(resultCache, log))
	}
	var broker *amqp.Publisher
	if cfg.AMQPURL != "" {
		broker, err = amqp.Dial(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Error("failed to connect to message broker", slog.String("error", err.Error()))
			os.Exit(1)
		}
		publishers = append(publishers, broker)
	}
	eventBus := events.NewFanout(publishers...)

	// 7. Initialize security components
	secret := cfg.JWTSecret
	if secret == "" {
		secret = generateDevSecret()
		log.Warn("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}
	tokenManager := auth.NewTokenManager(secret, cfg.JWTIssuer, cfg.TokenTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	authz := security.NewAuthorizer(log)
	auditLogger := audit.NewLogger(log)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	// 8. Initialize services
	authService := service.NewAuthService(repos.companies, repos.users, tokenManager, hasher, cfg.DefaultMonthlyBudget, log)
	expenseService := service.NewExpenseService(repos.expenses, authz, service.ExpenseServiceOptions{
		Events:                eventBus,
		Audit:                 auditLogger,
		AllowOwnerStatusPatch: cfg.AllowOwnerStatusPatch,
	}, log)
	analyticsService := service.NewAnalyticsService(repos.expenses, repos.users, authz, service.AnalyticsOptions{
		Cache:         resultCache,
		CacheTTL:      cfg.AnalyticsCacheTTL,
		DefaultBudget: cfg.DefaultMonthlyBudget,
		Location:      cfg.Location,
	}, log)

	// 9. Initialize handlers
	checks := map[string]handler.CheckFunc{cfg.DataBackend: repos.health}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}
	router := handler.NewRouter(handler.RouterConfig{
		Auth:           handler.NewAuthHandler(authService, log),
		Expenses:       handler.NewExpenseHandler(expenseService, cfg.MaxPageSize, log),
		Analytics:      handler.NewAnalyticsHandler(analyticsService, log),
		Events:         handler.NewEventsHandler(hub, tokenManager, cfg.CORSAllowedOrigins, log),
		Health:         handler.NewHealthHandler(checks, log),
		Tokens:         tokenManager,
		Authz:          authz,
		Audit:          auditLogger,
		Limiter:        rateLimiter,
		AuthRateLimit:  cfg.AuthRateLimitRequests,
		AuthRateWindow: cfg.RateLimitWindow,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DisableTracing: cfg.OTLPEndpoint == "",
		Logger:         log,
	})

	// 10. Start background workers
	if memCache != nil {
		go worker.NewCacheSweeper(memCache, log, time.Minute).Start(ctx)
	}

	// 11. Start HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimitRequests),
		slog.Duration("rate_limit_window", cfg.RateLimitWindow),
		slog.String("timezone", cfg.Location.String()),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop workers
	rateLimiter.Stop()
	if broker != nil {
		if err := broker.Close(); err != nil {
			log.Warn("failed to close broker connection", slog.String("error", err.Error()))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}
	if err := repos.close(); err != nil {
		log.Warn("failed to close data backend", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("failed to flush traces", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// openRepositories connects the configured data backend. Postgres is dialled
// with retries and migrated before use.
func openRepositories(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repositories, error) {
	if cfg.DataBackend == config.BackendMemory {
		log.Warn("using the in-memory data backend; data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			companies: store.Companies(),
			users:     store.Users(),
			expenses:  store.Expenses(),
			health:    nil,
			close:     func() error { return nil },
		}, nil
	}

	pool, err := retry.Do(ctx, retry.StartupConfig(), log, "postgres connect",
		func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, cfg, log)
		})
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(cfg, log); err != nil {
		_ = pool.Close()
		return nil, err
	}

	db := pool.GetDB()
	return &repositories{
		companies: repository.NewPostgresCompanyRepository(db, log),
		users:     repository.NewPostgresUserRepository(db, log),
		expenses:  repository.NewPostgresExpenseRepository(db, log),
		health:    pool.Health,
		close:     pool.Close,
	}, nil
}

func generateDevSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("dev-%d", time.Now().UnixNano())
}
