package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/events"
	"github.com/aryan0dhankhar/tasktracker/internal/featureflags"
	"github.com/aryan0dhankhar/tasktracker/internal/handler"
	"github.com/aryan0dhankhar/tasktracker/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/tasktracker/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/tasktracker/internal/observability/tracing"
	"github.com/aryan0dhankhar/tasktracker/internal/reliability/retry"
	"github.com/aryan0dhankhar/tasktracker/internal/repository"
	"github.com/aryan0dhankhar/tasktracker/internal/repository/memory"
	"github.com/aryan0dhankhar/tasktracker/internal/security"
	"github.com/aryan0dhankhar/tasktracker/internal/security/audit"
	"github.com/aryan0dhankhar/tasktracker/internal/security/auth"
	"github.com/aryan0dhankhar/tasktracker/internal/security/ratelimit"
	"github.com/aryan0dhankhar/tasktracker/internal/service"
	"github.com/aryan0dhankhar/tasktracker/internal/worker"
	"github.com/aryan0dhankhar/tasktracker/pkg/cache"
	"github.com/aryan0dhankhar/tasktracker/pkg/config"
	"github.com/aryan0dhankhar/tasktracker/pkg/database"
)

const devSecret = "dev-secret-change-me"

type repositories struct {
	users     domain.UserRepository
	employees domain.EmployeeRepository
	tasks     domain.TaskRepository
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tasktracker: %v\n", err)
		os.Exit(1)
	}
}

// run owns every resource of the process so deferred cleanup runs on
// startup failures too
func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting TaskTracker server",
		slog.String("environment", cfg.Environment),
		slog.String("storage", cfg.Storage),
		slog.Any("flags", featureflags.Snapshot()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, "tasktracker", cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	checks := map[string]handler.Check{}

	// 3. Initialize storage
	var repos repositories
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		repos = repositories{users: store.Users(), employees: store.Employees(), tasks: store.Tasks()}
	default:
		pool, err := retry.Do(ctx, &retry.Config{
			MaxAttempts:       5,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2,
		}, log, "connect database", func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, cfg.Database, log)
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if cfg.MigrateOnStart {
			if err := database.Migrate(ctx, pool.GetDB(), log); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		db := pool.GetDB()
		repos = repositories{
			users:     repository.NewPostgresUserRepository(db, log),
			employees: repository.NewPostgresEmployeeRepository(db, log),
			tasks:     repository.NewPostgresTaskRepository(db, log),
		}
		checks["database"] = pool.Health
	}

	// 4. Dashboard cache: Redis when configured, in-process otherwise
	var dashboardCache service.Cache
	sweepers := map[string]worker.Sweeper{}
	if featureflags.Enabled(featureflags.DashboardCache) {
		if cfg.RedisURL != "" {
			redisClient, err := redis.NewClient(cfg.RedisURL, log)
			if err != nil {
				return fmt.Errorf("failed to connect to Redis: %w", err)
			}
			defer redisClient.Close()
			dashboardCache = redisClient
			checks["redis"] = redisClient.Ping
		} else {
			local := cache.NewBytes()
			dashboardCache = local
			sweepers["dashboard"] = local
		}
	}

	// 5. Task events: live stream always, Kafka when configured
	hub := events.NewHub(32)
	sinks := service.Sinks{hub}
	var relay *worker.EventRelay
	if featureflags.Enabled(featureflags.TaskEvents) && len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		relay = worker.NewEventRelay(publisher, cfg.EventQueueSize, log)
		sinks = append(sinks, relay)
		defer publisher.Close()
	}

	// 6. Initialize security components
	secret := cfg.JWTSecret
	if secret == "" {
		log.Warn("JWT_SECRET not set, using development secret")
		secret = devSecret
	}
	tokenManager := auth.NewTokenManager(secret, cfg.JWTIssuer, cfg.TokenTTL)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	gate := security.NewGate(log)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 7. Initialize services
	dashboardService := service.NewDashboardService(repos.tasks, repos.employees, gate, dashboardCache, cfg.DashboardCacheTTL, log)
	registry := service.NewTenantRegistry(repos.users, log)
	authService := service.NewAuthService(repos.users, repos.employees, registry, hasher, tokenManager, gate, dashboardService, log)
	employeeService := service.NewEmployeeService(repos.employees, gate, dashboardService, log)
	taskService := service.NewTaskService(repos.tasks, repos.employees, gate, sinks, dashboardService, log)

	// 8. Setup HTTP routes
	router := handler.NewRouter(handler.RouterDeps{
		Auth:           authService,
		Employees:      employeeService,
		Tasks:          taskService,
		Dashboard:      dashboardService,
		Limiter:        rateLimiter,
		LoginAttempts:  cfg.LoginAttemptsPerMinute,
		Audit:          auditLogger,
		SecureCookie:   cfg.IsProduction(),
		Production:     cfg.IsProduction(),
		Hub:            hub,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Checks:         checks,
		Metrics:        promhttp.Handler(),
		Logger:         log,
	})

	// Chain middleware: tracing -> request ID -> CORS -> router
	rootHandler := otelhttp.NewHandler(
		withRequestID(withCORS(router, cfg.CORSAllowedOrigins), log),
		"tasktracker",
	)

	// 9. Start background workers
	if relay != nil {
		go relay.Start(ctx)
	}
	if len(sweepers) > 0 {
		go worker.NewJanitor(sweepers, log, time.Minute).Start(ctx)
	}

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for a shutdown signal or a listener failure
	var runErr error
	select {
	case <-sigChan:
		log.Info("shutdown signal received")
	case err := <-serveErr:
		log.Error("server error", slog.String("error", err.Error()))
		runErr = fmt.Errorf("serve: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop workers; the relay flushes what is queued
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
	return runErr
}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" || len(reqID) > 64 {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)

		ctx := audit.WithRequestID(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

// withCORS honors the configured origins and allows credentials so the
// session cookie reaches the API
func withCORS(next http.Handler, allowed []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(allowed, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else if len(allowed) > 0 && allowed[0] != "*" {
			w.Header().Set("Access-Control-Allow-Origin", allowed[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
