package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/gorilla/mux"

	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/auth"
	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/handlers"
	"github.com/taskpilot/taskpilot/internal/logger"
	"github.com/taskpilot/taskpilot/internal/middleware"
	"github.com/taskpilot/taskpilot/internal/queue"
	"github.com/taskpilot/taskpilot/internal/services/chat"
	"github.com/taskpilot/taskpilot/internal/services/tasks"
	"github.com/taskpilot/taskpilot/internal/telemetry"
)

const serviceName = "taskpilot-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Load .env if present; real env vars take precedence
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// OpenTelemetry tracing, optional
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		zapLogger.Fatal("failed_to_run_migrations", zap.Error(err))
	}
	migrateCancel()
	zapLogger.Info("connected_to_database")

	// Redis, used for rate limiting
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()

	rateStr := cfg.RateLimit
	if rateStr == "" {
		rateStr = middleware.DefaultRateLimit
	}
	rateLimitMW, err := middleware.RateLimit(redisClient, rateStr)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}
	zapLogger.Info("rate_limiter_configured", zap.String("rate", rateStr))

	// RabbitMQ, optional. Without it chat still works; conversations
	// just never get background titles.
	var titles chat.TitlePublisher
	if cfg.RabbitMQURL != "" {
		jobQueue, err := connectQueue(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		titles = queue.NewTitlePublisher(jobQueue)
		zapLogger.Info("connected_to_rabbitmq")
	} else {
		zapLogger.Info("rabbitmq_not_configured_title_generation_disabled")
	}

	// Repositories
	userRepo := database.NewUserRepository(db)
	taskRepo := database.NewTaskRepository(db)
	reminderRepo := database.NewReminderRepository(db)
	convRepo := database.NewConversationRepository(db)

	// Services
	jwtManager := auth.NewJWTManager(cfg.AuthSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	taskService := tasks.NewService(taskRepo, reminderRepo, zapLogger)

	registry := agent.NewTaskRegistry(taskService, zapLogger)
	taskAgent := agent.New(agent.Config{
		APIKey:   cfg.OpenAIKey,
		BaseURL:  cfg.AIBaseURL,
		Model:    cfg.AIModel,
		MaxTurns: cfg.AgentMaxTurns,
	}, registry, zapLogger)

	chatService := chat.NewService(convRepo, taskAgent, titles, zapLogger)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, jwtManager, zapLogger)
	taskHandler := handlers.NewTaskHandler(taskService)
	reminderHandler := handlers.NewReminderHandler(taskService)
	convHandler := handlers.NewConversationHandler(chatService)
	chatHandler := handlers.NewChatHandler(chatService, zapLogger)
	healthChecker := handlers.NewHealthChecker(db)

	// Router. gorilla/mux runs middleware in registration order, so
	// the first Use is the outermost wrapper.
	r := mux.NewRouter()
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORSFromEnv(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	// Chat turns can spend several completion rounds upstream, so the
	// request timeout is well above the default
	r.Use(middleware.Timeout(90 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/health", healthChecker.HealthCheck).Methods("GET")

	authMW := middleware.Auth(jwtManager, zapLogger)

	// Auth routes: register and login are public, verify needs a token
	publicAuth := r.PathPrefix("/api/auth").Subrouter()
	publicAuth.Use(rateLimitMW)
	protectedAuth := r.PathPrefix("/api/auth").Subrouter()
	protectedAuth.Use(rateLimitMW)
	protectedAuth.Use(authMW)
	authHandler.RegisterRoutes(publicAuth, protectedAuth)

	// User-scoped API routes, all JWT protected
	api := r.PathPrefix("/api").Subrouter()
	api.Use(rateLimitMW)
	api.Use(authMW)
	taskHandler.RegisterRoutes(api)
	reminderHandler.RegisterRoutes(api)
	convHandler.RegisterRoutes(api)
	chatHandler.RegisterRoutes(api)

	// Preflight requests fall through to this after the CORS
	// middleware has set headers
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   90 * time.Second, // chat turns can take a while
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectQueue dials RabbitMQ with exponential backoff to ride out
// broker startup delays.
func connectQueue(amqpURL string, zapLogger *zap.Logger) (queue.JobQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		jobQueue, err := queue.NewRabbitMQQueue(amqpURL)
		if err == nil {
			return jobQueue, nil
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}
