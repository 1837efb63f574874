package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ensayo-paes/practice-service/internal/clock"
	"github.com/ensayo-paes/practice-service/internal/config"
	"github.com/ensayo-paes/practice-service/internal/events"
	"github.com/ensayo-paes/practice-service/internal/handlers"
	"github.com/ensayo-paes/practice-service/internal/repositories/postgres"
	"github.com/ensayo-paes/practice-service/internal/services"
	"github.com/ensayo-paes/practice-service/internal/store"
	"github.com/ensayo-paes/practice-service/internal/utils"
	"github.com/ensayo-paes/practice-service/internal/validator"
	"github.com/ensayo-paes/practice-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := utils.NewSlog(cfg.LogLevel)
	logger := utils.WrapSlog(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := postgres.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to initialize Redis: %v", err)
		}
	}

	// Initialize repositories
	repo := postgres.NewRepository(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
	})

	// Session timing runs on the wall clock in production.
	clk := clock.NewWallClock()

	// Snapshot store: Redis when available, in-memory otherwise (sessions
	// then survive tab closes but not restarts).
	var snapshots store.SnapshotStore
	if redisClient != nil {
		snapshots = store.NewRedisSnapshotStore(redisClient, clk, slogLogger)
	} else {
		logger.Warn("Redis not configured, using in-memory snapshot store")
		snapshots = store.NewMemorySnapshotStore(clk)
	}

	// Event publisher: Kafka when brokers are configured.
	var publisher events.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewKafkaEventPublisher(cfg.KafkaBrokers, slogLogger)
		if err != nil {
			log.Fatalf("Failed to initialize kafka publisher: %v", err)
		}
	} else {
		logger.Warn("Kafka not configured, using in-process event publisher")
		publisher = events.NewGoChannelEventPublisher(slogLogger)
	}

	// Initialize validator
	v := validator.New()

	// Initialize services
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	serviceManager := services.NewServiceManager(repo, snapshots, publisher, clk, rng, slogLogger, v)

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(serviceManager, logger, cfg.Casdoor)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Snapshot live sessions before the process dies.
	if err := serviceManager.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown services: %v", err)
	}

	if err := publisher.Close(); err != nil {
		log.Printf("Failed to close event publisher: %v", err)
	}

	if err := repo.Close(); err != nil {
		log.Printf("Failed to close database: %v", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}
