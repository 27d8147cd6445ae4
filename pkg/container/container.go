package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"returns-backend/internal/config"
	infraCache "returns-backend/internal/infrastructure/cache"
	"returns-backend/internal/infrastructure/database"
	"returns-backend/pkg/cache"
	"returns-backend/pkg/jwt"

	"returns-backend/internal/domains/returns/courier"
	courierMock "returns-backend/internal/domains/returns/courier/mock"
	"returns-backend/internal/domains/returns/courier/shipway"
	returnsHandler "returns-backend/internal/domains/returns/handler"
	returnsJob "returns-backend/internal/domains/returns/job"
	returnsRepo "returns-backend/internal/domains/returns/repository"
	returnsService "returns-backend/internal/domains/returns/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds every application dependency and is the root of the
// dependency graph. Everything in here is a singleton.
type Container struct {
	// Infrastructure layer - shared across all domains
	Config      *config.Config
	DB          *database.PostgresDB
	Redis       *infraCache.RedisClient
	Cache       cache.Cache
	JWTManager  *jwt.Manager
	AsynqClient *asynq.Client

	// External gateways
	Courier courier.Gateway

	// Domain layer
	ReturnRepo    returnsRepo.ReturnRepository
	Events        returnsService.EventPublisher
	ReturnService returnsService.ReturnService
	ReturnHandler *returnsHandler.ReturnHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer initializes the whole dependency graph. Order matters:
// config, then infrastructure, then repositories, services, handlers.
func NewContainer() (*Container, error) {
	log.Println("🔧 Initializing DI Container...")

	c := &Container{}

	// Step 1: configuration
	log.Println("📋 Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Printf("✅ Config loaded (Environment: %s)", cfg.App.Environment)

	// Step 2: database
	log.Println("🗄️  Connecting to PostgreSQL...")
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	c.DB = db
	log.Println("✅ Database connected")

	// Step 3: redis cache + asynq client
	log.Println("🔴 Connecting to Redis...")
	redisClient := infraCache.NewRedisClient(
		cfg.Redis.Host,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err := redisClient.Connect(context.Background()); err != nil {
		// Cache and notifications degrade, transitions still work
		log.Printf("⚠️  Redis connection failed (non-critical): %v", err)
	} else {
		log.Println("✅ Redis connected")
	}
	c.Redis = redisClient
	c.Cache = cache.NewRedisCache(redisClient.Client)

	c.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret)

	// Step 4: courier gateway
	c.Courier = buildCourierGateway(cfg)
	log.Printf("✅ Courier gateway ready (provider: %s)", cfg.Courier.Provider)

	// Step 5: repositories
	log.Println("📦 Initializing repositories...")
	c.ReturnRepo = returnsRepo.NewPostgresReturnRepository(c.DB.Pool)
	log.Println("✅ Repositories initialized")

	// Step 6: services
	log.Println("⚙️  Initializing services...")
	c.Events = returnsJob.NewAsynqPublisher(c.AsynqClient)
	c.ReturnService = returnsService.NewReturnService(
		c.ReturnRepo,
		c.Courier,
		c.Events,
		c.Cache,
	)
	log.Println("✅ Services initialized")

	// Step 7: handlers
	log.Println("🎯 Initializing handlers...")
	c.ReturnHandler = returnsHandler.NewReturnHandler(c.ReturnService)
	log.Println("✅ Handlers initialized")

	log.Println("🎉 DI Container initialized successfully")
	return c, nil
}

// buildCourierGateway selects the pickup provider from config.
// The mock provider keeps local development independent of Shipway.
func buildCourierGateway(cfg *config.Config) courier.Gateway {
	switch cfg.Courier.Provider {
	case "shipway":
		return shipway.NewClient(shipway.NewConfig(
			cfg.Courier.APIKey,
			cfg.Courier.APIUrl,
			cfg.Courier.Timeout,
		))
	default:
		return courierMock.NewGateway()
	}
}

// Cleanup releases resources during graceful shutdown
func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Printf("⚠️  Failed to close asynq client: %v", err)
		}
	}

	if c.DB != nil && c.DB.Pool != nil {
		c.DB.Pool.Close()
		log.Println("✅ Database connections closed")
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Printf("⚠️  Failed to close Redis: %v", err)
		} else {
			log.Println("✅ Redis connections closed")
		}
	}

	log.Println("✅ Container cleanup completed")
}
