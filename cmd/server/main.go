package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/scriptflow/gateway/internal/client"
	"github.com/scriptflow/gateway/internal/config"
	"github.com/scriptflow/gateway/internal/event"
	"github.com/scriptflow/gateway/internal/handler"
	"github.com/scriptflow/gateway/internal/logger"
	"github.com/scriptflow/gateway/internal/middleware"
	"github.com/scriptflow/gateway/internal/registry"
	"github.com/scriptflow/gateway/internal/store"
	"github.com/scriptflow/gateway/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not available")
	}

	validate := validator.New()

	// Connection registry and stores
	reg := registry.New(log)
	jobStore := store.NewJobStore(redisClient, log)
	configStore := store.NewConfigStore(redisClient, log)

	// Upstream service clients
	collectorClient := client.NewCollectorClient(&cfg.Services, log)
	scriptGenClient := client.NewScriptGenClient(&cfg.Services, log)

	// Event consumer with the reconciler as its default handler
	consumer := event.NewConsumer(log)
	reconciler := event.NewReconciler(jobStore, reg, log)
	consumer.RegisterDefaultCallback(reconciler.Handle)

	// Handlers
	jobHandler := handler.NewJobHandler(jobStore, validate)
	collectionHandler := handler.NewCollectionHandler(collectorClient)
	scriptHandler := handler.NewScriptHandler(scriptGenClient)
	configHandler := handler.NewConfigurationHandler(configStore, validate)
	wsHandler := handler.NewWSHandler(jobStore, reg, log)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORS.Origins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")

	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerMin), jobHandler.Create)
	jobs.Get("/:jobId", jobHandler.Get)
	jobs.Post("/:jobId/status", jobHandler.UpdateStatus)

	collections := api.Group("/collections")
	collections.Post("/", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerMin), collectionHandler.SubmitScript)
	collections.Post("/wikipedia", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerMin), collectionHandler.SubmitWikipedia)
	collections.Post("/upload-file", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerMin), collectionHandler.Upload)
	collections.Get("/:collectionId", collectionHandler.Get)

	scripts := api.Group("/scripts")
	scripts.Post("/", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerMin), scriptHandler.Create)
	scripts.Get("/:scriptId", scriptHandler.Get)
	scripts.Get("/:scriptId/status", scriptHandler.Status)

	configurations := api.Group("/configurations")
	configurations.Get("/:type", configHandler.List)
	configurations.Post("/:type", rateLimiter.ConfigLimit(cfg.RateLimit.ConfigPerMin), configHandler.Add)
	configurations.Put("/:type/:id", rateLimiter.ConfigLimit(cfg.RateLimit.ConfigPerMin), configHandler.Update)
	configurations.Delete("/:type/:id", rateLimiter.ConfigLimit(cfg.RateLimit.ConfigPerMin), configHandler.Delete)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.Handle))

	// Start the broker consumer
	asynqServer := newConsumerServer(cfg)
	go func() {
		mux := asynq.NewServeMux()
		mux.HandleFunc(event.TaskTypeScriptReady, consumer.ProcessTask)
		if err := asynqServer.Run(mux); err != nil {
			log.Error().Err(err).Msg("event consumer stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down")
		asynqServer.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Msg("server starting")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func newConsumerServer(cfg *config.Config) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Broker.Concurrency,
			Queues: map[string]int{
				cfg.Broker.Queue: 1,
			},
		},
	)
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
