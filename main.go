// main.go - TailTag achievement processing service
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tailtag/achievements"
	"tailtag/database"
	"tailtag/handlers"
	"tailtag/handlers/admin"
	"tailtag/middleware"
	"tailtag/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Validate critical environment variables
	validateEnvironment()

	// Initialize database (runs migrations and seeds the catalog)
	database.InitDB()
	defer database.CloseDB()

	// Wire the engine: store -> notifier hook -> processor -> queue
	services.InitNotifier()
	store := achievements.NewDBStore(database.GetDB())
	processor := achievements.New(store, log.Default(), services.GetNotifier().OnAwardGranted)
	queue := achievements.NewQueue(processor, log.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	handlers.InitAchievementHandlers(processor, queue)

	// Catch up on any backlog left from downtime before serving traffic
	if getEnv("STARTUP_SWEEP", "true") == "true" {
		runStartupSweep(ctx, processor)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	// CORS configuration
	corsOrigins := os.Getenv("CORS_ORIGINS")
	if corsOrigins == "" {
		corsOrigins = "http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	// Apply rate limiting to all routes
	app.Use(middleware.RateLimitMiddleware())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
			"queued":    queue.Pending(),
		})
	})

	// API Routes
	api := app.Group("/api")

	// Public read surface
	api.Get("/achievements", handlers.GetAchievements)
	api.Get("/users/:id/achievements", handlers.GetUserAchievements)
	api.Get("/leaderboard", handlers.GetLeaderboard)

	// Processing routes (service callers only)
	api.Post("/achievements/process", middleware.ServiceAuthMiddleware, handlers.ProcessPending)
	api.Post("/achievements/events", middleware.ServiceAuthMiddleware, handlers.IngestEvent)

	// Admin catalog management
	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.ServiceAuthMiddleware)
	adminGroup.Get("/achievements", admin.GetAchievements)
	adminGroup.Post("/achievements", admin.CreateAchievement)
	adminGroup.Put("/achievements/:id", admin.UpdateAchievement)
	adminGroup.Patch("/achievements/:id/active", admin.SetAchievementActive)

	// Shut the queue down cleanly on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Achievement service starting on port %s", port)
	log.Printf("📊 Environment: %s", getEnv("APP_ENV", "development"))

	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start HTTP server:", err)
	}
}

// runStartupSweep drains the event backlog accumulated while the service
// was down.
func runStartupSweep(ctx context.Context, processor *achievements.Processor) {
	opts := achievements.BatchOptions{
		LimitPerBatch: getEnvInt("STARTUP_SWEEP_LIMIT", 50),
		MaxBatches:    getEnvInt("STARTUP_SWEEP_MAX_BATCHES", 10),
	}

	summary, err := processor.ProcessPendingEvents(ctx, opts)
	if err != nil {
		log.Printf("Initial sweep failed: %v", err)
		return
	}
	if summary.Processed > 0 {
		log.Printf("Initial sweep processed %d pending events", summary.Processed)
	} else {
		log.Println("Initial sweep found no pending events")
	}
}

// validateEnvironment checks for required environment variables
func validateEnvironment() {
	secret := os.Getenv("SERVICE_TOKEN_SECRET")
	if secret == "" {
		log.Fatal("FATAL: SERVICE_TOKEN_SECRET environment variable must be set. Generate one with: openssl rand -base64 64")
	}
	if len(secret) < 32 {
		log.Fatal("FATAL: SERVICE_TOKEN_SECRET must be at least 32 characters long")
	}

	if os.Getenv("APP_ENV") == "production" {
		corsOrigins := os.Getenv("CORS_ORIGINS")
		if corsOrigins == "" || corsOrigins == "http://localhost:3000" {
			log.Println("WARNING: CORS_ORIGINS not properly configured for production")
		}
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Don't expose internal errors in production
	if os.Getenv("APP_ENV") == "production" && code == 500 {
		message = "An error occurred. Please try again later."
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}
