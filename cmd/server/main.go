package main

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/emberwell/emberwell-api/internal/config"
	"github.com/emberwell/emberwell-api/internal/database"
	"github.com/emberwell/emberwell-api/internal/handlers"
	"github.com/emberwell/emberwell-api/internal/middleware"
	"github.com/emberwell/emberwell-api/internal/storage"
	"github.com/emberwell/emberwell-api/internal/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"

	_ "github.com/emberwell/emberwell-api/docs/api" // Swagger docs
)

// @title Emberwell API
// @version 1.0.0
// @description Wellness engagement service: activity streaks, badges and projects of heart
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/emberwell/emberwell-api
// @contact.email support@emberwell.app

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Local media storage for vision images
	store, err := storage.NewDiskStore(cfg.MediaDir)
	if err != nil {
		log.Fatalf("Failed to initialize media storage: %v", err)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("emberwell")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health
	healthHandler := &handlers.HealthHandler{Config: cfg, DB: db}
	app.Get("/health", healthHandler.Health)

	// API routes under /api
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())

	// Create handlers
	engagementHandler := &handlers.EngagementHandler{DB: db}
	projectHandler := &handlers.ProjectHandler{DB: db, Store: store}

	// Activity and badge routes (all require user authentication)
	api.Post("/activity", middleware.AuthUser(cfg), engagementHandler.MarkActivity)
	api.Get("/streak", middleware.AuthUser(cfg), engagementHandler.GetStreak)
	api.Get("/badges", middleware.AuthUser(cfg), engagementHandler.GetBadges)
	api.Post("/badges/fresh", middleware.AuthUser(cfg), engagementHandler.CollectFreshBadges)

	// Admin badge grants
	api.Post("/admin/badges", middleware.AuthAdmin(cfg), engagementHandler.AwardAdminBadge)

	// Project of heart routes
	poh := api.Group("/poh", middleware.AuthUser(cfg))
	poh.Post("/", projectHandler.CreateProject)
	poh.Get("/", projectHandler.GetPipeline)
	poh.Get("/history", projectHandler.GetHistory)
	poh.Patch("/:id", projectHandler.UpdateProject)
	poh.Post("/:id/complete", projectHandler.CompleteProject)
	poh.Post("/:id/close", projectHandler.CloseProject)
	poh.Post("/:id/milestones", projectHandler.AddMilestone)
	poh.Put("/:id/actions", projectHandler.ReplaceActions)
	poh.Post("/:id/rating", projectHandler.RateDay)
	poh.Put("/:id/vision/:slot", projectHandler.UploadVisionImage)

	// Milestone routes addressed by milestone id
	api.Patch("/milestones/:id", middleware.AuthUser(cfg), projectHandler.EditMilestone)
	api.Post("/milestones/:id/achieve", middleware.AuthUser(cfg), projectHandler.AchieveMilestone)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Authorizer is initialized lazily on the first authenticated request
	log.Printf("Authorizer will be initialized on first authenticated request")

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Check for auth middleware errors
	var customErr *types.CustomError
	if errors.As(err, &customErr) {
		code = customErr.Code
		message = customErr.Message
		errorType = customErr.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
