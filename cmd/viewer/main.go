package main

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"propview/internal/common/config"
	"propview/internal/common/logger"
	"propview/internal/common/middleware"
	"propview/internal/layout"
	"propview/internal/viewer/handlers"
)

// ============================================================
// Viewer Service
// ============================================================

func main() {
	cfg, err := config.LoadViewer()
	if err != nil {
		logger.Log.Fatalf("config: %v", err)
	}
	logger.Init("viewer", cfg.LogLevel)

	layoutCfg := layout.DefaultConfig()
	if cfg.LayoutConfigPath != "" {
		layoutCfg, err = layout.LoadConfig(cfg.LayoutConfigPath)
		if err != nil {
			logger.Log.Fatalf("layout config: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
		AppName:      "Viewer Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger("viewer"))
	app.Use(middleware.CORS())

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	app.Get("/health/ready", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ready"})
	})

	// ============================================================
	// Viewer Routes
	// ============================================================

	handlers.NewViewerHandler(layoutCfg).Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	addr := cfg.Addr("3002")
	logger.Log.Infof("Starting Viewer Service on %s (env: %s)", addr, cfg.Environment)

	if err := app.Listen(addr); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
