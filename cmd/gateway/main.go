package main

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"propview/internal/common/config"
	"propview/internal/common/logger"
	"propview/internal/common/middleware"
	"propview/internal/gateway/handlers"
	"propview/internal/gateway/proxy"
)

// ============================================================
// API Gateway
// ============================================================

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		logger.Log.Fatalf("config: %v", err)
	}
	logger.Init("gateway", cfg.LogLevel)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
		AppName:      "API Gateway",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger("gateway"))
	app.Use(middleware.CORS())

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", handlers.LivenessProbe)
	app.Get("/health/ready", handlers.ReadinessProbe(map[string]string{
		"inventory": cfg.InventoryURL,
		"viewer":    cfg.ViewerURL,
	}))
	app.Get("/health/startup", handlers.StartupProbe)

	// ============================================================
	// API Docs
	// ============================================================

	app.Get("/docs", handlers.SwaggerUI)
	app.Get("/docs/openapi.yaml", handlers.SwaggerSpec)

	// ============================================================
	// API Routes
	// ============================================================

	app.Get("/api/v1", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Property viewer API v1",
			"status":  "ok",
		})
	})

	// ============================================================
	// Service Routes (Proxy)
	// ============================================================

	// websocket push is not proxied; clients connect to the inventory
	// service's /ws directly
	proxy.Mount(app, "/api/v1/inventory", cfg.InventoryURL)
	proxy.Mount(app, "/api/v1/viewer", cfg.ViewerURL)

	// ============================================================
	// Server Start
	// ============================================================

	addr := cfg.Addr("3000")
	logger.Log.Infof("Starting API Gateway on %s (env: %s)", addr, cfg.Environment)
	logger.Log.Infof("Proxying /api/v1/inventory to %s, /api/v1/viewer to %s", cfg.InventoryURL, cfg.ViewerURL)

	if err := app.Listen(addr); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
