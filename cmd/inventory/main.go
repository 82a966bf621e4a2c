package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"propview/internal/common/config"
	"propview/internal/common/logger"
	"propview/internal/common/middleware"
	"propview/internal/inventory/handlers"
	"propview/internal/inventory/hub"
	"propview/internal/inventory/repository"
	"propview/internal/inventory/service"
)

// ============================================================
// Inventory Service
// ============================================================

func main() {
	cfg, err := config.LoadInventory()
	if err != nil {
		logger.Log.Fatalf("config: %v", err)
	}
	logger.Init("inventory", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		logger.Log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(ctx, cfg.SeedPath); err != nil {
		logger.Log.Fatalf("init db: %v", err)
	}

	pushHub := hub.New()
	inventory := service.NewInventory(repo, pushHub, cfg.PaymentSecret)
	inventoryHandler := handlers.NewInventoryHandler(inventory, service.NewSessionManager())

	sweeper, err := service.StartSweeper(inventory, cfg.SweepSchedule)
	if err != nil {
		logger.Log.Fatalf("sweeper: %v", err)
	}
	defer sweeper.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
		AppName:      "Inventory Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger("inventory"))
	app.Use(middleware.CORS())

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	app.Get("/health/ready", func(c fiber.Ctx) error {
		if err := db.PingContext(c.Context()); err != nil {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "db unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	// ============================================================
	// Inventory Routes
	// ============================================================

	inventoryHandler.Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	srv := &http.Server{
		Addr:        cfg.Addr("3001"),
		Handler:     handlers.NewMux(app, pushHub),
		ReadTimeout: cfg.ReadTimeoutDuration(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Log.Infof("Starting Inventory Service on %s (env: %s)", srv.Addr, cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
