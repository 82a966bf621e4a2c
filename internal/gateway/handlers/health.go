package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"propview/internal/common/logger"
)

// ============================================================
// Health Check Handlers
// ============================================================

func LivenessProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
	})
}

// ReadinessProbe reports ready once every upstream answers its liveness
// probe. Unreachable upstreams are listed in the 503 body.
func ReadinessProbe(upstreams map[string]string) fiber.Handler {
	client := &http.Client{Timeout: 2 * time.Second}
	return func(c fiber.Ctx) error {
		down := fiber.Map{}
		for name, base := range upstreams {
			if err := probe(c.Context(), client, strings.TrimRight(base, "/")+"/health/live"); err != nil {
				logger.Log.WithError(err).WithField("upstream", name).Warn("[HEALTH] upstream not ready")
				down[name] = err.Error()
			}
		}
		if len(down) > 0 {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"down":   down,
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	}
}

func StartupProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "started",
	})
}

func probe(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
