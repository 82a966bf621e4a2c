package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// ============================================================
// Logger Middleware
// ============================================================

// Logger writes one access line per request, tagged with the service name.
func Logger(service string) fiber.Handler {
	return logger.New(logger.Config{
		Format:     "[${time}] [" + service + "] ${status} - ${latency} ${method} ${path} ${error}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	})
}
