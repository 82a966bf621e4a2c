package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

// NewMux serves the push websocket at /ws and everything else through the
// fiber app. The websocket needs a hijackable net/http connection, which the
// fiber adaptor cannot provide.
func NewMux(app *fiber.App, push http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", push)
	mux.Handle("/", adaptor.FiberApp(app))
	return mux
}
