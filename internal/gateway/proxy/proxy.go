package proxy

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"propview/internal/common/logger"
)

var upstreamClient = &http.Client{Timeout: 30 * time.Second}

// hop-by-hop headers never copied back to the caller
var skipHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Content-Length":    true,
}

// ============================================================
// Proxy Handler
// ============================================================

// Mount forwards every request under prefix to upstream with the prefix
// stripped: /api/v1/inventory/units/1/lock -> {upstream}/units/1/lock.
func Mount(r fiber.Router, prefix, upstream string) {
	upstream = strings.TrimRight(upstream, "/")
	handler := func(c fiber.Ctx) error {
		path := strings.TrimPrefix(c.Path(), prefix)
		if path == "" {
			path = "/"
		}
		target := upstream + path
		if q := string(c.Request().URI().QueryString()); q != "" {
			target += "?" + q
		}
		return Forward(c, target)
	}
	r.All(prefix, handler)
	r.All(prefix+"/*", handler)
}

// Forward sends the request body and auth header to targetURL and copies the
// upstream response back.
func Forward(c fiber.Ctx, targetURL string) error {
	log := logger.Log.WithField("target", targetURL)
	log.Debugf("[PROXY] %s %s (%d bytes)", c.Method(), c.Path(), len(c.Body()))

	req, err := http.NewRequestWithContext(c.Context(), c.Method(), targetURL, bytes.NewReader(c.Body()))
	if err != nil {
		log.WithError(err).Error("[PROXY] build request")
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}

	if ct := c.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if auth := c.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := upstreamClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("[PROXY] upstream unreachable")
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "failed to reach upstream service"})
	}
	defer resp.Body.Close()

	return copyResponse(c, resp)
}

func copyResponse(c fiber.Ctx, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Log.WithError(err).Warn("[PROXY] read upstream response")
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "invalid upstream response"})
	}

	for key, values := range resp.Header {
		if len(values) > 0 && !skipHeaders[key] {
			c.Set(key, values[0])
		}
	}

	c.Status(resp.StatusCode)
	return c.Send(data)
}
