package handlers

import (
	"bytes"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"propview/internal/camera"
	"propview/internal/common/logger"
	"propview/internal/hierarchy"
	"propview/internal/layout"
	"propview/internal/pricing"
	"propview/internal/scene"
)

// ============================================================
// Viewer Handler
// ============================================================

// ViewerHandler turns a posted hierarchy into layout, scene, plan and quote
// output. It keeps no state between requests.
type ViewerHandler struct {
	cfg layout.Config
}

func NewViewerHandler(cfg layout.Config) *ViewerHandler {
	return &ViewerHandler{cfg: cfg}
}

func (h *ViewerHandler) Register(r fiber.Router) {
	r.Post("/layout", h.Layout)
	r.Post("/scene", h.Scene)
	r.Post("/render", h.Render)
	r.Post("/quote", h.Quote)
}

type sceneResponse struct {
	Scene  *scene.Scene `json:"scene"`
	Camera camera.Orbit `json:"camera"`
}

type quoteResponse struct {
	UnitID string        `json:"unit_id"`
	Quote  pricing.Quote `json:"quote"`
	Price  string        `json:"price"`
	Token  string        `json:"token"`
	Amount int64         `json:"amount"`
}

// Layout returns placements and roads. ?type= supplies the property type
// when the body carries none.
func (h *ViewerHandler) Layout(c fiber.Ctx) error {
	project, msg := h.project(c)
	if project == nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}
	return c.JSON(layout.Compute(project, h.cfg))
}

// Scene returns the primitives plus a camera framing the whole site.
func (h *ViewerHandler) Scene(c fiber.Ctx) error {
	project, msg := h.project(c)
	if project == nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}
	res := layout.Compute(project, h.cfg)
	s := scene.Build(res, state(c))
	return c.JSON(sceneResponse{
		Scene:  s,
		Camera: camera.Frame(res.Bounds, camera.DefaultOrbit()),
	})
}

// Render returns the top-down site plan as SVG.
func (h *ViewerHandler) Render(c fiber.Ctx) error {
	project, msg := h.project(c)
	if project == nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	svg, err := scene.RenderSVG(layout.Compute(project, h.cfg), state(c))
	if err != nil {
		logger.Log.WithError(err).Warn("[RENDER] nothing to draw")
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(svg)
}

// Quote prices ?unit=<id>.
func (h *ViewerHandler) Quote(c fiber.Ctx) error {
	unitID := c.Query("unit")
	if unitID == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "unit query parameter required"})
	}
	project, msg := h.project(c)
	if project == nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	u, ok := hierarchy.FindUnit(project, unitID)
	if !ok {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "unit not found"})
	}

	q := pricing.Resolve(u, project)
	return c.JSON(quoteResponse{
		UnitID: unitID,
		Quote:  q,
		Price:  q.DisplayPrice(),
		Token:  q.DisplayToken(),
		Amount: q.TokenPaise(),
	})
}

// project decodes the body; a nil project comes with the reason.
func (h *ViewerHandler) project(c fiber.Ctx) (*hierarchy.Project, string) {
	if len(c.Body()) == 0 {
		return nil, "body required"
	}

	project, err := hierarchy.DecodeWithType(bytes.NewReader(c.Body()), c.Query("type"))
	if err != nil {
		logger.Log.WithError(err).Warn("[VIEWER] decode failed")
		return nil, "invalid JSON payload"
	}
	return project, ""
}

func state(c fiber.Ctx) scene.State {
	return scene.State{
		HoverUnitID:    c.Query("hover"),
		SelectedUnitID: c.Query("selected"),
	}
}
