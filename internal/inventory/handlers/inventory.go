package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"propview/internal/common/logger"
	"propview/internal/inventory/repository"
	"propview/internal/inventory/service"
	"propview/internal/payment"
	"propview/internal/reservation"
)

var inventoryValidate = validator.New()

// ============================================================
// Inventory Handler
// ============================================================

type InventoryHandler struct {
	inventory *service.Inventory
	sessions  *service.SessionManager
}

func NewInventoryHandler(inventory *service.Inventory, sessions *service.SessionManager) *InventoryHandler {
	return &InventoryHandler{
		inventory: inventory,
		sessions:  sessions,
	}
}

// Register mounts the inventory routes on r.
func (h *InventoryHandler) Register(r fiber.Router) {
	r.Post("/sessions", h.StartSession)
	r.Get("/projects/:id/hierarchy", h.GetHierarchy)
	r.Post("/units/:id/lock", h.LockUnit)
	r.Post("/bookings/orders", h.CreateOrder)
	r.Post("/units/:id/book", h.BookUnit)
}

type lockRequest struct {
	DurationMinutes int `json:"duration_minutes" validate:"oneof=30 60"`
}

// StartSession issues an anonymous buyer token.
func (h *InventoryHandler) StartSession(c fiber.Ctx) error {
	token, _ := h.sessions.Issue()
	return c.Status(http.StatusCreated).JSON(fiber.Map{"token": token})
}

// GetHierarchy returns the project tree. A bearer token is optional; with
// one, the caller's own holds carry held_by.
func (h *InventoryHandler) GetHierarchy(c fiber.Ctx) error {
	holder, _ := h.authorize(c)

	project, err := h.inventory.Hierarchy(context.Background(), c.Params("id"), holder)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(project)
}

func (h *InventoryHandler) LockUnit(c fiber.Ctx) error {
	holder, ok := h.authorize(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req lockRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err)
	}

	u, err := h.inventory.Lock(context.Background(), c.Params("id"), holder, req.DurationMinutes)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(u)
}

func (h *InventoryHandler) CreateOrder(c fiber.Ctx) error {
	holder, ok := h.authorize(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req reservation.OrderRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err)
	}

	order, err := h.inventory.CreateOrder(context.Background(), req.UnitID, holder, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(order)
}

func (h *InventoryHandler) BookUnit(c fiber.Ctx) error {
	holder, ok := h.authorize(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req reservation.BookingRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err)
	}
	if req.Currency != payment.CurrencyINR {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "unsupported currency " + req.Currency})
	}

	receipt := payment.Receipt{
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		Signature: req.Signature,
	}
	u, err := h.inventory.Book(context.Background(), c.Params("id"), holder, receipt, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(u)
}

func (h *InventoryHandler) authorize(c fiber.Ctx) (string, bool) {
	auth := c.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(auth, "Bearer ")
	return h.sessions.Resolve(token)
}

// ============================================================
// Helpers
// ============================================================

func decode(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return errors.New("empty body")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return errors.New("invalid json")
	}
	return inventoryValidate.Struct(v)
}

func badRequest(c fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": strings.Join(fields, "; ")})
	}
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// writeError maps service and repository errors onto the wire contract the
// reservation client decodes.
func writeError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, repository.ErrAlreadyBooked):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "unit is booked", "reason": reservation.ReasonAlreadyBooked})
	case errors.Is(err, repository.ErrAlreadyLocked), errors.Is(err, repository.ErrHeldByOther):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "unit is held", "reason": reservation.ReasonAlreadyLocked})
	case errors.Is(err, repository.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, service.ErrPaymentInvalid):
		return c.Status(http.StatusPaymentRequired).JSON(fiber.Map{"error": "payment signature rejected", "reason": "payment_invalid"})
	case errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrNoPrice),
		errors.Is(err, repository.ErrOrderMismatch):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	logger.Log.WithError(err).Error("[INVENTORY] request failed")
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
