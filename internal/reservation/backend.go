package reservation

import (
	"context"

	"propview/internal/hierarchy"
	"propview/internal/payment"
)

// HoldDuration is how long a lock lasts, in minutes.
type HoldDuration int

const (
	Hold30 HoldDuration = 30
	Hold60 HoldDuration = 60
)

func (d HoldDuration) Valid() bool {
	return d == Hold30 || d == Hold60
}

type OrderRequest struct {
	UnitID string `json:"unit_id" validate:"required"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

type BookingRequest struct {
	Amount    int64  `json:"amount" validate:"gt=0"`
	Currency  string `json:"currency" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	OrderID   string `json:"order_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// Backend is the inventory service as seen by a view.
type Backend interface {
	GetFullHierarchy(ctx context.Context, projectID string) (*hierarchy.Project, error)
	LockUnit(ctx context.Context, unitID string, minutes int) (hierarchy.Unit, error)
	CreateBookingOrder(ctx context.Context, req OrderRequest) (payment.Order, error)
	BookUnit(ctx context.Context, unitID string, req BookingRequest) (hierarchy.Unit, error)
}
