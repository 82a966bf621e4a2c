package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

const CurrencyINR = "INR"

var (
	ErrCancelled        = errors.New("payment_cancelled")
	ErrInvalidSignature = errors.New("payment_invalid")
)

// Order is a token-amount order created by the inventory service before the
// buyer is handed to the payment gateway. Amount is in paise.
type Order struct {
	ID       string `json:"order_id"`
	UnitID   string `json:"unit_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Receipt is what the gateway hands back after a successful charge.
type Receipt struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Signature string `json:"signature"`
}

// Checkout collects a payment for an order.
type Checkout interface {
	Pay(ctx context.Context, order Order) (Receipt, error)
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID".
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a receipt signature in constant time.
func Verify(secret string, r Receipt) error {
	want := Sign(secret, r.OrderID, r.PaymentID)
	if !hmac.Equal([]byte(want), []byte(r.Signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// ============================================================
// Sandbox
// ============================================================

// SandboxCheckout approves every order with a locally signed receipt. It
// stands in for the real gateway in development and the walkthrough CLI.
type SandboxCheckout struct {
	Secret string
	// Decline, when set, is consulted before approving; returning an error
	// simulates a failed or cancelled payment.
	Decline func(Order) error
}

func NewSandboxCheckout(secret string) *SandboxCheckout {
	return &SandboxCheckout{Secret: secret}
}

func (s *SandboxCheckout) Pay(ctx context.Context, order Order) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, ErrCancelled
	}
	if s.Decline != nil {
		if err := s.Decline(order); err != nil {
			return Receipt{}, err
		}
	}

	paymentID := "pay_" + uuid.NewString()
	return Receipt{
		PaymentID: paymentID,
		OrderID:   order.ID,
		Signature: Sign(s.Secret, order.ID, paymentID),
	}, nil
}
