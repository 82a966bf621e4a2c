package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"propview/internal/hierarchy"
	"propview/internal/payment"
)

// ============================================================
// HTTP Backend
// ============================================================

// HTTPBackend talks to the inventory service. Token is the buyer session
// sent as a bearer token so the service can record who holds a unit.
type HTTPBackend struct {
	BaseURL      string
	PropertyType string
	Token        string
	Client       *http.Client
}

func NewHTTPBackend(baseURL, propertyType string) *HTTPBackend {
	return &HTTPBackend{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		PropertyType: propertyType,
		Client:       &http.Client{Timeout: 15 * time.Second},
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// StartSession obtains a buyer session token from the service.
func (b *HTTPBackend) StartSession(ctx context.Context) error {
	var out struct {
		Token string `json:"token"`
	}
	resp, err := b.do(ctx, "start session", http.MethodPost, "/sessions", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &NetworkError{Op: "start session", Err: err}
	}
	b.Token = out.Token
	return nil
}

func (b *HTTPBackend) GetFullHierarchy(ctx context.Context, projectID string) (*hierarchy.Project, error) {
	resp, err := b.do(ctx, "get hierarchy", http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/hierarchy", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	project, err := hierarchy.DecodeWithType(resp.Body, b.PropertyType)
	if err != nil {
		return nil, &NetworkError{Op: "get hierarchy", Err: err}
	}
	return project, nil
}

func (b *HTTPBackend) LockUnit(ctx context.Context, unitID string, minutes int) (hierarchy.Unit, error) {
	body := map[string]int{"duration_minutes": minutes}
	return b.unitCall(ctx, "lock unit", unitID, "/units/"+url.PathEscape(unitID)+"/lock", body)
}

func (b *HTTPBackend) CreateBookingOrder(ctx context.Context, req OrderRequest) (payment.Order, error) {
	resp, err := b.do(ctx, "create order", http.MethodPost, "/bookings/orders", req)
	if err != nil {
		return payment.Order{}, b.withUnit(err, req.UnitID)
	}
	defer resp.Body.Close()

	var order payment.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return payment.Order{}, &NetworkError{Op: "create order", Err: err}
	}
	if order.UnitID == "" {
		order.UnitID = req.UnitID
	}
	return order, nil
}

func (b *HTTPBackend) BookUnit(ctx context.Context, unitID string, req BookingRequest) (hierarchy.Unit, error) {
	return b.unitCall(ctx, "book unit", unitID, "/units/"+url.PathEscape(unitID)+"/book", req)
}

func (b *HTTPBackend) unitCall(ctx context.Context, op, unitID, path string, body any) (hierarchy.Unit, error) {
	resp, err := b.do(ctx, op, http.MethodPost, path, body)
	if err != nil {
		return hierarchy.Unit{}, b.withUnit(err, unitID)
	}
	defer resp.Body.Close()

	u, err := hierarchy.DecodeUnit(resp.Body)
	if err != nil {
		return hierarchy.Unit{}, &NetworkError{Op: op, Err: err}
	}
	return u, nil
}

func (b *HTTPBackend) withUnit(err error, unitID string) error {
	var conflict *TransitionConflict
	if errors.As(err, &conflict) && conflict.UnitID == "" {
		conflict.UnitID = unitID
	}
	return err
}

// do sends the request and maps non-2xx responses onto the error taxonomy.
// On success the caller owns the response body.
func (b *HTTPBackend) do(ctx context.Context, op, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.Token)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&eb)
	return nil, statusError(op, resp.StatusCode, eb)
}

func statusError(op string, status int, eb errorBody) error {
	switch {
	case status == http.StatusConflict:
		reason := eb.Reason
		if reason == "" {
			reason = ReasonAlreadyLocked
		}
		return &TransitionConflict{Reason: reason}
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrSessionRequired)
	case status == http.StatusPaymentRequired:
		return &PaymentError{Stage: "verify", Err: payment.ErrInvalidSignature}
	case status == http.StatusBadRequest:
		return &ValidationError{Message: eb.Error}
	case status >= 500:
		return &NetworkError{Op: op, Err: fmt.Errorf("status %d: %s", status, eb.Error)}
	}
	return fmt.Errorf("%s: unexpected status %d: %s", op, status, eb.Error)
}
