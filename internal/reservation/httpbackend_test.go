package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propview/internal/hierarchy"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestHTTPBackendMapsResponses(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "tok-1"})
	})
	mux.HandleFunc("GET /projects/p1/hierarchy", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "p1", "towers": [{"id": "t", "units": [
			{"id": "u1", "unit_number": "101", "floor_number": "1", "status": "available"}]}]}`))
	})
	mux.HandleFunc("POST /units/u1/lock", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if gotAuth == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing session"})
			return
		}
		var body map[string]int
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["duration_minutes"] != 30 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "duration_minutes must be 30 or 60"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "unit_number": "101", "status": "locked"})
	})
	mux.HandleFunc("POST /units/u2/lock", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "unit unavailable", "reason": ReasonAlreadyBooked})
	})
	mux.HandleFunc("POST /units/u3/lock", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "db down"})
	})
	mux.HandleFunc("POST /units/u1/book", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": "bad signature", "reason": "payment_invalid"})
	})
	mux.HandleFunc("POST /bookings/orders", func(w http.ResponseWriter, r *http.Request) {
		var req OrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, map[string]any{"order_id": "o1", "amount": req.Amount, "currency": "INR"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	b := NewHTTPBackend(srv.URL+"/", "Apartment")
	_, err := b.LockUnit(ctx, "u1", 30)
	assert.ErrorIs(t, err, ErrSessionRequired, "no session yet")

	require.NoError(t, b.StartSession(ctx))
	assert.Equal(t, "tok-1", b.Token)

	p, err := b.GetFullHierarchy(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, hierarchy.ClassTower, p.Classification, "property type applies when payload has none")
	assert.Equal(t, 1, p.Towers[0].Units[0].FloorNumber)

	u, err := b.LockUnit(ctx, "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusLocked, u.Status)
	assert.Equal(t, "Bearer tok-1", gotAuth)

	_, err = b.LockUnit(ctx, "u1", 45)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "30 or 60")

	_, err = b.LockUnit(ctx, "u2", 30)
	var conflict *TransitionConflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "u2", conflict.UnitID)
	assert.Equal(t, ReasonAlreadyBooked, conflict.Reason)

	_, err = b.LockUnit(ctx, "u3", 30)
	var nerr *NetworkError
	require.True(t, errors.As(err, &nerr))
	assert.True(t, nerr.Retryable())

	_, err = b.LockUnit(ctx, "missing", 30)
	assert.ErrorIs(t, err, ErrNotFound)

	order, err := b.CreateBookingOrder(ctx, OrderRequest{UnitID: "u1", Amount: 1234})
	require.NoError(t, err)
	assert.Equal(t, "o1", order.ID)
	assert.Equal(t, "u1", order.UnitID)
	assert.Equal(t, int64(1234), order.Amount)

	_, err = b.BookUnit(ctx, "u1", BookingRequest{})
	var perr *PaymentError
	require.True(t, errors.As(err, &perr))
}

func TestHTTPBackendTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewHTTPBackend(srv.URL, "").GetFullHierarchy(context.Background(), "p1")
	var nerr *NetworkError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "get hierarchy", nerr.Op)
}

func TestPushURL(t *testing.T) {
	u, err := PushURL("https://api.example.com/inventory", "p 1")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/inventory/ws?project=p+1", u)

	u, err = PushURL("http://localhost:3001", "p1")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:3001/ws?project=p1", u)
}

func TestWatchPushRefetches(t *testing.T) {
	backend := newFakeBackend()
	v := openView(t, backend, time.Hour, nil)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	send := make(chan PushMessage)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for m := range send {
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL, err := PushURL(srv.URL, "p1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.WatchPush(ctx, wsURL) }()

	before := backend.fetchCount()
	backend.setStatus("u1", hierarchy.StatusLocked)

	send <- PushMessage{Type: MessageHierarchyChanged, ProjectID: "other", At: time.Now()}
	send <- PushMessage{Type: MessageHierarchyChanged, ProjectID: "p1", At: time.Now()}

	require.Eventually(t, func() bool {
		return status(v, "u1") == hierarchy.StatusLocked
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, before+1, backend.fetchCount(), "only the matching project refetches")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	close(send)
}
