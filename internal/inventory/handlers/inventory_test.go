package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propview/internal/hierarchy"
	"propview/internal/inventory/hub"
	"propview/internal/inventory/repository"
	"propview/internal/inventory/service"
	"propview/internal/payment"
	"propview/internal/reservation"
)

const secret = "handler-secret"

type fixture struct {
	app *fiber.App
	hub *hub.Hub
	srv *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "inv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.New(db)
	ctx := context.Background()
	require.NoError(t, repo.Init(ctx, ""))
	require.NoError(t, repo.CreateProject(ctx, &hierarchy.Project{
		ID:           "greens",
		Type:         "Villa Colony",
		PricePerSqft: 4000,
		Towers: []hierarchy.Tower{{ID: "phase-1", Units: []hierarchy.Unit{
			{ID: "v1", UnitNumber: "V-1", Type: "Bungalow", Area: 2000},
			{ID: "v2", UnitNumber: "V-2", Type: "Bungalow", Area: 2000, Status: hierarchy.StatusBooked},
		}}},
	}))

	h := hub.New()
	inv := service.NewInventory(repo, h, secret)
	app := fiber.New()
	NewInventoryHandler(inv, service.NewSessionManager()).Register(app)

	srv := httptest.NewServer(NewMux(app, h))
	t.Cleanup(srv.Close)
	return &fixture{app: app, hub: h, srv: srv}
}

func (f *fixture) backend(t *testing.T) *reservation.HTTPBackend {
	t.Helper()
	b := reservation.NewHTTPBackend(f.srv.URL, "")
	require.NoError(t, b.StartSession(context.Background()))
	require.NotEmpty(t, b.Token)
	return b
}

func TestRequiresSession(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/units/v1/lock", strings.NewReader(`{"duration_minutes":30}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/projects/greens/hierarchy", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "reading the tree needs no session")
}

func TestLockValidation(t *testing.T) {
	f := newFixture(t)
	b := f.backend(t)
	ctx := context.Background()

	_, err := b.LockUnit(ctx, "v1", 45)
	var verr *reservation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "DurationMinutes")

	_, err = b.LockUnit(ctx, "missing", 30)
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestLockConflictAcrossSessions(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.backend(t), f.backend(t)
	ctx := context.Background()

	u, err := alice.LockUnit(ctx, "v1", 30)
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusLocked, u.Status)
	require.NotNil(t, u.LockExpiry)

	_, err = bob.LockUnit(ctx, "v1", 30)
	var conflict *reservation.TransitionConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, reservation.ReasonAlreadyLocked, conflict.Reason)
	assert.Equal(t, "v1", conflict.UnitID)

	_, err = bob.LockUnit(ctx, "v2", 30)
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, reservation.ReasonAlreadyBooked, conflict.Reason)

	// held_by is only visible to the holder
	mine, err := alice.GetFullHierarchy(ctx, "greens")
	require.NoError(t, err)
	theirs, err := bob.GetFullHierarchy(ctx, "greens")
	require.NoError(t, err)
	um, _ := hierarchy.FindUnit(mine, "v1")
	ut, _ := hierarchy.FindUnit(theirs, "v1")
	assert.NotEmpty(t, um.HeldBy)
	assert.Empty(t, ut.HeldBy)
	assert.Equal(t, hierarchy.ClassColony, mine.Classification)
}

func TestOrderRejectsWrongAmount(t *testing.T) {
	f := newFixture(t)
	b := f.backend(t)

	_, err := b.CreateBookingOrder(context.Background(), reservation.OrderRequest{UnitID: "v1", Amount: 1})
	var verr *reservation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "amount")
}

func TestBookRejectsForgedSignature(t *testing.T) {
	f := newFixture(t)
	b := f.backend(t)
	ctx := context.Background()

	// 2000 sqft at 4000 per sqft, token at 0.5%
	order, err := b.CreateBookingOrder(ctx, reservation.OrderRequest{UnitID: "v1", Amount: 4000000})
	require.NoError(t, err)

	_, err = b.BookUnit(ctx, "v1", reservation.BookingRequest{
		Amount:    order.Amount,
		Currency:  payment.CurrencyINR,
		PaymentID: "pay_x",
		OrderID:   order.ID,
		Signature: "forged",
	})
	var perr *reservation.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "verify", perr.Stage)
	assert.True(t, errors.Is(err, payment.ErrInvalidSignature))
}

func TestViewHoldAndBookEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buyer := reservation.NewView(f.backend(t), reservation.Options{
		ProjectID:    "greens",
		PollInterval: time.Hour,
		Checkout:     payment.NewSandboxCheckout(secret),
	})
	require.NoError(t, buyer.Open(ctx))
	defer buyer.Close()

	watcher := reservation.NewView(f.backend(t), reservation.Options{ProjectID: "greens", PollInterval: time.Hour})
	require.NoError(t, watcher.Open(ctx))
	defer watcher.Close()

	wsURL, err := reservation.PushURL(f.srv.URL, "greens")
	require.NoError(t, err)
	go func() { _ = watcher.WatchPush(ctx, wsURL) }()
	require.Eventually(t, func() bool { return f.hub.Subscribers("greens") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, buyer.Select("v1"))
	_, err = buyer.RequestHold(ctx, "v1", reservation.Hold30)
	require.NoError(t, err)
	assert.True(t, buyer.OwnsHold("v1"))

	statusOf := func(v *reservation.View) hierarchy.Status {
		u, _ := hierarchy.FindUnit(v.Snapshot(), "v1")
		return u.Status
	}
	assert.Eventually(t, func() bool { return statusOf(watcher) == hierarchy.StatusLocked }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, watcher.Select("v1"), reservation.ErrUnitHeld)

	u, err := buyer.RequestBooking(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusBooked, u.Status)
	assert.Equal(t, hierarchy.StatusBooked, statusOf(buyer))
	assert.Eventually(t, func() bool { return statusOf(watcher) == hierarchy.StatusBooked }, 2*time.Second, 10*time.Millisecond)
}
