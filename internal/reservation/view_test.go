package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propview/internal/hierarchy"
	"propview/internal/payment"
	"propview/internal/pricing"
)

const secret = "test-secret"

// fakeBackend keeps the authoritative tree in memory and applies the same
// conditional transitions as the inventory service.
type fakeBackend struct {
	mu       sync.Mutex
	project  *hierarchy.Project
	fetches  int
	locks    int
	orders   []OrderRequest
	bookings []BookingRequest

	lockGate     chan struct{}
	fetchGate    chan struct{}
	fetchStarted chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{project: hierarchy.Normalize(&hierarchy.Project{
		ID:   "p1",
		Type: "Villa Colony",
		Towers: []hierarchy.Tower{{ID: "t1", Units: []hierarchy.Unit{
			{ID: "u1", UnitNumber: "V-1", Status: hierarchy.StatusAvailable, Area: 1000, PricePerSqft: 5000},
			{ID: "u2", UnitNumber: "V-2", Status: hierarchy.StatusBooked, Area: 1000, PricePerSqft: 5000},
			{ID: "u3", UnitNumber: "V-3", Status: hierarchy.StatusLocked, Area: 1000, PricePerSqft: 5000},
			{ID: "u4", UnitNumber: "V-4", Status: hierarchy.StatusAvailable},
		}}},
	})}
}

func (f *fakeBackend) setStatus(unitID string, s hierarchy.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unitLocked(unitID).Status = s
}

func (f *fakeBackend) unitLocked(unitID string) *hierarchy.Unit {
	for ti := range f.project.Towers {
		for ui := range f.project.Towers[ti].Units {
			if f.project.Towers[ti].Units[ui].ID == unitID {
				return &f.project.Towers[ti].Units[ui]
			}
		}
	}
	return nil
}

func (f *fakeBackend) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeBackend) GetFullHierarchy(ctx context.Context, projectID string) (*hierarchy.Project, error) {
	f.mu.Lock()
	f.fetches++
	snapshot := hierarchy.Normalize(f.project)
	gate, started := f.fetchGate, f.fetchStarted
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return snapshot, nil
}

func (f *fakeBackend) LockUnit(ctx context.Context, unitID string, minutes int) (hierarchy.Unit, error) {
	f.mu.Lock()
	f.locks++
	gate := f.lockGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.unitLocked(unitID)
	if u == nil {
		return hierarchy.Unit{}, ErrNotFound
	}
	switch u.Status {
	case hierarchy.StatusBooked:
		return hierarchy.Unit{}, &TransitionConflict{UnitID: unitID, Reason: ReasonAlreadyBooked}
	case hierarchy.StatusLocked:
		return hierarchy.Unit{}, &TransitionConflict{UnitID: unitID, Reason: ReasonAlreadyLocked}
	}
	u.Status = hierarchy.StatusLocked
	return *u, nil
}

func (f *fakeBackend) CreateBookingOrder(ctx context.Context, req OrderRequest) (payment.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	return payment.Order{
		ID:       fmt.Sprintf("order_%d", len(f.orders)),
		UnitID:   req.UnitID,
		Amount:   req.Amount,
		Currency: payment.CurrencyINR,
	}, nil
}

func (f *fakeBackend) BookUnit(ctx context.Context, unitID string, req BookingRequest) (hierarchy.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings = append(f.bookings, req)

	receipt := payment.Receipt{PaymentID: req.PaymentID, OrderID: req.OrderID, Signature: req.Signature}
	if err := payment.Verify(secret, receipt); err != nil {
		return hierarchy.Unit{}, &PaymentError{Stage: "verify", Err: err}
	}
	u := f.unitLocked(unitID)
	if u.Status == hierarchy.StatusBooked {
		return hierarchy.Unit{}, &TransitionConflict{UnitID: unitID, Reason: ReasonAlreadyBooked}
	}
	u.Status = hierarchy.StatusBooked
	return *u, nil
}

func openView(t *testing.T, backend Backend, interval time.Duration, checkout payment.Checkout) *View {
	t.Helper()
	v := NewView(backend, Options{ProjectID: "p1", PollInterval: interval, Checkout: checkout})
	require.NoError(t, v.Open(context.Background()))
	t.Cleanup(v.Close)
	return v
}

func status(v *View, unitID string) hierarchy.Status {
	u, _ := hierarchy.FindUnit(v.Snapshot(), unitID)
	return u.Status
}

// ============================================================
// Lifecycle
// ============================================================

func TestOpenFetchesAndPolls(t *testing.T) {
	backend := newFakeBackend()
	v := openView(t, backend, 10*time.Millisecond, nil)

	require.NotNil(t, v.Snapshot())
	assert.Equal(t, hierarchy.StatusAvailable, status(v, "u1"))

	var changes sync.WaitGroup
	changes.Add(1)
	var once sync.Once
	v.OnChange(func(*hierarchy.Project) { once.Do(changes.Done) })

	backend.setStatus("u1", hierarchy.StatusBooked)
	require.Eventually(t, func() bool {
		return status(v, "u1") == hierarchy.StatusBooked
	}, time.Second, 5*time.Millisecond)
	changes.Wait()

	v.Close()
	after := backend.fetchCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, backend.fetchCount(), "no polling after close")

	assert.ErrorIs(t, v.Open(context.Background()), ErrClosed)
}

func TestStaleResponseDiscardedAfterClose(t *testing.T) {
	backend := newFakeBackend()
	v := openView(t, backend, time.Hour, nil)
	before := v.Snapshot()

	backend.mu.Lock()
	backend.fetchGate = make(chan struct{})
	backend.fetchStarted = make(chan struct{}, 1)
	backend.mu.Unlock()
	backend.setStatus("u1", hierarchy.StatusBooked)

	result := make(chan error, 1)
	go func() { result <- v.Refresh(context.Background()) }()
	<-backend.fetchStarted

	v.Close()
	close(backend.fetchGate)

	assert.ErrorIs(t, <-result, ErrClosed)
	assert.Same(t, before, v.Snapshot())
	assert.Equal(t, hierarchy.StatusAvailable, status(v, "u1"))
}

func TestOverlappingRefreshesNotifyInStoreOrder(t *testing.T) {
	backend := newFakeBackend()
	v := NewView(backend, Options{ProjectID: "p1", PollInterval: time.Hour})
	t.Cleanup(v.Close)

	var (
		mu   sync.Mutex
		seen []*hierarchy.Project
	)
	entered := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	v.OnChange(func(p *hierarchy.Project) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(entered)
			<-release
		}
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})

	done := make(chan error, 2)
	go func() { done <- v.Refresh(context.Background()) }()
	<-entered

	// a second fetch lands while the first tree is still being delivered
	backend.setStatus("u1", hierarchy.StatusLocked)
	go func() { done <- v.Refresh(context.Background()) }()
	require.Eventually(t, func() bool {
		return status(v, "u1") == hierarchy.StatusLocked
	}, time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	last := seen[len(seen)-1]
	assert.Same(t, v.Snapshot(), last)
	u, _ := hierarchy.FindUnit(last, "u1")
	assert.Equal(t, hierarchy.StatusLocked, u.Status)
}

func TestNoListenerCallsAfterClose(t *testing.T) {
	backend := newFakeBackend()
	v := NewView(backend, Options{ProjectID: "p1", PollInterval: time.Hour})

	var calls sync.WaitGroup
	calls.Add(1)
	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		count int
	)
	for i := 0; i < 2; i++ {
		v.OnChange(func(*hierarchy.Project) {
			mu.Lock()
			count++
			n := count
			mu.Unlock()
			if n == 1 {
				close(entered)
				<-release
			}
		})
	}

	go func() {
		defer calls.Done()
		_ = v.Refresh(context.Background())
	}()
	<-entered

	closed := make(chan struct{})
	go func() {
		v.Close()
		close(closed)
	}()
	require.Eventually(t, func() bool {
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.closed
	}, time.Second, 5*time.Millisecond)

	select {
	case <-closed:
		t.Fatal("Close returned while a listener was still running")
	default:
	}
	close(release)
	<-closed
	calls.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "second listener skipped once closed")
}

func TestCloseDuringInitialFetch(t *testing.T) {
	backend := newFakeBackend()
	backend.fetchGate = make(chan struct{})
	backend.fetchStarted = make(chan struct{}, 1)
	v := NewView(backend, Options{ProjectID: "p1", PollInterval: time.Hour})

	opened := make(chan error, 1)
	go func() { opened <- v.Open(context.Background()) }()
	<-backend.fetchStarted

	v.Close()
	close(backend.fetchGate)

	assert.ErrorIs(t, <-opened, ErrClosed)
	assert.Nil(t, v.Snapshot())
}

// ============================================================
// Select
// ============================================================

func TestSelect(t *testing.T) {
	v := openView(t, newFakeBackend(), time.Hour, nil)

	assert.ErrorIs(t, v.Select("u2"), ErrUnitBooked)
	assert.ErrorIs(t, v.Select("u3"), ErrUnitHeld)
	assert.ErrorIs(t, v.Select("nope"), ErrUnknownUnit)
	assert.Empty(t, v.Selected())

	require.NoError(t, v.Select("u1"))
	assert.Equal(t, "u1", v.Selected())
	v.Deselect()
	assert.Empty(t, v.Selected())
}

// ============================================================
// Holds
// ============================================================

func TestRequestHold(t *testing.T) {
	backend := newFakeBackend()
	v := openView(t, backend, time.Hour, nil)

	_, err := v.RequestHold(context.Background(), "u1", HoldDuration(45))
	assert.ErrorIs(t, err, ErrInvalidDuration)

	u, err := v.RequestHold(context.Background(), "u1", Hold30)
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusLocked, u.Status)
	assert.Equal(t, hierarchy.StatusLocked, status(v, "u1"), "refetched after hold")
	assert.True(t, v.OwnsHold("u1"))
	assert.NoError(t, v.Select("u1"), "own hold stays selectable")
}

func TestRequestHoldWhileInFlightIsBusy(t *testing.T) {
	backend := newFakeBackend()
	backend.lockGate = make(chan struct{})
	v := openView(t, backend, time.Hour, nil)

	first := make(chan error, 1)
	go func() {
		_, err := v.RequestHold(context.Background(), "u1", Hold60)
		first <- err
	}()
	require.Eventually(t, func() bool { return v.Busy("u1") }, time.Second, time.Millisecond)

	_, err := v.RequestHold(context.Background(), "u1", Hold60)
	assert.ErrorIs(t, err, ErrBusy)

	close(backend.lockGate)
	require.NoError(t, <-first)
	assert.False(t, v.Busy("u1"))

	backend.mu.Lock()
	assert.Equal(t, 1, backend.locks)
	backend.mu.Unlock()
}

func TestRequestHoldConflict(t *testing.T) {
	backend := newFakeBackend()
	a := openView(t, backend, time.Hour, nil)
	b := openView(t, backend, time.Hour, nil)

	_, err := a.RequestHold(context.Background(), "u1", Hold30)
	require.NoError(t, err)

	// b still believes the unit is available
	assert.Equal(t, hierarchy.StatusAvailable, status(b, "u1"))
	_, err = b.RequestHold(context.Background(), "u1", Hold30)

	var conflict *TransitionConflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, ReasonAlreadyLocked, conflict.Reason)
	assert.Equal(t, "u1", conflict.UnitID)
	assert.False(t, b.Busy("u1"))
	assert.False(t, b.OwnsHold("u1"))

	require.NoError(t, b.Refresh(context.Background()))
	assert.ErrorIs(t, b.Select("u1"), ErrUnitHeld)
}

func TestPollOverwritesOptimisticState(t *testing.T) {
	backend := newFakeBackend()
	v := openView(t, backend, 10*time.Millisecond, nil)

	_, err := v.RequestHold(context.Background(), "u1", Hold30)
	require.NoError(t, err)
	require.NoError(t, v.Select("u1"))

	// the hold lapsed on the server and someone else bought the unit
	backend.setStatus("u1", hierarchy.StatusBooked)
	require.Eventually(t, func() bool {
		return status(v, "u1") == hierarchy.StatusBooked
	}, time.Second, 5*time.Millisecond)

	assert.True(t, v.OwnsHold("u1"))
	assert.ErrorIs(t, v.Select("u1"), ErrUnitBooked)
}

func TestOwnHoldExpiresLocally(t *testing.T) {
	backend := newFakeBackend()
	v := openView(t, backend, time.Hour, nil)

	now := time.Now()
	v.now = func() time.Time { return now }
	_, err := v.RequestHold(context.Background(), "u1", Hold30)
	require.NoError(t, err)

	v.now = func() time.Time { return now.Add(31 * time.Minute) }
	assert.False(t, v.OwnsHold("u1"))
	assert.ErrorIs(t, v.Select("u1"), ErrUnitHeld)
}

// ============================================================
// Booking
// ============================================================

func TestRequestBooking(t *testing.T) {
	backend := newFakeBackend()
	v := openView(t, backend, time.Hour, payment.NewSandboxCheckout(secret))

	_, err := v.RequestHold(context.Background(), "u1", Hold30)
	require.NoError(t, err)

	u, err := v.RequestBooking(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusBooked, u.Status)
	assert.Equal(t, hierarchy.StatusBooked, status(v, "u1"))
	assert.False(t, v.OwnsHold("u1"))

	unit, _ := hierarchy.FindUnit(backend.project, "u1")
	quote := pricing.Resolve(unit, backend.project)
	require.Len(t, backend.orders, 1)
	assert.Equal(t, int64(2500000), backend.orders[0].Amount)
	assert.Equal(t, quote.TokenPaise(), backend.orders[0].Amount, "charged amount equals displayed token")
	assert.Equal(t, "₹25,000", quote.DisplayToken())

	_, err = v.RequestBooking(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrUnitBooked)
}

func TestRequestBookingPaymentFailureLeavesState(t *testing.T) {
	backend := newFakeBackend()
	checkout := payment.NewSandboxCheckout(secret)
	checkout.Decline = func(payment.Order) error { return payment.ErrCancelled }
	v := openView(t, backend, time.Hour, checkout)

	_, err := v.RequestBooking(context.Background(), "u1")

	var perr *PaymentError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "checkout", perr.Stage)
	assert.ErrorIs(t, err, payment.ErrCancelled)

	assert.Empty(t, backend.bookings)
	assert.Equal(t, hierarchy.StatusAvailable, status(v, "u1"))
	assert.False(t, v.Busy("u1"))
}

func TestRequestBookingBadSignature(t *testing.T) {
	backend := newFakeBackend()
	v := openView(t, backend, time.Hour, payment.NewSandboxCheckout("wrong-secret"))

	_, err := v.RequestBooking(context.Background(), "u1")

	var perr *PaymentError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "verify", perr.Stage)
	assert.Equal(t, hierarchy.StatusAvailable, status(v, "u1"))
}

func TestRequestBookingWithoutPrice(t *testing.T) {
	v := openView(t, newFakeBackend(), time.Hour, payment.NewSandboxCheckout(secret))

	_, err := v.RequestBooking(context.Background(), "u4")
	assert.ErrorIs(t, err, ErrNoPrice)
}
