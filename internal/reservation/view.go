package reservation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"propview/internal/common/logger"
	"propview/internal/hierarchy"
	"propview/internal/payment"
	"propview/internal/pricing"
)

const DefaultPollInterval = 3 * time.Second

type Options struct {
	ProjectID    string
	PollInterval time.Duration
	Checkout     payment.Checkout
}

// View is one open project view. It owns the hierarchy tree for the project,
// refreshes it on a fixed interval and drives holds and bookings against the
// backend. Every fetch replaces the whole tree; the last completed fetch wins.
type View struct {
	backend   Backend
	checkout  payment.Checkout
	projectID string
	interval  time.Duration
	log       *logrus.Entry
	now       func() time.Time

	mu        sync.Mutex
	project   *hierarchy.Project
	selected  string
	busy      map[string]bool
	ownHolds  map[string]time.Time // unit -> local expiry of our lock
	listeners []func(*hierarchy.Project)
	gen       uint64
	stored    uint64 // trees stored so far
	delivered uint64 // last stored tree handed to listeners
	opened    bool
	closed    bool
	cancel    context.CancelFunc

	// notifyMu serializes listener fan-out so listeners see trees in the
	// order they were stored.
	notifyMu sync.Mutex
	wg       sync.WaitGroup
}

func NewView(backend Backend, opts Options) *View {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &View{
		backend:   backend,
		checkout:  opts.Checkout,
		projectID: opts.ProjectID,
		interval:  interval,
		log:       logger.Log.WithField("project", opts.ProjectID),
		busy:      make(map[string]bool),
		ownHolds:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// ============================================================
// Lifecycle
// ============================================================

// Open performs the initial fetch and starts the poll loop. The loop keeps
// running even when the initial fetch fails.
func (v *View) Open(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.opened {
		v.mu.Unlock()
		return nil
	}
	v.opened = true
	loopCtx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.wg.Add(1)
	v.mu.Unlock()

	go v.poll(loopCtx)
	return v.Refresh(ctx)
}

// Close stops the poll loop and waits for it and any listener fan-out in
// progress to finish. Responses that land afterwards are dropped. Close must
// not be called from an OnChange listener.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.gen++
	cancel := v.cancel
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	v.wg.Wait()

	v.notifyMu.Lock()
	v.notifyMu.Unlock()
}

func (v *View) poll(ctx context.Context) {
	defer v.wg.Done()

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := v.Refresh(ctx); err != nil && !errors.Is(err, ErrClosed) {
				v.log.WithError(err).Warn("[POLL] refresh failed")
			}
		}
	}
}

// Refresh fetches the full hierarchy and replaces the local tree.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	gen := v.gen
	v.mu.Unlock()

	project, err := v.backend.GetFullHierarchy(ctx, v.projectID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if v.closed || gen != v.gen {
		v.mu.Unlock()
		return ErrClosed
	}
	v.project = project
	v.stored++
	v.mu.Unlock()

	v.notify()
	return nil
}

// notify hands the newest stored tree to every listener, once per tree.
// A fan-out that finds its tree already superseded delivers the newer one, so
// the last tree a listener sees is always the one Snapshot returns.
func (v *View) notify() {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	if v.closed || v.delivered == v.stored {
		v.mu.Unlock()
		return
	}
	project := v.project
	v.delivered = v.stored
	listeners := append([]func(*hierarchy.Project){}, v.listeners...)
	v.mu.Unlock()

	for _, fn := range listeners {
		v.mu.Lock()
		closed := v.closed
		v.mu.Unlock()
		if closed {
			return
		}
		fn(project)
	}
}

// ============================================================
// Read side
// ============================================================

// Snapshot returns the current tree. It is replaced, never mutated, so the
// caller may read it without locking.
func (v *View) Snapshot() *hierarchy.Project {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.project
}

func (v *View) Busy(unitID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.busy[unitID]
}

// OwnsHold reports whether this view placed a lock on the unit that has not
// yet run out.
func (v *View) OwnsHold(unitID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ownsHold(unitID)
}

func (v *View) ownsHold(unitID string) bool {
	expiry, ok := v.ownHolds[unitID]
	return ok && v.now().Before(expiry)
}

func (v *View) Selected() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// OnChange registers fn to receive every new tree. Listeners run one at a
// time and must not call Refresh or Close.
func (v *View) OnChange(fn func(*hierarchy.Project)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, fn)
}

func (v *View) unit(unitID string) (hierarchy.Unit, *hierarchy.Project, error) {
	v.mu.Lock()
	project := v.project
	v.mu.Unlock()

	u, ok := hierarchy.FindUnit(project, unitID)
	if !ok {
		return hierarchy.Unit{}, nil, ErrUnknownUnit
	}
	return u, project, nil
}

// ============================================================
// Transitions
// ============================================================

// Select focuses a unit. Booked units never take focus; locked ones only
// when the lock is this view's own.
func (v *View) Select(unitID string) error {
	u, _, err := v.unit(unitID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	switch u.Status {
	case hierarchy.StatusBooked:
		return ErrUnitBooked
	case hierarchy.StatusLocked:
		if !v.ownsHold(unitID) {
			return ErrUnitHeld
		}
	}
	v.selected = unitID
	return nil
}

func (v *View) Deselect() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selected = ""
}

// begin marks the unit busy, failing with ErrBusy if a request for it is
// already in flight.
func (v *View) begin(unitID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if v.busy[unitID] {
		return ErrBusy
	}
	v.busy[unitID] = true
	return nil
}

func (v *View) end(unitID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.busy, unitID)
}

// RequestHold locks the unit for d. On success the tree is refetched; on
// failure local state is left as it was.
func (v *View) RequestHold(ctx context.Context, unitID string, d HoldDuration) (hierarchy.Unit, error) {
	if !d.Valid() {
		return hierarchy.Unit{}, ErrInvalidDuration
	}
	if _, _, err := v.unit(unitID); err != nil {
		return hierarchy.Unit{}, err
	}
	if err := v.begin(unitID); err != nil {
		return hierarchy.Unit{}, err
	}
	defer v.end(unitID)

	log := v.log.WithField("unit", unitID)
	log.Infof("[HOLD] requesting %d minute hold", d)

	locked, err := v.backend.LockUnit(ctx, unitID, int(d))
	if err != nil {
		log.WithError(err).Warn("[HOLD] rejected")
		return hierarchy.Unit{}, err
	}

	v.mu.Lock()
	v.ownHolds[unitID] = v.now().Add(time.Duration(d) * time.Minute)
	v.mu.Unlock()

	if err := v.Refresh(ctx); err != nil && !errors.Is(err, ErrClosed) {
		log.WithError(err).Warn("[HOLD] refetch failed")
	}
	return locked, nil
}

// RequestBooking pays the token amount and books the unit. The order is
// sized from the same quote the UI displays. Nothing is retried.
func (v *View) RequestBooking(ctx context.Context, unitID string) (hierarchy.Unit, error) {
	u, project, err := v.unit(unitID)
	if err != nil {
		return hierarchy.Unit{}, err
	}
	if u.Status == hierarchy.StatusBooked {
		return hierarchy.Unit{}, ErrUnitBooked
	}
	if v.checkout == nil {
		return hierarchy.Unit{}, &PaymentError{Stage: "checkout", Err: errors.New("no checkout configured")}
	}

	quote := pricing.Resolve(u, project)
	if !quote.Available() {
		return hierarchy.Unit{}, &PaymentError{Stage: "quote", Err: ErrNoPrice}
	}

	if err := v.begin(unitID); err != nil {
		return hierarchy.Unit{}, err
	}
	defer v.end(unitID)

	log := v.log.WithField("unit", unitID)
	log.Infof("[BOOK] token %s", quote.DisplayToken())

	order, err := v.backend.CreateBookingOrder(ctx, OrderRequest{UnitID: unitID, Amount: quote.TokenPaise()})
	if err != nil {
		log.WithError(err).Warn("[BOOK] order failed")
		return hierarchy.Unit{}, err
	}

	receipt, err := v.checkout.Pay(ctx, order)
	if err != nil {
		log.WithError(err).Warn("[BOOK] payment failed")
		return hierarchy.Unit{}, &PaymentError{Stage: "checkout", Err: err}
	}

	booked, err := v.backend.BookUnit(ctx, unitID, BookingRequest{
		Amount:    order.Amount,
		Currency:  order.Currency,
		PaymentID: receipt.PaymentID,
		OrderID:   receipt.OrderID,
		Signature: receipt.Signature,
	})
	if err != nil {
		log.WithError(err).Warn("[BOOK] rejected")
		return hierarchy.Unit{}, err
	}

	v.mu.Lock()
	delete(v.ownHolds, unitID)
	if v.selected == unitID {
		v.selected = ""
	}
	v.mu.Unlock()

	if err := v.Refresh(ctx); err != nil && !errors.Is(err, ErrClosed) {
		log.WithError(err).Warn("[BOOK] refetch failed")
	}
	return booked, nil
}
