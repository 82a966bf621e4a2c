package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propview/internal/hierarchy"
	"propview/internal/inventory/repository"
	"propview/internal/payment"
)

const secret = "s3cret"

type recorder struct {
	mu      sync.Mutex
	changes []string
}

func (r *recorder) HierarchyChanged(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, projectID)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changes...)
}

func newInventory(t *testing.T) (*Inventory, *recorder) {
	t.Helper()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "inv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.New(db)
	ctx := context.Background()
	require.NoError(t, repo.Init(ctx, ""))
	require.NoError(t, repo.CreateProject(ctx, &hierarchy.Project{
		ID:   "p1",
		Type: "Apartment",
		Towers: []hierarchy.Tower{{ID: "A", Units: []hierarchy.Unit{
			{ID: "u1", UnitNumber: "101", FloorNumber: 1, Area: 1000, PricePerSqft: 5000},
			{ID: "u2", UnitNumber: "102", FloorNumber: 1},
		}}},
	}))

	rec := &recorder{}
	return NewInventory(repo, rec, secret), rec
}

func TestSessions(t *testing.T) {
	m := NewSessionManager()
	token, holder := m.Issue()
	got, ok := m.Resolve(token)
	assert.True(t, ok)
	assert.Equal(t, holder, got)
	assert.NotEqual(t, token, holder)

	_, ok = m.Resolve("nope")
	assert.False(t, ok)
}

func TestLockValidatesDuration(t *testing.T) {
	inv, rec := newInventory(t)

	_, err := inv.Lock(context.Background(), "u1", "h", 45)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	assert.Empty(t, rec.list())

	u, err := inv.Lock(context.Background(), "u1", "h", 60)
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusLocked, u.Status)
	assert.Equal(t, []string{"p1"}, rec.list())
}

func TestOrderAmountMustMatchQuote(t *testing.T) {
	inv, _ := newInventory(t)
	ctx := context.Background()

	_, err := inv.CreateOrder(ctx, "u1", "h", 100)
	assert.ErrorIs(t, err, ErrAmountMismatch)

	_, err = inv.CreateOrder(ctx, "u2", "h", 100)
	assert.ErrorIs(t, err, ErrNoPrice)

	order, err := inv.CreateOrder(ctx, "u1", "h", 2500000)
	require.NoError(t, err)
	assert.Equal(t, int64(2500000), order.Amount)
}

func TestBookVerifiesSignature(t *testing.T) {
	inv, rec := newInventory(t)
	ctx := context.Background()

	order, err := inv.CreateOrder(ctx, "u1", "h", 2500000)
	require.NoError(t, err)

	forged := payment.Receipt{PaymentID: "pay_1", OrderID: order.ID, Signature: "00"}
	_, err = inv.Book(ctx, "u1", "h", forged, order.Amount)
	assert.ErrorIs(t, err, ErrPaymentInvalid)
	assert.Empty(t, rec.list())

	receipt, err := payment.NewSandboxCheckout(secret).Pay(ctx, order)
	require.NoError(t, err)
	u, err := inv.Book(ctx, "u1", "h", receipt, order.Amount)
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusBooked, u.Status)
	assert.Equal(t, []string{"p1"}, rec.list())
}

func TestSweepExpired(t *testing.T) {
	inv, rec := newInventory(t)
	ctx := context.Background()

	start := time.Now()
	inv.now = func() time.Time { return start }
	_, err := inv.Lock(ctx, "u1", "h", 30)
	require.NoError(t, err)

	inv.now = func() time.Time { return start.Add(10 * time.Minute) }
	require.NoError(t, inv.SweepExpired(ctx))
	assert.Equal(t, []string{"p1"}, rec.list(), "nothing expired yet")

	inv.now = func() time.Time { return start.Add(31 * time.Minute) }
	require.NoError(t, inv.SweepExpired(ctx))
	assert.Equal(t, []string{"p1", "p1"}, rec.list())

	p, err := inv.Hierarchy(ctx, "p1", "")
	require.NoError(t, err)
	u, _ := hierarchy.FindUnit(p, "u1")
	assert.Equal(t, hierarchy.StatusAvailable, u.Status)
}

func TestStartSweeper(t *testing.T) {
	inv, _ := newInventory(t)

	_, err := StartSweeper(inv, "not a schedule")
	assert.Error(t, err)

	c, err := StartSweeper(inv, "@every 1s")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()
}
