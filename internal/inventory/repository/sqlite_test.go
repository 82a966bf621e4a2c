package repository

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propview/internal/hierarchy"
	"propview/internal/payment"
)

const seedYAML = `
projects:
  - id: greens
    title: Palm Greens
    type: Villa Colony
    price_per_sqft: 4000
    towers:
      - id: phase-1
        units:
          - {id: v10, number: V-10, type: Twin Villa, area: 1500}
          - {id: v2, number: V-2, type: Twin Villa, area: 1500}
          - {id: v3, number: V-3, type: Bungalow, area: 2000, status: booked}
  - id: heights
    type: Apartment
    base_rate: 6500
    towers:
      - id: A
        floors: 2
        basements: 1
        units_per_floor: 2
        unit_area: 1100
`

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0o644))

	db, err := OpenSQLite(filepath.Join(dir, "db", "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := New(db)
	require.NoError(t, repo.Init(context.Background(), seed))
	return repo
}

func TestInitSeedsOnce(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	p, err := repo.GetHierarchy(ctx, "greens", "", t0)
	require.NoError(t, err)
	assert.Equal(t, hierarchy.ClassColony, p.Classification)
	require.Len(t, p.Towers, 1)

	var numbers []string
	for _, u := range p.Towers[0].Units {
		numbers = append(numbers, u.UnitNumber)
	}
	assert.Equal(t, []string{"V-2", "V-3", "V-10"}, numbers)
	assert.Equal(t, hierarchy.StatusBooked, p.Towers[0].Units[1].Status)
	assert.Equal(t, hierarchy.KindTwinVilla, p.Towers[0].Units[0].Kind)

	towers, err := repo.GetHierarchy(ctx, "heights", "", t0)
	require.NoError(t, err)
	assert.Equal(t, hierarchy.ClassTower, towers.Classification)
	assert.Len(t, towers.Towers[0].Units, 8, "basement, ground and two floors of two units")

	// a second Init does not reseed
	require.NoError(t, repo.Init(ctx, "does-not-exist.yaml"))

	_, err = repo.GetHierarchy(ctx, "missing", "", t0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProjectRejectsDuplicates(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	err := repo.CreateProject(ctx, &hierarchy.Project{ID: "greens"})
	assert.ErrorIs(t, err, ErrProjectExists)

	err = repo.CreateProject(ctx, &hierarchy.Project{ID: "dup", Towers: []hierarchy.Tower{{ID: "dup-t", Units: []hierarchy.Unit{
		{UnitNumber: "1"}, {UnitNumber: "1"},
	}}}})
	assert.Error(t, err, "unit numbers are unique within a tower")
}

func TestLockUnit(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	u, projectID, err := repo.LockUnit(ctx, "v2", "alice", 30*time.Minute, t0)
	require.NoError(t, err)
	assert.Equal(t, "greens", projectID)
	assert.Equal(t, hierarchy.StatusLocked, u.Status)
	assert.Equal(t, "alice", u.HeldBy)
	require.NotNil(t, u.LockExpiry)
	assert.Equal(t, t0.Add(30*time.Minute), *u.LockExpiry)

	_, _, err = repo.LockUnit(ctx, "v2", "bob", 30*time.Minute, t0)
	assert.ErrorIs(t, err, ErrAlreadyLocked)
	_, _, err = repo.LockUnit(ctx, "v3", "bob", 30*time.Minute, t0)
	assert.ErrorIs(t, err, ErrAlreadyBooked)
	_, _, err = repo.LockUnit(ctx, "nope", "bob", 30*time.Minute, t0)
	assert.ErrorIs(t, err, ErrNotFound)

	// held_by is private to the holder
	u, _, err = repo.GetUnit(ctx, "v2", "bob", t0)
	require.NoError(t, err)
	assert.Empty(t, u.HeldBy)

	// a lapsed lock reads as available and can be taken
	later := t0.Add(31 * time.Minute)
	u, _, err = repo.GetUnit(ctx, "v2", "", later)
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusAvailable, u.Status)
	_, _, err = repo.LockUnit(ctx, "v2", "bob", 60*time.Minute, later)
	assert.NoError(t, err)
}

func TestConcurrentLocksYieldOneWinner(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := repo.LockUnit(ctx, "v10", string(rune('a'+i)), 30*time.Minute, t0)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, ErrAlreadyLocked) {
				conflicts++
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 7, conflicts)
}

func TestOrderAndBook(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, _, err := repo.LockUnit(ctx, "v2", "alice", 30*time.Minute, t0)
	require.NoError(t, err)

	_, err = repo.CreateOrder(ctx, "v2", "bob", 100, t0)
	assert.ErrorIs(t, err, ErrHeldByOther)
	_, err = repo.CreateOrder(ctx, "v3", "bob", 100, t0)
	assert.ErrorIs(t, err, ErrAlreadyBooked)

	order, err := repo.CreateOrder(ctx, "v2", "alice", 3000000, t0)
	require.NoError(t, err)
	assert.Equal(t, payment.CurrencyINR, order.Currency)

	receipt := payment.Receipt{PaymentID: "pay_1", OrderID: order.ID}

	_, _, err = repo.BookUnit(ctx, "v2", "alice", receipt, 1, t0)
	assert.ErrorIs(t, err, ErrOrderMismatch)
	_, _, err = repo.BookUnit(ctx, "v2", "bob", receipt, order.Amount, t0)
	assert.ErrorIs(t, err, ErrHeldByOther)

	u, projectID, err := repo.BookUnit(ctx, "v2", "alice", receipt, order.Amount, t0)
	require.NoError(t, err)
	assert.Equal(t, "greens", projectID)
	assert.Equal(t, hierarchy.StatusBooked, u.Status)

	_, _, err = repo.BookUnit(ctx, "v2", "alice", receipt, order.Amount, t0)
	assert.ErrorIs(t, err, ErrOrderMismatch, "an order pays once")
}

func TestReleaseExpired(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, _, err := repo.LockUnit(ctx, "v2", "alice", 30*time.Minute, t0)
	require.NoError(t, err)
	_, _, err = repo.LockUnit(ctx, "A-101", "bob", 60*time.Minute, t0)
	require.NoError(t, err)

	projects, err := repo.ReleaseExpired(ctx, t0.Add(45*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"greens"}, projects)

	u, _, err := repo.GetUnit(ctx, "A-101", "bob", t0.Add(45*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, hierarchy.StatusLocked, u.Status)

	projects, err = repo.ReleaseExpired(ctx, t0.Add(45*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestParseSeedRequiresID(t *testing.T) {
	_, err := ParseSeed([]byte("projects:\n  - title: nameless\n"))
	assert.Error(t, err)
}
