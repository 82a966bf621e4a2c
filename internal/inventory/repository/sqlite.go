package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"propview/internal/hierarchy"
	"propview/internal/payment"
)

//go:embed migrations/001_init.sql
var schema string

var (
	ErrNotFound      = errors.New("not_found")
	ErrAlreadyLocked = errors.New("already_locked")
	ErrAlreadyBooked = errors.New("already_booked")
	ErrHeldByOther   = errors.New("held_by_other")
	ErrOrderMismatch = errors.New("order_mismatch")
	ErrProjectExists = errors.New("project_exists")
)

// ============================================================
// SQLite Repository
// ============================================================

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Init applies the schema and, when the database holds no projects yet,
// loads the seed file. An empty seedPath skips seeding.
func (r *Repository) Init(ctx context.Context, seedPath string) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if seedPath == "" {
		return nil
	}

	empty, err := r.isEmpty(ctx)
	if err != nil || !empty {
		return err
	}
	projects, err := LoadSeed(seedPath)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if err := r.CreateProject(ctx, p); err != nil {
			return fmt.Errorf("seed %s: %w", p.ID, err)
		}
	}
	return nil
}

func (r *Repository) isEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

// ============================================================
// Hierarchy
// ============================================================

// CreateProject inserts a project with its towers and units in one
// transaction. Missing tower and unit ids are generated.
func (r *Repository) CreateProject(ctx context.Context, p *hierarchy.Project) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, p.ID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return ErrProjectExists
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO projects (id, title, location, property_type, grid_columns, grid_rows, road_width, plot_gap,
            plot_size_width, plot_size_depth, commercial_floors, base_rate, price_per_sqft, original_price,
            group_price, starting_price, price, discount_price_per_sqft)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, p.ID, p.Title, p.Location, p.Type, p.Columns, p.Rows, p.RoadWidth, p.PlotGap,
		p.PlotSizeWidth, p.PlotSizeDepth, p.CommercialFloors, p.BaseRate, p.PricePerSqft, p.OriginalPrice,
		p.GroupPrice, p.StartingPrice, p.Price, nullFloat(p.DiscountPricePerSqft))
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	for i, t := range p.Towers {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO towers (id, project_id, name, total_floors, layout_columns, layout_rows, position)
            VALUES (?, ?, ?, ?, ?, ?, ?)
        `, t.ID, p.ID, t.Name, t.TotalFloors, t.LayoutColumns, t.LayoutRows, i)
		if err != nil {
			return fmt.Errorf("insert tower %s: %w", t.ID, err)
		}

		for _, u := range t.Units {
			if u.ID == "" {
				u.ID = uuid.NewString()
			}
			status := u.Status
			if status == "" {
				status = hierarchy.StatusAvailable
			}
			_, err = tx.ExecContext(ctx, `
                INSERT INTO units (id, tower_id, unit_number, floor_number, unit_type, status, area,
                    super_built_up_area, carpet_area, price_per_sqft, discount_price_per_sqft, price,
                    plot_width, plot_depth, front_length, back_length, left_length, right_length)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            `, u.ID, t.ID, u.UnitNumber, u.FloorNumber, u.Type, string(status), u.Area,
				u.SuperBuiltUpArea, u.CarpetArea, u.PricePerSqft, nullFloat(u.DiscountPricePerSqft), u.Price,
				u.PlotWidth, u.PlotDepth, u.FrontLength, u.BackLength, u.LeftLength, u.RightLength)
			if err != nil {
				return fmt.Errorf("insert unit %s: %w", u.UnitNumber, err)
			}
		}
	}

	return tx.Commit()
}

// GetHierarchy loads the full project tree. Locks past their expiry read as
// available. held_by is only filled in for the given holder's own locks.
func (r *Repository) GetHierarchy(ctx context.Context, projectID, holder string, now time.Time) (*hierarchy.Project, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, title, location, property_type, grid_columns, grid_rows, road_width, plot_gap,
            plot_size_width, plot_size_depth, commercial_floors, base_rate, price_per_sqft, original_price,
            group_price, starting_price, price, discount_price_per_sqft
        FROM projects
        WHERE id = ?
    `, projectID)

	var p hierarchy.Project
	var discount sql.NullFloat64
	err := row.Scan(&p.ID, &p.Title, &p.Location, &p.Type, &p.Columns, &p.Rows, &p.RoadWidth, &p.PlotGap,
		&p.PlotSizeWidth, &p.PlotSizeDepth, &p.CommercialFloors, &p.BaseRate, &p.PricePerSqft, &p.OriginalPrice,
		&p.GroupPrice, &p.StartingPrice, &p.Price, &discount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.DiscountPricePerSqft = floatPtr(discount)

	towers, err := r.db.QueryContext(ctx, `
        SELECT id, name, total_floors, layout_columns, layout_rows
        FROM towers
        WHERE project_id = ?
        ORDER BY position, id
    `, projectID)
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	for towers.Next() {
		var t hierarchy.Tower
		if err := towers.Scan(&t.ID, &t.Name, &t.TotalFloors, &t.LayoutColumns, &t.LayoutRows); err != nil {
			towers.Close()
			return nil, err
		}
		index[t.ID] = len(p.Towers)
		p.Towers = append(p.Towers, t)
	}
	towers.Close()
	if err := towers.Err(); err != nil {
		return nil, err
	}

	units, err := r.db.QueryContext(ctx, unitSelect+`
        WHERE t.project_id = ?
        ORDER BY u.rowid
    `, projectID)
	if err != nil {
		return nil, err
	}
	defer units.Close()

	for units.Next() {
		u, towerID, _, err := scanUnit(units, holder, now)
		if err != nil {
			return nil, err
		}
		if i, ok := index[towerID]; ok {
			p.Towers[i].Units = append(p.Towers[i].Units, u)
		}
	}
	if err := units.Err(); err != nil {
		return nil, err
	}

	return hierarchy.Normalize(&p), nil
}

const unitSelect = `
    SELECT u.id, u.tower_id, t.project_id, u.unit_number, u.floor_number, u.unit_type, u.status, u.area,
        u.super_built_up_area, u.carpet_area, u.price_per_sqft, u.discount_price_per_sqft, u.price,
        u.plot_width, u.plot_depth, u.front_length, u.back_length, u.left_length, u.right_length,
        u.lock_expires_at, u.held_by
    FROM units u
    JOIN towers t ON t.id = u.tower_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(s scanner, holder string, now time.Time) (hierarchy.Unit, string, string, error) {
	var u hierarchy.Unit
	var towerID, projectID, status, heldBy string
	var discount sql.NullFloat64
	var expires sql.NullInt64

	err := s.Scan(&u.ID, &towerID, &projectID, &u.UnitNumber, &u.FloorNumber, &u.Type, &status, &u.Area,
		&u.SuperBuiltUpArea, &u.CarpetArea, &u.PricePerSqft, &discount, &u.Price,
		&u.PlotWidth, &u.PlotDepth, &u.FrontLength, &u.BackLength, &u.LeftLength, &u.RightLength,
		&expires, &heldBy)
	if err != nil {
		return u, "", "", err
	}

	u.Status = hierarchy.ParseStatus(status)
	u.DiscountPricePerSqft = floatPtr(discount)
	if u.Status == hierarchy.StatusLocked && expires.Valid {
		expiry := time.Unix(expires.Int64, 0).UTC()
		if !now.Before(expiry) {
			u.Status = hierarchy.StatusAvailable
		} else {
			u.LockExpiry = &expiry
			if holder != "" && heldBy == holder {
				u.HeldBy = heldBy
			}
		}
	}
	return u, towerID, projectID, nil
}

// GetUnit returns the unit with its project id.
func (r *Repository) GetUnit(ctx context.Context, unitID, holder string, now time.Time) (hierarchy.Unit, string, error) {
	row := r.db.QueryRowContext(ctx, unitSelect+`WHERE u.id = ?`, unitID)
	u, _, projectID, err := scanUnit(row, holder, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hierarchy.Unit{}, "", ErrNotFound
		}
		return hierarchy.Unit{}, "", err
	}
	return u, projectID, nil
}

// ============================================================
// Transitions
// ============================================================

// LockUnit holds an available unit for holder until now+d. The status check
// and the write are one statement, so of two concurrent locks at most one
// succeeds.
func (r *Repository) LockUnit(ctx context.Context, unitID, holder string, d time.Duration, now time.Time) (hierarchy.Unit, string, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE units
        SET status = 'locked', lock_expires_at = ?, held_by = ?
        WHERE id = ?
          AND (status = 'available' OR (status = 'locked' AND lock_expires_at <= ?))
    `, now.Add(d).Unix(), holder, unitID, now.Unix())
	if err != nil {
		return hierarchy.Unit{}, "", fmt.Errorf("lock unit: %w", err)
	}
	if err := transitionResult(ctx, r.db, res, unitID); err != nil {
		return hierarchy.Unit{}, "", err
	}
	return r.GetUnit(ctx, unitID, holder, now)
}

// CreateOrder records a token order for a unit that holder may book.
func (r *Repository) CreateOrder(ctx context.Context, unitID, holder string, amount int64, now time.Time) (payment.Order, error) {
	u, _, err := r.GetUnit(ctx, unitID, holder, now)
	if err != nil {
		return payment.Order{}, err
	}
	if err := bookable(u, holder); err != nil {
		return payment.Order{}, err
	}

	order := payment.Order{
		ID:       "order_" + uuid.NewString(),
		UnitID:   unitID,
		Amount:   amount,
		Currency: payment.CurrencyINR,
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO orders (id, unit_id, amount, currency, holder, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `, order.ID, order.UnitID, order.Amount, order.Currency, holder, now.Unix())
	if err != nil {
		return payment.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return order, nil
}

// BookUnit marks the unit booked against a paid order. Booking is allowed
// from available, from holder's own lock, or from a lapsed lock.
func (r *Repository) BookUnit(ctx context.Context, unitID, holder string, receipt payment.Receipt, amount int64, now time.Time) (hierarchy.Unit, string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return hierarchy.Unit{}, "", err
	}
	defer tx.Rollback()

	var orderUnit, orderStatus string
	var orderAmount int64
	err = tx.QueryRowContext(ctx, `SELECT unit_id, amount, status FROM orders WHERE id = ?`, receipt.OrderID).
		Scan(&orderUnit, &orderAmount, &orderStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hierarchy.Unit{}, "", ErrOrderMismatch
		}
		return hierarchy.Unit{}, "", err
	}
	if orderUnit != unitID || orderAmount != amount || orderStatus != "created" {
		return hierarchy.Unit{}, "", ErrOrderMismatch
	}

	res, err := tx.ExecContext(ctx, `
        UPDATE units
        SET status = 'booked', lock_expires_at = NULL, held_by = ?
        WHERE id = ?
          AND (status = 'available'
               OR (status = 'locked' AND (held_by = ? OR lock_expires_at <= ?)))
    `, holder, unitID, holder, now.Unix())
	if err != nil {
		return hierarchy.Unit{}, "", fmt.Errorf("book unit: %w", err)
	}
	if err := transitionResult(ctx, tx, res, unitID); err != nil {
		if errors.Is(err, ErrAlreadyLocked) {
			err = ErrHeldByOther
		}
		return hierarchy.Unit{}, "", err
	}

	_, err = tx.ExecContext(ctx, `UPDATE orders SET status = 'paid', payment_id = ? WHERE id = ?`,
		receipt.PaymentID, receipt.OrderID)
	if err != nil {
		return hierarchy.Unit{}, "", fmt.Errorf("mark order paid: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return hierarchy.Unit{}, "", err
	}
	return r.GetUnit(ctx, unitID, holder, now)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// transitionResult turns a conditional update that touched no row into the
// reason it was refused. q must be the connection or transaction that ran
// the update.
func transitionResult(ctx context.Context, q queryRower, res sql.Result, unitID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var status string
	err = q.QueryRowContext(ctx, `SELECT status FROM units WHERE id = ?`, unitID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if hierarchy.ParseStatus(status) == hierarchy.StatusBooked {
		return ErrAlreadyBooked
	}
	return ErrAlreadyLocked
}

func bookable(u hierarchy.Unit, holder string) error {
	switch u.Status {
	case hierarchy.StatusBooked:
		return ErrAlreadyBooked
	case hierarchy.StatusLocked:
		if holder == "" || u.HeldBy != holder {
			return ErrHeldByOther
		}
	}
	return nil
}

// ReleaseExpired frees every lock whose expiry has passed and returns the
// projects that changed.
func (r *Repository) ReleaseExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT DISTINCT t.project_id
        FROM units u
        JOIN towers t ON t.id = u.tower_id
        WHERE u.status = 'locked' AND u.lock_expires_at <= ?
        ORDER BY t.project_id
    `, now.Unix())
	if err != nil {
		return nil, err
	}
	var projects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		projects = append(projects, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}

	_, err = r.db.ExecContext(ctx, `
        UPDATE units
        SET status = 'available', lock_expires_at = NULL, held_by = ''
        WHERE status = 'locked' AND lock_expires_at <= ?
    `, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("release expired: %w", err)
	}
	return projects, nil
}

// ============================================================
// Helpers
// ============================================================

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid || v.Float64 <= 0 {
		return nil
	}
	f := v.Float64
	return &f
}

// OpenSQLite opens (creating if needed) the database at dbPath.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
