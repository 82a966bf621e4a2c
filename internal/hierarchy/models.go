package hierarchy

import (
	"strings"
	"time"
)

// ============================================================
// Status
// ============================================================

type Status string

const (
	StatusAvailable Status = "available"
	StatusLocked    Status = "locked"
	StatusBooked    Status = "booked"
)

// ParseStatus maps the loosely formatted backend status onto the closed set.
// Anything unrecognised is treated as booked so it is never offered for sale.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "available", "open", "free", "vacant":
		return StatusAvailable
	case "locked", "hold", "on_hold", "held", "blocked":
		return StatusLocked
	default:
		return StatusBooked
	}
}

// CanTransition reports whether from -> to is an allowed unit status change.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusAvailable:
		return to == StatusLocked || to == StatusBooked
	case StatusLocked:
		return to == StatusAvailable || to == StatusBooked
	}
	return false
}

// ============================================================
// Hierarchy tree
// ============================================================

type Project struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Location       string         `json:"location"`
	Type           string         `json:"type"`
	Classification Classification `json:"classification"`

	Columns          int     `json:"columns"`
	Rows             int     `json:"rows"`
	RoadWidth        float64 `json:"road_width"`
	PlotGap          float64 `json:"plot_gap"`
	PlotSizeWidth    float64 `json:"plot_size_width"`
	PlotSizeDepth    float64 `json:"plot_size_depth"`
	CommercialFloors int     `json:"commercial_floors"`

	BaseRate             float64  `json:"base_rate"`
	PricePerSqft         float64  `json:"price_per_sqft"`
	OriginalPrice        float64  `json:"original_price"`
	GroupPrice           float64  `json:"group_price"`
	StartingPrice        float64  `json:"starting_price"`
	Price                float64  `json:"price"`
	DiscountPricePerSqft *float64 `json:"discount_price_per_sqft,omitempty"`

	Towers []Tower `json:"towers"`
}

type Tower struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	TotalFloors   int    `json:"total_floors"`
	LayoutColumns int    `json:"layout_columns,omitempty"`
	LayoutRows    int    `json:"layout_rows,omitempty"`
	Units         []Unit `json:"units"`
}

type Unit struct {
	ID          string `json:"id"`
	UnitNumber  string `json:"unit_number"`
	FloorNumber int    `json:"floor_number"`
	Type        string `json:"type"`
	Kind        Kind   `json:"kind"`
	Status      Status `json:"status"`

	Area             float64 `json:"area"`
	SuperBuiltUpArea float64 `json:"super_built_up_area,omitempty"`
	CarpetArea       float64 `json:"carpet_area,omitempty"`

	PricePerSqft         float64  `json:"price_per_sqft"`
	DiscountPricePerSqft *float64 `json:"discount_price_per_sqft,omitempty"`
	Price                float64  `json:"price,omitempty"`

	PlotWidth   float64 `json:"plot_width,omitempty"`
	PlotDepth   float64 `json:"plot_depth,omitempty"`
	FrontLength float64 `json:"front_length,omitempty"`
	BackLength  float64 `json:"back_length,omitempty"`
	LeftLength  float64 `json:"left_length,omitempty"`
	RightLength float64 `json:"right_length,omitempty"`

	LockExpiry *time.Time `json:"lock_expiry,omitempty"`
	HeldBy     string     `json:"held_by,omitempty"`
}

// LockLapsed is a display hint only: the next poll decides the real status.
func (u Unit) LockLapsed(now time.Time) bool {
	return u.Status == StatusLocked && u.LockExpiry != nil && now.After(*u.LockExpiry)
}

// Clickable reports whether the unit may receive pointer interaction.
func (u Unit) Clickable() bool {
	return u.Status != StatusBooked
}

type FloorUnits struct {
	Floor int
	Units []Unit
}
