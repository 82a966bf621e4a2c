package hierarchy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ============================================================
// Wire format
// ============================================================

// Listing backends send numbers both as JSON numbers and as strings, and ids
// as either. The wire structs absorb that before building the clean tree.

type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f.Value, f.Set = v, true
		return nil
	}

	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	f.Value, f.Set = v, true
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.Set || f.Value <= 0 {
		return nil
	}
	v := f.Value
	return &v
}

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(string(b))
	return nil
}

type flexTime struct {
	Value *time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || strings.TrimSpace(s) == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Value = &parsed
			return nil
		}
	}
	return nil
}

type wireUnit struct {
	ID                   flexString `json:"id"`
	UnitNumber           flexString `json:"unit_number"`
	FloorNumber          flexFloat  `json:"floor_number"`
	Type                 string     `json:"type"`
	UnitType             string     `json:"unit_type"`
	Status               string     `json:"status"`
	Area                 flexFloat  `json:"area"`
	SuperBuiltUpArea     flexFloat  `json:"super_built_up_area"`
	CarpetArea           flexFloat  `json:"carpet_area"`
	PricePerSqft         flexFloat  `json:"price_per_sqft"`
	DiscountPricePerSqft flexFloat  `json:"discount_price_per_sqft"`
	Price                flexFloat  `json:"price"`
	PlotWidth            flexFloat  `json:"plot_width"`
	PlotDepth            flexFloat  `json:"plot_depth"`
	FrontLength          flexFloat  `json:"front_length"`
	BackLength           flexFloat  `json:"back_length"`
	LeftLength           flexFloat  `json:"left_length"`
	RightLength          flexFloat  `json:"right_length"`
	LockExpiry           flexTime   `json:"lock_expiry"`
	HeldBy               string     `json:"held_by"`
}

type wireTower struct {
	ID            flexString `json:"id"`
	Name          string     `json:"name"`
	TotalFloors   flexFloat  `json:"total_floors"`
	LayoutColumns flexFloat  `json:"layout_columns"`
	LayoutRows    flexFloat  `json:"layout_rows"`
	Units         []wireUnit `json:"units"`
}

type wireProject struct {
	ID               flexString  `json:"id"`
	Title            string      `json:"title"`
	Location         string      `json:"location"`
	Type             string      `json:"type"`
	PropertyType     string      `json:"property_type"`
	Classification   string      `json:"classification"`
	Columns          flexFloat   `json:"columns"`
	Rows             flexFloat   `json:"rows"`
	RoadWidth        flexFloat   `json:"road_width"`
	PlotGap          flexFloat   `json:"plot_gap"`
	PlotSizeWidth    flexFloat   `json:"plot_size_width"`
	PlotSizeDepth    flexFloat   `json:"plot_size_depth"`
	CommercialFloors flexFloat   `json:"commercial_floors"`
	BaseRate         flexFloat   `json:"base_rate"`
	PricePerSqft     flexFloat   `json:"price_per_sqft"`
	OriginalPrice    flexFloat   `json:"original_price"`
	GroupPrice       flexFloat   `json:"group_price"`
	StartingPrice    flexFloat   `json:"starting_price"`
	Price            flexFloat   `json:"price"`
	Discount         flexFloat   `json:"discount_price_per_sqft"`
	Towers           []wireTower `json:"towers"`
}

// ============================================================
// Decoding
// ============================================================

// Decode parses a hierarchy payload and normalizes it. Missing or malformed
// optional fields become zero values; only non-JSON input is an error.
func Decode(r io.Reader) (*Project, error) {
	var w wireProject
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("decode hierarchy: %w", err)
	}
	return Normalize(w.project()), nil
}

// DecodeWithType is Decode for callers that know the property type up front;
// it is used when the payload itself carries no type.
func DecodeWithType(r io.Reader, propertyType string) (*Project, error) {
	var w wireProject
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("decode hierarchy: %w", err)
	}
	if w.Type == "" && w.PropertyType == "" && w.Classification == "" {
		w.Type = propertyType
	}
	return Normalize(w.project()), nil
}

// DecodeUnit parses a single unit payload, as returned by lock and book.
func DecodeUnit(r io.Reader) (Unit, error) {
	var w wireUnit
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return Unit{}, fmt.Errorf("decode unit: %w", err)
	}
	return w.unit(), nil
}

func (w wireProject) project() *Project {
	p := &Project{
		ID:                   string(w.ID),
		Title:                w.Title,
		Location:             w.Location,
		Type:                 firstNonEmpty(w.Type, w.PropertyType),
		Columns:              int(w.Columns.Value),
		Rows:                 int(w.Rows.Value),
		RoadWidth:            w.RoadWidth.Value,
		PlotGap:              w.PlotGap.Value,
		PlotSizeWidth:        w.PlotSizeWidth.Value,
		PlotSizeDepth:        w.PlotSizeDepth.Value,
		CommercialFloors:     int(w.CommercialFloors.Value),
		BaseRate:             w.BaseRate.Value,
		PricePerSqft:         w.PricePerSqft.Value,
		OriginalPrice:        w.OriginalPrice.Value,
		GroupPrice:           w.GroupPrice.Value,
		StartingPrice:        w.StartingPrice.Value,
		Price:                w.Price.Value,
		DiscountPricePerSqft: w.Discount.ptr(),
	}
	if p.Type == "" && w.Classification != "" {
		p.Classification = Classify(w.Classification)
	}

	for _, wt := range w.Towers {
		t := Tower{
			ID:            string(wt.ID),
			Name:          wt.Name,
			TotalFloors:   int(wt.TotalFloors.Value),
			LayoutColumns: int(wt.LayoutColumns.Value),
			LayoutRows:    int(wt.LayoutRows.Value),
		}
		for _, wu := range wt.Units {
			t.Units = append(t.Units, wu.unit())
		}
		p.Towers = append(p.Towers, t)
	}
	return p
}

func (w wireUnit) unit() Unit {
	u := Unit{
		ID:                   string(w.ID),
		UnitNumber:           string(w.UnitNumber),
		FloorNumber:          int(w.FloorNumber.Value),
		Type:                 firstNonEmpty(w.Type, w.UnitType),
		Status:               ParseStatus(w.Status),
		Area:                 w.Area.Value,
		SuperBuiltUpArea:     w.SuperBuiltUpArea.Value,
		CarpetArea:           w.CarpetArea.Value,
		PricePerSqft:         w.PricePerSqft.Value,
		DiscountPricePerSqft: w.DiscountPricePerSqft.ptr(),
		Price:                w.Price.Value,
		PlotWidth:            w.PlotWidth.Value,
		PlotDepth:            w.PlotDepth.Value,
		FrontLength:          w.FrontLength.Value,
		BackLength:           w.BackLength.Value,
		LeftLength:           w.LeftLength.Value,
		RightLength:          w.RightLength.Value,
		HeldBy:               w.HeldBy,
	}
	if u.Status == StatusLocked {
		u.LockExpiry = w.LockExpiry.Value
	}
	return u
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
