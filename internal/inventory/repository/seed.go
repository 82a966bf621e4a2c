package repository

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"propview/internal/hierarchy"
)

// ============================================================
// Seed file
// ============================================================

type seedFile struct {
	Projects []seedProject `yaml:"projects"`
}

type seedProject struct {
	ID               string      `yaml:"id"`
	Title            string      `yaml:"title"`
	Location         string      `yaml:"location"`
	Type             string      `yaml:"type"`
	Columns          int         `yaml:"columns"`
	Rows             int         `yaml:"rows"`
	RoadWidth        float64     `yaml:"road_width"`
	PlotGap          float64     `yaml:"plot_gap"`
	PlotSizeWidth    float64     `yaml:"plot_size_width"`
	PlotSizeDepth    float64     `yaml:"plot_size_depth"`
	CommercialFloors int         `yaml:"commercial_floors"`
	BaseRate         float64     `yaml:"base_rate"`
	PricePerSqft     float64     `yaml:"price_per_sqft"`
	Price            float64     `yaml:"price"`
	Discount         float64     `yaml:"discount_price_per_sqft"`
	Towers           []seedTower `yaml:"towers"`
}

// seedTower lists units explicitly, or generates units_per_floor identical
// units on every floor from the lowest basement up to floors, numbered
// <floor><nn> (001, 101, 102, ... 1201) and B<level>-<nn> below ground.
type seedTower struct {
	ID            string     `yaml:"id"`
	Name          string     `yaml:"name"`
	LayoutColumns int        `yaml:"layout_columns"`
	Floors        int        `yaml:"floors"`
	Basements     int        `yaml:"basements"`
	UnitsPerFloor int        `yaml:"units_per_floor"`
	UnitType      string     `yaml:"unit_type"`
	UnitArea      float64    `yaml:"unit_area"`
	Units         []seedUnit `yaml:"units"`
}

type seedUnit struct {
	ID           string  `yaml:"id"`
	Number       string  `yaml:"number"`
	Floor        int     `yaml:"floor"`
	Type         string  `yaml:"type"`
	Status       string  `yaml:"status"`
	Area         float64 `yaml:"area"`
	PricePerSqft float64 `yaml:"price_per_sqft"`
	Discount     float64 `yaml:"discount_price_per_sqft"`
	Price        float64 `yaml:"price"`
	PlotWidth    float64 `yaml:"plot_width"`
	PlotDepth    float64 `yaml:"plot_depth"`
	Front        float64 `yaml:"front"`
	Back         float64 `yaml:"back"`
	Left         float64 `yaml:"left"`
	Right        float64 `yaml:"right"`
}

// LoadSeed reads the projects of a YAML seed file.
func LoadSeed(path string) ([]*hierarchy.Project, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) ([]*hierarchy.Project, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	var out []*hierarchy.Project
	for _, sp := range f.Projects {
		if sp.ID == "" {
			return nil, fmt.Errorf("parse seed: project without id")
		}
		out = append(out, sp.project())
	}
	return out, nil
}

func (sp seedProject) project() *hierarchy.Project {
	p := &hierarchy.Project{
		ID:                   sp.ID,
		Title:                sp.Title,
		Location:             sp.Location,
		Type:                 sp.Type,
		Columns:              sp.Columns,
		Rows:                 sp.Rows,
		RoadWidth:            sp.RoadWidth,
		PlotGap:              sp.PlotGap,
		PlotSizeWidth:        sp.PlotSizeWidth,
		PlotSizeDepth:        sp.PlotSizeDepth,
		CommercialFloors:     sp.CommercialFloors,
		BaseRate:             sp.BaseRate,
		PricePerSqft:         sp.PricePerSqft,
		Price:                sp.Price,
		DiscountPricePerSqft: positivePtr(sp.Discount),
	}

	for i, st := range sp.Towers {
		t := hierarchy.Tower{
			ID:            st.ID,
			Name:          st.Name,
			TotalFloors:   st.Floors,
			LayoutColumns: st.LayoutColumns,
		}
		if t.ID == "" {
			t.ID = fmt.Sprintf("%s-t%d", sp.ID, i+1)
		}
		for _, su := range st.Units {
			t.Units = append(t.Units, su.unit(t.ID))
		}
		t.Units = append(t.Units, st.generate(t.ID)...)
		p.Towers = append(p.Towers, t)
	}
	return p
}

func (st seedTower) generate(towerID string) []hierarchy.Unit {
	var units []hierarchy.Unit
	for f := -st.Basements; f <= st.Floors; f++ {
		for n := 1; n <= st.UnitsPerFloor; n++ {
			number := fmt.Sprintf("%d%02d", f, n)
			if f < 0 {
				number = fmt.Sprintf("B%d-%02d", -f, n)
			}
			units = append(units, hierarchy.Unit{
				ID:          fmt.Sprintf("%s-%s", towerID, number),
				UnitNumber:  number,
				FloorNumber: f,
				Type:        st.UnitType,
				Status:      hierarchy.StatusAvailable,
				Area:        st.UnitArea,
			})
		}
	}
	return units
}

func (su seedUnit) unit(towerID string) hierarchy.Unit {
	id := su.ID
	if id == "" {
		id = fmt.Sprintf("%s-%s", towerID, su.Number)
	}
	return hierarchy.Unit{
		ID:                   id,
		UnitNumber:           su.Number,
		FloorNumber:          su.Floor,
		Type:                 su.Type,
		Status:               hierarchy.ParseStatus(su.Status),
		Area:                 su.Area,
		PricePerSqft:         su.PricePerSqft,
		DiscountPricePerSqft: positivePtr(su.Discount),
		Price:                su.Price,
		PlotWidth:            su.PlotWidth,
		PlotDepth:            su.PlotDepth,
		FrontLength:          su.Front,
		BackLength:           su.Back,
		LeftLength:           su.Left,
		RightLength:          su.Right,
	}
}

func positivePtr(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
