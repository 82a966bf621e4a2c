package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"propview/internal/hierarchy"
)

// ============================================================
// Configuration
// ============================================================

// Config holds scene dimensions in scene units (metres).
type Config struct {
	TowerSpacing   float64 `yaml:"tower_spacing" json:"tower_spacing"`
	FloorHeight    float64 `yaml:"floor_height" json:"floor_height"`
	UnitSize       float64 `yaml:"unit_size" json:"unit_size"`
	UnitGap        float64 `yaml:"unit_gap" json:"unit_gap"`
	BasementHeight float64 `yaml:"basement_height" json:"basement_height"`

	PlotScale      float64 `yaml:"plot_scale" json:"plot_scale"`
	PlotMin        float64 `yaml:"plot_min" json:"plot_min"`
	PlotMax        float64 `yaml:"plot_max" json:"plot_max"`
	PlotThickness  float64 `yaml:"plot_thickness" json:"plot_thickness"`
	BungalowSize   float64 `yaml:"bungalow_size" json:"bungalow_size"`
	BungalowHeight float64 `yaml:"bungalow_height" json:"bungalow_height"`
	RoadWidth      float64 `yaml:"road_width" json:"road_width"`
	PlotGap        float64 `yaml:"plot_gap" json:"plot_gap"`

	StoreWidth       float64 `yaml:"store_width" json:"store_width"`
	StoreDepth       float64 `yaml:"store_depth" json:"store_depth"`
	StoreFloorHeight float64 `yaml:"store_floor_height" json:"store_floor_height"`
	CommercialFloors int     `yaml:"commercial_floors" json:"commercial_floors"`
}

func DefaultConfig() Config {
	return Config{
		TowerSpacing:   40,
		FloorHeight:    3,
		UnitSize:       6,
		UnitGap:        1,
		BasementHeight: 3,

		// plot dimensions arrive in feet
		PlotScale:      0.3048,
		PlotMin:        3,
		PlotMax:        60,
		PlotThickness:  0.2,
		BungalowSize:   10,
		BungalowHeight: 6,
		RoadWidth:      6,
		PlotGap:        2,

		StoreWidth:       8,
		StoreDepth:       10,
		StoreFloorHeight: 3.5,
		CommercialFloors: 1,
	}
}

// LoadConfig reads a YAML tuning file on top of the defaults. Keys missing
// from the file keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("layout.yaml: %w", err)
	}
	return cfg.sanitized(), nil
}

// sanitized replaces non-positive dimensions with defaults so a bad tuning
// file can never produce degenerate geometry.
func (c Config) sanitized() Config {
	d := DefaultConfig()
	fix := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fix(&c.TowerSpacing, d.TowerSpacing)
	fix(&c.FloorHeight, d.FloorHeight)
	fix(&c.UnitSize, d.UnitSize)
	fix(&c.BasementHeight, d.BasementHeight)
	fix(&c.PlotScale, d.PlotScale)
	fix(&c.PlotMin, d.PlotMin)
	fix(&c.PlotMax, d.PlotMax)
	fix(&c.PlotThickness, d.PlotThickness)
	fix(&c.BungalowSize, d.BungalowSize)
	fix(&c.BungalowHeight, d.BungalowHeight)
	fix(&c.StoreWidth, d.StoreWidth)
	fix(&c.StoreDepth, d.StoreDepth)
	fix(&c.StoreFloorHeight, d.StoreFloorHeight)
	if c.UnitGap < 0 {
		c.UnitGap = d.UnitGap
	}
	if c.RoadWidth < 0 {
		c.RoadWidth = d.RoadWidth
	}
	if c.PlotGap < 0 {
		c.PlotGap = d.PlotGap
	}
	if c.PlotMax < c.PlotMin {
		c.PlotMax = c.PlotMin
	}
	if c.CommercialFloors <= 0 {
		c.CommercialFloors = d.CommercialFloors
	}
	return c
}

// forProject applies the project's own layout overrides.
func (c Config) forProject(p *hierarchy.Project) Config {
	c = c.sanitized()
	if p == nil {
		return c
	}
	if p.RoadWidth > 0 {
		c.RoadWidth = p.RoadWidth
	}
	if p.PlotGap > 0 {
		c.PlotGap = p.PlotGap
	}
	if p.CommercialFloors > 0 {
		c.CommercialFloors = p.CommercialFloors
	}
	return c
}
