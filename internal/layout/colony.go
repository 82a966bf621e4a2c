package layout

import (
	"math"

	"propview/internal/geom"
	"propview/internal/hierarchy"
)

// ============================================================
// Building grouping
// ============================================================

// Building is one footprint on the colony grid. Slots is 2 for twin-shaped
// buildings; a lone twin keeps both slots with the second left empty.
type Building struct {
	Kind  Kind
	Units []hierarchy.Unit
	Slots int
}

// GroupBuildings scans sorted units left to right: plots stand alone, two
// adjacent twins pair into one twin villa, everything else is a bungalow.
func GroupBuildings(units []hierarchy.Unit) []Building {
	var out []Building
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u.Kind == hierarchy.KindPlot:
			out = append(out, Building{Kind: KindPlot, Units: []hierarchy.Unit{u}, Slots: 1})
		case u.Kind == hierarchy.KindTwinVilla && i+1 < len(units) && units[i+1].Kind == hierarchy.KindTwinVilla:
			out = append(out, Building{Kind: KindTwinVilla, Units: []hierarchy.Unit{u, units[i+1]}, Slots: 2})
			i++
		case u.Kind == hierarchy.KindTwinVilla:
			out = append(out, Building{Kind: KindBungalow, Units: []hierarchy.Unit{u}, Slots: 2})
		default:
			out = append(out, Building{Kind: KindBungalow, Units: []hierarchy.Unit{u}, Slots: 1})
		}
	}
	return out
}

// ============================================================
// Colony strategy
// ============================================================

// ColonyLayout places bungalows, twin villas and plots on a road grid.
func ColonyLayout(p *hierarchy.Project, cfg Config) ([]Placement, []Road) {
	buildings := GroupBuildings(hierarchy.FlattenedUnits(p))

	footprints := make([]geom.Vec3, len(buildings))
	for i, b := range buildings {
		footprints[i] = buildingFootprint(b, cfg)
	}

	placements, columns, rows, pitchX, pitchZ := placeOnGrid(buildings, footprints, p, cfg)
	for i := range placements {
		b := buildings[i]
		placements[i].Material = MaterialVilla
		if b.Kind == KindPlot {
			placements[i].Material = MaterialPlot
			labels := PlotLabels(b.Units[0])
			placements[i].Labels = &labels
		}
	}

	return placements, gridRoads(columns, rows, pitchX, pitchZ, cfg.RoadWidth)
}

func buildingFootprint(b Building, cfg Config) geom.Vec3 {
	switch b.Kind {
	case KindPlot:
		w, d := PlotSize(b.Units[0], cfg)
		return geom.Vec3{X: w, Y: cfg.PlotThickness, Z: d}
	case KindStorefront:
		return geom.Vec3{X: cfg.StoreWidth, Y: float64(cfg.CommercialFloors) * cfg.StoreFloorHeight, Z: cfg.StoreDepth}
	}
	return geom.Vec3{X: float64(b.Slots) * cfg.BungalowSize, Y: cfg.BungalowHeight, Z: cfg.BungalowSize}
}

// placeOnGrid centers buildings on a columns x rows grid whose cell is the
// largest footprint (at least the project's plot size) plus plot gap and road
// width.
func placeOnGrid(buildings []Building, footprints []geom.Vec3, p *hierarchy.Project, cfg Config) ([]Placement, int, int, float64, float64) {
	if len(buildings) == 0 {
		return nil, 0, 0, 0, 0
	}

	columns, rows := gridShape(len(buildings), p.Columns, p.Rows)

	cellW := p.PlotSizeWidth * cfg.PlotScale
	cellD := p.PlotSizeDepth * cfg.PlotScale
	for _, f := range footprints {
		cellW = math.Max(cellW, f.X)
		cellD = math.Max(cellD, f.Z)
	}
	pitchX := cellW + cfg.PlotGap + cfg.RoadWidth
	pitchZ := cellD + cfg.PlotGap + cfg.RoadWidth

	out := make([]Placement, len(buildings))
	for i, b := range buildings {
		col, row := i%columns, i/columns
		out[i] = Placement{
			Key:   unitKey(string(b.Kind), b.Units),
			Kind:  b.Kind,
			Units: b.Units,
			Slots: b.Slots,
			Position: geom.Vec3{
				X: geom.Centered(col, columns, pitchX),
				Y: footprints[i].Y / 2,
				Z: geom.Centered(row, rows, pitchZ),
			},
			Footprint: footprints[i],
		}
		if len(b.Units) > 0 {
			out[i].Floor = b.Units[0].FloorNumber
		}
	}
	return out, columns, rows, pitchX, pitchZ
}

// ============================================================
// Plot sizing
// ============================================================

// PlotSize returns a plot's scene width and depth. Each axis uses its own
// plot dimension when set, else the square side of the unit's area.
func PlotSize(u hierarchy.Unit, cfg Config) (float64, float64) {
	side := math.Sqrt(plotArea(u))
	w, d := u.PlotWidth, u.PlotDepth
	if w <= 0 {
		w = side
	}
	if d <= 0 {
		d = side
	}

	return geom.Clamp(w*cfg.PlotScale, cfg.PlotMin, cfg.PlotMax),
		geom.Clamp(d*cfg.PlotScale, cfg.PlotMin, cfg.PlotMax)
}

func plotArea(u hierarchy.Unit) float64 {
	for _, v := range []float64{u.Area, u.SuperBuiltUpArea, u.CarpetArea} {
		if v > 0 {
			return v
		}
	}
	return 0
}

// PlotLabels resolves each edge: the specific side, then the generic width
// (front/back) or depth (left/right), then zero.
func PlotLabels(u hierarchy.Unit) EdgeLabels {
	pick := func(specific, generic float64) float64 {
		if specific > 0 {
			return specific
		}
		if generic > 0 {
			return generic
		}
		return 0
	}
	return EdgeLabels{
		Front: pick(u.FrontLength, u.PlotWidth),
		Back:  pick(u.BackLength, u.PlotWidth),
		Left:  pick(u.LeftLength, u.PlotDepth),
		Right: pick(u.RightLength, u.PlotDepth),
	}
}

// ============================================================
// Commercial strategy
// ============================================================

// CommercialLayout places one storefront per unit on the same road grid as a
// colony. Units are never paired.
func CommercialLayout(p *hierarchy.Project, cfg Config) ([]Placement, []Road) {
	units := hierarchy.FlattenedUnits(p)
	buildings := make([]Building, len(units))
	footprints := make([]geom.Vec3, len(units))
	for i, u := range units {
		buildings[i] = Building{Kind: KindStorefront, Units: []hierarchy.Unit{u}, Slots: 1}
		footprints[i] = buildingFootprint(buildings[i], cfg)
	}

	placements, columns, rows, pitchX, pitchZ := placeOnGrid(buildings, footprints, p, cfg)
	for i := range placements {
		placements[i].Material = MaterialStore
	}
	return placements, gridRoads(columns, rows, pitchX, pitchZ, cfg.RoadWidth)
}
