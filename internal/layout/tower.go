package layout

import (
	"fmt"
	"math"

	"propview/internal/geom"
	"propview/internal/hierarchy"
)

// ============================================================
// Tower strategy
// ============================================================

type towerGrid struct {
	columns int
	rows    int
	width   float64
	depth   float64
}

// TowerLayout stacks each tower's floors vertically and spreads the towers
// along X. Negative floors collapse into one basement volume per tower.
func TowerLayout(p *hierarchy.Project, cfg Config) []Placement {
	grids := make([]towerGrid, len(p.Towers))
	spacing := cfg.TowerSpacing
	for i, tower := range p.Towers {
		grids[i] = towerGridFor(tower, p, cfg)
		if min := grids[i].width + cfg.RoadWidth; min > spacing {
			spacing = min
		}
	}

	var out []Placement
	for i, tower := range p.Towers {
		origin := geom.Vec3{X: geom.Centered(i, len(p.Towers), spacing)}
		out = append(out, placeTower(tower, grids[i], origin, cfg)...)
	}
	return out
}

func towerGridFor(tower hierarchy.Tower, p *hierarchy.Project, cfg Config) towerGrid {
	widest := 0
	for _, floor := range floorsOf(tower) {
		if floor.Floor >= 0 && len(floor.Units) > widest {
			widest = len(floor.Units)
		}
	}

	columns := tower.LayoutColumns
	if columns <= 0 {
		columns = p.Columns
	}
	rows := tower.LayoutRows
	if rows <= 0 {
		rows = p.Rows
	}
	columns, rows = gridShape(widest, columns, rows)
	if columns == 0 {
		columns, rows = 1, 1
	}

	pitch := cfg.UnitSize + cfg.UnitGap
	return towerGrid{
		columns: columns,
		rows:    rows,
		width:   float64(columns)*pitch - cfg.UnitGap,
		depth:   float64(rows)*pitch - cfg.UnitGap,
	}
}

func placeTower(tower hierarchy.Tower, grid towerGrid, origin geom.Vec3, cfg Config) []Placement {
	var out []Placement
	var basement []hierarchy.Unit
	pitch := cfg.UnitSize + cfg.UnitGap

	for _, floor := range floorsOf(tower) {
		if floor.Floor < 0 {
			basement = append(basement, floor.Units...)
			continue
		}

		material := MaterialStandard
		if floor.Floor == 0 {
			material = MaterialGround
		}
		y := float64(floor.Floor)*cfg.FloorHeight + cfg.FloorHeight/2

		columns, rows := grid.columns, grid.rows
		if need := (len(floor.Units) + columns - 1) / columns; need > rows {
			rows = need
		}
		for i, u := range floor.Units {
			col, row := i%columns, i/columns
			rotation := 0.0
			if rearFacing(u.UnitNumber) {
				rotation = math.Pi
			}
			out = append(out, Placement{
				Key:     unitKey("unit", []hierarchy.Unit{u}),
				Kind:    KindTowerUnit,
				Units:   []hierarchy.Unit{u},
				Slots:   1,
				TowerID: tower.ID,
				Floor:   floor.Floor,
				Position: origin.Add(geom.Vec3{
					X: geom.Centered(col, columns, pitch),
					Y: y,
					Z: geom.Centered(row, rows, pitch),
				}),
				Rotation:  rotation,
				Footprint: geom.Vec3{X: cfg.UnitSize, Y: cfg.FloorHeight, Z: cfg.UnitSize},
				Material:  material,
			})
		}
	}

	if len(basement) > 0 {
		levels := 0
		seen := map[int]bool{}
		for _, u := range basement {
			if !seen[u.FloorNumber] {
				seen[u.FloorNumber] = true
				levels++
			}
		}
		height := float64(levels) * cfg.BasementHeight
		out = append(out, Placement{
			Key:       fmt.Sprintf("basement:%s", tower.ID),
			Kind:      KindBasement,
			Units:     basement,
			TowerID:   tower.ID,
			Floor:     -1,
			Position:  origin.Add(geom.Vec3{Y: -height / 2}),
			Footprint: geom.Vec3{X: grid.width, Y: height, Z: grid.depth},
			Material:  MaterialBasement,
		})
	}

	return out
}

func floorsOf(tower hierarchy.Tower) []hierarchy.FloorUnits {
	p := &hierarchy.Project{Towers: []hierarchy.Tower{tower}}
	return hierarchy.UnitsByFloor(p, tower.ID)
}
