package layout

import (
	"math"
	"strings"

	"propview/internal/geom"
	"propview/internal/hierarchy"
)

// ============================================================
// Placement model
// ============================================================

type Kind string

const (
	KindTowerUnit  Kind = "tower_unit"
	KindBasement   Kind = "basement"
	KindBungalow   Kind = "bungalow"
	KindTwinVilla  Kind = "twin_villa"
	KindPlot       Kind = "plot"
	KindStorefront Kind = "storefront"
)

type Material string

const (
	MaterialStandard Material = "standard"
	MaterialGround   Material = "ground"
	MaterialBasement Material = "basement"
	MaterialPlot     Material = "plot"
	MaterialVilla    Material = "villa"
	MaterialStore    Material = "store"
)

// EdgeLabels are the per-side lengths printed around a plot, in source units.
type EdgeLabels struct {
	Front float64 `json:"front"`
	Back  float64 `json:"back"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Placement positions one renderable subject. Units holds one unit, two for a
// twin villa, or every basement unit of a tower for the combined basement.
type Placement struct {
	Key       string           `json:"key"`
	Kind      Kind             `json:"kind"`
	Units     []hierarchy.Unit `json:"units"`
	Slots     int              `json:"slots"`
	TowerID   string           `json:"tower_id"`
	Floor     int              `json:"floor"`
	Position  geom.Vec3        `json:"position"`
	Rotation  float64          `json:"rotation"`
	Footprint geom.Vec3        `json:"footprint"`
	Material  Material         `json:"material"`
	Labels    *EdgeLabels      `json:"labels,omitempty"`
}

// Interactive reports whether the placement resolves pointer events to units.
func (p Placement) Interactive() bool {
	return p.Kind != KindBasement && len(p.Units) > 0
}

func (p Placement) Bounds() geom.Box {
	return geom.BoxAt(p.Position, p.Footprint, p.Rotation)
}

// Road is a flat strip between building rows or columns.
type Road struct {
	Center geom.Vec3 `json:"center"`
	Size   geom.Vec3 `json:"size"`
}

type Result struct {
	Classification hierarchy.Classification `json:"classification"`
	Placements     []Placement              `json:"placements"`
	Roads          []Road                   `json:"roads"`
	Bounds         geom.Box                 `json:"bounds"`
}

// ============================================================
// Entry point
// ============================================================

// Compute lays out a normalized project. It never mutates its input and
// returns identical output for identical input, so re-renders after a poll
// keep every unit in place.
func Compute(p *hierarchy.Project, cfg Config) Result {
	if p == nil {
		return Result{}
	}
	cfg = cfg.forProject(p)

	var res Result
	res.Classification = p.Classification
	switch p.Classification {
	case hierarchy.ClassTower:
		res.Placements = TowerLayout(p, cfg)
	case hierarchy.ClassCommercial:
		res.Placements, res.Roads = CommercialLayout(p, cfg)
	default:
		res.Placements, res.Roads = ColonyLayout(p, cfg)
	}
	res.Bounds = Bounds(res.Placements)
	return res
}

// Bounds is the union of every placement's rotated footprint.
func Bounds(placements []Placement) geom.Box {
	if len(placements) == 0 {
		return geom.Box{}
	}
	box := placements[0].Bounds()
	for _, p := range placements[1:] {
		box = box.Union(p.Bounds())
	}
	return box
}

// ============================================================
// Shared helpers
// ============================================================

// gridShape picks columns and rows for n cells. Configured values win; rows
// grow when the configured grid is too small to hold every cell.
func gridShape(n, columns, rows int) (int, int) {
	if n <= 0 {
		return 0, 0
	}
	if columns <= 0 {
		columns = int(math.Ceil(math.Sqrt(float64(n))))
	}
	if columns > n {
		columns = n
	}
	need := int(math.Ceil(float64(n) / float64(columns)))
	if rows < need {
		rows = need
	}
	return columns, rows
}

// rearFacing marks units whose number ends in A or B.
func rearFacing(unitNumber string) bool {
	s := strings.ToUpper(strings.TrimSpace(unitNumber))
	return strings.HasSuffix(s, "A") || strings.HasSuffix(s, "B")
}

func unitKey(prefix string, units []hierarchy.Unit) string {
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return prefix + ":" + strings.Join(ids, "+")
}

// gridRoads emits the perimeter and internal roads of a columns x rows grid
// of cells with the given pitch.
func gridRoads(columns, rows int, pitchX, pitchZ, road float64) []Road {
	if columns == 0 || rows == 0 || road <= 0 {
		return nil
	}

	width := float64(columns)*pitchX + road
	depth := float64(rows)*pitchZ + road

	var out []Road
	for r := 0; r <= rows; r++ {
		z := geom.Centered(r, rows+1, pitchZ)
		out = append(out, Road{
			Center: geom.Vec3{X: 0, Y: 0, Z: z},
			Size:   geom.Vec3{X: width, Y: 0, Z: road},
		})
	}
	for c := 0; c <= columns; c++ {
		x := geom.Centered(c, columns+1, pitchX)
		out = append(out, Road{
			Center: geom.Vec3{X: x, Y: 0, Z: 0},
			Size:   geom.Vec3{X: road, Y: 0, Z: depth},
		})
	}
	return out
}
