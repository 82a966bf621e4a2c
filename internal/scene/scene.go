package scene

import (
	"propview/internal/geom"
	"propview/internal/hierarchy"
	"propview/internal/layout"
)

// ============================================================
// Palette
// ============================================================

const (
	ColorAvailable = "#22c55e"
	ColorLocked    = "#f59e0b"
	ColorBooked    = "#ef4444"
	ColorHover     = "#38bdf8"

	colorRoof     = "#8b5e3c"
	colorPorch    = "#d6d3d1"
	colorWindow   = "#bfdbfe"
	colorGlass    = "#93c5fd"
	colorBasement = "#6b7280"
	colorRoad     = "#374151"
	colorBorder   = "#f5f5f4"
	colorLabel    = "#111827"
)

// StatusColor is the primary color of a unit in the given status.
func StatusColor(s hierarchy.Status) string {
	switch s {
	case hierarchy.StatusAvailable:
		return ColorAvailable
	case hierarchy.StatusLocked:
		return ColorLocked
	default:
		return ColorBooked
	}
}

// ============================================================
// Scene graph
// ============================================================

type Shape string

const (
	ShapeBox     Shape = "box"
	ShapeRoof    Shape = "roof"
	ShapePanel   Shape = "panel"
	ShapeGlass   Shape = "glass"
	ShapeLabel   Shape = "label"
	ShapeOutline Shape = "outline"
)

// Primitive is one drawable piece. Interactive primitives carry the unit
// they stand for so a pointer hit resolves to a concrete identity.
type Primitive struct {
	Shape    Shape           `json:"shape"`
	Center   geom.Vec3       `json:"center"`
	Size     geom.Vec3       `json:"size"`
	Rotation float64         `json:"rotation"`
	Color    string          `json:"color"`
	Material layout.Material `json:"material,omitempty"`
	Text     string          `json:"text,omitempty"`
	Unit     *hierarchy.Unit `json:"unit,omitempty"`
	Selected bool            `json:"selected,omitempty"`
}

func (p Primitive) Interactive() bool {
	return p.Unit != nil
}

// Clickable is false for booked units: they still occlude picks behind them.
func (p Primitive) Clickable() bool {
	return p.Unit != nil && p.Unit.Clickable()
}

func (p Primitive) Bounds() geom.Box {
	return geom.BoxAt(p.Center, p.Size, p.Rotation)
}

type Group struct {
	Key        string      `json:"key"`
	Kind       layout.Kind `json:"kind"`
	Primitives []Primitive `json:"primitives"`
}

type Scene struct {
	Classification hierarchy.Classification `json:"classification"`
	Groups         []Group                  `json:"groups"`
	Roads          []Primitive              `json:"roads"`
	Bounds         geom.Box                 `json:"bounds"`
}

// State is the UI state the renderer reads. It is passed in explicitly on
// every build.
type State struct {
	HoverUnitID    string `json:"hover_unit_id"`
	SelectedUnitID string `json:"selected_unit_id"`
}

// ============================================================
// Build
// ============================================================

// Build turns placements into a scene. Missing optional geometry has already
// been defaulted by the layout engine, so Build never fails.
func Build(res layout.Result, state State) *Scene {
	s := &Scene{
		Classification: res.Classification,
		Bounds:         res.Bounds,
	}

	for _, road := range res.Roads {
		s.Roads = append(s.Roads, Primitive{
			Shape:  ShapePanel,
			Center: road.Center,
			Size:   geom.Vec3{X: road.Size.X, Y: 0.05, Z: road.Size.Z},
			Color:  colorRoad,
		})
	}

	for _, p := range res.Placements {
		s.Groups = append(s.Groups, Group{
			Key:        p.Key,
			Kind:       p.Kind,
			Primitives: compose(p, state),
		})
	}
	return s
}

// unitColor applies the hover highlight, which only Available units get.
func unitColor(u hierarchy.Unit, state State) string {
	if state.HoverUnitID != "" && u.ID == state.HoverUnitID && u.Status == hierarchy.StatusAvailable {
		return ColorHover
	}
	return StatusColor(u.Status)
}

func unitRef(u hierarchy.Unit) *hierarchy.Unit {
	c := u
	return &c
}

// Units lists every unit reachable through an interactive primitive.
func (s *Scene) Units() []hierarchy.Unit {
	seen := map[string]bool{}
	var out []hierarchy.Unit
	for _, g := range s.Groups {
		for _, p := range g.Primitives {
			if p.Unit == nil || seen[p.Unit.ID] {
				continue
			}
			seen[p.Unit.ID] = true
			out = append(out, *p.Unit)
		}
	}
	return out
}
