package scene

import (
	"fmt"
	"math"
	"strings"

	"propview/internal/geom"
	"propview/internal/hierarchy"
	"propview/internal/layout"
)

// ============================================================
// Compositions
// ============================================================

func compose(p layout.Placement, state State) []Primitive {
	switch p.Kind {
	case layout.KindTowerUnit:
		return composeTowerUnit(p, state)
	case layout.KindBasement:
		return composeBasement(p)
	case layout.KindBungalow, layout.KindTwinVilla:
		return composeHouse(p, state)
	case layout.KindPlot:
		return composePlot(p, state)
	case layout.KindStorefront:
		return composeStorefront(p, state)
	}
	return nil
}

// local converts an offset in the placement's frame to scene coordinates.
func local(p layout.Placement, offset geom.Vec3) geom.Vec3 {
	return p.Position.Add(offset.RotateY(p.Rotation))
}

func selected(u hierarchy.Unit, state State) bool {
	return state.SelectedUnitID != "" && u.ID == state.SelectedUnitID
}

func composeTowerUnit(p layout.Placement, state State) []Primitive {
	if len(p.Units) == 0 {
		return nil
	}
	u := p.Units[0]
	return []Primitive{{
		Shape:    ShapeBox,
		Center:   p.Position,
		Size:     p.Footprint,
		Rotation: p.Rotation,
		Color:    unitColor(u, state),
		Material: p.Material,
		Unit:     unitRef(u),
		Selected: selected(u, state),
	}}
}

func composeBasement(p layout.Placement) []Primitive {
	return []Primitive{{
		Shape:    ShapeBox,
		Center:   p.Position,
		Size:     p.Footprint,
		Color:    colorBasement,
		Material: layout.MaterialBasement,
	}}
}

// composeHouse draws a bungalow or twin villa. Each slot gets a body, a porch
// and two windows; twin slots mirror each other and share one roof. An empty
// slot is drawn as a lot outline only.
func composeHouse(p layout.Placement, state State) []Primitive {
	slots := p.Slots
	if slots < 1 {
		slots = 1
	}
	slotW := p.Footprint.X / float64(slots)
	depth := p.Footprint.Z
	bodyH := p.Footprint.Y * 0.7
	roofH := p.Footprint.Y - bodyH
	baseY := -p.Footprint.Y / 2

	var out []Primitive
	for i := 0; i < slots; i++ {
		cx := geom.Centered(i, slots, slotW)

		if i >= len(p.Units) {
			out = append(out, Primitive{
				Shape:    ShapeOutline,
				Center:   local(p, geom.Vec3{X: cx, Y: baseY}),
				Size:     geom.Vec3{X: slotW * 0.9, Y: 0.02, Z: depth * 0.9},
				Rotation: p.Rotation,
				Color:    colorBorder,
			})
			continue
		}

		u := p.Units[i]
		color := unitColor(u, state)
		out = append(out, Primitive{
			Shape:    ShapeBox,
			Center:   local(p, geom.Vec3{X: cx, Y: baseY + bodyH/2}),
			Size:     geom.Vec3{X: slotW * 0.9, Y: bodyH, Z: depth * 0.8},
			Rotation: p.Rotation,
			Color:    color,
			Material: p.Material,
			Unit:     unitRef(u),
			Selected: selected(u, state),
		})

		// mirror the porch for the right half of a twin
		porchX := cx - slotW*0.2
		if slots == 2 && i == 1 {
			porchX = cx + slotW*0.2
		}
		out = append(out, Primitive{
			Shape:    ShapeBox,
			Center:   local(p, geom.Vec3{X: porchX, Y: baseY + 0.15, Z: depth * 0.45}),
			Size:     geom.Vec3{X: slotW * 0.35, Y: 0.3, Z: depth * 0.1},
			Rotation: p.Rotation,
			Color:    colorPorch,
		})

		for _, wx := range []float64{-slotW * 0.25, slotW * 0.25} {
			out = append(out, Primitive{
				Shape:    ShapePanel,
				Center:   local(p, geom.Vec3{X: cx + wx, Y: baseY + bodyH*0.6, Z: depth*0.4 + 0.01}),
				Size:     geom.Vec3{X: slotW * 0.15, Y: bodyH * 0.25, Z: 0.02},
				Rotation: p.Rotation,
				Color:    colorWindow,
			})
		}

		if slots == 1 || p.Kind != layout.KindTwinVilla {
			out = append(out, Primitive{
				Shape:    ShapeRoof,
				Center:   local(p, geom.Vec3{X: cx, Y: baseY + bodyH + roofH/2}),
				Size:     geom.Vec3{X: slotW, Y: roofH, Z: depth * 0.9},
				Rotation: p.Rotation,
				Color:    colorRoof,
				Unit:     unitRef(u),
			})
		}
	}

	if p.Kind == layout.KindTwinVilla {
		out = append(out, Primitive{
			Shape:    ShapeRoof,
			Center:   local(p, geom.Vec3{Y: baseY + bodyH + roofH/2}),
			Size:     geom.Vec3{X: p.Footprint.X, Y: roofH, Z: depth * 0.9},
			Rotation: p.Rotation,
			Color:    colorRoof,
		})
	}
	return out
}

func composePlot(p layout.Placement, state State) []Primitive {
	if len(p.Units) == 0 {
		return nil
	}
	u := p.Units[0]

	out := []Primitive{
		{
			Shape:    ShapeOutline,
			Center:   p.Position,
			Size:     geom.Vec3{X: p.Footprint.X + 0.4, Y: p.Footprint.Y / 2, Z: p.Footprint.Z + 0.4},
			Rotation: p.Rotation,
			Color:    colorBorder,
		},
		{
			Shape:    ShapePanel,
			Center:   p.Position,
			Size:     p.Footprint,
			Rotation: p.Rotation,
			Color:    unitColor(u, state),
			Material: layout.MaterialPlot,
			Unit:     unitRef(u),
			Selected: selected(u, state),
		},
	}

	out = append(out, Primitive{
		Shape:  ShapeLabel,
		Center: p.Position.Add(geom.Vec3{Y: 2}),
		Color:  colorLabel,
		Text:   plotLabel(u, p.Labels),
	})
	return out
}

func plotLabel(u hierarchy.Unit, labels *layout.EdgeLabels) string {
	text := u.UnitNumber
	if labels == nil {
		return text
	}

	var sides []string
	for _, side := range []struct {
		name string
		v    float64
	}{
		{"F", labels.Front},
		{"B", labels.Back},
		{"L", labels.Left},
		{"R", labels.Right},
	} {
		if side.v > 0 {
			sides = append(sides, fmt.Sprintf("%s %s'", side.name, formatFloat(side.v)))
		}
	}
	if len(sides) == 0 {
		return text
	}
	return text + "\n" + strings.Join(sides, " · ")
}

const storeGlassHeight = 3.5

func composeStorefront(p layout.Placement, state State) []Primitive {
	if len(p.Units) == 0 {
		return nil
	}
	u := p.Units[0]

	// glazing covers the ground floor only
	glassH := math.Min(p.Footprint.Y, storeGlassHeight)

	return []Primitive{
		{
			Shape:    ShapeBox,
			Center:   p.Position,
			Size:     p.Footprint,
			Rotation: p.Rotation,
			Color:    unitColor(u, state),
			Material: layout.MaterialStore,
			Unit:     unitRef(u),
			Selected: selected(u, state),
		},
		{
			Shape:    ShapeGlass,
			Center:   local(p, geom.Vec3{Y: -p.Footprint.Y/2 + glassH/2, Z: p.Footprint.Z/2 + 0.01}),
			Size:     geom.Vec3{X: p.Footprint.X * 0.85, Y: glassH * 0.8, Z: 0.02},
			Rotation: p.Rotation,
			Color:    colorGlass,
		},
	}
}
