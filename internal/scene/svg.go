package scene

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"propview/internal/geom"
	"propview/internal/layout"
)

// ============================================================
// Site plan renderer
// ============================================================

const (
	svgMargin = 10.0
	svgScale  = 8.0 // pixels per scene metre
)

type point struct {
	X float64
	Y float64
}

// RenderSVG draws a top-down site plan of a layout: roads, then every
// placement as a rotated rectangle in its status color with its unit number.
func RenderSVG(res layout.Result, state State) (string, error) {
	if len(res.Placements) == 0 {
		return "", fmt.Errorf("layout has no placements")
	}

	bounds := res.Bounds
	for _, road := range res.Roads {
		bounds = bounds.Union(geom.BoxAt(road.Center, road.Size, 0))
	}
	width, height := planSize(bounds)

	var elements []string
	elements = append(elements, renderRoads(res.Roads, bounds)...)
	elements = append(elements, renderPlacements(res.Placements, bounds, state)...)

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		formatFloat(width), formatFloat(height), formatFloat(width), formatFloat(height)))
	builder.WriteString("\n")

	for _, elem := range elements {
		builder.WriteString("  ")
		builder.WriteString(elem)
		builder.WriteString("\n")
	}

	builder.WriteString(`</svg>`)
	return builder.String(), nil
}

func planSize(bounds geom.Box) (float64, float64) {
	size := bounds.Size()
	width := size.X*svgScale + 2*svgMargin
	height := size.Z*svgScale + 2*svgMargin
	if width <= 2*svgMargin {
		width = 1000
	}
	if height <= 2*svgMargin {
		height = 1000
	}
	return width, height
}

// toPlan maps scene XZ onto SVG pixels.
func toPlan(v geom.Vec3, bounds geom.Box) point {
	return point{
		X: (v.X-bounds.Min.X)*svgScale + svgMargin,
		Y: (v.Z-bounds.Min.Z)*svgScale + svgMargin,
	}
}

// ============================================================
// Element renderers
// ============================================================

func renderRoads(roads []layout.Road, bounds geom.Box) []string {
	var out []string
	for _, road := range roads {
		points := rectanglePoints(toPlan(road.Center, bounds), road.Size.X*svgScale, road.Size.Z*svgScale, 0)
		out = append(out, polygon("", points, colorRoad, "none", ""))
	}
	return out
}

func renderPlacements(placements []layout.Placement, bounds geom.Box, state State) []string {
	// a site plan shows each tower's ground footprint: its lowest
	// above-ground floor, not the roof seen from above
	ground := map[string]int{}
	for _, p := range placements {
		if p.Kind != layout.KindTowerUnit {
			continue
		}
		if f, ok := ground[p.TowerID]; !ok || p.Floor < f {
			ground[p.TowerID] = p.Floor
		}
	}

	var out []string
	for _, p := range placements {
		switch p.Kind {
		case layout.KindBasement:
			continue
		case layout.KindTowerUnit:
			if p.Floor != ground[p.TowerID] {
				continue
			}
		}

		slots := max(p.Slots, 1)
		slotW := p.Footprint.X / float64(slots)
		rotationDeg := -p.Rotation * 180 / math.Pi

		for i := 0; i < slots; i++ {
			offset := geom.Vec3{X: geom.Centered(i, slots, slotW)}.RotateY(p.Rotation)
			slotCenter := toPlan(p.Position.Add(offset), bounds)
			points := rectanglePoints(slotCenter, slotW*svgScale, p.Footprint.Z*svgScale, rotationDeg)

			if i >= len(p.Units) {
				out = append(out, polygon("", points, "none", colorBorder, "4 2"))
				continue
			}

			u := p.Units[i]
			stroke := "#000"
			if state.SelectedUnitID == u.ID {
				stroke = ColorHover
			}
			out = append(out, polygon(u.ID, points, unitColor(u, state), stroke, ""))
			out = append(out, text(slotCenter, u.UnitNumber))
		}
	}

	return out
}

func polygon(id string, points []point, fill, stroke, dash string) string {
	var path strings.Builder
	path.WriteString(`<path`)
	if id != "" {
		path.WriteString(` id="`)
		path.WriteString(html.EscapeString(id))
		path.WriteString(`"`)
	}
	path.WriteString(` d="M `)
	path.WriteString(formatPoint(points[0]))
	for _, p := range points[1:] {
		path.WriteString(" L ")
		path.WriteString(formatPoint(p))
	}
	path.WriteString(` Z" fill="`)
	path.WriteString(fill)
	path.WriteString(`" stroke="`)
	path.WriteString(stroke)
	path.WriteString(`"`)
	if dash != "" {
		path.WriteString(` stroke-dasharray="`)
		path.WriteString(dash)
		path.WriteString(`"`)
	}
	path.WriteString(` />`)
	return path.String()
}

func text(at point, label string) string {
	return fmt.Sprintf(`<text x="%s" y="%s" font-size="10" text-anchor="middle" dominant-baseline="middle">%s</text>`,
		formatFloat(at.X), formatFloat(at.Y), html.EscapeString(label))
}

// ============================================================
// Geometry helpers
// ============================================================

func rectanglePoints(c point, width, height, rotationDeg float64) []point {
	halfW := width / 2
	halfH := height / 2

	points := []point{
		{X: c.X - halfW, Y: c.Y - halfH},
		{X: c.X + halfW, Y: c.Y - halfH},
		{X: c.X + halfW, Y: c.Y + halfH},
		{X: c.X - halfW, Y: c.Y + halfH},
	}

	if rotationDeg == 0 {
		return points
	}

	rad := rotationDeg * math.Pi / 180
	sin := math.Sin(rad)
	cos := math.Cos(rad)

	for i, p := range points {
		dx := p.X - c.X
		dy := p.Y - c.Y
		points[i] = point{
			X: c.X + dx*cos - dy*sin,
			Y: c.Y + dx*sin + dy*cos,
		}
	}

	return points
}

// ============================================================
// Formatting helpers
// ============================================================

func formatFloat(val float64) string {
	return strconv.FormatFloat(math.Round(val*100)/100, 'f', -1, 64)
}

func formatPoint(p point) string {
	return formatFloat(p.X) + " " + formatFloat(p.Y)
}
