package scene

import (
	"math"

	"propview/internal/geom"
	"propview/internal/hierarchy"
)

// ============================================================
// Hit testing
// ============================================================

type Hit struct {
	Unit      hierarchy.Unit
	GroupKey  string
	Distance  float64
	Clickable bool
}

// Pick returns the nearest interactive primitive along the ray. Booked units
// are still hit, so they occlude what is behind them, but come back with
// Clickable false.
func Pick(s *Scene, ray geom.Ray) (Hit, bool) {
	if s == nil {
		return Hit{}, false
	}

	best := Hit{Distance: math.Inf(1)}
	found := false
	for _, g := range s.Groups {
		for _, p := range g.Primitives {
			if !p.Interactive() {
				continue
			}
			d, ok := p.Bounds().Intersect(ray)
			if !ok || d >= best.Distance {
				continue
			}
			best = Hit{
				Unit:      *p.Unit,
				GroupKey:  g.Key,
				Distance:  d,
				Clickable: p.Clickable(),
			}
			found = true
		}
	}
	return best, found
}

// Click resolves a pointer press to a unit that may receive it.
func Click(s *Scene, ray geom.Ray) (hierarchy.Unit, bool) {
	hit, ok := Pick(s, ray)
	if !ok || !hit.Clickable {
		return hierarchy.Unit{}, false
	}
	return hit.Unit, true
}

// Hover returns the state with the hover set to whatever the ray touches.
// Only Available units get the hover highlight; others clear it.
func Hover(s *Scene, ray geom.Ray, state State) State {
	state.HoverUnitID = ""
	if hit, ok := Pick(s, ray); ok && hit.Unit.Status == hierarchy.StatusAvailable {
		state.HoverUnitID = hit.Unit.ID
	}
	return state
}
