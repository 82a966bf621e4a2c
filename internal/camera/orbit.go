package camera

import (
	"math"

	"propview/internal/geom"
)

// FieldOfView is the vertical field of view in degrees. Zoom never changes it.
const FieldOfView = 50.0

var up = geom.Vec3{Y: 1}

// Orbit is an inspection camera: an eye position looking at a target.
type Orbit struct {
	Position geom.Vec3 `json:"position"`
	Target   geom.Vec3 `json:"target"`
}

func DefaultOrbit() Orbit {
	return Orbit{
		Position: geom.Vec3{Y: 40, Z: 60},
	}
}

func (o Orbit) LookDir() geom.Vec3 {
	return o.Target.Sub(o.Position).Norm()
}

func (o Orbit) Distance() float64 {
	return o.Target.Sub(o.Position).Len()
}

// horizontal returns the forward and right vectors of the camera projected
// onto the ground plane.
func (o Orbit) horizontal() (geom.Vec3, geom.Vec3) {
	look := o.LookDir()
	forward := geom.Vec3{X: look.X, Z: look.Z}
	if forward.Len() < 1e-9 {
		forward = geom.Vec3{Z: -1}
	}
	forward = forward.Norm()
	return forward, forward.Cross(up).Norm()
}

// Frame aims an orbit at the center of bounds from far enough back that the
// whole box fits in view, keeping the current viewing direction when there
// is one.
func Frame(bounds geom.Box, from Orbit) Orbit {
	center := bounds.Center()
	radius := math.Max(bounds.Size().Len()/2, 5)
	distance := radius / math.Sin(FieldOfView*math.Pi/360) * 1.1

	back := from.Position.Sub(from.Target)
	if back.Len() < 1e-9 {
		back = DefaultOrbit().Position
	}

	return Orbit{
		Position: center.Add(back.Norm().Scale(distance)),
		Target:   center,
	}
}
