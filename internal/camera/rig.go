package camera

import (
	"math"

	"propview/internal/geom"
)

// ============================================================
// Input
// ============================================================

type InputMode int

const (
	PointerInput InputMode = iota
	TouchInput
)

// Responsiveness is the damping rate per second. Touch is softer so a finger
// drag does not feel twitchy.
const (
	PointerResponsiveness = 8.0
	TouchResponsiveness   = 4.0

	DefaultSpeed     = 20.0 // metres per second
	DefaultZoomSpeed = 30.0
)

type Control int

const (
	Up Control = iota
	Down
	Left
	Right
	ZoomIn
	ZoomOut
)

type Inputs struct {
	Up      bool
	Down    bool
	Left    bool
	Right   bool
	ZoomIn  bool
	ZoomOut bool
}

// ============================================================
// Rig
// ============================================================

// Rig moves an Orbit with damped velocity. It has no goroutines: the owner
// calls Update once per frame.
type Rig struct {
	Orbit          Orbit
	Velocity       geom.Vec3
	Inputs         Inputs
	Responsiveness float64
	Speed          float64
	ZoomSpeed      float64
}

func NewRig(orbit Orbit, mode InputMode) *Rig {
	r := &Rig{
		Orbit:          orbit,
		Responsiveness: PointerResponsiveness,
		Speed:          DefaultSpeed,
		ZoomSpeed:      DefaultZoomSpeed,
	}
	if mode == TouchInput {
		r.Responsiveness = TouchResponsiveness
	}
	return r
}

func (r *Rig) Press(c Control)   { r.set(c, true) }
func (r *Rig) Release(c Control) { r.set(c, false) }

// ReleaseAll drops every held control, e.g. when the window loses focus.
func (r *Rig) ReleaseAll() { r.Inputs = Inputs{} }

func (r *Rig) set(c Control, down bool) {
	switch c {
	case Up:
		r.Inputs.Up = down
	case Down:
		r.Inputs.Down = down
	case Left:
		r.Inputs.Left = down
	case Right:
		r.Inputs.Right = down
	case ZoomIn:
		r.Inputs.ZoomIn = down
	case ZoomOut:
		r.Inputs.ZoomOut = down
	}
}

// TargetVelocity is the velocity the held inputs ask for.
func (r *Rig) TargetVelocity() geom.Vec3 {
	forward, right := r.Orbit.horizontal()

	var pan geom.Vec3
	if r.Inputs.Up {
		pan = pan.Add(forward)
	}
	if r.Inputs.Down {
		pan = pan.Sub(forward)
	}
	if r.Inputs.Right {
		pan = pan.Add(right)
	}
	if r.Inputs.Left {
		pan = pan.Sub(right)
	}
	v := pan.Norm().Scale(r.Speed)

	zoom := 0.0
	if r.Inputs.ZoomIn {
		zoom++
	}
	if r.Inputs.ZoomOut {
		zoom--
	}
	return v.Add(r.Orbit.LookDir().Scale(zoom * r.ZoomSpeed))
}

// Update advances the rig by dt seconds. It runs every frame whether or not
// a control is held so velocity keeps easing out after release.
func (r *Rig) Update(dt float64) {
	if dt <= 0 {
		return
	}

	alpha := 1 - math.Exp(-r.Responsiveness*dt)
	r.Velocity = r.Velocity.Add(r.TargetVelocity().Sub(r.Velocity).Scale(alpha))

	step := r.Velocity.Scale(dt)
	r.Orbit.Position = r.Orbit.Position.Add(step)
	r.Orbit.Target = r.Orbit.Target.Add(step)
}

// Frame re-aims the rig at bounds and stops any residual motion.
func (r *Rig) Frame(bounds geom.Box) {
	r.Orbit = Frame(bounds, r.Orbit)
	r.Velocity = geom.Vec3{}
}

// ============================================================
// Tour
// ============================================================

// Tour drives a rig through a fixed sequence of controls, holding each one
// for Hold seconds and wrapping at the end.
type Tour struct {
	Controls []Control
	Hold     float64

	elapsed float64
	held    int
	pressed bool
}

func NewTour(hold float64, controls ...Control) *Tour {
	return &Tour{Controls: controls, Hold: hold}
}

// Step presses the control due at the current time and advances the rig by
// dt seconds.
func (t *Tour) Step(r *Rig, dt float64) {
	if len(t.Controls) > 0 && t.Hold > 0 {
		due := int(t.elapsed/t.Hold) % len(t.Controls)
		if !t.pressed || due != t.held {
			if t.pressed {
				r.Release(t.Controls[t.held])
			}
			r.Press(t.Controls[due])
			t.held, t.pressed = due, true
		}
	}
	r.Update(dt)
	t.elapsed += dt
}

// Stop releases the held control. The rig keeps easing out on later updates.
func (t *Tour) Stop(r *Rig) {
	if t.pressed {
		r.Release(t.Controls[t.held])
		t.pressed = false
	}
}
