package geom

import "math"

// ============================================================
// Vectors
// ============================================================

// Vec3 is a scene-space vector. Y is up; the ground plane is XZ.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64         { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the unit vector, or the zero vector for a zero input.
func (v Vec3) Norm() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Lerp moves v towards o by t.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// RotateY rotates v around the vertical axis by rad.
func (v Vec3) RotateY(rad float64) Vec3 {
	sin, cos := math.Sincos(rad)
	return Vec3{
		X: v.X*cos + v.Z*sin,
		Y: v.Y,
		Z: -v.X*sin + v.Z*cos,
	}
}

// ============================================================
// Boxes & rays
// ============================================================

// Box is an axis-aligned bounding box.
type Box struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// BoxAt builds the AABB of a footprint centered at pos and rotated about Y.
func BoxAt(pos, size Vec3, rotation float64) Box {
	half := size.Scale(0.5)
	sin, cos := math.Sincos(rotation)
	hx := math.Abs(half.X*cos) + math.Abs(half.Z*sin)
	hz := math.Abs(half.X*sin) + math.Abs(half.Z*cos)
	ext := Vec3{hx, half.Y, hz}
	return Box{Min: pos.Sub(ext), Max: pos.Add(ext)}
}

func (b Box) Union(o Box) Box {
	return Box{
		Min: Vec3{math.Min(b.Min.X, o.Min.X), math.Min(b.Min.Y, o.Min.Y), math.Min(b.Min.Z, o.Min.Z)},
		Max: Vec3{math.Max(b.Max.X, o.Max.X), math.Max(b.Max.Y, o.Max.Y), math.Max(b.Max.Z, o.Max.Z)},
	}
}

func (b Box) Center() Vec3 { return b.Min.Add(b.Max).Scale(0.5) }
func (b Box) Size() Vec3   { return b.Max.Sub(b.Min) }

type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// Intersect returns the entry distance of r into b using the slab method.
func (b Box) Intersect(r Ray) (float64, bool) {
	tMin, tMax := math.Inf(-1), math.Inf(1)

	origin := [3]float64{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float64{r.Dir.X, r.Dir.Y, r.Dir.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}

	for i := 0; i < 3; i++ {
		if dir[i] == 0 {
			if origin[i] < lo[i] || origin[i] > hi[i] {
				return 0, false
			}
			continue
		}
		t1 := (lo[i] - origin[i]) / dir[i]
		t2 := (hi[i] - origin[i]) / dir[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	if tMax < 0 {
		return 0, false
	}
	if tMin < 0 {
		return 0, true
	}
	return tMin, true
}

// Centered places index i of count cells on one axis around zero:
// (i - (count-1)/2) * pitch.
func Centered(index, count int, pitch float64) float64 {
	return (float64(index) - float64(count-1)/2) * pitch
}

func Clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
