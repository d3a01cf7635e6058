// Package geom holds the 2D field geometry shared by the drive, trajectory and
// autonomous packages. Distances are metres, angles radians, field origin at
// the driver-station-right corner with +x pointing downfield.
package geom

import "math"

// FieldWidth is the distance between the two long field walls.
var FieldWidth = Feet(27)

// Feet converts feet to metres.
func Feet(ft float64) float64 { return ft * 0.3048 }

// Inches converts inches to metres.
func Inches(in float64) float64 { return in * 0.0254 }

// Degrees converts degrees to a Rotation.
func Degrees(deg float64) Rotation { return Rotation(deg * math.Pi / 180) }

//Rotation is a heading in radians, counter-clockwise positive
type Rotation float64

// Normalize wraps r into (-π, π].
func (r Rotation) Normalize() Rotation {
	a := float64(r)
	if a > math.Pi || a <= -math.Pi {
		a = math.Atan2(math.Sin(a), math.Cos(a))
		if a == -math.Pi {
			a = math.Pi
		}
	}
	return Rotation(a)
}

func (r Rotation) Cos() float64 { return math.Cos(float64(r)) }
func (r Rotation) Sin() float64 { return math.Sin(float64(r)) }

// Degrees returns r in degrees.
func (r Rotation) Degrees() float64 { return float64(r) * 180 / math.Pi }

//Translation is a point or displacement on the field
type Translation struct {
	X, Y float64
}

func (t Translation) Add(o Translation) Translation { return Translation{t.X + o.X, t.Y + o.Y} }
func (t Translation) Sub(o Translation) Translation { return Translation{t.X - o.X, t.Y - o.Y} }

func (t Translation) Scale(c float64) Translation { return Translation{t.X * c, t.Y * c} }

func (t Translation) Norm() float64 { return math.Hypot(t.X, t.Y) }

// Distance is the straight-line distance between t and o.
func (t Translation) Distance(o Translation) float64 { return t.Sub(o).Norm() }

// Angle is the direction of t measured from +x.
func (t Translation) Angle() Rotation { return Rotation(math.Atan2(t.Y, t.X)) }

// Rotate rotates t about the origin.
func (t Translation) Rotate(r Rotation) Translation {
	c, s := r.Cos(), r.Sin()
	return Translation{t.X*c - t.Y*s, t.X*s + t.Y*c}
}

// Mirror reflects t across the field's long centreline.
func (t Translation) Mirror() Translation { return Translation{t.X, FieldWidth - t.Y} }

//Pose is a robot (or target) position and heading on the field
type Pose struct {
	Translation
	Heading Rotation
}

// NewPose builds a pose from metres and a heading.
func NewPose(x, y float64, heading Rotation) Pose {
	return Pose{Translation: Translation{x, y}, Heading: heading}
}

// TransformBy applies other expressed in p's frame.
func (p Pose) TransformBy(other Pose) Pose {
	return Pose{
		Translation: p.Translation.Add(other.Translation.Rotate(p.Heading)),
		Heading:     (p.Heading + other.Heading).Normalize(),
	}
}

// Inverse returns the pose that undoes p.
func (p Pose) Inverse() Pose {
	inv := -p.Heading
	return Pose{
		Translation: p.Translation.Scale(-1).Rotate(inv),
		Heading:     inv.Normalize(),
	}
}

// RelativeTo expresses p in the frame of origin.
func (p Pose) RelativeTo(origin Pose) Pose {
	return origin.Inverse().TransformBy(p)
}

// Mirror reflects p across the field's long centreline.
func (p Pose) Mirror() Pose {
	return Pose{Translation: p.Translation.Mirror(), Heading: (-p.Heading).Normalize()}
}

//Rectangle is an axis-aligned field region
type Rectangle struct {
	Min, Max Translation
}

// Contains reports whether t lies inside r, edges included.
func (r Rectangle) Contains(t Translation) bool {
	return t.X >= r.Min.X && t.X <= r.Max.X && t.Y >= r.Min.Y && t.Y <= r.Max.Y
}

// Mirror reflects r across the field's long centreline.
func (r Rectangle) Mirror() Rectangle {
	a, b := r.Min.Mirror(), r.Max.Mirror()
	return Rectangle{
		Min: Translation{math.Min(a.X, b.X), math.Min(a.Y, b.Y)},
		Max: Translation{math.Max(a.X, b.X), math.Max(a.Y, b.Y)},
	}
}
