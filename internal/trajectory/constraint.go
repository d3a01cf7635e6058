package trajectory

import (
	"math"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
)

// Constraint caps the speed at a point on the path.
type Constraint interface {
	MaxVelocity(pose geom.Pose, curvature float64) float64
}

// CentripetalAcceleration limits v²·|k|, slowing the robot through tight
// turns.
type CentripetalAcceleration struct {
	Max float64
}

func (c CentripetalAcceleration) MaxVelocity(_ geom.Pose, curvature float64) float64 {
	k := math.Abs(curvature)
	if k < 1e-9 {
		return math.Inf(1)
	}
	return math.Sqrt(c.Max / k)
}

// VelocityLimitRadius caps speed within Radius of Center.
type VelocityLimitRadius struct {
	Center geom.Translation
	Radius float64
	Max    float64
}

func (c VelocityLimitRadius) MaxVelocity(pose geom.Pose, _ float64) float64 {
	if pose.Translation.Distance(c.Center) <= c.Radius {
		return c.Max
	}
	return math.Inf(1)
}

// VelocityLimitRegion caps speed inside a rectangle.
type VelocityLimitRegion struct {
	Region geom.Rectangle
	Max    float64
}

func (c VelocityLimitRegion) MaxVelocity(pose geom.Pose, _ float64) float64 {
	if c.Region.Contains(pose.Translation) {
		return c.Max
	}
	return math.Inf(1)
}
