package auto

import (
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/trajectory"
)

// Field landmarks for a right-side start. Left-side routines mirror them.
// Scoring targets carry the heading the robot faces when it scores on them
// with its front.
var (
	SideStart         = geom.NewPose(geom.Feet(5.5), geom.Feet(9.25), 0)
	SideStartReversed = geom.NewPose(geom.Feet(5.5), geom.Feet(9.25), geom.Degrees(180))
	CenterStart       = geom.NewPose(geom.Feet(5.5), geom.Feet(13.5), 0)

	// RocketN and RocketF are the near and far hatch ports on the rocket.
	RocketN = geom.NewPose(geom.Feet(17.36), geom.Feet(2.84), geom.Degrees(-28.75))
	RocketF = geom.NewPose(geom.Feet(24.15), geom.Feet(2.97), geom.Degrees(-151.25))

	LoadingStation = geom.NewPose(geom.Feet(1.5), geom.Feet(2.25), geom.Degrees(180))

	// HabitatL1Platform is the raised starting platform; the robot drives
	// slowly until it is off it.
	HabitatL1Platform = geom.Rectangle{
		Min: geom.Translation{X: geom.Feet(4), Y: geom.Feet(7)},
		Max: geom.Translation{X: geom.Feet(8), Y: geom.Feet(20)},
	}
)

// scoringStandoff is the distance from a target to the robot centre when the
// intake touches it.
var scoringStandoff = geom.Inches(20)

// approach is where the robot centre stops to score on target, backed off a
// further extra metres along the line of approach.
func approach(target geom.Pose, extra float64) geom.Pose {
	return target.TransformBy(geom.NewPose(-(scoringStandoff + extra), 0, 0))
}

// PathConfig holds the speed limits used when generating routine paths.
type PathConfig struct {
	MaxVelocity              float64 `koanf:"max_velocity"`
	MaxAcceleration          float64 `koanf:"max_acceleration"`
	MaxVoltage               float64 `koanf:"max_voltage"`
	MaxCentripetal           float64 `koanf:"max_centripetal"`
	HabitatVelocity          float64 `koanf:"habitat_velocity"`
	ApproachRadius           float64 `koanf:"approach_radius"`
	ApproachVelocity         float64 `koanf:"approach_velocity"`
	FirstPathMaxAcceleration float64 `koanf:"first_path_max_acceleration"`
}

// DefaultPathConfig matches the competition tuning.
func DefaultPathConfig() PathConfig {
	return PathConfig{
		MaxVelocity:              geom.Feet(12),
		MaxAcceleration:          geom.Feet(6),
		MaxVoltage:               10,
		MaxCentripetal:           geom.Feet(9),
		HabitatVelocity:          geom.Feet(3),
		ApproachRadius:           geom.Feet(3),
		ApproachVelocity:         geom.Feet(3),
		FirstPathMaxAcceleration: geom.Feet(6),
	}
}

// constraints slows the robot in turns, on the habitat platform and close to
// the path's end.
func (c PathConfig) constraints(end geom.Pose) []trajectory.Constraint {
	return []trajectory.Constraint{
		trajectory.CentripetalAcceleration{Max: c.MaxCentripetal},
		trajectory.VelocityLimitRadius{Center: end.Translation, Radius: c.ApproachRadius, Max: c.ApproachVelocity},
		trajectory.VelocityLimitRegion{Region: HabitatL1Platform, Max: c.HabitatVelocity},
	}
}

func (c PathConfig) request(reversed bool, waypoints ...geom.Pose) trajectory.Request {
	return trajectory.Request{
		Waypoints:       waypoints,
		Constraints:     c.constraints(waypoints[len(waypoints)-1]),
		MaxVelocity:     c.MaxVelocity,
		MaxAcceleration: c.MaxAcceleration,
		MaxVoltage:      c.MaxVoltage,
		Reversed:        reversed,
	}
}
