// Package auto assembles and runs autonomous routines.
//
// A routine is a command.Task tree built from precomputed paths, manipulator
// actions and relocalize steps. The Orchestrator owns the root task and drives
// it once per control cycle. Everything the routines touch on the robot comes
// in through the small interfaces below so that routines can be stepped in
// tests without hardware.
package auto

import (
	"time"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/trajectory"
)

// Drivetrain is the wheel output the routines write to.
type Drivetrain interface {
	drive.Output
}

// Localizer holds the robot's field pose estimate.
type Localizer interface {
	Pose() geom.Pose
	Reset(geom.Pose)
}

// Vision supplies the best current target estimate, if any.
type Vision interface {
	Best(front bool, now time.Time) (geom.Pose, bool)
}

// Intake drives the hatch and cargo rollers, in volts, and the intake jaws.
type Intake interface {
	SetHatch(volts float64)
	SetCargo(volts float64)
	SetOpen(open bool)
}

// Arm moves the manipulator arm to an angle in degrees.
type Arm interface {
	SetAngle(deg float64)
}

// Planner generates trajectories.
type Planner interface {
	Generate(trajectory.Request) (*trajectory.Trajectory, error)
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(trajectory.Request) (*trajectory.Trajectory, error)

func (f PlannerFunc) Generate(r trajectory.Request) (*trajectory.Trajectory, error) { return f(r) }

// Controller turns a pose error into wheel speeds.
type Controller interface {
	Calculate(robot geom.Pose, ref trajectory.State) drive.WheelVelocity
}

// Robot bundles the collaborators a routine needs. Arm may be nil.
type Robot struct {
	Drive      Drivetrain
	Localizer  Localizer
	Vision     Vision
	Intake     Intake
	Arm        Arm
	Planner    Planner
	Controller Controller
}
