package auto

import (
	"math"
	"time"

	"github.com/felixge/pidctrl"
	"go.uber.org/zap"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/command"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/metrics"
)

// Relocalize corrects the pose estimate from a sighting of a target whose
// true field pose is known. With no target in view it does nothing.
type Relocalize struct {
	target geom.Pose
	front  bool
	loc    Localizer
	vision Vision
	log    *zap.Logger

	applied bool
}

// NewRelocalize looks for target with the front or back camera. Pass the
// already-mirrored target for left starts.
func NewRelocalize(target geom.Pose, front bool, r Robot, log *zap.Logger) *Relocalize {
	return &Relocalize{target: target, front: front, loc: r.Localizer, vision: r.Vision, log: log}
}

// Applied reports whether the last run changed the estimate.
func (t *Relocalize) Applied() bool { return t.applied }

func (t *Relocalize) Start(now time.Time) {
	t.applied = false
	measured, ok := t.vision.Best(t.front, now)
	if !ok {
		metrics.Relocalizations.WithLabelValues("no_target").Inc()
		t.log.Info("relocalize skipped, no target", zap.Bool("front", t.front))
		return
	}

	// where the robot sits relative to the target, carried over to where the
	// target really is
	robot := t.loc.Pose()
	corrected := t.target.TransformBy(robot.RelativeTo(measured))
	t.loc.Reset(corrected)
	t.applied = true

	metrics.Relocalizations.WithLabelValues("applied").Inc()
	t.log.Info("relocalized",
		zap.Float64("from_x", robot.X), zap.Float64("from_y", robot.Y),
		zap.Float64("to_x", corrected.X), zap.Float64("to_y", corrected.Y),
		zap.Float64("heading_deg", corrected.Heading.Degrees()),
	)
}

func (t *Relocalize) Poll(time.Time) bool { return true }
func (t *Relocalize) End(time.Time, bool) {}

// nominalPeriod stands in for the cycle time on the first poll after Start.
const nominalPeriod = 20 * time.Millisecond

// TurnConfig tunes TurnInPlace.
type TurnConfig struct {
	P         float64 `koanf:"p"`
	I         float64 `koanf:"i"`
	D         float64 `koanf:"d"`
	MaxOutput float64 `koanf:"max_output"`
	// Tolerance is in degrees.
	Tolerance float64 `koanf:"tolerance"`
}

// DefaultTurnConfig is tuned for the competition drivetrain on carpet.
func DefaultTurnConfig() TurnConfig {
	return TurnConfig{P: 0.9, I: 0, D: 0.05, MaxOutput: 0.6, Tolerance: 2}
}

// TurnInPlace spins the robot to the heading goal returns. goal is evaluated
// every cycle so it can follow a moving estimate.
type TurnInPlace struct {
	cfg   TurnConfig
	goal  func(now time.Time) geom.Rotation
	drive Drivetrain
	loc   Localizer

	pid  *pidctrl.PIDController
	last time.Time
}

// NewTurnInPlace turns toward goal.
func NewTurnInPlace(cfg TurnConfig, goal func(now time.Time) geom.Rotation, r Robot) *TurnInPlace {
	return &TurnInPlace{cfg: cfg, goal: goal, drive: r.Drive, loc: r.Localizer}
}

// Error is the remaining heading error toward the goal at now.
func (t *TurnInPlace) Error(now time.Time) geom.Rotation {
	return (t.goal(now) - t.loc.Pose().Heading).Normalize()
}

func (t *TurnInPlace) Start(now time.Time) {
	t.pid = pidctrl.NewPIDController(t.cfg.P, t.cfg.I, t.cfg.D).
		SetOutputLimits(-t.cfg.MaxOutput, t.cfg.MaxOutput).Set(0)
	t.last = now
}

func (t *TurnInPlace) Poll(now time.Time) bool {
	err := float64(t.Error(now))
	if math.Abs(err) < float64(geom.Degrees(t.cfg.Tolerance)) {
		t.drive.SetNeutral()
		return true
	}

	// the controller sees the negated error as its measurement so the
	// derivative term tracks how fast the error closes
	dt := now.Sub(t.last)
	if dt <= 0 {
		dt = nominalPeriod
	}
	out := t.pid.UpdateDuration(-err, dt)
	t.last = now
	t.drive.SetOpenLoop(drive.WheelCommand{Left: -out, Right: out})
	return false
}

func (t *TurnInPlace) End(time.Time, bool) { t.drive.SetNeutral() }

// NotWithinRegion waits until the robot has left region.
func NotWithinRegion(region geom.Rectangle, loc Localizer) command.Task {
	return command.WaitUntil(func() bool { return !region.Contains(loc.Pose().Translation) })
}

// TimedTank drives open loop until interrupted, usually by a timeout, and
// then sets the drivetrain to neutral.
func TimedTank(d Drivetrain, left, right float64) command.Task {
	return command.WhenFinished(
		command.Run(func(time.Time) { d.SetOpenLoop(drive.WheelCommand{Left: left, Right: right}) }),
		func(bool) { d.SetNeutral() },
	)
}

// SetGear shifts the drivetrain.
func SetGear(d Drivetrain, g drive.Gear) command.Task {
	return command.Instant(func() { d.SetGear(g) })
}

// ResetPose overwrites the pose estimate with pose().
func ResetPose(loc Localizer, pose func() geom.Pose) command.Task {
	return command.Instant(func() { loc.Reset(pose()) })
}

// MoveArm sends the arm to an angle. A nil arm is skipped.
func MoveArm(a Arm, deg float64) command.Task {
	return command.Instant(func() {
		if a != nil {
			a.SetAngle(deg)
		}
	})
}

// Roller voltages.
const (
	RollerFull = 12.0
	RollerHold = 3.0
)

// CargoHoldTime is how long the rollers keep holding after a cargo run.
const CargoHoldTime = 500 * time.Millisecond

// IntakeHatch runs the hatch roller until interrupted: in to grab, out to
// release. The jaws stay closed.
func IntakeHatch(in Intake, releasing bool) command.Task {
	volts := RollerFull
	if releasing {
		volts = -RollerFull
	}
	return &command.Func{
		OnStart: func(time.Time) {
			in.SetHatch(volts)
			in.SetCargo(0)
			in.SetOpen(false)
		},
		OnPoll: func(time.Time) bool { return false },
		OnEnd: func(time.Time, bool) {
			in.SetOpen(false)
			in.SetHatch(0)
			in.SetCargo(0)
		},
	}
}

// IntakeCargo runs the cargo rollers for d, then drops straight to a low
// holding voltage for CargoHoldTime before stopping. Interrupting at any
// point stops the rollers immediately.
func IntakeCargo(in Intake, releasing bool, d time.Duration) command.Task {
	var deadline time.Time
	return intakeCargo(in, releasing,
		func(now time.Time) { deadline = now.Add(d) },
		func(now time.Time) bool { return !now.Before(deadline) },
	)
}

// IntakeCargoWhile is IntakeCargo for an operator button: the rollers run
// at full voltage until held reports false.
func IntakeCargoWhile(in Intake, releasing bool, held func() bool) command.Task {
	return intakeCargo(in, releasing, nil, func(time.Time) bool { return !held() })
}

func intakeCargo(in Intake, releasing bool, begin func(now time.Time), done func(now time.Time) bool) command.Task {
	hatch, cargo := -RollerFull, RollerFull
	if releasing {
		hatch, cargo = RollerFull, -RollerFull
	}
	stop := func() {
		in.SetOpen(false)
		in.SetHatch(0)
		in.SetCargo(0)
	}

	run := &command.Func{
		OnStart: func(now time.Time) {
			if begin != nil {
				begin(now)
			}
			in.SetOpen(!releasing)
			in.SetHatch(hatch)
			in.SetCargo(cargo)
		},
		OnPoll: done,
	}
	hold := command.Instant(func() {
		in.SetOpen(false)
		in.SetHatch(RollerHold)
		in.SetCargo(RollerHold)
	})
	return command.WhenFinished(
		command.Sequence(run, hold, command.After(CargoHoldTime, stop)),
		func(interrupted bool) {
			if interrupted {
				stop()
			}
		},
	)
}
