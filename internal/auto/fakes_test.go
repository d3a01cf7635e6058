package auto

import (
	"time"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/trajectory"
)

var t0 = time.Date(2019, 4, 18, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

type fakeDrive struct {
	gear     drive.Gear
	open     []drive.WheelCommand
	velocity []drive.WheelVelocity
	neutral  int
}

func (d *fakeDrive) SetOpenLoop(c drive.WheelCommand) { d.open = append(d.open, c) }
func (d *fakeDrive) SetVelocity(v drive.WheelVelocity) { d.velocity = append(d.velocity, v) }
func (d *fakeDrive) SetNeutral() { d.neutral++ }
func (d *fakeDrive) SetGear(g drive.Gear) { d.gear = g }
func (d *fakeDrive) Gear() drive.Gear { return d.gear }

type fakeLocalizer struct {
	pose   geom.Pose
	resets []geom.Pose
}

func (l *fakeLocalizer) Pose() geom.Pose { return l.pose }
func (l *fakeLocalizer) Reset(p geom.Pose) {
	l.pose = p
	l.resets = append(l.resets, p)
}

type fakeVision struct {
	front, back *geom.Pose
}

func (v *fakeVision) Best(front bool, _ time.Time) (geom.Pose, bool) {
	p := v.back
	if front {
		p = v.front
	}
	if p == nil {
		return geom.Pose{}, false
	}
	return *p, true
}

type fakeIntake struct {
	hatch, cargo []float64
	open         bool
}

func (in *fakeIntake) SetHatch(v float64) { in.hatch = append(in.hatch, v) }
func (in *fakeIntake) SetCargo(v float64) { in.cargo = append(in.cargo, v) }
func (in *fakeIntake) SetOpen(open bool) { in.open = open }

func last(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	return vs[len(vs)-1]
}

type fakeArm struct {
	angles []float64
}

func (a *fakeArm) SetAngle(deg float64) { a.angles = append(a.angles, deg) }

// echoController drives the reference speed on both wheels and remembers the
// references it was given.
type echoController struct {
	refs []trajectory.State
}

func (c *echoController) Calculate(_ geom.Pose, ref trajectory.State) drive.WheelVelocity {
	c.refs = append(c.refs, ref)
	return drive.WheelVelocity{Left: ref.Velocity, Right: ref.Velocity}
}

type fakes struct {
	drive  *fakeDrive
	loc    *fakeLocalizer
	vision *fakeVision
	intake *fakeIntake
	arm    *fakeArm
	ctrl   *echoController
}

func newFakeRobot() (Robot, *fakes) {
	f := &fakes{
		drive:  &fakeDrive{},
		loc:    &fakeLocalizer{},
		vision: &fakeVision{},
		intake: &fakeIntake{},
		arm:    &fakeArm{},
		ctrl:   &echoController{},
	}
	return Robot{
		Drive:      f.drive,
		Localizer:  f.loc,
		Vision:     f.vision,
		Intake:     f.intake,
		Arm:        f.arm,
		Planner:    PlannerFunc(trajectory.Generate),
		Controller: f.ctrl,
	}, f
}

func straight(length float64) *trajectory.Trajectory {
	traj, err := trajectory.Generate(trajectory.Request{
		Waypoints:       []geom.Pose{geom.NewPose(0, 0, 0), geom.NewPose(length, 0, 0)},
		MaxVelocity:     1,
		MaxAcceleration: 1,
	})
	if err != nil {
		panic(err)
	}
	return traj
}

func posePtr(p geom.Pose) *geom.Pose { return &p }
