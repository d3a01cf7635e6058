package auto

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/command"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/trajectory"
)

var (
	ErrUnknownMode      = errors.New("auto: unknown mode")
	ErrUnknownStart     = errors.New("auto: unknown starting position")
	ErrUnsupportedStart = errors.New("auto: routine cannot run from this starting position")
)

// Mode selects an autonomous routine.
type Mode int

const (
	DoNothing Mode = iota
	ForwardOffLine
	LowRocket
	BottomRocket
)

var modeNames = map[Mode]string{
	DoNothing:      "do_nothing",
	ForwardOffLine: "forward_off_line",
	LowRocket:      "low_rocket",
	BottomRocket:   "bottom_rocket",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts the names printed by Mode.String, case-insensitively.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return DoNothing, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// StartingPosition is where the robot is placed before the match.
type StartingPosition int

const (
	Right StartingPosition = iota
	Center
	Left
)

func (p StartingPosition) String() string {
	switch p {
	case Right:
		return "right"
	case Center:
		return "center"
	case Left:
		return "left"
	}
	return fmt.Sprintf("StartingPosition(%d)", int(p))
}

// ParseStartingPosition accepts left, center or right.
func ParseStartingPosition(s string) (StartingPosition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "right":
		return Right, nil
	case "center", "centre":
		return Center, nil
	case "left":
		return Left, nil
	}
	return Right, fmt.Errorf("%w: %q", ErrUnknownStart, s)
}

// Selection is what the drive team picked for the match.
type Selection struct {
	Mode  Mode
	Start StartingPosition
}

func (s Selection) String() string { return s.Mode.String() + "/" + s.Start.String() }

// Arm angles in degrees.
const (
	ArmStowed   = 90.0
	ArmHatchLow = 20.0
)

// Routine tuning. Distances are in metres.
var (
	lowRocketAssistRadius   = geom.Feet(4.5)
	farRocketAssistRadius   = geom.Feet(10)
	stationAssistRadius     = geom.Feet(6)
	nearRocketAssistRadius  = geom.Feet(4)
	forwardOffLineDistance  = geom.Feet(5)
	prepareDistance         = geom.Feet(3)
	hatchHoldVolts          = 6.0
	backOffSpeed            = 0.3
	lowRocketBackOffSpeed   = 0.5
	lowRocketArmDelay       = time.Second
	lowRocketGrabTime       = 1500 * time.Millisecond
	releaseTime             = time.Second
	stationGrabTime         = 4 * time.Second
	releaseBeforeGrabWindow = 3 * time.Second
)

// builder assembles one routine. The first planner error sticks and every
// later path call returns nil.
type builder struct {
	o      *Orchestrator
	sel    Selection
	err    error
	total  time.Duration
	mirror bool

	follows []*FollowPath
}

// path plans waypoints given for a right-side start and mirrors the result
// for a left start.
func (b *builder) path(req trajectory.Request) *trajectory.Trajectory {
	if b.err != nil {
		return nil
	}
	t, err := b.o.robot.Planner.Generate(req)
	if err != nil {
		b.err = fmt.Errorf("auto: plan %s: %w", b.sel, err)
		return nil
	}
	if b.mirror {
		t = t.Mirror()
	}
	b.total += t.Duration()
	return t
}

// follow and assisted register the path followers so their Finished flags can
// be cleared each time the routine starts.
func (b *builder) follow(traj *trajectory.Trajectory) *FollowPath {
	f := NewFollowPath(traj, b.o.robot)
	b.follows = append(b.follows, f)
	return f
}

func (b *builder) assisted(traj *trajectory.Trajectory, radius float64, front bool) *VisionAssisted {
	v := FollowVisionAssisted(traj, b.o.robot, radius, front)
	b.follows = append(b.follows, v.Follow)
	return v
}

// root clears the registered followers each time task starts. Exit
// conditions watch Finished, which must not carry over from a previous run
// of the same routine.
func (b *builder) root(task command.Task) command.Task {
	follows := b.follows
	return command.BeforeStarting(task, func() {
		for _, f := range follows {
			f.Reset()
		}
	})
}

// field mirrors a landmark for a left start.
func (b *builder) field(p geom.Pose) geom.Pose {
	if b.mirror {
		return p.Mirror()
	}
	return p
}

// heading mirrors a fixed heading for a left start.
func (b *builder) heading(r geom.Rotation) geom.Rotation {
	if b.mirror {
		return (-r).Normalize()
	}
	return r
}

func (o *Orchestrator) buildTask(sel Selection) (command.Task, time.Duration, error) {
	b := &builder{o: o, sel: sel, mirror: sel.Start == Left}
	var task command.Task
	switch sel.Mode {
	case DoNothing:
		task = command.Instant(nil)
	case ForwardOffLine:
		task = b.forwardOffLine()
	case LowRocket:
		if sel.Start == Center {
			return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedStart, sel)
		}
		task = b.lowRocket()
	case BottomRocket:
		if sel.Start == Center {
			return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedStart, sel)
		}
		task = b.bottomRocket()
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownMode, sel.Mode)
	}
	if b.err != nil {
		return nil, 0, b.err
	}
	return b.root(task), b.total, nil
}

func (b *builder) forwardOffLine() command.Task {
	start := SideStart
	if b.sel.Start == Center {
		start = CenterStart
	}
	end := start.TransformBy(geom.NewPose(forwardOffLineDistance, 0, 0))
	traj := b.path(b.o.paths.request(false, start, end))
	if traj == nil {
		return nil
	}
	r := b.o.robot
	return command.Sequence(
		ResetPose(r.Localizer, traj.InitialPose),
		b.follow(traj),
	)
}

// lowRocket drives off the platform, places a hatch on the near rocket port
// and backs away.
func (b *builder) lowRocket() command.Task {
	req := b.o.paths.request(false, SideStart, approach(RocketN, 0))
	// only the platform edge is slowed; the rest is left to the voltage limit
	req.Constraints = []trajectory.Constraint{trajectory.VelocityLimitRadius{
		Center: SideStart.Translation, Radius: geom.Feet(4), Max: geom.Feet(3),
	}}
	traj := b.path(req)
	if traj == nil {
		return nil
	}

	r := b.o.robot
	return command.Sequence(
		ResetPose(r.Localizer, traj.InitialPose),
		command.Parallel(
			b.assisted(traj, lowRocketAssistRadius, true),
			command.WithTimeout(IntakeHatch(r.Intake, false), lowRocketGrabTime),
			command.Sequence(command.Wait(lowRocketArmDelay), MoveArm(r.Arm, ArmHatchLow)),
		),
		command.Parallel(
			command.WithTimeout(IntakeHatch(r.Intake, true), releaseTime),
			command.WithTimeout(TimedTank(r.Drive, -lowRocketBackOffSpeed, -lowRocketBackOffSpeed), releaseTime),
		),
	)
}

// bottomRocket backs off the platform to the far rocket port, scores, picks up
// a hatch at the loading station and scores it on the near port.
func (b *builder) bottomRocket() command.Task {
	cfg := b.o.paths
	rocketFPrepare := approach(RocketF, prepareDistance)
	rocketFScore := approach(RocketF, 0)
	stationScore := approach(LoadingStation, 0)
	rocketNPrepare := approach(RocketN, prepareDistance)
	rocketNScore := approach(RocketN, 0)

	first := cfg.request(true,
		SideStartReversed,
		geom.NewPose(geom.Feet(15.214), geom.Feet(8.7), geom.Degrees(165)),
		geom.NewPose(geom.Feet(22.488), geom.Feet(5.639), geom.Degrees(143)),
		rocketFPrepare,
	)
	first.MaxAcceleration = cfg.FirstPathMaxAcceleration
	path1 := b.path(first)
	path2 := b.path(cfg.request(false, rocketFPrepare, rocketFScore))
	path3 := b.path(cfg.request(true, rocketFScore, rocketFPrepare))
	path4 := b.path(cfg.request(false,
		rocketFPrepare,
		geom.NewPose(geom.Feet(19.2), geom.Feet(5.3), geom.Degrees(180)),
		stationScore,
	))
	path5 := b.path(cfg.request(true,
		stationScore,
		geom.NewPose(rocketNPrepare.X, rocketNPrepare.Y, geom.Degrees(180)),
	))
	path6 := b.path(cfg.request(false, rocketNPrepare, rocketNScore))
	if b.err != nil {
		return nil
	}

	r := b.o.robot
	log := b.o.log
	rocketF := b.field(RocketF)
	fallbackF := b.heading(RocketF.Heading)
	lookAtF := func(now time.Time) geom.Rotation {
		target, ok := r.Vision.Best(true, now)
		if !ok {
			return fallbackF
		}
		return target.Translation.Sub(r.Localizer.Pose().Translation).Angle()
	}
	rocketNHeading := b.heading(RocketN.Heading)

	follow1 := b.follow(path1)
	stow := command.WhenFinished(
		command.Sequence(
			NotWithinRegion(b.habitat(), r.Localizer),
			command.Wait(500*time.Millisecond),
			MoveArm(r.Arm, ArmStowed),
		),
		func(bool) { r.Intake.SetHatch(0) },
	)
	stow = command.BeforeStarting(stow, func() { r.Intake.SetHatch(hatchHoldVolts) })

	toStation := b.assisted(path4, stationAssistRadius, true)
	follow5 := b.follow(path5)

	return command.Sequence(
		command.Print(log, "bottom rocket starting", zap.Stringer("selection", b.sel)),
		SetGear(r.Drive, drive.HighGear),
		ResetPose(r.Localizer, path1.InitialPose),
		command.Parallel(follow1, stow),

		// far rocket port
		NewTurnInPlace(b.o.turn, lookAtF, r),
		b.assisted(path2, farRocketAssistRadius, true),
		NewRelocalize(rocketF, true, r, log),
		command.Parallel(
			command.Sequence(b.follow(path3), toStation),
			command.Sequence(
				command.WithTimeout(IntakeHatch(r.Intake, true), releaseTime),
				command.Wait(releaseBeforeGrabWindow),
				command.WithExit(IntakeHatch(r.Intake, false), toStation.Finished),
			),
		),

		// loading station
		NewRelocalize(b.field(LoadingStation), true, r, log),
		command.Parallel(
			follow5,
			command.WithExit(command.WithTimeout(IntakeHatch(r.Intake, false), stationGrabTime), follow5.Finished),
		),

		// near rocket port
		NewTurnInPlace(b.o.turn, func(time.Time) geom.Rotation { return rocketNHeading }, r),
		b.assisted(path6, nearRocketAssistRadius, true),
		command.Parallel(
			command.WithTimeout(IntakeHatch(r.Intake, true), releaseTime),
			command.WithTimeout(TimedTank(r.Drive, -backOffSpeed, -backOffSpeed), releaseTime),
		),
		command.Print(log, "bottom rocket done", zap.Stringer("selection", b.sel)),
	)
}

func (b *builder) habitat() geom.Rectangle {
	if b.mirror {
		return HabitatL1Platform.Mirror()
	}
	return HabitatL1Platform
}
