// Package robot owns the robot's modes and runs one control cycle at a time.
//
// Exactly one drive source is active per cycle: the teleop loop (open or
// closed loop depending on the emergency flag) in Teleop, the autonomous
// routine in Autonomous, and nothing in Disabled.
package robot

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/auto"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/command"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/localization"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/metrics"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/trajectory"
)

// ButtonShift toggles the gear on each press.
const ButtonShift = "shift"

// Operator buttons run the intake rollers while held. Releasing a cargo
// button leaves the rollers holding briefly before they stop.
const (
	ButtonIntakeHatch  = "intake_hatch"
	ButtonReleaseHatch = "release_hatch"
	ButtonIntakeCargo  = "intake_cargo"
	ButtonReleaseCargo = "release_cargo"
)

// earlier buttons win when several are held
var operatorButtons = []string{ButtonReleaseHatch, ButtonIntakeHatch, ButtonReleaseCargo, ButtonIntakeCargo}

// Mode is the match phase.
type Mode int

const (
	Disabled Mode = iota
	Teleop
	Autonomous
)

var modes = []Mode{Disabled, Teleop, Autonomous}

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Teleop:
		return "teleop"
	case Autonomous:
		return "autonomous"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range modes {
		if m.String() == s {
			return m, nil
		}
	}
	return Disabled, fmt.Errorf("robot: unknown mode %q", s)
}

// Reading is one sample of the drivetrain sensors.
type Reading struct {
	Left, Right float64 // cumulative wheel distance in metres
	Heading     geom.Rotation
}

// Sensors reads the drivetrain encoders and gyro.
type Sensors interface {
	Read() (Reading, error)
}

// Hardware is everything the robot drives or reads. Arm may be nil.
type Hardware struct {
	Drive   drive.Output
	Input   drive.InputSource
	Sensors Sensors
	Vision  auto.Vision
	Intake  auto.Intake
	Arm     auto.Arm
}

// Options tunes a Robot.
type Options struct {
	Teleop    drive.TeleopConfig
	Speeds    drive.GearSpeeds
	Ramsete   trajectory.Ramsete
	Auto      auto.Config
	Period    time.Duration
	StartPose geom.Pose
}

// Status is a snapshot for the info endpoint.
type Status struct {
	Mode        string  `json:"mode"`
	Emergency   bool    `json:"emergency"`
	Gear        string  `json:"gear"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	HeadingDeg  float64 `json:"heading_deg"`
	Selection   string  `json:"selection"`
	AutoRunning bool    `json:"auto_running"`
	AutoRunID   string  `json:"auto_run_id,omitempty"`
	Cycles      uint64  `json:"cycles"`
}

// Robot is not safe for concurrent use apart from Status. All other methods
// belong to the control loop goroutine.
type Robot struct {
	log     *zap.Logger
	out     drive.Output
	in      drive.InputSource
	sensors Sensors
	vision  auto.Vision
	intake  auto.Intake
	period  time.Duration

	odometry *localization.TankOdometry
	auto     *auto.Orchestrator
	routine  *auto.Routine

	runner     command.Runner
	openLoop   *drive.TeleopLoop
	closedLoop *drive.TeleopLoop
	rollers    command.Runner
	operating  string

	mode      Mode
	emergency bool
	shiftHeld bool
	cycles    uint64

	overrun    rate.Sometimes
	sensorWarn rate.Sometimes

	mu     sync.Mutex
	status Status
}

// New builds a disabled robot and plans the configured autonomous routine.
func New(opts Options, hw Hardware, logger *zap.Logger) (*Robot, error) {
	sel, err := opts.Auto.Selection()
	if err != nil {
		return nil, err
	}

	out := metered{hw.Drive}
	odometry := localization.NewTankOdometry(opts.StartPose)
	openLoop := drive.NewTeleopLoop(opts.Teleop, hw.Input, out)
	r := &Robot{
		log:        logger.Named("robot"),
		out:        out,
		in:         hw.Input,
		sensors:    hw.Sensors,
		vision:     hw.Vision,
		intake:     hw.Intake,
		period:     opts.Period,
		odometry:   odometry,
		openLoop:   openLoop,
		closedLoop: openLoop.ClosedLoopTwin(opts.Speeds),
		overrun:    rate.Sometimes{First: 1, Interval: 5 * time.Second},
		sensorWarn: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
	r.auto = auto.NewOrchestrator(auto.Robot{
		Drive:      out,
		Localizer:  odometry,
		Vision:     hw.Vision,
		Intake:     hw.Intake,
		Arm:        hw.Arm,
		Planner:    auto.PlannerFunc(trajectory.Generate),
		Controller: opts.Ramsete,
	}, opts.Auto.Paths, opts.Auto.Turn, logger)

	if err := r.Select(sel); err != nil {
		return nil, err
	}
	r.publishMode()
	r.updateStatus()
	return r, nil
}

// Select plans the routine to run on the next entry into Autonomous.
func (r *Robot) Select(sel auto.Selection) error {
	routine, err := r.auto.Build(sel)
	if err != nil {
		return fmt.Errorf("robot: select %s: %w", sel, err)
	}
	r.routine = routine
	return nil
}

// Mode is the current mode.
func (r *Robot) Mode() Mode { return r.mode }

// Emergency reports whether teleop is forced to open loop.
func (r *Robot) Emergency() bool { return r.emergency }

// Pose is the current field pose estimate.
func (r *Robot) Pose() geom.Pose { return r.odometry.Pose() }

// SetMode switches the active drive source.
func (r *Robot) SetMode(m Mode, now time.Time) {
	if m == r.mode {
		return
	}
	prev := r.mode
	if prev == Autonomous {
		r.auto.Cancel(now)
	}
	if prev == Teleop {
		r.rollers.Cancel(now)
		r.operating = ""
	}
	r.mode = m

	switch m {
	case Disabled:
		r.runner.SetDefault(nil, now)
		r.runner.Cancel(now)
		r.out.SetNeutral()
	case Teleop:
		r.runner.SetDefault(r.teleop(), now)
	case Autonomous:
		r.runner.SetDefault(nil, now)
		r.runner.Cancel(now)
		if r.routine != nil {
			r.auto.Run(r.routine, now)
		}
	}
	r.log.Info("mode changed", zap.Stringer("from", prev), zap.Stringer("to", m))
	r.publishMode()
}

// ActivateEmergency drops teleop to open loop and stops the wheels.
func (r *Robot) ActivateEmergency(now time.Time) {
	if r.emergency {
		return
	}
	r.emergency = true
	r.out.SetNeutral()
	if r.mode == Teleop {
		r.runner.SetDefault(r.teleop(), now)
	}
	metrics.Emergency.Set(1)
	r.log.Warn("emergency open-loop drive activated")
}

// RecoverFromEmergency goes back to closed-loop teleop.
func (r *Robot) RecoverFromEmergency(now time.Time) {
	if !r.emergency {
		return
	}
	r.emergency = false
	if r.mode == Teleop {
		r.runner.SetDefault(r.teleop(), now)
	}
	metrics.Emergency.Set(0)
	r.log.Info("recovered from emergency, closed-loop drive restored")
}

func (r *Robot) teleop() *drive.TeleopLoop {
	if r.emergency {
		return r.openLoop
	}
	return r.closedLoop
}

// Step runs one control cycle.
func (r *Robot) Step(now time.Time) {
	began := time.Now()

	reading, err := r.sensors.Read()
	if err != nil {
		r.sensorWarn.Do(func() { r.log.Warn("sensor read failed", zap.Error(err)) })
	} else {
		r.odometry.Update(reading.Left, reading.Right, reading.Heading)
	}

	switch r.mode {
	case Teleop:
		r.shift()
		r.operate(now)
		r.runner.Step(now)
		r.rollers.Step(now)
	case Autonomous:
		r.auto.Step(now)
	}

	r.cycles++
	r.publishVision(now)
	r.updateStatus()

	elapsed := time.Since(began)
	metrics.LoopDuration.Observe(elapsed.Seconds())
	if r.period > 0 && elapsed > r.period {
		metrics.LoopOverruns.Inc()
		r.overrun.Do(func() {
			r.log.Warn("control cycle overran", zap.Duration("took", elapsed), zap.Duration("period", r.period))
		})
	}
}

// shift toggles the gear on the rising edge of the shift button.
func (r *Robot) shift() {
	held := r.in.Button(ButtonShift)
	if held && !r.shiftHeld {
		g := drive.HighGear
		if r.out.Gear() == drive.HighGear {
			g = drive.LowGear
		}
		r.out.SetGear(g)
		r.log.Debug("shifted", zap.Stringer("gear", g))
	}
	r.shiftHeld = held
}

// operate starts the roller task for a newly held operator button,
// interrupting whatever the rollers were doing. Each task ends on its own
// once its button is released.
func (r *Robot) operate(now time.Time) {
	if r.intake == nil {
		return
	}
	held := ""
	for _, b := range operatorButtons {
		if r.in.Button(b) {
			held = b
			break
		}
	}
	if held == r.operating {
		return
	}
	r.operating = held
	if held == "" {
		return
	}

	stillHeld := func() bool { return r.in.Button(held) }
	var task command.Task
	switch held {
	case ButtonIntakeHatch, ButtonReleaseHatch:
		task = command.WithExit(auto.IntakeHatch(r.intake, held == ButtonReleaseHatch), func() bool { return !stillHeld() })
	case ButtonIntakeCargo, ButtonReleaseCargo:
		task = auto.IntakeCargoWhile(r.intake, held == ButtonReleaseCargo, stillHeld)
	}
	r.rollers.Schedule(task, now)
	r.log.Debug("operator intake", zap.String("button", held))
}

func (r *Robot) publishMode() {
	for _, m := range modes {
		v := 0.0
		if m == r.mode {
			v = 1
		}
		metrics.Mode.WithLabelValues(m.String()).Set(v)
	}
}

func (r *Robot) publishVision(now time.Time) {
	if r.vision == nil {
		return
	}
	for _, front := range []bool{true, false} {
		v := 0.0
		if _, ok := r.vision.Best(front, now); ok {
			v = 1
		}
		metrics.TargetVisible.WithLabelValues(metrics.Camera(front)).Set(v)
	}
}

func (r *Robot) updateStatus() {
	pose := r.odometry.Pose()
	s := Status{
		Mode:        r.mode.String(),
		Emergency:   r.emergency,
		Gear:        r.out.Gear().String(),
		X:           pose.X,
		Y:           pose.Y,
		HeadingDeg:  pose.Heading.Degrees(),
		AutoRunning: r.auto.Running(),
		Cycles:      r.cycles,
	}
	if r.routine != nil {
		s.Selection = r.routine.Selection.String()
	}
	if r.auto.Running() {
		s.AutoRunID = r.auto.RunID().String()
	}
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Status returns the snapshot taken at the end of the last cycle. It is safe
// to call from any goroutine.
func (r *Robot) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
