package drive

import (
	"math"
	"time"
)

// Input names understood by TeleopLoop.
const (
	AxisThrottleForward = "throttle_forward"
	AxisThrottleReverse = "throttle_reverse"
	AxisSteer           = "steer"
	AxisSlow            = "slow"
	ButtonQuickTurn     = "quick_turn"
)

// InputSource is sampled once per cycle. Axes are nominally in [-1, 1];
// anything else is clamped.
type InputSource interface {
	Axis(name string) float64
	Button(name string) bool
}

// TeleopConfig tunes the driver's stick response.
type TeleopConfig struct {
	Deadband                float64       `koanf:"deadband"`
	Curve                   ThrottleCurve `koanf:"throttle_curve"`
	QuickTurnLinear         float64       `koanf:"quick_turn_linear"`
	SlowModeThreshold       float64       `koanf:"slow_mode_threshold"`
	LinearScale             float64       `koanf:"linear_scale"`
	CurvatureScale          float64       `koanf:"curvature_scale"`
	SlowLinearReduction     float64       `koanf:"slow_linear_reduction"`
	SlowCurvatureReduction  float64       `koanf:"slow_curvature_reduction"`
	QuickTurnCurvatureScale float64       `koanf:"quick_turn_curvature_scale"`
}

// DefaultTeleopConfig returns the competition tuning.
func DefaultTeleopConfig() TeleopConfig {
	return TeleopConfig{
		Deadband:                0.05,
		Curve:                   DefaultThrottleCurve,
		QuickTurnLinear:         0.25,
		SlowModeThreshold:       0.5,
		LinearScale:             0.9,
		CurvatureScale:          0.8,
		SlowLinearReduction:     0.3,
		SlowCurvatureReduction:  0.35,
		QuickTurnCurvatureScale: 0.7,
	}
}

// TeleopLoop is the driver-controlled drive source. It satisfies
// command.Task so it can sit in a Runner as the default task.
//
// The quick-stop accumulator may be shared with a twin loop (see
// ClosedLoopTwin); only one of the pair runs in any cycle.
type TeleopLoop struct {
	cfg        TeleopConfig
	in         InputSource
	out        Output
	closedLoop bool
	speeds     GearSpeeds

	accumulator *float64
	last        WheelCommand
}

// NewTeleopLoop writes duty cycles to out.
func NewTeleopLoop(cfg TeleopConfig, in InputSource, out Output) *TeleopLoop {
	return &TeleopLoop{cfg: cfg, in: in, out: out, accumulator: new(float64)}
}

// NewClosedLoopTeleop writes wheel velocities scaled by the current gear's
// max speed instead of duty cycles.
func NewClosedLoopTeleop(cfg TeleopConfig, in InputSource, out Output, speeds GearSpeeds) *TeleopLoop {
	return &TeleopLoop{cfg: cfg, in: in, out: out, closedLoop: true, speeds: speeds, accumulator: new(float64)}
}

// ClosedLoopTwin returns a closed-loop loop on the same inputs, output and
// quick-stop accumulator as l. Swapping between the two keeps the
// accumulator decaying as one value.
func (l *TeleopLoop) ClosedLoopTwin(speeds GearSpeeds) *TeleopLoop {
	return &TeleopLoop{cfg: l.cfg, in: l.in, out: l.out, closedLoop: true, speeds: speeds, accumulator: l.accumulator}
}

// Shape samples the inputs and returns the mixer's arguments.
func (l *TeleopLoop) Shape() (linear, curvature float64, quickTurn bool) {
	c := l.cfg
	raw := Clamp(l.in.Axis(AxisThrottleForward), -1, 1) - Clamp(l.in.Axis(AxisThrottleReverse), -1, 1)
	linear = c.Curve.Apply(ThrottleDeadband(Clamp(raw, -1, 1), c.Deadband))
	curvature = Deadband(Clamp(l.in.Axis(AxisSteer), -1, 1), c.Deadband)
	slow := Clamp(l.in.Axis(AxisSlow), 0, 1)

	quickTurn = l.in.Button(ButtonQuickTurn) ||
		math.Abs(linear) < c.QuickTurnLinear ||
		slow > c.SlowModeThreshold

	linear = signedSquare(linear) * c.LinearScale * (1 - slow*c.SlowLinearReduction)
	curvature = signedSquare(curvature) * c.CurvatureScale * (1 - slow*c.SlowCurvatureReduction)
	if quickTurn {
		curvature *= c.QuickTurnCurvatureScale
	}
	return Clamp(linear, -1, 1), Clamp(curvature, -1, 1), quickTurn
}

// Step runs one control cycle and returns what was written.
func (l *TeleopLoop) Step() WheelCommand {
	linear, curvature, quickTurn := l.Shape()

	var cmd WheelCommand
	cmd, *l.accumulator = Mix(linear, curvature, quickTurn, *l.accumulator)
	l.last = cmd

	if l.closedLoop {
		top := l.speeds.For(l.out.Gear())
		l.out.SetVelocity(WheelVelocity{Left: cmd.Left * top, Right: cmd.Right * top})
	} else {
		l.out.SetOpenLoop(cmd)
	}
	return cmd
}

// Accumulator is the current quick-stop accumulator.
func (l *TeleopLoop) Accumulator() float64 { return *l.accumulator }

// Last is the most recent mixer output.
func (l *TeleopLoop) Last() WheelCommand { return l.last }

// ClosedLoop reports whether the loop writes wheel velocities.
func (l *TeleopLoop) ClosedLoop() bool { return l.closedLoop }

func (l *TeleopLoop) Start(time.Time) {}

// Poll drives one cycle; teleop never finishes on its own.
func (l *TeleopLoop) Poll(time.Time) bool {
	l.Step()
	return false
}

func (l *TeleopLoop) End(time.Time, bool) {
	l.out.SetNeutral()
}
