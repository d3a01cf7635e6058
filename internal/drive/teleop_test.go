package drive

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stickInput struct {
	axes    map[string]float64
	buttons map[string]bool
}

func newStick() *stickInput {
	return &stickInput{axes: map[string]float64{}, buttons: map[string]bool{}}
}

func (s *stickInput) Axis(name string) float64 { return s.axes[name] }
func (s *stickInput) Button(name string) bool { return s.buttons[name] }

type recordingOutput struct {
	gear     Gear
	open     []WheelCommand
	velocity []WheelVelocity
	neutral  int
}

func (o *recordingOutput) SetOpenLoop(c WheelCommand) { o.open = append(o.open, c) }
func (o *recordingOutput) SetVelocity(v WheelVelocity) { o.velocity = append(o.velocity, v) }
func (o *recordingOutput) SetNeutral() { o.neutral++ }
func (o *recordingOutput) SetGear(g Gear) { o.gear = g }
func (o *recordingOutput) Gear() Gear { return o.gear }

// full stick through deadband, curve and square scaling
var fullThrottle = math.Pow(DefaultThrottleCurve.Apply(1), 2) * 0.9

func TestThrottleDeadband(t *testing.T) {
	assert.Equal(t, 0.0, ThrottleDeadband(0.02, 0.05))
	assert.Equal(t, 0.0, ThrottleDeadband(-0.02, 0.05))
	assert.InDelta(t, 1, ThrottleDeadband(1, 0.05), eps)
	assert.InDelta(t, -1, ThrottleDeadband(-1, 0.05), eps)

	knee := 0.05 / 1.8
	assert.InDelta(t, (0.5-knee)/(1-knee), ThrottleDeadband(0.5, 0.05), eps)
	assert.InDelta(t, -(0.5-knee)/(1-knee), ThrottleDeadband(-0.5, 0.05), eps)
}

func TestDeadband(t *testing.T) {
	assert.Equal(t, 0.0, Deadband(0.04, 0.05))
	assert.Equal(t, 0.3, Deadband(0.3, 0.05))
	assert.Equal(t, -0.3, Deadband(-0.3, 0.05))
}

func TestThrottleCurve(t *testing.T) {
	c := DefaultThrottleCurve
	assert.Equal(t, 0.0, c.Apply(0))
	assert.InDelta(t, 1.0087, c.Apply(1), 1e-3)
	assert.InDelta(t, 0.1886, c.Apply(0.5), 1e-3)

	prev := -math.MaxFloat64
	for x := -1.0; x <= 1.0; x += 0.05 {
		y := c.Apply(x)
		assert.InDelta(t, -y, c.Apply(-x), eps)
		require.Greater(t, y, prev)
		prev = y
	}

	steep := ThrottleCurve{Rate: 1.5, RCRate: 0.00116}
	assert.Equal(t, 1.0, steep.Apply(1))
	assert.Equal(t, -1.0, steep.Apply(-1))
}

func TestTeleopFullForward(t *testing.T) {
	in, out := newStick(), &recordingOutput{}
	in.axes[AxisThrottleForward] = 1

	loop := NewTeleopLoop(DefaultTeleopConfig(), in, out)
	linear, curvature, quickTurn := loop.Shape()
	assert.InDelta(t, fullThrottle, linear, eps)
	assert.Equal(t, 0.0, curvature)
	assert.False(t, quickTurn)

	cmd := loop.Step()
	require.Len(t, out.open, 1)
	assert.Equal(t, cmd, out.open[0])
	assert.InDelta(t, fullThrottle, cmd.Left, eps)
	assert.InDelta(t, fullThrottle, cmd.Right, eps)
	assert.Empty(t, out.velocity)
}

func TestTeleopReverseTriggerSubtracts(t *testing.T) {
	in, out := newStick(), &recordingOutput{}
	in.axes[AxisThrottleForward] = 1
	in.axes[AxisThrottleReverse] = 1

	loop := NewTeleopLoop(DefaultTeleopConfig(), in, out)
	cmd := loop.Step()
	assert.Equal(t, WheelCommand{}, cmd)
}

func TestTeleopSpinInPlace(t *testing.T) {
	in, out := newStick(), &recordingOutput{}
	in.axes[AxisSteer] = 1

	loop := NewTeleopLoop(DefaultTeleopConfig(), in, out)
	_, curvature, quickTurn := loop.Shape()
	assert.True(t, quickTurn, "low throttle turns on quick turn")
	assert.InDelta(t, 0.8*0.7, curvature, eps)

	cmd := loop.Step()
	assert.InDelta(t, 0.56, cmd.Left, eps)
	assert.InDelta(t, -0.56, cmd.Right, eps)
	assert.InDelta(t, 0.1*0.56*2, loop.Accumulator(), eps)
	assert.Equal(t, cmd, loop.Last())
}

func TestTeleopQuickTurnTriggers(t *testing.T) {
	cfg := DefaultTeleopConfig()

	in := newStick()
	in.axes[AxisThrottleForward] = 1
	in.buttons[ButtonQuickTurn] = true
	_, _, qt := NewTeleopLoop(cfg, in, &recordingOutput{}).Shape()
	assert.True(t, qt, "button")

	in = newStick()
	in.axes[AxisThrottleForward] = 1
	in.axes[AxisSlow] = 0.6
	_, _, qt = NewTeleopLoop(cfg, in, &recordingOutput{}).Shape()
	assert.True(t, qt, "slow mode")

	in.axes[AxisSlow] = 0.4
	_, _, qt = NewTeleopLoop(cfg, in, &recordingOutput{}).Shape()
	assert.False(t, qt)
}

func TestTeleopSlowModeScaling(t *testing.T) {
	in := newStick()
	in.axes[AxisThrottleForward] = 1
	in.axes[AxisSteer] = 1
	in.axes[AxisSlow] = 1

	linear, curvature, qt := NewTeleopLoop(DefaultTeleopConfig(), in, &recordingOutput{}).Shape()
	require.True(t, qt)
	assert.InDelta(t, fullThrottle*0.7, linear, eps)
	assert.InDelta(t, 0.8*0.65*0.7, curvature, eps)
}

func TestTeleopSteerDeadband(t *testing.T) {
	in := newStick()
	in.axes[AxisSteer] = 0.03
	_, curvature, _ := NewTeleopLoop(DefaultTeleopConfig(), in, &recordingOutput{}).Shape()
	assert.Equal(t, 0.0, curvature)
}

func TestTeleopOutOfRangeAxesClamped(t *testing.T) {
	in := newStick()
	in.axes[AxisThrottleForward] = 7
	in.axes[AxisSteer] = math.NaN()
	linear, curvature, _ := NewTeleopLoop(DefaultTeleopConfig(), in, &recordingOutput{}).Shape()
	assert.InDelta(t, fullThrottle, linear, eps)
	assert.Equal(t, 0.0, curvature)
}

func TestClosedLoopTeleopScalesByGear(t *testing.T) {
	in := newStick()
	in.axes[AxisThrottleForward] = 1
	speeds := GearSpeeds{Low: 2, High: 4}

	out := &recordingOutput{gear: HighGear}
	loop := NewClosedLoopTeleop(DefaultTeleopConfig(), in, out, speeds)
	require.True(t, loop.ClosedLoop())
	loop.Step()
	require.Len(t, out.velocity, 1)
	assert.InDelta(t, fullThrottle*4, out.velocity[0].Left, eps)
	assert.InDelta(t, fullThrottle*4, out.velocity[0].Right, eps)

	out.SetGear(LowGear)
	loop.Step()
	assert.InDelta(t, fullThrottle*2, out.velocity[1].Left, eps)
	assert.Empty(t, out.open)
}

func TestClosedLoopTwinSharesAccumulator(t *testing.T) {
	in, out := newStick(), &recordingOutput{}
	open := NewTeleopLoop(DefaultTeleopConfig(), in, out)
	closed := open.ClosedLoopTwin(GearSpeeds{Low: 2, High: 4})
	require.True(t, closed.ClosedLoop())
	require.False(t, open.ClosedLoop())

	// spin in place on the closed-loop side to charge the accumulator
	in.axes[AxisSteer] = 1
	in.buttons[ButtonQuickTurn] = true
	for i := 0; i < 100; i++ {
		closed.Step()
	}
	charged := closed.Accumulator()
	require.Greater(t, charged, 1.0)
	assert.Equal(t, charged, open.Accumulator())

	// centred sticks on the open-loop side decay the same value
	in.axes[AxisSteer] = 0
	in.buttons[ButtonQuickTurn] = false
	for i := 0; i < 500; i++ {
		open.Step()
	}
	assert.InDelta(t, 0, closed.Accumulator(), 1e-9)

	// so driving straight after the swap back does not counter-steer
	in.axes[AxisThrottleForward] = 1
	closed.Step()
	last := out.velocity[len(out.velocity)-1]
	assert.InDelta(t, last.Left, last.Right, 1e-9)
	assert.Equal(t, 0.0, closed.Accumulator())
}

func TestTeleopAsTask(t *testing.T) {
	in, out := newStick(), &recordingOutput{}
	in.axes[AxisThrottleForward] = 1
	loop := NewTeleopLoop(DefaultTeleopConfig(), in, out)

	now := time.Unix(0, 0)
	loop.Start(now)
	for i := 0; i < 5; i++ {
		assert.False(t, loop.Poll(now))
	}
	assert.Len(t, out.open, 5)

	loop.End(now, true)
	assert.Equal(t, 1, out.neutral)
}

func TestGearSpeeds(t *testing.T) {
	s := GearSpeeds{Low: 1.5, High: 3}
	assert.Equal(t, 1.5, s.For(LowGear))
	assert.Equal(t, 3.0, s.For(HighGear))
	assert.Equal(t, "high", HighGear.String())
	assert.Equal(t, "low", LowGear.String())
}
