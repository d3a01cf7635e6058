package auto

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/command"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/metrics"
)

func TestRelocalizeCorrectsPose(t *testing.T) {
	r, f := newFakeRobot()
	core, logs := observer.New(zapcore.InfoLevel)
	f.loc.pose = geom.NewPose(5, 5, 0)
	// the estimate puts the target 2 m dead ahead
	f.vision.front = posePtr(geom.NewPose(7, 5, 0))
	target := geom.NewPose(8, 6, geom.Degrees(90))

	applied := testutil.ToFloat64(metrics.Relocalizations.WithLabelValues("applied"))
	reloc := NewRelocalize(target, true, r, zap.New(core))
	var runner command.Runner
	runner.Schedule(reloc, t0)
	assert.Equal(t, command.Completed, runner.Step(t0))

	require.True(t, reloc.Applied())
	require.Len(t, f.loc.resets, 1)
	got := f.loc.pose
	assert.InDelta(t, 8, got.X, eps)
	assert.InDelta(t, 4, got.Y, eps)
	assert.InDelta(t, 90, got.Heading.Degrees(), 1e-6)

	assert.Equal(t, applied+1, testutil.ToFloat64(metrics.Relocalizations.WithLabelValues("applied")))
	require.Equal(t, 1, logs.FilterMessage("relocalized").Len())
}

func TestRelocalizeKeepsHeadingOffset(t *testing.T) {
	r, f := newFakeRobot()
	f.loc.pose = geom.NewPose(0, 0, geom.Degrees(10))
	f.vision.back = posePtr(geom.NewPose(-1, 0, geom.Degrees(180)))
	target := geom.NewPose(3, 3, geom.Degrees(180))

	reloc := NewRelocalize(target, false, r, zap.NewNop())
	reloc.Start(t0)

	require.True(t, reloc.Applied())
	// robot and measured target differ by 170 degrees; the true target is at
	// 180, so the robot ends up at 10
	assert.InDelta(t, 10, f.loc.pose.Heading.Degrees(), 1e-6)
	assert.InDelta(t, 4, f.loc.pose.X, 1e-6)
}

func TestRelocalizeWithoutTarget(t *testing.T) {
	r, f := newFakeRobot()
	core, logs := observer.New(zapcore.InfoLevel)
	f.loc.pose = geom.NewPose(1, 2, 0)

	reloc := NewRelocalize(RocketF, true, r, zap.New(core))
	reloc.Start(t0)
	assert.True(t, reloc.Poll(t0))

	assert.False(t, reloc.Applied())
	assert.Empty(t, f.loc.resets)
	assert.Equal(t, geom.NewPose(1, 2, 0), f.loc.pose)
	assert.Equal(t, 1, logs.FilterMessage("relocalize skipped, no target").Len())
}

func TestTurnInPlace(t *testing.T) {
	r, f := newFakeRobot()
	cfg := DefaultTurnConfig()
	turn := NewTurnInPlace(cfg, func(time.Time) geom.Rotation { return geom.Degrees(90) }, r)

	var runner command.Runner
	runner.Schedule(turn, t0)
	assert.Equal(t, command.Running, runner.Step(t0))
	require.Len(t, f.drive.open, 1)
	// counter-clockwise: left wheels back, right wheels forward, saturated
	assert.InDelta(t, -cfg.MaxOutput, f.drive.open[0].Left, eps)
	assert.InDelta(t, cfg.MaxOutput, f.drive.open[0].Right, eps)
	assert.InDelta(t, 90, turn.Error(t0).Degrees(), 1e-6)

	f.loc.pose.Heading = geom.Degrees(89)
	assert.Equal(t, command.Completed, runner.Step(at(20*time.Millisecond)))
	assert.GreaterOrEqual(t, f.drive.neutral, 1)
}

func TestTurnInPlaceWrapsError(t *testing.T) {
	r, f := newFakeRobot()
	f.loc.pose.Heading = geom.Degrees(170)
	turn := NewTurnInPlace(DefaultTurnConfig(), func(time.Time) geom.Rotation { return geom.Degrees(-170) }, r)

	turn.Start(t0)
	assert.InDelta(t, 20, turn.Error(t0).Degrees(), 1e-6)
	assert.False(t, turn.Poll(at(20*time.Millisecond)))
	require.Len(t, f.drive.open, 1)
	assert.Less(t, f.drive.open[0].Left, 0.0)
	assert.Greater(t, f.drive.open[0].Right, 0.0)
}

func TestNotWithinRegion(t *testing.T) {
	_, f := newFakeRobot()
	f.loc.pose = SideStart
	wait := NotWithinRegion(HabitatL1Platform, f.loc)

	var runner command.Runner
	runner.Schedule(wait, t0)
	assert.Equal(t, command.Running, runner.Step(t0))
	f.loc.pose = geom.NewPose(geom.Feet(10), geom.Feet(9.25), 0)
	assert.Equal(t, command.Completed, runner.Step(t0))
}

func TestTimedTankStopsOnTimeout(t *testing.T) {
	r, f := newFakeRobot()
	var runner command.Runner
	runner.Schedule(command.WithTimeout(TimedTank(r.Drive, -0.5, -0.5), time.Second), t0)

	assert.Equal(t, command.Running, runner.Step(t0))
	assert.Equal(t, drive.WheelCommand{Left: -0.5, Right: -0.5}, f.drive.open[0])
	assert.Equal(t, command.Completed, runner.Step(at(time.Second)))
	assert.Equal(t, 1, f.drive.neutral)
}

func TestSetGearAndMoveArm(t *testing.T) {
	r, f := newFakeRobot()
	var runner command.Runner
	runner.Schedule(command.Sequence(SetGear(r.Drive, drive.HighGear), MoveArm(r.Arm, ArmStowed), MoveArm(nil, 10)), t0)
	assert.Equal(t, command.Completed, runner.Step(t0))
	assert.Equal(t, drive.HighGear, f.drive.gear)
	assert.Equal(t, []float64{ArmStowed}, f.arm.angles)
}

func TestIntakeHatch(t *testing.T) {
	for _, releasing := range []bool{false, true} {
		_, f := newFakeRobot()
		var runner command.Runner
		runner.Schedule(IntakeHatch(f.intake, releasing), t0)
		runner.Step(t0)

		want := RollerFull
		if releasing {
			want = -RollerFull
		}
		assert.Equal(t, want, last(f.intake.hatch))
		assert.Equal(t, 0.0, last(f.intake.cargo))
		assert.False(t, f.intake.open)

		runner.Cancel(at(time.Second))
		assert.Equal(t, 0.0, last(f.intake.hatch))
	}
}

func TestIntakeCargoHoldsThenStops(t *testing.T) {
	_, f := newFakeRobot()
	var runner command.Runner
	runner.Schedule(IntakeCargo(f.intake, false, time.Second), t0)

	assert.True(t, f.intake.open)
	assert.Equal(t, -RollerFull, last(f.intake.hatch))
	assert.Equal(t, RollerFull, last(f.intake.cargo))

	assert.Equal(t, command.Running, runner.Step(at(500*time.Millisecond)))
	assert.Equal(t, RollerFull, last(f.intake.cargo))

	// run times out and the hold starts in the same cycle
	assert.Equal(t, command.Running, runner.Step(at(time.Second)))
	assert.Equal(t, RollerHold, last(f.intake.cargo))
	assert.Equal(t, RollerHold, last(f.intake.hatch))
	assert.False(t, f.intake.open)

	assert.Equal(t, command.Running, runner.Step(at(1400*time.Millisecond)))
	assert.Equal(t, command.Completed, runner.Step(at(time.Second+CargoHoldTime)))

	// full, hold, off with no stop in between
	assert.Equal(t, []float64{RollerFull, RollerHold, 0}, f.intake.cargo)
	assert.Equal(t, []float64{-RollerFull, RollerHold, 0}, f.intake.hatch)
	assert.False(t, f.intake.open)
}

func TestIntakeCargoInterruptedDuringHold(t *testing.T) {
	_, f := newFakeRobot()
	var runner command.Runner
	runner.Schedule(IntakeCargo(f.intake, false, time.Second), t0)
	runner.Step(at(time.Second))
	require.Equal(t, RollerHold, last(f.intake.cargo))

	runner.Cancel(at(1200 * time.Millisecond))
	assert.Equal(t, []float64{RollerFull, RollerHold, 0}, f.intake.cargo)
	assert.False(t, runner.Active())
}

func TestIntakeCargoWhileHeld(t *testing.T) {
	_, f := newFakeRobot()
	held := true
	var runner command.Runner
	runner.Schedule(IntakeCargoWhile(f.intake, true, func() bool { return held }), t0)

	assert.Equal(t, command.Running, runner.Step(at(5*time.Second)))
	assert.Equal(t, -RollerFull, last(f.intake.cargo))

	held = false
	assert.Equal(t, command.Running, runner.Step(at(6*time.Second)))
	assert.Equal(t, RollerHold, last(f.intake.cargo))
	assert.Equal(t, command.Completed, runner.Step(at(6*time.Second+CargoHoldTime)))
	assert.Equal(t, []float64{-RollerFull, RollerHold, 0}, f.intake.cargo)
}

func TestIntakeCargoRelease(t *testing.T) {
	_, f := newFakeRobot()
	var runner command.Runner
	runner.Schedule(IntakeCargo(f.intake, true, time.Second), t0)

	assert.False(t, f.intake.open)
	assert.Equal(t, RollerFull, last(f.intake.hatch))
	assert.Equal(t, -RollerFull, last(f.intake.cargo))

	runner.Cancel(at(100 * time.Millisecond))
	assert.Equal(t, 0.0, last(f.intake.cargo))
	assert.Equal(t, 0.0, last(f.intake.hatch))
}
