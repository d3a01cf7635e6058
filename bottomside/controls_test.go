package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/auto"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/robot"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/trajectory"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/vision"
)

var t0 = time.Date(2019, 4, 18, 9, 0, 0, 0, time.UTC)

func TestControlsSnapshotIsCopy(t *testing.T) {
	var c Controls
	f := ControlFrame{
		Axes:    map[string]float64{drive.AxisThrottleForward: 0.5},
		Buttons: map[string]bool{robot.ButtonShift: true},
		Mode:    "teleop",
	}
	c.Update(f)
	f.Axes[drive.AxisThrottleForward] = -1

	snap := c.Snapshot()
	assert.Equal(t, 0.5, snap.Axis(drive.AxisThrottleForward))
	assert.True(t, snap.Button(robot.ButtonShift))
	snap.Buttons[robot.ButtonShift] = false
	assert.True(t, c.Snapshot().Button(robot.ButtonShift))
	assert.Equal(t, uint64(1), c.UpdateCount)
}

func TestControlsRelease(t *testing.T) {
	var c Controls
	c.Update(ControlFrame{
		Axes:      map[string]float64{drive.AxisThrottleForward: 1},
		Mode:      "teleop",
		Emergency: true,
	})
	c.Release()

	snap := c.Snapshot()
	assert.Zero(t, snap.Axis(drive.AxisThrottleForward))
	assert.Equal(t, "teleop", snap.Mode)
	assert.True(t, snap.Emergency)
}

func newTestRobot(t *testing.T, log *zap.Logger) (*robot.Robot, *link) {
	t.Helper()
	ard, l := newLink(t, nil)
	bot, err := robot.New(robot.Options{
		Teleop:  drive.DefaultTeleopConfig(),
		Speeds:  testSpeeds,
		Ramsete: trajectory.DefaultRamsete,
		Auto:    auto.DefaultConfig(),
		Period:  20 * time.Millisecond,
	}, robot.Hardware{
		Drive:   ard,
		Input:   &frameInput{},
		Sensors: ard,
		Vision:  vision.NewTracker(time.Second, 5),
		Intake:  ard,
		Arm:     ard,
	}, log)
	require.NoError(t, err)
	return bot, l
}

func TestApplyRequests(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)
	bot, _ := newTestRobot(t, log)

	applyRequests(bot, ControlFrame{}, t0, log)
	assert.Equal(t, robot.Disabled, bot.Mode())
	assert.False(t, bot.Emergency())

	applyRequests(bot, ControlFrame{Mode: "teleop", Emergency: true}, t0, log)
	assert.Equal(t, robot.Teleop, bot.Mode())
	assert.True(t, bot.Emergency())

	//an empty mode keeps the current one
	applyRequests(bot, ControlFrame{}, t0, log)
	assert.Equal(t, robot.Teleop, bot.Mode())
	assert.False(t, bot.Emergency())

	applyRequests(bot, ControlFrame{Mode: "sandstorm"}, t0, log)
	assert.Equal(t, robot.Teleop, bot.Mode())
	assert.Equal(t, 1, logs.FilterMessage("ignoring mode request").Len())
}

func TestFrameInputDrivesTeleop(t *testing.T) {
	ard, l := newLink(t, nil)
	input := &frameInput{}
	bot, err := robot.New(robot.Options{
		Teleop:  drive.DefaultTeleopConfig(),
		Speeds:  testSpeeds,
		Ramsete: trajectory.DefaultRamsete,
		Auto:    auto.DefaultConfig(),
	}, robot.Hardware{
		Drive:   ard,
		Input:   input,
		Sensors: ard,
		Intake:  ard,
		Arm:     ard,
	}, zap.NewNop())
	require.NoError(t, err)

	input.frame = ControlFrame{
		Axes:      map[string]float64{drive.AxisThrottleForward: 1},
		Mode:      "teleop",
		Emergency: true,
	}
	applyRequests(bot, input.frame, t0, zap.NewNop())
	require.NoError(t, ard.Flush())
	l.out.Reset()
	bot.Step(t0)
	require.NoError(t, ard.Flush())
	//no sensor frame is queued so the read fails, but the wheels still move
	assert.Contains(t, l.out.String(), "1 2 ")
	assert.NotContains(t, l.out.String(), "1 2 0\n")
}
