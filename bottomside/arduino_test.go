package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/metrics"
)

//link is a fake serial port: reads come from in, writes land in out
type link struct {
	in  *bytes.Buffer
	out bytes.Buffer
}

func (l *link) Read(p []byte) (int, error) { return l.in.Read(p) }
func (l *link) Write(p []byte) (int, error) { return l.out.Write(p) }

var testGeometry = Geometry{TicksPerRev: 4096, WheelDiameter: 0.15}
var testSpeeds = drive.GearSpeeds{Low: 2, High: 4}

func newLink(t *testing.T, extra []byte) (*Arduino, *link) {
	t.Helper()
	l := &link{in: bytes.NewBufferString("init\r\nstart\n")}
	l.in.Write(extra)
	a, err := NewArduino(l, DefaultPins, testGeometry, testSpeeds)
	require.NoError(t, err)
	return a, l
}

func TestArduinoHandshake(t *testing.T) {
	_, err := NewArduino(&link{in: bytes.NewBufferString("init\nboom\n")}, DefaultPins, testGeometry, testSpeeds)
	assert.ErrorContains(t, err, `expected "start" but got "boom"`)

	_, err = NewArduino(&link{in: bytes.NewBufferString("init\n")}, DefaultPins, testGeometry, testSpeeds)
	assert.ErrorIs(t, err, io.EOF)
}

func TestArduinoDriveCommands(t *testing.T) {
	a, l := newLink(t, nil)

	a.SetOpenLoop(drive.WheelCommand{Left: 0.5, Right: -2})
	require.NoError(t, a.Flush())
	assert.Equal(t, "1 2 127\n1 3 -255\n", l.out.String())

	//unchanged outputs are not resent
	l.out.Reset()
	a.SetOpenLoop(drive.WheelCommand{Left: 0.5, Right: -1})
	require.NoError(t, a.Flush())
	assert.Empty(t, l.out.String())

	l.out.Reset()
	a.SetNeutral()
	require.NoError(t, a.Flush())
	assert.Equal(t, "1 2 0\n1 3 0\n", l.out.String())
}

func TestArduinoVelocityUsesGearSpeed(t *testing.T) {
	a, l := newLink(t, nil)

	a.SetVelocity(drive.WheelVelocity{Left: 1, Right: -2})
	require.NoError(t, a.Flush())
	assert.Equal(t, "1 2 127\n1 3 -255\n", l.out.String())

	l.out.Reset()
	a.SetGear(drive.HighGear)
	a.SetVelocity(drive.WheelVelocity{Left: 1, Right: -2})
	require.NoError(t, a.Flush())
	assert.Equal(t, "4 22 1\n1 2 63\n1 3 -127\n", l.out.String())
	assert.Equal(t, drive.HighGear, a.Gear())
}

func TestArduinoIntakeAndArm(t *testing.T) {
	a, l := newLink(t, nil)

	a.SetHatch(6)
	a.SetCargo(-12)
	a.SetOpen(true)
	a.SetAngle(200)
	require.NoError(t, a.Flush())
	assert.Equal(t, "1 4 127\n1 5 -255\n4 23 1\n2 9 180\n", l.out.String())

	l.out.Reset()
	a.SetOpen(true)
	a.SetAngle(180)
	a.SetAngle(20)
	require.NoError(t, a.Flush())
	assert.Equal(t, "2 9 20\n", l.out.String())
}

type brokenPort struct{ *link }

func (brokenPort) Write([]byte) (int, error) { return 0, errors.New("unplugged") }

func TestArduinoFlushReportsWriteError(t *testing.T) {
	l := &link{in: bytes.NewBufferString("init\nstart\n")}
	a, err := NewArduino(brokenPort{l}, DefaultPins, testGeometry, testSpeeds)
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.SerialErrors)
	a.SetOpenLoop(drive.WheelCommand{Left: 1, Right: 1})
	err = a.Flush()
	assert.ErrorContains(t, err, "unplugged")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SerialErrors))
	assert.Empty(t, a.motcache)
}

func TestArduinoReadSensors(t *testing.T) {
	var frame bytes.Buffer
	require.NoError(t, binary.Write(&frame, binary.BigEndian, sensorFrame{
		LeftTicks:       4096,
		RightTicks:      -2048,
		HeadingCentiDeg: 9000,
		T:               1234,
	}))
	a, l := newLink(t, frame.Bytes())

	a.SetNeutral()
	r, err := a.Read()
	require.NoError(t, err)
	//pending commands go out ahead of the request
	assert.Equal(t, "1 2 0\n1 3 0\n3\n", l.out.String())
	assert.InDelta(t, math.Pi*0.15, r.Left, 1e-12)
	assert.InDelta(t, -math.Pi*0.15/2, r.Right, 1e-12)
	assert.InDelta(t, 90, r.Heading.Degrees(), 1e-9)
}

func TestArduinoReadShortFrame(t *testing.T) {
	a, _ := newLink(t, []byte{0, 0, 1})
	_, err := a.Read()
	assert.ErrorIs(t, err, errShortFrame)
}
