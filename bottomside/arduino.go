package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tarm/serial"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/localization"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/metrics"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/robot"
)

// Arduino command codes.
const (
	cmdMotor  = 1
	cmdServo  = 2
	cmdSensor = 3
	cmdPin    = 4
)

// nominalVolts converts roller voltages to duty cycle.
const nominalVolts = 12.0

//Pins is the Arduino wiring
type Pins struct {
	LeftDrive, RightDrive uint8 //motor channels
	Hatch, Cargo          uint8 //intake roller motor channels
	Arm                   uint8 //servo channel
	Shifter               uint8 //high gear when set
	Jaws                  uint8 //intake open when set
}

//DefaultPins is the competition wiring
var DefaultPins = Pins{
	LeftDrive:  2,
	RightDrive: 3,
	Hatch:      4,
	Cargo:      5,
	Arm:        9,
	Shifter:    22,
	Jaws:       23,
}

//Geometry converts encoder ticks into metres
type Geometry struct {
	TicksPerRev   float64
	WheelDiameter float64
}

//Arduino is a linked arduino driving the drivetrain and intake. It is only
//used from the control loop goroutine.
type Arduino struct {
	rd     *bufio.Reader
	wr     *bufio.Writer
	closer io.Closer

	pins   Pins
	wheel  Geometry
	speeds drive.GearSpeeds
	gear   drive.Gear

	motcache   map[uint8]int
	servocache map[uint8]uint8
	pincache   map[uint8]bool
	err        error // first write error since the last Flush
}

//ConnectArduino opens the serial port and waits for the Arduino to start
func ConnectArduino(port string, baud int, pins Pins, g Geometry, speeds drive.GearSpeeds) (*Arduino, error) {
	bus, err := serial.OpenPort(&serial.Config{
		Name: port,
		Baud: baud,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	a, err := NewArduino(bus, pins, g, speeds)
	if err != nil {
		bus.Close()
		return nil, err
	}
	a.closer = bus
	return a, nil
}

//NewArduino runs the startup handshake on rw
func NewArduino(rw io.ReadWriter, pins Pins, g Geometry, speeds drive.GearSpeeds) (*Arduino, error) {
	a := &Arduino{
		rd:         bufio.NewReader(rw),
		wr:         bufio.NewWriter(rw),
		pins:       pins,
		wheel:      g,
		speeds:     speeds,
		motcache:   map[uint8]int{},
		servocache: map[uint8]uint8{},
		pincache:   map[uint8]bool{},
	}
	//wait for init then start
	for _, want := range []string{"init", "start"} {
		ln, err := a.rd.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("arduino handshake: %w", err)
		}
		if got := strings.TrimSpace(ln); got != want {
			return nil, fmt.Errorf("arduino handshake: expected %q but got %q", want, got)
		}
	}
	return a, nil
}

//Close closes the serial port
func (a *Arduino) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *Arduino) fail(err error) {
	if err != nil && a.err == nil {
		a.err = err
	}
}

//Flush sends buffered commands. It returns the first error seen since the
//last Flush, so a failing link is reported once per cycle.
func (a *Arduino) Flush() error {
	a.fail(a.wr.Flush())
	err := a.err
	a.err = nil
	if err != nil {
		//nothing is known to have arrived, so resend everything next time
		clear(a.motcache)
		clear(a.servocache)
		clear(a.pincache)
		metrics.SerialErrors.Inc()
		return fmt.Errorf("arduino: %w", err)
	}
	return nil
}

//setMotor sets a motor speed in [-1, 1]
func (a *Arduino) setMotor(motnum uint8, speed float64) {
	val := int(drive.Clamp(speed, -1, 1) * 255)
	if old, cached := a.motcache[motnum]; cached && old == val {
		return
	}
	if _, err := fmt.Fprintf(a.wr, "%d %d %d\n", cmdMotor, motnum, val); err != nil {
		a.fail(err)
		return
	}
	a.motcache[motnum] = val
}

//setServo sets a servo position in degrees in [0, 180]
func (a *Arduino) setServo(servonum uint8, pos uint8) {
	if pos > 180 {
		pos = 180
	}
	if old, cached := a.servocache[servonum]; cached && old == pos {
		return
	}
	if _, err := fmt.Fprintf(a.wr, "%d %d %d\n", cmdServo, servonum, pos); err != nil {
		a.fail(err)
		return
	}
	a.servocache[servonum] = pos
}

//digWrite sets a digital pin
func (a *Arduino) digWrite(pin uint8, on bool) {
	if old, cached := a.pincache[pin]; cached && old == on {
		return
	}
	v := 0
	if on {
		v = 1
	}
	if _, err := fmt.Fprintf(a.wr, "%d %d %d\n", cmdPin, pin, v); err != nil {
		a.fail(err)
		return
	}
	a.pincache[pin] = on
}

func (a *Arduino) SetOpenLoop(c drive.WheelCommand) {
	a.setMotor(a.pins.LeftDrive, c.Left)
	a.setMotor(a.pins.RightDrive, c.Right)
}

//SetVelocity has no encoder loop on the Arduino side; speeds are sent as a
//feedforward fraction of the current gear's top speed.
func (a *Arduino) SetVelocity(v drive.WheelVelocity) {
	top := a.speeds.For(a.gear)
	if top <= 0 {
		a.SetNeutral()
		return
	}
	a.SetOpenLoop(drive.WheelCommand{Left: v.Left / top, Right: v.Right / top})
}

func (a *Arduino) SetNeutral() {
	a.SetOpenLoop(drive.WheelCommand{})
}

func (a *Arduino) SetGear(g drive.Gear) {
	a.gear = g
	a.digWrite(a.pins.Shifter, g == drive.HighGear)
}

func (a *Arduino) Gear() drive.Gear { return a.gear }

func (a *Arduino) SetHatch(volts float64) { a.setMotor(a.pins.Hatch, volts/nominalVolts) }
func (a *Arduino) SetCargo(volts float64) { a.setMotor(a.pins.Cargo, volts/nominalVolts) }
func (a *Arduino) SetOpen(open bool) { a.digWrite(a.pins.Jaws, open) }

func (a *Arduino) SetAngle(deg float64) {
	a.setServo(a.pins.Arm, uint8(drive.Clamp(deg, 0, 180)))
}

//sensorFrame is the big-endian reply to a sensor request
type sensorFrame struct {
	LeftTicks, RightTicks int32
	HeadingCentiDeg       int32
	T                     uint32 //arduino millis
}

var errShortFrame = errors.New("short sensor frame")

//Read requests and decodes one sensor frame. Pending motor commands are
//flushed along with the request.
func (a *Arduino) Read() (robot.Reading, error) {
	if _, err := fmt.Fprintf(a.wr, "%d\n", cmdSensor); err != nil {
		return robot.Reading{}, fmt.Errorf("arduino: request sensors: %w", err)
	}
	if err := a.wr.Flush(); err != nil {
		return robot.Reading{}, fmt.Errorf("arduino: request sensors: %w", err)
	}
	var f sensorFrame
	if err := binary.Read(a.rd, binary.BigEndian, &f); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = errShortFrame
		}
		return robot.Reading{}, fmt.Errorf("arduino: read sensors: %w", err)
	}
	return robot.Reading{
		Left:    localization.Distance(f.LeftTicks, a.wheel.TicksPerRev, a.wheel.WheelDiameter),
		Right:   localization.Distance(f.RightTicks, a.wheel.TicksPerRev, a.wheel.WheelDiameter),
		Heading: geom.Degrees(float64(f.HeadingCentiDeg) / 100),
	}, nil
}
