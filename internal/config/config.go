// Package config holds the robot process configuration.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/auto"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/logging"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/trajectory"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the whole robot configuration.
type Config struct {
	Robot  RobotConfig    `koanf:"robot"`
	Drive  DriveConfig    `koanf:"drive"`
	Auto   auto.Config    `koanf:"auto"`
	Vision VisionConfig   `koanf:"vision"`
	Log    logging.Config `koanf:"log"`
}

// RobotConfig covers the process edge: loop rate, serial link, HTTP and
// cameras. StartX and StartY are the pose assumed at boot, in metres.
type RobotConfig struct {
	LoopHz  int      `koanf:"loop_hz"`
	Serial  string   `koanf:"serial"`
	Baud    int      `koanf:"baud"`
	HTTP    string   `koanf:"http"`
	Cameras []string `koanf:"cameras"`
	StartX  float64  `koanf:"start_x"`
	StartY  float64  `koanf:"start_y"`
}

// Period is the control loop period.
func (c RobotConfig) Period() time.Duration {
	return time.Second / time.Duration(c.LoopHz)
}

// DriveConfig tunes the drivetrain. Speeds are wheel surface speeds in m/s;
// the wheel diameter is in metres.
type DriveConfig struct {
	Teleop        drive.TeleopConfig `koanf:"teleop"`
	MaxSpeed      drive.GearSpeeds   `koanf:"max_speed"`
	Ramsete       trajectory.Ramsete `koanf:"ramsete"`
	TicksPerRev   float64            `koanf:"ticks_per_rev"`
	WheelDiameter float64            `koanf:"wheel_diameter"`
}

// VisionConfig tunes the target tracker.
type VisionConfig struct {
	Staleness  time.Duration `koanf:"staleness"`
	MaxSamples int           `koanf:"max_samples"`
}

// Default returns the competition configuration.
func Default() *Config {
	return &Config{
		Robot: RobotConfig{
			LoopHz: 50,
			Serial: "/dev/ttyACM0",
			Baud:   115200,
			HTTP:   ":8080",
			StartX: geom.Feet(20),
			StartY: geom.Feet(20),
		},
		Drive: DriveConfig{
			Teleop:        drive.DefaultTeleopConfig(),
			MaxSpeed:      drive.GearSpeeds{Low: geom.Feet(8), High: geom.Feet(14)},
			Ramsete:       trajectory.DefaultRamsete,
			TicksPerRev:   4096,
			WheelDiameter: geom.Inches(6),
		},
		Auto: auto.DefaultConfig(),
		Vision: VisionConfig{
			Staleness:  500 * time.Millisecond,
			MaxSamples: 5,
		},
		Log: logging.DefaultConfig(),
	}
}

// Validate reports the first problem found.
func (c *Config) Validate() error {
	if c.Robot.LoopHz <= 0 || c.Robot.LoopHz > 1000 {
		return fmt.Errorf("%w: robot.loop_hz must be in 1..1000, got %d", ErrInvalid, c.Robot.LoopHz)
	}
	if c.Robot.Serial == "" {
		return fmt.Errorf("%w: robot.serial is required", ErrInvalid)
	}
	if c.Robot.Baud <= 0 {
		return fmt.Errorf("%w: robot.baud must be positive", ErrInvalid)
	}
	if c.Robot.HTTP == "" {
		return fmt.Errorf("%w: robot.http is required", ErrInvalid)
	}
	if c.Drive.MaxSpeed.Low <= 0 || c.Drive.MaxSpeed.High <= 0 {
		return fmt.Errorf("%w: drive.max_speed must be positive", ErrInvalid)
	}
	if c.Drive.Ramsete.Beta <= 0 || c.Drive.Ramsete.Zeta <= 0 || c.Drive.Ramsete.Zeta >= 1 {
		return fmt.Errorf("%w: drive.ramsete needs beta > 0 and 0 < zeta < 1", ErrInvalid)
	}
	if c.Drive.Ramsete.TrackWidth <= 0 {
		return fmt.Errorf("%w: drive.ramsete.track_width must be positive", ErrInvalid)
	}
	if c.Drive.TicksPerRev <= 0 || c.Drive.WheelDiameter <= 0 {
		return fmt.Errorf("%w: drive encoder geometry must be positive", ErrInvalid)
	}
	if c.Drive.Teleop.Deadband < 0 || c.Drive.Teleop.Deadband >= 1 {
		return fmt.Errorf("%w: drive.teleop.deadband must be in [0, 1)", ErrInvalid)
	}
	if c.Vision.Staleness <= 0 || c.Vision.MaxSamples <= 0 {
		return fmt.Errorf("%w: vision staleness and max_samples must be positive", ErrInvalid)
	}
	if err := c.Auto.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
