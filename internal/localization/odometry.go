// Package localization keeps the robot's field pose estimate.
package localization

import (
	"math"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
)

// TankOdometry integrates wheel encoder distances along the gyro heading.
//
// The gyro is trusted for heading; encoders only supply distance. Reset
// re-bases the gyro so a correction does not fight the next update, while
// encoder travel keeps accumulating from the last reading.
type TankOdometry struct {
	pose        geom.Pose
	gyroOffset  geom.Rotation
	lastLeft    float64
	lastRight   float64
	lastGyro    geom.Rotation
	initialized bool
}

// NewTankOdometry starts at pose.
func NewTankOdometry(pose geom.Pose) *TankOdometry {
	return &TankOdometry{pose: pose}
}

// Update takes cumulative wheel distances in metres and the raw gyro heading.
func (o *TankOdometry) Update(left, right float64, gyro geom.Rotation) geom.Pose {
	if !o.initialized {
		o.lastLeft, o.lastRight = left, right
		o.gyroOffset = (o.pose.Heading - gyro).Normalize()
		o.initialized = true
	}
	heading := (gyro + o.gyroOffset).Normalize()

	dl, dr := left-o.lastLeft, right-o.lastRight
	o.lastLeft, o.lastRight = left, right
	o.lastGyro = gyro

	d := (dl + dr) / 2
	// integrate along the mean heading of the step
	mid := o.pose.Heading + (heading-o.pose.Heading).Normalize()/2
	o.pose = geom.Pose{
		Translation: o.pose.Translation.Add(geom.Translation{X: d * mid.Cos(), Y: d * mid.Sin()}),
		Heading:     heading,
	}
	return o.pose
}

// Pose returns the current estimate.
func (o *TankOdometry) Pose() geom.Pose { return o.pose }

// Reset replaces the estimate. The last gyro reading is re-based to read
// pose.Heading. Wheel travel after the last Update is applied from pose on the
// next one.
func (o *TankOdometry) Reset(pose geom.Pose) {
	o.pose = pose
	if o.initialized {
		o.gyroOffset = (pose.Heading - o.lastGyro).Normalize()
	}
}

// Distance is a helper for encoder ticks.
func Distance(ticks int32, ticksPerRev, wheelDiameter float64) float64 {
	if ticksPerRev == 0 {
		return 0
	}
	return float64(ticks) / ticksPerRev * math.Pi * wheelDiameter
}
