// Package drive turns driver inputs into differential wheel commands.
//
// Mix is the curvature ("cheesy") drive mixer. TeleopLoop samples the driver
// inputs once per control cycle, shapes them, mixes them and writes the result
// to an Output. The quick-turn accumulator is owned by TeleopLoop (shared by an
// open-loop loop and its closed-loop twin) and is only ever changed by Mix.
package drive

import "math"

// Tuned values; changing them changes how the robot feels to the driver.
const (
	// QuickStopThreshold is the |linear| below which quick turn charges the accumulator.
	QuickStopThreshold = 0.2
	// QuickStopAlpha is the accumulator smoothing factor.
	QuickStopAlpha = 0.1
)

//WheelCommand is a pair of wheel duty cycles in [-1, 1]
type WheelCommand struct {
	Left, Right float64
}

// Mix converts a linear power and a curvature into wheel powers.
//
// accumulator is the quick-stop state from the previous cycle; the updated
// value is returned and must be handed back on the next cycle.
func Mix(linear, curvature float64, quickTurn bool, accumulator float64) (WheelCommand, float64) {
	var angular float64
	var overPower bool

	if quickTurn {
		if math.Abs(linear) < QuickStopThreshold {
			accumulator = (1-QuickStopAlpha)*accumulator +
				QuickStopAlpha*Clamp(curvature, -1, 1)*2
		}
		overPower = true
		angular = curvature
	} else {
		overPower = false
		angular = math.Abs(linear)*curvature - accumulator

		switch {
		case accumulator > 1:
			accumulator -= 1
		case accumulator < -1:
			accumulator += 1
		default:
			accumulator = 0
		}
	}

	left := linear + angular
	right := linear - angular

	// keep turning authority: push the excess onto the other wheel
	if overPower {
		switch {
		case left > 1:
			right -= left - 1
			left = 1
		case right > 1:
			left -= right - 1
			right = 1
		case left < -1:
			right -= left + 1
			left = -1
		case right < -1:
			left -= right + 1
			right = -1
		}
	}

	if m := math.Max(math.Abs(left), math.Abs(right)); m > 1 {
		left /= m
		right /= m
	}

	return WheelCommand{Left: left, Right: right}, accumulator
}

// Clamp bounds x to [lo, hi]. NaN becomes 0.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
