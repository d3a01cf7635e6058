package drive

import "math"

// Deadband zeroes x inside ±band and passes it through unchanged outside.
func Deadband(x, band float64) float64 {
	if math.Abs(x) < band {
		return 0
	}
	return x
}

// ThrottleDeadband removes a small band around zero and rescales the rest so
// the output still reaches ±1. The knee sits at band/1.8.
func ThrottleDeadband(x, band float64) float64 {
	knee := band / 1.8
	mag := (math.Abs(x) - knee) / (1 - knee)
	if mag <= 0 {
		return 0
	}
	return math.Copysign(mag, x)
}

// ThrottleCurve is the "KISS" rate curve used on the throttle axis.
//
// With the default tuning a full deflection maps to roughly 1.0 and small
// deflections are heavily softened.
type ThrottleCurve struct {
	Rate   float64 `koanf:"rate"`
	Curve  float64 `koanf:"curve"`
	RCRate float64 `koanf:"rc_rate"`
}

// DefaultThrottleCurve is the curve tuned on the practice field.
var DefaultThrottleCurve = ThrottleCurve{Rate: 0.77, Curve: 0.0, RCRate: 0.00116}

// Apply shapes a stick deflection in [-1, 1].
func (c ThrottleCurve) Apply(x float64) float64 {
	useRates := 1 - math.Abs(x)*c.Rate
	if useRates <= 0 {
		// curve is singular at |x| = 1/Rate; saturate instead
		return math.Copysign(1, x)
	}
	shaped := (x*x*x*c.Curve + x*(1-c.Curve)) * (c.RCRate / 10)
	return 2000 * (1 / useRates) * shaped
}

// signedSquare keeps the sign of x and squares its magnitude.
func signedSquare(x float64) float64 { return x * math.Abs(x) }
