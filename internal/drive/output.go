package drive

//Gear is one of the two drive ratios
type Gear int

const (
	LowGear Gear = iota
	HighGear
)

func (g Gear) String() string {
	if g == HighGear {
		return "high"
	}
	return "low"
}

//WheelVelocity is a pair of wheel surface speeds in m/s
type WheelVelocity struct {
	Left, Right float64
}

// Output is the drivetrain sink. Teleop and autonomous both write to it, never
// in the same cycle.
type Output interface {
	SetOpenLoop(WheelCommand)
	SetVelocity(WheelVelocity)
	SetNeutral()
	SetGear(Gear)
	Gear() Gear
}

// GearSpeeds is the free speed of the drivetrain in each gear.
type GearSpeeds struct {
	Low  float64 `koanf:"low"`
	High float64 `koanf:"high"`
}

// For returns the max speed for g.
func (s GearSpeeds) For(g Gear) float64 {
	if g == HighGear {
		return s.High
	}
	return s.Low
}
