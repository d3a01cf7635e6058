package trajectory

import (
	"math"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
)

// Ramsete is a nonlinear pose-tracking controller for differential drives.
// Beta (> 0) is like a proportional gain; Zeta in (0, 1) is damping.
type Ramsete struct {
	Beta       float64 `koanf:"beta"`
	Zeta       float64 `koanf:"zeta"`
	TrackWidth float64 `koanf:"track_width"`
}

// DefaultRamsete is tuned for the competition drivetrain.
var DefaultRamsete = Ramsete{Beta: 2.0, Zeta: 0.7, TrackWidth: geom.Inches(26)}

// Calculate returns the wheel speeds that drive robot toward ref.
func (r Ramsete) Calculate(robot geom.Pose, ref State) drive.WheelVelocity {
	e := ref.Pose.RelativeTo(robot)
	eTheta := float64(e.Heading)

	vRef := ref.Velocity
	wRef := ref.Velocity * ref.Curvature
	k := 2 * r.Zeta * math.Sqrt(wRef*wRef+r.Beta*vRef*vRef)

	v := vRef*math.Cos(eTheta) + k*e.X
	w := wRef + k*eTheta + r.Beta*vRef*sinc(eTheta)*e.Y

	return drive.WheelVelocity{
		Left:  v - w*r.TrackWidth/2,
		Right: v + w*r.TrackWidth/2,
	}
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-9 {
		return 1 - x*x/6
	}
	return math.Sin(x) / x
}
