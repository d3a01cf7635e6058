package robot

import (
	"github.com/TheAnnalyst/Offseason-Croissant/internal/drive"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/metrics"
)

// metered publishes every wheel output before passing it on.
type metered struct {
	drive.Output
}

func (m metered) SetOpenLoop(c drive.WheelCommand) {
	metrics.WheelOutput.WithLabelValues("left").Set(c.Left)
	metrics.WheelOutput.WithLabelValues("right").Set(c.Right)
	m.Output.SetOpenLoop(c)
}

func (m metered) SetVelocity(v drive.WheelVelocity) {
	metrics.WheelOutput.WithLabelValues("left").Set(v.Left)
	metrics.WheelOutput.WithLabelValues("right").Set(v.Right)
	m.Output.SetVelocity(v)
}

func (m metered) SetNeutral() {
	metrics.WheelOutput.WithLabelValues("left").Set(0)
	metrics.WheelOutput.WithLabelValues("right").Set(0)
	m.Output.SetNeutral()
}
