// Package metrics provides Prometheus collectors for the control loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "croissant"

var (
	// LoopDuration tracks how long one control cycle takes.
	LoopDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "duration_seconds",
			Help:      "Duration of one control cycle in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
		},
	)

	// LoopOverruns counts cycles that took longer than the loop period.
	LoopOverruns = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "overruns_total",
			Help:      "Total number of control cycles that overran the loop period",
		},
	)

	// WheelOutput is the last open-loop command or velocity per side.
	// Labels: side (left, right)
	WheelOutput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "drive",
			Name:      "wheel_output",
			Help:      "Last wheel output written to the drivetrain",
		},
		[]string{"side"},
	)

	// Mode is 1 for the active robot mode and 0 for the others.
	// Labels: mode (disabled, teleop, autonomous)
	Mode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "robot",
			Name:      "mode",
			Help:      "Active robot mode (1=active)",
		},
		[]string{"mode"},
	)

	// Emergency is 1 while the drivetrain is in emergency open-loop mode.
	Emergency = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "robot",
			Name:      "emergency",
			Help:      "Emergency open-loop drive active (1=active)",
		},
	)

	// RoutineRuns counts autonomous routine runs.
	// Labels: mode, outcome (completed, cancelled)
	RoutineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auto",
			Name:      "routine_runs_total",
			Help:      "Total number of autonomous routine runs by outcome",
		},
		[]string{"mode", "outcome"},
	)

	// Relocalizations counts relocalize steps.
	// Labels: result (applied, no_target)
	Relocalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auto",
			Name:      "relocalizations_total",
			Help:      "Total number of relocalize steps by result",
		},
		[]string{"result"},
	)

	// TargetVisible is 1 while a fresh vision target is available.
	// Labels: camera (front, back)
	TargetVisible = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vision",
			Name:      "target_visible",
			Help:      "Fresh vision target available (1=visible)",
		},
		[]string{"camera"},
	)

	// SerialErrors counts failed writes or reads on the microcontroller link.
	SerialErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "errors_total",
			Help:      "Total number of serial link errors",
		},
	)

	// ControlClients is the number of connected driver websockets.
	ControlClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "control_clients",
			Help:      "Connected driver control websockets",
		},
	)
)

// Camera returns the label value for a camera.
func Camera(front bool) string {
	if front {
		return "front"
	}
	return "back"
}
