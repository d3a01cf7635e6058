// Package trajectory generates time-parameterized paths for a differential
// drive and tracks them with a Ramsete controller.
//
// Paths are cubic Hermite splines through the waypoint poses, sampled at a
// fixed spacing along the arc. Speeds come from a forward and a backward
// constant-acceleration pass under the request's velocity caps.
package trajectory

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
)

var (
	ErrTooFewWaypoints = errors.New("trajectory: need at least two waypoints")
	ErrInvalidLimits   = errors.New("trajectory: invalid limits")
	ErrDegenerate      = errors.New("trajectory: degenerate path")
)

// sampleSpacing is the arc-length distance between path samples in metres.
const sampleSpacing = 0.05

// Request describes a path to generate. Velocities are magnitudes; Reversed
// makes the robot drive the path backwards.
type Request struct {
	Waypoints       []geom.Pose
	Constraints     []Constraint
	StartVelocity   float64
	EndVelocity     float64
	MaxVelocity     float64
	MaxAcceleration float64
	// MaxVoltage is kept with the request for the drivetrain model; the
	// generator itself only applies velocity and acceleration limits.
	MaxVoltage float64
	Reversed   bool
}

// State is the reference at one instant.
type State struct {
	Time         time.Duration
	Pose         geom.Pose
	Velocity     float64
	Acceleration float64
	Curvature    float64
	Distance     float64
}

// Trajectory is an immutable timed path.
type Trajectory struct {
	states   []State
	reversed bool
}

// Generate builds a trajectory for req.
func Generate(req Request) (*Trajectory, error) {
	if len(req.Waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}
	if req.MaxVelocity <= 0 || req.MaxAcceleration <= 0 {
		return nil, fmt.Errorf("%w: max velocity %v, max acceleration %v",
			ErrInvalidLimits, req.MaxVelocity, req.MaxAcceleration)
	}

	waypoints := make([]geom.Pose, len(req.Waypoints))
	for i, w := range req.Waypoints {
		if i > 0 && w.Translation.Distance(req.Waypoints[i-1].Translation) < 1e-6 {
			return nil, fmt.Errorf("%w: waypoints %d and %d coincide", ErrDegenerate, i-1, i)
		}
		if req.Reversed {
			w.Heading = (w.Heading + math.Pi).Normalize()
		}
		waypoints[i] = w
	}

	pts := sample(waypoints, sampleSpacing)
	if req.Reversed {
		for i := range pts {
			pts[i].pose.Heading = (pts[i].pose.Heading + math.Pi).Normalize()
			pts[i].curvature = -pts[i].curvature
		}
	}

	v, err := profile(pts, req)
	if err != nil {
		return nil, err
	}

	sign := 1.0
	if req.Reversed {
		sign = -1
	}

	states := make([]State, len(pts))
	var t float64
	for i, p := range pts {
		var accel float64
		if i+1 < len(pts) {
			ds := pts[i+1].distance - p.distance
			accel = (v[i+1]*v[i+1] - v[i]*v[i]) / (2 * ds)
		}
		states[i] = State{
			Time:         seconds(t),
			Pose:         p.pose,
			Velocity:     sign * v[i],
			Acceleration: sign * accel,
			Curvature:    p.curvature,
			Distance:     p.distance,
		}
		if i+1 < len(pts) {
			ds := pts[i+1].distance - p.distance
			t += 2 * ds / (v[i] + v[i+1])
		}
	}
	return &Trajectory{states: states, reversed: req.Reversed}, nil
}

// profile returns the speed magnitude at every point.
func profile(pts []point, req Request) ([]float64, error) {
	n := len(pts)
	a := req.MaxAcceleration

	caps := make([]float64, n)
	for i, p := range pts {
		caps[i] = req.MaxVelocity
		for _, c := range req.Constraints {
			caps[i] = math.Min(caps[i], c.MaxVelocity(p.pose, p.curvature))
		}
	}

	v := make([]float64, n)
	v[0] = math.Min(math.Abs(req.StartVelocity), caps[0])
	for i := 1; i < n; i++ {
		ds := pts[i].distance - pts[i-1].distance
		v[i] = math.Min(caps[i], reachable(v[i-1], a, ds))
	}
	v[n-1] = math.Min(v[n-1], math.Abs(req.EndVelocity))
	for i := n - 2; i >= 0; i-- {
		ds := pts[i+1].distance - pts[i].distance
		v[i] = math.Min(v[i], reachable(v[i+1], a, ds))
	}

	for i := 0; i+1 < n; i++ {
		if v[i]+v[i+1] < 1e-9 {
			return nil, fmt.Errorf("%w: zero speed at %.2f m", ErrInvalidLimits, pts[i].distance)
		}
	}
	return v, nil
}

// reachable is the speed after accelerating from v at a over dist.
func reachable(v, a, dist float64) float64 {
	return math.Sqrt(v*v + 2*a*dist)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Duration is the total time to drive the path.
func (t *Trajectory) Duration() time.Duration {
	return t.states[len(t.states)-1].Time
}

// Reversed reports whether the robot drives the path backwards.
func (t *Trajectory) Reversed() bool { return t.reversed }

// InitialPose is the pose at the start of the path.
func (t *Trajectory) InitialPose() geom.Pose { return t.states[0].Pose }

// FinalPose is the pose at the end of the path.
func (t *Trajectory) FinalPose() geom.Pose { return t.states[len(t.states)-1].Pose }

// States returns a copy of the generated samples.
func (t *Trajectory) States() []State {
	return append([]State(nil), t.states...)
}

// Sample returns the reference at time at, clamped to the path's ends.
func (t *Trajectory) Sample(at time.Duration) State {
	if at <= 0 {
		return t.states[0]
	}
	last := t.states[len(t.states)-1]
	if at >= last.Time {
		return last
	}

	i := sort.Search(len(t.states), func(i int) bool { return t.states[i].Time >= at })
	prev, next := t.states[i-1], t.states[i]

	dt := (at - prev.Time).Seconds()
	travelled := math.Abs(prev.Velocity*dt + 0.5*prev.Acceleration*dt*dt)
	span := next.Distance - prev.Distance
	frac := 1.0
	if span > 0 {
		frac = math.Min(1, travelled/span)
	}

	dh := (next.Pose.Heading - prev.Pose.Heading).Normalize()
	return State{
		Time: at,
		Pose: geom.Pose{
			Translation: prev.Pose.Translation.Add(next.Pose.Translation.Sub(prev.Pose.Translation).Scale(frac)),
			Heading:     (prev.Pose.Heading + dh*geom.Rotation(frac)).Normalize(),
		},
		Velocity:     prev.Velocity + prev.Acceleration*dt,
		Acceleration: prev.Acceleration,
		Curvature:    prev.Curvature + (next.Curvature-prev.Curvature)*frac,
		Distance:     prev.Distance + span*frac,
	}
}

// Mirror reflects the path across the field's long centreline, turning a
// right-side path into its left-side twin.
func (t *Trajectory) Mirror() *Trajectory {
	states := make([]State, len(t.states))
	for i, s := range t.states {
		s.Pose = s.Pose.Mirror()
		s.Curvature = -s.Curvature
		states[i] = s
	}
	return &Trajectory{states: states, reversed: t.reversed}
}
