package trajectory

import (
	"math"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
)

// tangentScale sets how far the Hermite tangents reach relative to the
// chord length. Larger values give wider, rounder turns.
const tangentScale = 1.2

// hermite is one cubic segment between two poses.
type hermite struct {
	p0, p1, m0, m1 geom.Translation
}

func newHermite(a, b geom.Pose) hermite {
	scale := tangentScale * a.Translation.Distance(b.Translation)
	return hermite{
		p0: a.Translation,
		p1: b.Translation,
		m0: geom.Translation{X: a.Heading.Cos(), Y: a.Heading.Sin()}.Scale(scale),
		m1: geom.Translation{X: b.Heading.Cos(), Y: b.Heading.Sin()}.Scale(scale),
	}
}

func (h hermite) combine(a, b, c, d float64) geom.Translation {
	return h.p0.Scale(a).Add(h.m0.Scale(b)).Add(h.p1.Scale(c)).Add(h.m1.Scale(d))
}

// at returns position and the first two derivatives at u in [0, 1].
func (h hermite) at(u float64) (pos, d1, d2 geom.Translation) {
	u2, u3 := u*u, u*u*u
	pos = h.combine(2*u3-3*u2+1, u3-2*u2+u, -2*u3+3*u2, u3-u2)
	d1 = h.combine(6*u2-6*u, 3*u2-4*u+1, -6*u2+6*u, 3*u2-2*u)
	d2 = h.combine(12*u-6, 6*u-4, -12*u+6, 6*u-2)
	return
}

// point is a path sample before timing.
type point struct {
	pose      geom.Pose
	curvature float64
	distance  float64
}

func (h hermite) point(u float64) point {
	pos, d1, d2 := h.at(u)
	speed := d1.Norm()
	var k float64
	if speed > 1e-9 {
		k = (d1.X*d2.Y - d1.Y*d2.X) / (speed * speed * speed)
	}
	return point{pose: geom.Pose{Translation: pos, Heading: d1.Angle()}, curvature: k}
}

// denseSteps is the number of parameter steps per segment used to build the
// arc-length table.
const denseSteps = 400

// sample walks the spline through waypoints and returns points spaced ds
// apart along the path. The first and last waypoint are always included.
func sample(waypoints []geom.Pose, ds float64) []point {
	type knot struct {
		seg int
		u   float64
		s   float64
	}

	segs := make([]hermite, len(waypoints)-1)
	for i := range segs {
		segs[i] = newHermite(waypoints[i], waypoints[i+1])
	}

	// arc-length table
	knots := []knot{{0, 0, 0}}
	prev, _, _ := segs[0].at(0)
	var s float64
	for i, h := range segs {
		for j := 1; j <= denseSteps; j++ {
			u := float64(j) / denseSteps
			pos, _, _ := h.at(u)
			s += pos.Distance(prev)
			prev = pos
			knots = append(knots, knot{i, u, s})
		}
	}
	total := s

	n := int(math.Ceil(total / ds))
	if n < 1 {
		n = 1
	}
	step := total / float64(n)

	out := make([]point, 0, n+1)
	k := 0
	for i := 0; i <= n; i++ {
		target := float64(i) * step
		if i == n {
			target = total
		}
		for k < len(knots)-2 && knots[k+1].s < target {
			k++
		}
		a, b := knots[k], knots[k+1]
		seg, u := b.seg, b.u
		if span := b.s - a.s; span > 0 {
			frac := (target - a.s) / span
			ua := a.u
			if a.seg != b.seg {
				ua = 0
			}
			u = ua + (b.u-ua)*frac
		}
		p := segs[seg].point(u)
		p.distance = target
		out = append(out, p)
	}
	return out
}
