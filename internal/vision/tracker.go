// Package vision keeps recent target sightings from the vision coprocessor
// and turns them into a single best estimate.
package vision

import (
	"math"
	"sync"
	"time"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
)

// Observation is one target sighting in field coordinates.
type Observation struct {
	Pose  geom.Pose `json:"pose"`
	Front bool      `json:"front"`
	At    time.Time `json:"at"`
}

// Tracker averages the fresh observations from each camera. Report is called
// from network handlers and Best from the control loop.
type Tracker struct {
	Staleness  time.Duration
	MaxSamples int

	mu  sync.Mutex
	obs []Observation
}

// NewTracker returns a tracker that forgets sightings older than staleness
// and averages at most maxSamples per camera.
func NewTracker(staleness time.Duration, maxSamples int) *Tracker {
	return &Tracker{Staleness: staleness, MaxSamples: maxSamples}
}

// Report records a sighting.
func (t *Tracker) Report(o Observation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.obs = append(t.obs, o)
}

// Best returns the averaged pose of the fresh sightings from the front or
// back camera, or false when there are none.
func (t *Tracker) Best(front bool, now time.Time) (geom.Pose, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(now)

	var (
		n          int
		x, y, s, c float64
	)
	for i := len(t.obs) - 1; i >= 0; i-- {
		o := t.obs[i]
		if o.Front != front || o.At.After(now) {
			continue
		}
		x += o.Pose.X
		y += o.Pose.Y
		s += o.Pose.Heading.Sin()
		c += o.Pose.Heading.Cos()
		n++
		if t.MaxSamples > 0 && n >= t.MaxSamples {
			break
		}
	}
	if n == 0 {
		return geom.Pose{}, false
	}
	return geom.NewPose(x/float64(n), y/float64(n), geom.Rotation(math.Atan2(s, c))), true
}

// Len is the number of sightings currently held.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.obs)
}

func (t *Tracker) prune(now time.Time) {
	cutoff := now.Add(-t.Staleness)
	kept := t.obs[:0]
	for _, o := range t.obs {
		if !o.At.Before(cutoff) {
			kept = append(kept, o)
		}
	}
	t.obs = kept
}
