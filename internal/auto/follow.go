package auto

import (
	"math"
	"time"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/command"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/geom"
	"github.com/TheAnnalyst/Offseason-Croissant/internal/trajectory"
)

// FollowPath tracks a trajectory with the robot's controller, sampling the
// reference by time since Start.
type FollowPath struct {
	traj  *trajectory.Trajectory
	drive Drivetrain
	loc   Localizer
	ctrl  Controller

	start    time.Time
	finished bool
	override *geom.Rotation
	ref      trajectory.State
}

// NewFollowPath returns a task that drives traj.
func NewFollowPath(traj *trajectory.Trajectory, r Robot) *FollowPath {
	return &FollowPath{traj: traj, drive: r.Drive, loc: r.Localizer, ctrl: r.Controller}
}

// Trajectory is the path being followed.
func (f *FollowPath) Trajectory() *trajectory.Trajectory { return f.traj }

// Finished reports whether the path has been fully driven or the task has
// ended. It is meant to be used as an exit condition for sibling tasks.
func (f *FollowPath) Finished() bool { return f.finished }

// Reset forgets a previous run so Finished is false until the path is
// driven again.
func (f *FollowPath) Reset() {
	f.finished = false
	f.override = nil
}

// Reference is the reference state sent to the controller on the last cycle,
// including any heading override.
func (f *FollowPath) Reference() trajectory.State { return f.ref }

// OverrideHeading replaces the reference heading until cleared.
func (f *FollowPath) OverrideHeading(r geom.Rotation) {
	r = r.Normalize()
	f.override = &r
}

// ClearOverride goes back to the precomputed heading.
func (f *FollowPath) ClearOverride() { f.override = nil }

// Overridden reports whether a heading override is in effect.
func (f *FollowPath) Overridden() bool { return f.override != nil }

func (f *FollowPath) Start(now time.Time) {
	f.start = now
	f.finished = false
	f.override = nil
}

func (f *FollowPath) Poll(now time.Time) bool {
	elapsed := now.Sub(f.start)
	ref := f.traj.Sample(elapsed)
	if f.override != nil {
		ref.Pose.Heading = *f.override
	}
	f.ref = ref
	f.drive.SetVelocity(f.ctrl.Calculate(f.loc.Pose(), ref))

	if elapsed >= f.traj.Duration() {
		f.finished = true
	}
	return f.finished
}

func (f *FollowPath) End(time.Time, bool) {
	f.finished = true
	f.override = nil
	f.drive.SetNeutral()
}

// VisionNudge points a FollowPath's reference heading at the live vision
// target once the robot is within Radius of the path's end. Without a
// target, or outside the radius, the precomputed heading is used. It never
// completes on its own.
type VisionNudge struct {
	follow *FollowPath
	vision Vision
	loc    Localizer
	front  bool
	radius float64

	active bool
}

// NewVisionNudge corrects follow using the front or back camera.
func NewVisionNudge(follow *FollowPath, r Robot, radius float64, front bool) *VisionNudge {
	return &VisionNudge{follow: follow, vision: r.Vision, loc: r.Localizer, front: front, radius: radius}
}

// Active reports whether the last cycle applied a correction.
func (v *VisionNudge) Active() bool { return v.active }

func (v *VisionNudge) Start(time.Time) { v.active = false }

func (v *VisionNudge) Poll(now time.Time) bool {
	robot := v.loc.Pose()
	end := v.follow.Trajectory().FinalPose()
	if robot.Translation.Distance(end.Translation) > v.radius {
		v.release()
		return false
	}
	target, ok := v.vision.Best(v.front, now)
	if !ok {
		v.release()
		return false
	}

	heading := target.Translation.Sub(robot.Translation).Angle()
	if !v.front {
		// back camera: the robot approaches driving backwards
		heading += math.Pi
	}
	v.follow.OverrideHeading(heading)
	v.active = true
	return false
}

func (v *VisionNudge) End(time.Time, bool) { v.release() }

func (v *VisionNudge) release() {
	v.active = false
	v.follow.ClearOverride()
}

// VisionAssisted is a FollowPath run alongside a VisionNudge.
type VisionAssisted struct {
	command.Task
	Follow *FollowPath
	Nudge  *VisionNudge
}

// Finished reports whether the path is done.
func (v *VisionAssisted) Finished() bool { return v.Follow.Finished() }

// FollowVisionAssisted follows traj while steering toward the vision target
// near the end of the path. The nudge stops as soon as the path is done.
func FollowVisionAssisted(traj *trajectory.Trajectory, r Robot, radius float64, front bool) *VisionAssisted {
	follow := NewFollowPath(traj, r)
	nudge := NewVisionNudge(follow, r, radius, front)
	return &VisionAssisted{
		Task:   command.Parallel(follow, command.WithExit(nudge, follow.Finished)),
		Follow: follow,
		Nudge:  nudge,
	}
}
