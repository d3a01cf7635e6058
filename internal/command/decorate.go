package command

import "time"

// until polls its child first and then the exit condition. Whichever holds
// first ends the child.
type until struct {
	child   *execution
	task    Task
	exit    func(now time.Time) bool
	onStart func(now time.Time)
}

func (u *until) Start(now time.Time) {
	if u.onStart != nil {
		u.onStart(now)
	}
	u.child = newExecution(u.task)
	u.child.start(now)
}

func (u *until) Poll(now time.Time) bool {
	if u.child.step(now) {
		return true
	}
	if u.exit(now) {
		u.child.finish(now, true)
		return true
	}
	return false
}

func (u *until) End(now time.Time, interrupted bool) {
	u.child.finish(now, interrupted)
}

// WithExit runs t until it completes or cond returns true. When cond wins, t
// is ended as interrupted and the wrapper itself completes normally.
func WithExit(t Task, cond func() bool) Task {
	mustNotBeNil("WithExit", []Task{t})
	return &until{task: t, exit: func(time.Time) bool { return cond() }}
}

// WithTimeout runs t for at most d, measured from when the wrapper starts.
func WithTimeout(t Task, d time.Duration) Task {
	mustNotBeNil("WithTimeout", []Task{t})
	u := &until{task: t}
	var deadline time.Time
	u.onStart = func(now time.Time) { deadline = now.Add(d) }
	u.exit = func(now time.Time) bool { return !now.Before(deadline) }
	return u
}

type hooked struct {
	Task
	before func()
	after  func(interrupted bool)
}

func (h *hooked) Start(now time.Time) {
	if h.before != nil {
		h.before()
	}
	h.Task.Start(now)
}

func (h *hooked) End(now time.Time, interrupted bool) {
	h.Task.End(now, interrupted)
	if h.after != nil {
		h.after(interrupted)
	}
}

// BeforeStarting runs fn right before t starts.
func BeforeStarting(t Task, fn func()) Task {
	mustNotBeNil("BeforeStarting", []Task{t})
	return &hooked{Task: t, before: fn}
}

// WhenFinished runs fn right after t ends, interrupted or not.
func WhenFinished(t Task, fn func(interrupted bool)) Task {
	mustNotBeNil("WhenFinished", []Task{t})
	return &hooked{Task: t, after: fn}
}
