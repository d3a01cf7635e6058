// Package command is a small cooperative task framework.
//
// Everything runs on the caller's goroutine. A Task is started, polled once
// per control cycle until it reports completion, and ended exactly once,
// either normally or because something interrupted it. Nothing blocks: a
// task that has to wait simply keeps returning false from Poll. The cycle
// timestamp is passed in rather than read from the clock so that routines can
// be stepped deterministically.
package command

import (
	"fmt"
	"time"
)

// Task is one unit of cooperative work.
type Task interface {
	// Start is called once before the first Poll.
	Start(now time.Time)
	// Poll is called once per cycle while running and reports whether the
	// task's own completion condition holds.
	Poll(now time.Time) bool
	// End is called exactly once when the task is retired. It must undo
	// whatever Start set up.
	End(now time.Time, interrupted bool)
}

// State is where one execution of a Task is in its lifecycle.
type State int

const (
	Idle State = iota
	Running
	Completed
	Interrupted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// IsTerminal reports whether s is Completed or Interrupted.
func (s State) IsTerminal() bool { return s == Completed || s == Interrupted }

// execution tracks one run of a task. Groups and the Runner make a new one
// every time they start a child, so a Task value can be reused across runs
// but a single execution only ever goes Idle -> Running -> terminal.
type execution struct {
	task  Task
	state State
}

func newExecution(t Task) *execution {
	return &execution{task: t}
}

func (e *execution) start(now time.Time) {
	if e.state != Idle {
		panic(fmt.Sprintf("command: start on %s task", e.state))
	}
	e.state = Running
	e.task.Start(now)
}

func (e *execution) poll(now time.Time) bool {
	if e.state != Running {
		return false
	}
	return e.task.Poll(now)
}

// finish retires a running execution. It is a no-op otherwise so that End
// is never called twice.
func (e *execution) finish(now time.Time, interrupted bool) {
	if e.state != Running {
		return
	}
	if interrupted {
		e.state = Interrupted
	} else {
		e.state = Completed
	}
	e.task.End(now, interrupted)
}

// step polls and retires the execution if it completed.
func (e *execution) step(now time.Time) bool {
	if e.poll(now) {
		e.finish(now, false)
		return true
	}
	return false
}

// Runner owns at most one root task. When the slot is empty the default
// task, if any, is started on the next Step.
type Runner struct {
	current   *execution
	def       Task
	isDefault bool
}

// Schedule interrupts whatever is running and starts t. Scheduling the task
// that is already running does nothing and returns false.
func (r *Runner) Schedule(t Task, now time.Time) bool {
	if t == nil {
		return false
	}
	if r.current != nil && r.current.state == Running && r.current.task == t {
		return false
	}
	r.Cancel(now)
	r.current = newExecution(t)
	r.isDefault = false
	r.current.start(now)
	return true
}

// SetDefault replaces the default task. A running default is interrupted so
// the new one takes over on the next Step; a scheduled task is left alone.
func (r *Runner) SetDefault(t Task, now time.Time) {
	if r.current != nil && r.isDefault {
		r.current.finish(now, true)
		r.current = nil
	}
	r.def = t
}

// Default returns the current default task.
func (r *Runner) Default() Task { return r.def }

// Step runs one cycle and returns the state of the root task afterwards.
// Completed is returned only on the cycle the task finished.
func (r *Runner) Step(now time.Time) State {
	if r.current == nil {
		if r.def == nil {
			return Idle
		}
		r.current = newExecution(r.def)
		r.isDefault = true
		r.current.start(now)
	}
	e := r.current
	if e.step(now) {
		r.current = nil
	}
	return e.state
}

// Cancel interrupts the running task. It reports whether anything was
// running; cancelling an empty slot is a no-op.
func (r *Runner) Cancel(now time.Time) bool {
	if r.current == nil {
		return false
	}
	e := r.current
	r.current = nil
	e.finish(now, true)
	return true
}

// Running returns the running task or nil.
func (r *Runner) Running() Task {
	if r.current == nil {
		return nil
	}
	return r.current.task
}

// Active reports whether any task, default included, is running.
func (r *Runner) Active() bool { return r.current != nil }

// RunningDefault reports whether the running task is the default.
func (r *Runner) RunningDefault() bool { return r.current != nil && r.isDefault }
