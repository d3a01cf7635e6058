package command

import (
	"time"

	"go.uber.org/zap"
)

type instant struct {
	fn func()
}

// Instant runs fn once when started and completes on its first poll.
func Instant(fn func()) Task {
	return &instant{fn: fn}
}

func (t *instant) Start(time.Time) {
	if t.fn != nil {
		t.fn()
	}
}
func (t *instant) Poll(time.Time) bool { return true }
func (t *instant) End(time.Time, bool) {}

type run struct {
	fn func(now time.Time)
}

// Run calls fn every cycle and never completes on its own.
func Run(fn func(now time.Time)) Task {
	return &run{fn: fn}
}

func (t *run) Start(time.Time) {}
func (t *run) Poll(now time.Time) bool {
	t.fn(now)
	return false
}
func (t *run) End(time.Time, bool) {}

// Func builds a task out of closures. Any of them may be nil; a nil OnPoll
// completes on the first poll.
type Func struct {
	OnStart func(now time.Time)
	OnPoll  func(now time.Time) bool
	OnEnd   func(now time.Time, interrupted bool)
}

func (f *Func) Start(now time.Time) {
	if f.OnStart != nil {
		f.OnStart(now)
	}
}

func (f *Func) Poll(now time.Time) bool {
	if f.OnPoll == nil {
		return true
	}
	return f.OnPoll(now)
}

func (f *Func) End(now time.Time, interrupted bool) {
	if f.OnEnd != nil {
		f.OnEnd(now, interrupted)
	}
}

type wait struct {
	d        time.Duration
	deadline time.Time
}

// Wait completes once d has elapsed since it was started.
func Wait(d time.Duration) Task {
	return &wait{d: d}
}

func (t *wait) Start(now time.Time) { t.deadline = now.Add(t.d) }
func (t *wait) Poll(now time.Time) bool { return !now.Before(t.deadline) }
func (t *wait) End(time.Time, bool) {}

type waitUntil struct {
	cond func() bool
}

// WaitUntil completes on the first poll where cond is true. It has no
// timeout of its own; wrap it with WithTimeout if cond might never hold.
func WaitUntil(cond func() bool) Task {
	return &waitUntil{cond: cond}
}

func (t *waitUntil) Start(time.Time)     {}
func (t *waitUntil) Poll(time.Time) bool { return t.cond() }
func (t *waitUntil) End(time.Time, bool) {}

// Print logs msg at info level when started.
func Print(logger *zap.Logger, msg string, fields ...zap.Field) Task {
	return Instant(func() { logger.Info(msg, fields...) })
}

// After runs fn once d has elapsed. It replaces fire-and-forget timers so the
// side effect still happens on the control cycle.
func After(d time.Duration, fn func()) Task {
	return Sequence(Wait(d), Instant(fn))
}
