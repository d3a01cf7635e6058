package command

import (
	"fmt"
	"time"
)

type sequence struct {
	tasks []Task
	idx   int
	cur   *execution
}

// Sequence runs tasks one after another. When a child completes the next one
// is started and polled in the same cycle, so any number of zero-duration
// children finish together.
func Sequence(tasks ...Task) Task {
	mustNotBeNil("Sequence", tasks)
	return &sequence{tasks: tasks}
}

func (s *sequence) Start(now time.Time) {
	s.idx = 0
	s.cur = nil
	s.startCurrent(now)
}

func (s *sequence) startCurrent(now time.Time) {
	if s.idx >= len(s.tasks) {
		s.cur = nil
		return
	}
	s.cur = newExecution(s.tasks[s.idx])
	s.cur.start(now)
}

func (s *sequence) Poll(now time.Time) bool {
	for s.cur != nil {
		if !s.cur.step(now) {
			return false
		}
		s.idx++
		s.startCurrent(now)
	}
	return true
}

// End forwards to the running child only; children that finished or never
// started are left alone.
func (s *sequence) End(now time.Time, interrupted bool) {
	if s.cur != nil {
		s.cur.finish(now, interrupted)
	}
}

type parallel struct {
	tasks []Task
	execs []*execution
}

// Parallel starts every task together and completes when all of them have.
// Each child is ended as soon as it completes; the others keep running.
func Parallel(tasks ...Task) Task {
	mustNotBeNil("Parallel", tasks)
	return &parallel{tasks: tasks}
}

func (p *parallel) Start(now time.Time) {
	p.execs = make([]*execution, len(p.tasks))
	for i, t := range p.tasks {
		p.execs[i] = newExecution(t)
		p.execs[i].start(now)
	}
}

func (p *parallel) Poll(now time.Time) bool {
	done := true
	for _, e := range p.execs {
		if e.state != Running {
			continue
		}
		if !e.step(now) {
			done = false
		}
	}
	return done
}

func (p *parallel) End(now time.Time, interrupted bool) {
	for _, e := range p.execs {
		e.finish(now, interrupted)
	}
}

func mustNotBeNil(group string, tasks []Task) {
	for i, t := range tasks {
		if t == nil {
			panic(fmt.Sprintf("command: nil task at index %d in %s", i, group))
		}
	}
}
