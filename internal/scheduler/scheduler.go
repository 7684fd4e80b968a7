// Package scheduler runs named recurring and one-shot jobs against an
// injectable clock. It replaces loose interval timers: every job has a
// name, can be ticked out of band, and can be cancelled individually or all
// at once before a restart.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"confagenda/internal/clock"
	appLog "confagenda/internal/log"
)

// ErrUnknownJob is returned when a job name is not registered.
var ErrUnknownJob = errors.New("scheduler: unknown job")

// Func is a job body. now is the clock time at which the job fired.
type Func func(now time.Time)

type job struct {
	name     string
	schedule cron.Schedule // nil for one-shot jobs
	fn       Func
	timer    *clock.Timer
	gen      uint64
}

// Scheduler owns a set of named jobs. It is safe for concurrent use.
type Scheduler struct {
	mu    sync.Mutex
	clock clock.Clock
	jobs  map[string]*job
	gen   uint64
}

// New creates a Scheduler on the given clock.
func New(c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.Real()
	}
	return &Scheduler{
		clock: c,
		jobs:  make(map[string]*job),
	}
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() clock.Clock {
	return s.clock
}

// Every runs fn every interval, first firing one interval from now.
// Sub-second intervals are rounded up to one second.
func (s *Scheduler) Every(name string, interval time.Duration, fn Func) {
	s.add(name, cron.Every(interval), fn)
}

// Cron runs fn on a standard 5-field cron spec or a descriptor such as
// "@every 1m" or "@hourly".
func (s *Scheduler) Cron(name, spec string, fn Func) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("scheduler: job %q: parse %q: %w", name, spec, err)
	}
	s.add(name, sched, fn)
	return nil
}

// After runs fn once after d. The job is removed once it fires.
func (s *Scheduler) After(name string, d time.Duration, fn Func) {
	s.mu.Lock()
	j := s.replaceLocked(name, nil, fn)
	gen := j.gen
	s.mu.Unlock()

	// Armed without the lock: a non-positive delay may fire synchronously.
	timer := s.clock.AfterFunc(d, func() { s.fire(name, gen) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.jobs[name]; ok && cur.gen == gen {
		cur.timer = timer
	}
}

func (s *Scheduler) add(name string, sched cron.Schedule, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := s.replaceLocked(name, sched, fn)
	s.armLocked(j, s.clock.Now())
}

// replaceLocked installs a fresh job under name, stopping any previous one.
func (s *Scheduler) replaceLocked(name string, sched cron.Schedule, fn Func) *job {
	if old, ok := s.jobs[name]; ok {
		old.timer.Stop()
	}
	s.gen++
	j := &job{name: name, schedule: sched, fn: fn, gen: s.gen}
	s.jobs[name] = j
	return j
}

func (s *Scheduler) armLocked(j *job, from time.Time) {
	next := j.schedule.Next(from)
	if next.IsZero() {
		appLog.Error("scheduler: schedule has no next run", errors.New("empty schedule"), "job", j.name)
		delete(s.jobs, j.name)
		return
	}
	gen := j.gen
	name := j.name
	j.timer = s.clock.AfterFunc(next.Sub(from), func() { s.fire(name, gen) })
}

// fire runs when a job's timer expires. Jobs that were cancelled or
// replaced since the timer was armed are ignored.
func (s *Scheduler) fire(name string, gen uint64) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok || j.gen != gen {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	if j.schedule == nil {
		delete(s.jobs, name)
	} else {
		s.armLocked(j, now)
	}
	fn := j.fn
	s.mu.Unlock()

	run(name, fn, now)
}

// TickNow runs the job's function immediately in the caller's goroutine.
// The job's regular cadence is not changed.
func (s *Scheduler) TickNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	fn := j.fn
	now := s.clock.Now()
	s.mu.Unlock()

	run(name, fn, now)
	return nil
}

// Cancel stops and removes a job. It reports whether the job existed.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	j.timer.Stop()
	delete(s.jobs, name)
	return true
}

// CancelAll stops every job. Callers re-register jobs afterwards to
// restart from a clean slate.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, name)
	}
}

// Running reports whether a job is registered.
func (s *Scheduler) Running(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// Names returns the registered job names, sorted.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// run calls fn, turning a panic into a logged error so one bad tick never
// stops a job.
func run(name string, fn Func, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			appLog.Error("scheduler: job panicked", fmt.Errorf("%v", r), "job", name)
		}
	}()
	fn(now)
}
