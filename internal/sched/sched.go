// Package sched runs fire-once callbacks keyed by name so that a pending
// callback can be cancelled when the state it targets goes away.
//
// A Scheduler is driven by its owner's frame loop through RunDue and is not
// safe for concurrent use.
package sched

import (
	"strings"
	"time"
)

type task struct {
	due time.Time
	seq uint64
	fn  func()
}

type Scheduler struct {
	tasks map[string]*task
	seq   uint64
}

func New() *Scheduler {
	return &Scheduler{tasks: make(map[string]*task)}
}

// Schedule registers fn to run at due. A task already pending under key is
// replaced.
func (s *Scheduler) Schedule(key string, due time.Time, fn func()) {
	s.seq++
	s.tasks[key] = &task{due: due, seq: s.seq, fn: fn}
}

func (s *Scheduler) After(key string, now time.Time, d time.Duration, fn func()) {
	s.Schedule(key, now.Add(d), fn)
}

func (s *Scheduler) Cancel(key string) bool {
	if _, ok := s.tasks[key]; !ok {
		return false
	}
	delete(s.tasks, key)
	return true
}

// CancelPrefix drops every task whose key starts with prefix and returns how
// many were dropped.
func (s *Scheduler) CancelPrefix(prefix string) int {
	n := 0
	for key := range s.tasks {
		if strings.HasPrefix(key, prefix) {
			delete(s.tasks, key)
			n++
		}
	}
	return n
}

func (s *Scheduler) CancelAll() {
	clear(s.tasks)
}

func (s *Scheduler) Pending(key string) bool {
	_, ok := s.tasks[key]
	return ok
}

func (s *Scheduler) Len() int { return len(s.tasks) }

// RunDue fires every task due at or before now, earliest first (ties in
// scheduling order). A callback may schedule or cancel other tasks; tasks it
// schedules wait for the next call. It returns the number of callbacks run.
func (s *Scheduler) RunDue(now time.Time) int {
	limit := s.seq
	ran := 0
	for {
		key, t := s.next(now, limit)
		if t == nil {
			return ran
		}
		delete(s.tasks, key)
		t.fn()
		ran++
	}
}

func (s *Scheduler) next(now time.Time, limit uint64) (string, *task) {
	var (
		bestKey string
		best    *task
	)
	for key, t := range s.tasks {
		if t.seq > limit || t.due.After(now) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			bestKey, best = key, t
		}
	}
	return bestKey, best
}
