package portal

import (
	"sync"
	"time"
)

// Scheduler runs deferred tasks keyed by what they act on. Scheduling a key
// that is already pending replaces the earlier task.
type Scheduler interface {
	// Schedule runs task once after delay unless it is cancelled or
	// replaced first.
	Schedule(key string, delay time.Duration, task func())
	// Cancel drops the pending task for key, if any.
	Cancel(key string)
	// Pending returns the number of tasks that have not run yet.
	Pending() int
	// Stop cancels everything; later Schedule calls are dropped.
	Stop()
}

// Task keys.
const (
	keyNavigate = "navigate"
)

func messageKey(slot string) string { return "message:" + slot }

// TimerScheduler is a Scheduler on time.AfterFunc.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewTimerScheduler returns an empty scheduler. Call Stop when the tab
// goes away so no timer outlives it.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arms a timer for task. A timer that fires after being replaced
// or cancelled finds it is no longer current and does nothing, so a task
// never runs twice and a replaced task never runs at all. Tasks run on the
// timer's goroutine without the scheduler lock held.
func (s *TimerScheduler) Schedule(key string, delay time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if old, ok := s.timers[key]; ok {
		old.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current := s.timers[key] == t
		if current {
			delete(s.timers, key)
		}
		s.mu.Unlock()

		if current {
			task()
		}
	})
	s.timers[key] = t
}

// Cancel stops the timer for key. A task already running is not
// interrupted.
func (s *TimerScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Pending returns the number of armed timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer. Later Schedule calls are dropped.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
