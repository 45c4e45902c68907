package engine

import "time"

// Scheduler provides the cooperative-yield primitives long-running action
// handlers use instead of blocking a dispatcher worker.
type Scheduler struct {
	dispatcher *Dispatcher
	testMode   bool
	clock      func() time.Time
}

// NewScheduler creates a Scheduler that requeues rescheduled actions
// through dispatcher.
func NewScheduler(dispatcher *Dispatcher) *Scheduler {
	return &Scheduler{dispatcher: dispatcher, clock: time.Now}
}

// SetTestMode disables real sleeping: Reschedule requeues on the next
// dispatcher tick instead of after delaySeconds, and Sleep returns
// immediately. Unit tests that exercise wait loops call this so they
// complete in milliseconds.
func (s *Scheduler) SetTestMode(enabled bool) {
	s.testMode = enabled
}

// SetClock substitutes the time source Wallclock reads, for tests that
// need to simulate elapsed time without actually waiting.
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Wallclock is the monotonic time source action handlers use to measure
// elapsed timeouts.
func (s *Scheduler) Wallclock() time.Time {
	return s.clock()
}

// Sleep is an uncoordinated wait. Unlike Reschedule it does hold its
// calling goroutine; the profile-driver polling in runNodeAction uses
// Reschedule instead.
func (s *Scheduler) Sleep(seconds int) {
	if s.testMode {
		return
	}
	time.Sleep(time.Duration(seconds) * time.Second)
}

// Reschedule suspends action for at least delaySeconds without holding the
// worker that called it: the worker returns immediately and the action is
// re-notified to the dispatcher later, where it resumes (a fresh call into
// its verb handler, which re-reads the action's persisted state to figure
// out where it left off). This is the mechanism that lets a parent action
// wait on its children without starving the rest of the worker pool.
func (s *Scheduler) Reschedule(actionID string, delaySeconds int) {
	if s.testMode {
		go s.dispatcher.Notify(actionID)
		return
	}
	time.AfterFunc(time.Duration(delaySeconds)*time.Second, func() {
		s.dispatcher.Notify(actionID)
	})
}
