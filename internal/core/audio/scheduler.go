package audio

import (
	"sync"
	"time"
)

// Clock abstracts the monotonic time source the scheduler runs on so tests
// can drive playback without sleeping. time.Time carries a monotonic reading
// on this path; wall-clock adjustments do not move scheduled frames.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the stoppable handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the real monotonic clock.
func SystemClock() Clock { return systemClock{} }

// PlayFunc delivers one frame to the output device at its scheduled start.
type PlayFunc func(Frame)

// Scheduler plays decoded frames back-to-back in arrival order and supports
// immediate cancellation for barge-in. The next-start pointer only moves
// forward, except on Interrupt which resets it to the current clock time.
type Scheduler struct {
	clock Clock
	play  PlayFunc

	mu        sync.Mutex
	nextStart time.Time
	nextID    uint64
	active    map[uint64]Timer
	closed    bool
}

// NewScheduler creates a scheduler whose next-start pointer begins at "now".
func NewScheduler(clock Clock, play PlayFunc) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	return &Scheduler{
		clock:     clock,
		play:      play,
		nextStart: clock.Now(),
		active:    make(map[uint64]Timer),
	}
}

// Enqueue schedules one frame to begin at max(nextStart, now) and advances
// the next-start pointer by the frame's duration.
func (s *Scheduler) Enqueue(f Frame) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	start := s.nextStart
	if start.Before(now) {
		start = now
	}
	s.nextStart = start.Add(f.Duration())
	id := s.nextID
	s.nextID++
	timer := s.clock.AfterFunc(start.Sub(now), func() { s.fire(id, f) })
	s.active[id] = timer
	s.mu.Unlock()
}

func (s *Scheduler) fire(id uint64, f Frame) {
	s.mu.Lock()
	_, scheduled := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	// A handle cancelled by Interrupt between timer expiry and here must not
	// reach the output device.
	if scheduled && s.play != nil {
		s.play(f)
	}
}

// Interrupt stops every scheduled handle, clears the active set, and resets
// the next-start pointer to the current clock time. Synchronous; there is no
// pending state to wait on.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	for id, timer := range s.active {
		timer.Stop()
		delete(s.active, id)
	}
	s.nextStart = s.clock.Now()
	s.mu.Unlock()
}

// Close interrupts outstanding playback and rejects further enqueues.
func (s *Scheduler) Close() {
	s.mu.Lock()
	for id, timer := range s.active {
		timer.Stop()
		delete(s.active, id)
	}
	s.nextStart = s.clock.Now()
	s.closed = true
	s.mu.Unlock()
}

// ActiveCount reports the number of currently scheduled handles.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// NextStart exposes the next-start pointer for stats and tests.
func (s *Scheduler) NextStart() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
