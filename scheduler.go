package netsim

//
// Discrete-event scheduler: virtual time, ordered event queue,
// cancellation, bounded runs.
//

import (
	"container/heap"
	"sync"
)

// EventHandler is invoked when a scheduled [Event] fires. The payload
// passed to [Scheduler.Add] is handed back to the handler unchanged.
type EventHandler func(payload any)

// Event is a single scheduled entry in a [Scheduler]'s queue. The zero
// value is not meaningful outside the package; obtain an *Event from
// [Scheduler.Add] and pass it to [Scheduler.Cancel].
type Event struct {
	// fireTime is the virtual time at which this event is due to fire.
	fireTime float64

	// sequence is the monotonic tiebreaker that gives FIFO order to
	// events sharing the same fireTime.
	sequence uint64

	// payload is opaque to the scheduler.
	payload any

	// handler is invoked with payload when the event fires.
	handler EventHandler

	// index is this event's position in the heap, maintained by
	// container/heap for O(log n) cancellation.
	index int

	// fired and cancelled record the event's terminal state so that
	// Cancel is a safe no-op on events that have already left the queue.
	fired     bool
	cancelled bool
}

// eventQueue is a container/heap.Interface min-heap of *Event ordered by
// (fireTime, sequence).
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].fireTime != q[j].fireTime {
		return q[i].fireTime < q[j].fireTime
	}
	return q[i].sequence < q[j].sequence
}

func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *eventQueue) Push(x any) {
	ev := x.(*Event)
	ev.index = len(*q)
	*q = append(*q, ev)
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*q = old[:n-1]
	return ev
}

// Scheduler is a discrete-event, virtual-time dispatch loop. The zero
// value is ready to use; construct with [NewScheduler] for clarity.
//
// A Scheduler is not safe for concurrent use: the simulation model is
// single-threaded cooperative scheduling over virtual time, and no
// event handler ever runs concurrently with another. Running two
// independent [Scheduler]s on two goroutines is fine; sharing one
// Scheduler across goroutines is not.
type Scheduler struct {
	current float64
	counter uint64
	queue   eventQueue
	stopped bool
}

// NewScheduler creates a new, empty [Scheduler] at virtual time zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// CurrentTime returns the scheduler's current virtual time.
func (s *Scheduler) CurrentTime() float64 {
	return s.current
}

// Add schedules handler to be invoked with payload at current_time+delay.
// delay must be non-negative. Two events scheduled for the exact same
// fire time are dispatched in the order Add was called. Returns an
// [*Event] handle suitable for [Scheduler.Cancel].
func (s *Scheduler) Add(delay float64, payload any, handler EventHandler) *Event {
	if delay < 0 {
		delay = 0
	}
	ev := &Event{
		fireTime: s.current + delay,
		sequence: s.counter,
		payload:  payload,
		handler:  handler,
	}
	s.counter++
	heap.Push(&s.queue, ev)
	return ev
}

// Cancel prevents ev from firing. It is a no-op if ev is nil, has
// already fired, or has already been cancelled.
func (s *Scheduler) Cancel(ev *Event) {
	if ev == nil || ev.fired || ev.cancelled || ev.index < 0 {
		return
	}
	ev.cancelled = true
	heap.Remove(&s.queue, ev.index)
}

// Run dispatches events until the queue is empty or a sentinel event
// scheduled by [Scheduler.RunUntil] fires.
func (s *Scheduler) Run() {
	s.stopped = false
	for s.queue.Len() > 0 && !s.stopped {
		ev := heap.Pop(&s.queue).(*Event)
		ev.fired = true
		s.current = ev.fireTime
		ev.handler(ev.payload)
	}
}

// RunUntil runs the scheduler for at most delay units of virtual time,
// then resets current time to zero. Events still pending past the
// horizon remain in the queue uncleared -- call [Scheduler.Reset] if you
// want a clean slate for the next run.
func (s *Scheduler) RunUntil(delay float64) {
	s.Add(delay, nil, func(any) { s.stopped = true })
	s.Run()
	s.current = 0
}

// Reset empties the queue and zeroes the current time.
func (s *Scheduler) Reset() {
	s.current = 0
	s.counter = 0
	s.stopped = false
	s.queue = nil
}

// debugGate is the thread-safe set of enabled debug tags shared by a
// [Sim]. Kept separate from Scheduler because tracing is a concern of
// the simulation harness, not of the event queue itself.
type debugGate struct {
	mu   sync.Mutex
	tags map[string]bool
}

func newDebugGate() *debugGate {
	return &debugGate{tags: make(map[string]bool)}
}

func (g *debugGate) set(tag string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tags[tag] = true
}

func (g *debugGate) enabled(tag string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tags[tag]
}
