package timing

import (
	"container/heap"
	"sync"
)

// ScheduledEvent is an event that sits in an EventQueue. ID is the insertion
// sequence number; it breaks ties between events of equal time.
type ScheduledEvent struct {
	ID    uint64
	Event Event

	time      VTimeInSec
	cancelled bool
}

// Time returns when the event happens.
func (s *ScheduledEvent) Time() VTimeInSec {
	return s.time
}

// Cancel withdraws the event. A cancelled event is skipped without being
// dispatched. Cancelling an event that already ran has no effect.
func (s *ScheduledEvent) Cancel() {
	s.cancelled = true
}

// Cancelled tells if Cancel has been called.
func (s *ScheduledEvent) Cancelled() bool {
	return s.cancelled
}

// EventQueue is a queue of events ordered by time, then by insertion order.
type EventQueue interface {
	Push(evt Event) *ScheduledEvent
	Pop() (*ScheduledEvent, error)
	Peek() *ScheduledEvent
	Len() int
}

// EventQueueImpl provides a thread safe event queue
type EventQueueImpl struct {
	sync.Mutex
	events  eventHeap
	nextSeq uint64
}

// NewEventQueue creates and returns a newly created EventQueue
func NewEventQueue() *EventQueueImpl {
	q := new(EventQueueImpl)
	q.events = make([]*ScheduledEvent, 0)
	heap.Init(&q.events)

	return q
}

// Push adds an event to the event queue and returns its queue entry.
func (q *EventQueueImpl) Push(evt Event) *ScheduledEvent {
	q.Lock()
	defer q.Unlock()

	q.nextSeq++
	entry := &ScheduledEvent{
		ID:    q.nextSeq,
		Event: evt,
		time:  evt.Time(),
	}
	heap.Push(&q.events, entry)

	return entry
}

// Pop removes and returns the next event, including cancelled ones.
func (q *EventQueueImpl) Pop() (*ScheduledEvent, error) {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil, ErrQueueEmpty
	}

	return heap.Pop(&q.events).(*ScheduledEvent), nil
}

// Peek returns the event in front of the queue without removing it from the
// queue, or nil if the queue is empty.
func (q *EventQueueImpl) Peek() *ScheduledEvent {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil
	}

	return q.events[0]
}

// Len returns the number of event in the queue
func (q *EventQueueImpl) Len() int {
	q.Lock()
	defer q.Unlock()

	return q.events.Len()
}

type eventHeap []*ScheduledEvent

// Len returns the length of the event queue
func (h eventHeap) Len() int {
	return len(h)
}

// Less determines the order between two events. Less returns true if the i-th
// event happens before the j-th event, or at the same time but was pushed
// earlier.
func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}

	return h[i].ID < h[j].ID
}

// Swap changes the position of two events in the event queue
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

// Push adds an event into the event queue
func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*ScheduledEvent))
}

// Pop removes and returns the next event to happen
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	event := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]

	return event
}
