// Package mailbox provides the bounded, fixed-capacity queues the four
// firmware tasks use to hand messages to each other, plus a small
// object pool for reusable buffers. Both are thin generic wrappers
// around buffered channels — the same "single-slot channel as a
// mailbox" idiom seedhammer's controller uses for its wakeup and touch
// interrupt queues, and its `multiplexI2C.bus` channel as a
// check-out/check-in resource slot.
package mailbox

// Mailbox is a fixed-capacity FIFO queue of T. A full mailbox drops
// the oldest pending message on Post rather than blocking the
// producer, matching the firmware's "never let a slow consumer stall
// the task that feeds it" requirement (spec §5).
type Mailbox[T any] struct {
	ch chan T
}

// New returns a Mailbox with room for capacity pending messages.
func New[T any](capacity int) *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, capacity)}
}

// Post enqueues msg, discarding the oldest queued message if the
// mailbox is full.
func (m *Mailbox[T]) Post(msg T) {
	select {
	case m.ch <- msg:
	default:
		select {
		case <-m.ch:
		default:
		}
		select {
		case m.ch <- msg:
		default:
		}
	}
}

// TryPost enqueues msg only if there's room, reporting whether it fit.
func (m *Mailbox[T]) TryPost(msg T) bool {
	select {
	case m.ch <- msg:
		return true
	default:
		return false
	}
}

// Fetch blocks until a message is available.
func (m *Mailbox[T]) Fetch() T {
	return <-m.ch
}

// C exposes the underlying channel for use in a select alongside
// timers or other mailboxes.
func (m *Mailbox[T]) C() <-chan T {
	return m.ch
}

// Pool is a fixed-size set of reusable T values, checked out with Get
// and returned with Put. It's the generic form of multiplexI2C's
// single-slot channel, generalized to N slots.
type Pool[T any] struct {
	ch chan T
}

// NewPool returns a Pool pre-loaded with the given items.
func NewPool[T any](items []T) *Pool[T] {
	p := &Pool[T]{ch: make(chan T, len(items))}
	for _, it := range items {
		p.ch <- it
	}
	return p
}

// Get blocks until an item is available.
func (p *Pool[T]) Get() T {
	return <-p.ch
}

// Put returns an item to the pool.
func (p *Pool[T]) Put(item T) {
	p.ch <- item
}
