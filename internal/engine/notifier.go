package engine

import "sync"

// Notifier broadcasts StateDescriptor snapshots to subscribers after every
// state-changing operation or manual refresh. Each subscriber holds a
// buffer of one: a slow consumer misses intermediate snapshots instead of
// blocking the producer, which is safe because only the latest snapshot is
// authoritative.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan StateDescriptor
	next int
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan StateDescriptor)}
}

// Subscribe registers a consumer. The returned cancel function removes the
// subscription and closes the channel.
func (n *Notifier) Subscribe() (<-chan StateDescriptor, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan StateDescriptor, 1)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber without blocking,
// dropping the stale buffered snapshot when a subscriber has not caught up.
func (n *Notifier) Publish(state StateDescriptor) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		for {
			select {
			case ch <- state:
			default:
				// Drop the stale snapshot and retry with the fresh one.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}
