// Package progress broadcasts pipeline step events to live listeners.
//
// Delivery is best effort: events are handed synchronously to whoever is
// subscribed at publish time and are never stored or replayed.
package progress

import "sync"

// Event is one step notification. Session routes the event to listeners of a
// single /imagine run; it is empty only for events published outside a run.
type Event struct {
	Session string `json:"session,omitempty"`
	Step    int    `json:"step"`
	Message string `json:"message"`
}

// Handler receives events. It runs on the publisher's goroutine and must not block.
type Handler func(Event)

// Subscription identifies a registered handler for Unsubscribe.
type Subscription struct {
	id uint64
}

type subscriber struct {
	id      uint64
	session string // empty = every session
	handler Handler
}

// Notifier is a process-wide publish/subscribe channel.
type Notifier struct {
	mu     sync.RWMutex
	subs   []subscriber
	nextID uint64
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers h for every event published from now on.
func (n *Notifier) Subscribe(h Handler) Subscription {
	return n.add("", h)
}

// SubscribeSession registers h for events whose Session matches session.
func (n *Notifier) SubscribeSession(session string, h Handler) Subscription {
	return n.add(session, h)
}

func (n *Notifier) add(session string, h Handler) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	n.subs = append(n.subs, subscriber{id: n.nextID, session: session, handler: h})
	return Subscription{id: n.nextID}
}

// Unsubscribe removes the handler. Unknown or repeated subscriptions are ignored.
func (n *Notifier) Unsubscribe(s Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, sub := range n.subs {
		if sub.id == s.id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to matching handlers in registration order.
func (n *Notifier) Publish(e Event) {
	n.mu.RLock()
	snapshot := make([]subscriber, len(n.subs))
	copy(snapshot, n.subs)
	n.mu.RUnlock()

	for _, sub := range snapshot {
		if sub.session != "" && sub.session != e.Session {
			continue
		}
		sub.handler(e)
	}
}

// Len reports the number of registered handlers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
