package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_DeliversInRegistrationOrder(t *testing.T) {
	n := NewNotifier()

	var order []string
	n.Subscribe(func(e Event) { order = append(order, "first") })
	n.Subscribe(func(e Event) { order = append(order, "second") })
	n.Subscribe(func(e Event) { order = append(order, "third") })

	n.Publish(Event{Step: 0, Message: "go"})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestNotifier_NoReplayForLateSubscriber(t *testing.T) {
	n := NewNotifier()
	n.Publish(Event{Step: 0, Message: "before anyone listened"})

	var got []Event
	n.Subscribe(func(e Event) { got = append(got, e) })

	assert.Empty(t, got)

	n.Publish(Event{Step: 1, Message: "after"})
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Step)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := NewNotifier()

	var a, b int
	subA := n.Subscribe(func(Event) { a++ })
	n.Subscribe(func(Event) { b++ })

	n.Publish(Event{})
	n.Unsubscribe(subA)
	n.Unsubscribe(subA) // second call is a no-op
	n.Publish(Event{})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, n.Len())
}

func TestNotifier_SessionRouting(t *testing.T) {
	n := NewNotifier()

	var alice, bob, all []int
	n.SubscribeSession("alice", func(e Event) { alice = append(alice, e.Step) })
	n.SubscribeSession("bob", func(e Event) { bob = append(bob, e.Step) })
	n.Subscribe(func(e Event) { all = append(all, e.Step) })

	n.Publish(Event{Session: "alice", Step: 0})
	n.Publish(Event{Session: "bob", Step: 0})
	n.Publish(Event{Session: "alice", Step: 1})

	assert.Equal(t, []int{0, 1}, alice)
	assert.Equal(t, []int{0}, bob)
	assert.Equal(t, []int{0, 0, 1}, all)
}

func TestNotifier_UnsubscribeDuringPublish(t *testing.T) {
	n := NewNotifier()

	var sub Subscription
	calls := 0
	sub = n.Subscribe(func(Event) {
		calls++
		n.Unsubscribe(sub)
	})

	n.Publish(Event{})
	n.Publish(Event{})

	assert.Equal(t, 1, calls)
	assert.Zero(t, n.Len())
}
