package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber records what the hub queues on it
type fakeSubscriber struct {
	id      string
	ownerID string
	full    bool

	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func newFakeSubscriber(id, ownerID string) *fakeSubscriber {
	return &fakeSubscriber{id: id, ownerID: ownerID}
}

func (f *fakeSubscriber) ID() string { return f.id }
func (f *fakeSubscriber) OwnerID() string { return f.ownerID }

func (f *fakeSubscriber) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClientClosed
	}
	if f.full {
		return ErrSlowClient
	}
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeSubscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSubscriber) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSubscriber) events(t *testing.T) []Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Event, 0, len(f.messages))
	for _, raw := range f.messages {
		var evt Event
		require.NoError(t, json.Unmarshal(raw, &evt))
		out = append(out, evt)
	}
	return out
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	client := newFakeSubscriber("client-1", "auth0|alice")

	hub.Register(client)
	assert.Equal(t, 1, hub.ClientCount("auth0|alice"))
	assert.Equal(t, 1, hub.TotalClientCount())

	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount("auth0|alice"))
	assert.Equal(t, 0, hub.TotalClientCount())

	assert.NotPanics(t, func() { hub.Unregister(newFakeSubscriber("ghost", "auth0|nobody")) })
}

func TestHub_PublishOnlyReachesOwner(t *testing.T) {
	hub := NewHub()
	alice := newFakeSubscriber("a", "auth0|alice")
	aliceTab := newFakeSubscriber("a2", "auth0|alice")
	bob := newFakeSubscriber("b", "auth0|bob")
	hub.Register(alice)
	hub.Register(aliceTab)
	hub.Register(bob)

	hub.Publish("auth0|alice", EnvelopeUpdated(map[string]string{"id": "env-1"}))

	assert.Len(t, alice.events(t), 1)
	assert.Len(t, aliceTab.events(t), 1)
	assert.Empty(t, bob.events(t))
}

func TestHub_SequenceIsPerOwnerAndOrdered(t *testing.T) {
	hub := NewHub()
	alice := newFakeSubscriber("a", "auth0|alice")
	hub.Register(alice)

	hub.Publish("auth0|alice", TransactionCreated(nil))
	hub.Publish("auth0|bob", RuleCreated(nil))
	hub.Publish("auth0|alice", TransactionUpdated(nil))
	hub.Publish("auth0|alice", TransactionDeleted(nil))

	events := alice.events(t)
	require.Len(t, events, 3)
	for i, evt := range events {
		assert.Equal(t, uint64(i+1), evt.Seq)
	}
	assert.Equal(t, "transaction.created", events[0].Type)
	assert.Equal(t, "transaction.deleted", events[2].Type)

	assert.Equal(t, uint64(3), hub.LastSeq("auth0|alice"))
	assert.Equal(t, uint64(1), hub.LastSeq("auth0|bob"))
	assert.Equal(t, uint64(0), hub.LastSeq("auth0|carol"))
}

func TestHub_SequenceSurvivesReconnect(t *testing.T) {
	hub := NewHub()
	first := newFakeSubscriber("a", "auth0|alice")
	hub.Register(first)
	hub.Publish("auth0|alice", EnvelopeCreated(nil))
	hub.Unregister(first)

	hub.Publish("auth0|alice", EnvelopeUpdated(nil))

	second := newFakeSubscriber("a2", "auth0|alice")
	hub.Register(second)
	hub.Publish("auth0|alice", EnvelopeDeleted(nil))

	events := second.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(3), events[0].Seq, "the gap tells the client it missed an event")
}

func TestHub_DropsSlowOrClosedSubscribers(t *testing.T) {
	hub := NewHub()
	slow := newFakeSubscriber("slow", "auth0|alice")
	slow.full = true
	closed := newFakeSubscriber("closed", "auth0|alice")
	_ = closed.Close()
	open := newFakeSubscriber("open", "auth0|alice")
	hub.Register(slow)
	hub.Register(closed)
	hub.Register(open)

	hub.Publish("auth0|alice", TransactionCreated(map[string]string{"id": "tx-1"}))

	assert.Len(t, open.events(t), 1)
	assert.Equal(t, 1, hub.ClientCount("auth0|alice"))
	assert.Eventually(t, slow.isClosed, timeout, tick)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub()

	assert.NotPanics(t, func() { hub.Publish("auth0|alice", RuleCreated(nil)) })
	assert.Equal(t, uint64(1), hub.LastSeq("auth0|alice"))
}

func TestHub_ConcurrentPublish(t *testing.T) {
	hub := NewHub()
	alice := newFakeSubscriber("a", "auth0|alice")
	hub.Register(alice)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			hub.Register(newFakeSubscriber(fmt.Sprintf("tab-%d", n), "auth0|alice"))
			hub.Publish("auth0|alice", RuleUpdated(nil))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 51, hub.ClientCount("auth0|alice"))
	events := alice.events(t)
	require.Len(t, events, 50)
	for i, evt := range events {
		assert.Equal(t, uint64(i+1), evt.Seq)
	}
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub()
	alice := newFakeSubscriber("a", "auth0|alice")
	bob := newFakeSubscriber("b", "auth0|bob")
	hub.Register(alice)
	hub.Register(bob)

	hub.CloseAll()

	assert.True(t, alice.isClosed())
	assert.True(t, bob.isClosed())
	assert.Equal(t, 0, hub.TotalClientCount())
}
