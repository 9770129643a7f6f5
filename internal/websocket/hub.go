package websocket

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrClientClosed is returned when sending to a closed client
	ErrClientClosed = errors.New("client is closed")
	// ErrSlowClient is returned when a client's send queue is full
	ErrSlowClient = errors.New("client send queue is full")
)

// Subscriber is a connection the hub can push events to
type Subscriber interface {
	ID() string
	OwnerID() string
	Send(data []byte) error
	Close() error
}

// ownerFeed holds the connections of one owner and the last sequence
// number handed out for that owner.
type ownerFeed struct {
	seq         uint64
	subscribers map[string]Subscriber
}

// Hub delivers ledger events to every connection of the owner they concern.
// Each owner's events carry a gapless sequence number and reach every
// subscriber in publish order. Subscribers that cannot keep up are dropped
// and are expected to reconnect and refetch.
type Hub struct {
	mu    sync.Mutex
	feeds map[string]*ownerFeed
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{feeds: make(map[string]*ownerFeed)}
}

// Register adds a subscriber under its owner
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	feed := h.feeds[s.OwnerID()]
	if feed == nil {
		feed = &ownerFeed{subscribers: make(map[string]Subscriber)}
		h.feeds[s.OwnerID()] = feed
	}
	feed.subscribers[s.ID()] = s

	log.Debug().
		Str("owner_id", s.OwnerID()).
		Str("client_id", s.ID()).
		Msg("WebSocket client registered")
}

// Unregister removes a subscriber. The owner's sequence survives so a
// reconnecting client can detect missed events.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if feed, ok := h.feeds[s.OwnerID()]; ok {
		delete(feed.subscribers, s.ID())
	}
}

// Publish stamps event with the owner's next sequence number and queues it
// on each of the owner's subscribers.
func (h *Hub) Publish(ownerID string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	feed := h.feeds[ownerID]
	if feed == nil {
		feed = &ownerFeed{subscribers: make(map[string]Subscriber)}
		h.feeds[ownerID] = feed
	}
	feed.seq++
	event.Seq = feed.seq

	if len(feed.subscribers) == 0 {
		return
	}

	data, err := event.ToJSON()
	if err != nil {
		log.Error().Err(err).
			Str("owner_id", ownerID).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	for id, s := range feed.subscribers {
		if err := s.Send(data); err != nil {
			log.Warn().Err(err).
				Str("owner_id", ownerID).
				Str("client_id", id).
				Uint64("seq", event.Seq).
				Msg("Dropping WebSocket client")
			delete(feed.subscribers, id)
			go func(s Subscriber) { _ = s.Close() }(s)
		}
	}
}

// LastSeq returns the sequence number of the owner's latest event
func (h *Hub) LastSeq(ownerID string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if feed, ok := h.feeds[ownerID]; ok {
		return feed.seq
	}
	return 0
}

// ClientCount returns the number of connections of an owner
func (h *Hub) ClientCount(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if feed, ok := h.feeds[ownerID]; ok {
		return len(feed.subscribers)
	}
	return 0
}

// TotalClientCount returns the number of connections across owners
func (h *Hub) TotalClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for _, feed := range h.feeds {
		total += len(feed.subscribers)
	}
	return total
}

// CloseAll disconnects every subscriber, used on shutdown
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var subscribers []Subscriber
	for _, feed := range h.feeds {
		for id, s := range feed.subscribers {
			subscribers = append(subscribers, s)
			delete(feed.subscribers, id)
		}
	}
	h.mu.Unlock()

	for _, s := range subscribers {
		_ = s.Close()
	}
	log.Info().Int("client_count", len(subscribers)).Msg("Closed WebSocket clients")
}
