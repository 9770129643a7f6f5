package websocket

// EventPublisher receives ledger events as services commit them
type EventPublisher interface {
	Publish(ownerID string, event Event)
}

var (
	_ EventPublisher = (*Hub)(nil)
	_ EventPublisher = NoOpPublisher{}
)

// NoOpPublisher discards events
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(string, Event) {}
