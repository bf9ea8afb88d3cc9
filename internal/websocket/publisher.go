package websocket

// EventPublisher defines the interface for publishing events to WebSocket clients
type EventPublisher interface {
	// Publish sends an event to every connection the user has open
	Publish(userID string, event Event)
}

// SessionPublisher is an EventPublisher that can also end a user's
// connections when their session ends
type SessionPublisher interface {
	EventPublisher
	// Disconnect delivers event to each of the user's connections and closes them
	Disconnect(userID string, event Event)
}

var _ SessionPublisher = (*Hub)(nil)

// Publish implements EventPublisher by broadcasting the event to the user
func (h *Hub) Publish(userID string, event Event) {
	h.Broadcast(userID, event)
}

// NoOpPublisher is a publisher that does nothing (for testing or when WebSocket is disabled)
type NoOpPublisher struct{}

// Publish does nothing
func (n *NoOpPublisher) Publish(userID string, event Event) {}

// Disconnect does nothing
func (n *NoOpPublisher) Disconnect(userID string, event Event) {}
