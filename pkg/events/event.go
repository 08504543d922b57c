package events

import "time"

// Event defines the contract for all chat events published to the bus.
// The push-notification collaborator consumes these; this service never
// delivers pushes itself.
type Event interface {
	// EventType returns the unique code for this event (e.g. "message.sent").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// MessageSent signals a persisted chat message. receiverId lets the push
// collaborator target the device without reading the session document.
func MessageSent(sessionId, messageId, senderId, receiverId, text string) Event {
	return BaseEvent{
		Type: "message.sent",
		Data: map[string]interface{}{
			"session_id":  sessionId,
			"message_id":  messageId,
			"sender_id":   senderId,
			"receiver_id": receiverId,
			"text":        text,
		},
		OccurredAt: time.Now(),
	}
}

// SessionDeleted signals a user-initiated conversation deletion, messages
// included.
func SessionDeleted(sessionId, requesterId string) Event {
	return BaseEvent{
		Type: "session.deleted",
		Data: map[string]interface{}{
			"session_id":   sessionId,
			"requester_id": requesterId,
		},
		OccurredAt: time.Now(),
	}
}
