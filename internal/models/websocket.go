package models

// Live feed event types
const (
	EventDebateCreated   = "debate.created"
	EventDebateUpdated   = "debate.updated"
	EventDebatePublished = "debate.published"
	EventDebateDeleted   = "debate.deleted"
	EventError           = "error"
)

type WSMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// DebateEvent is the payload of every debate.* event
type DebateEvent struct {
	ID     int64  `json:"id"`
	Slug   string `json:"slug"`
	Status Status `json:"status,omitempty"`
}

type WSErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// EventForWrite picks the event name for a successful create or update.
// A write that leaves the debate published is announced as a publish.
func EventForWrite(created bool, d *Debate) string {
	if d.Status == StatusPublished {
		return EventDebatePublished
	}
	if created {
		return EventDebateCreated
	}
	return EventDebateUpdated
}
