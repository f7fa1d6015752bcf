package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueEdited EventType = "issue_edited"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	IssueID   int64       `json:"issue_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps a fresh event id.
func NewEvent(eventType EventType, issueID int64, actorID string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		IssueID:   issueID,
		ActorID:   actorID,
		Timestamp: at,
		Payload:   payload,
	}
}

// IssueEditedPayload payload.
type IssueEditedPayload struct {
	Created      bool                `json:"created"`
	Changes      []domain.FieldValue `json:"changes"`
	CommentAdded bool                `json:"comment_added"`
}
