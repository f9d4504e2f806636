package documents

import "time"

// EventType classifies history entries.
type EventType string

const (
	EventStatusChange EventType = "status_change"
	EventPDFGenerated EventType = "pdf_generated"
	EventEmailSent    EventType = "email_sent"
	EventPOGenerated  EventType = "po_generated"
)

// HistoryEntry is an append-only audit row of a document.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	EventType  EventType `json:"event_type"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"status,omitempty"`
	ExtraInfo  string    `json:"extra_info,omitempty"`
	ActorID    int64     `json:"action_by"`
	CreatedAt  time.Time `json:"timestamp"`
}

// StatusChange returns the history entry for a status move and false when
// the status did not change.
func StatusChange[S ~string](from, to S, actorID int64) (HistoryEntry, bool) {
	if from == to {
		return HistoryEntry{}, false
	}
	return HistoryEntry{
		EventType:  EventStatusChange,
		FromStatus: string(from),
		ToStatus:   string(to),
		ActorID:    actorID,
	}, true
}

// Event returns a non-status history entry.
func Event(kind EventType, extra string, actorID int64) HistoryEntry {
	return HistoryEntry{EventType: kind, ExtraInfo: extra, ActorID: actorID}
}

// Comment is a free-text note attached to a document.
type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"comment"`
	AuthorID  int64     `json:"comment_by"`
	CreatedAt time.Time `json:"timestamp"`
}
