package types

import "encoding/json"

// Event types published on the bus
const (
	EventCallStarted    = "call.started"
	EventCallEnded      = "call.ended"
	EventCallUpdated    = "call.updated"
	EventTicketAssigned = "ticket.assigned"
	EventStatsSnapshot  = "stats.snapshot"
)

// EventEnvelope is the unit of the event log. SequenceID is monotonically
// increasing and is the only progress marker a consumer must remember.
// Delivery is at-least-once; consumers deduplicate by SequenceID.
type EventEnvelope struct {
	SequenceID  int64           `json:"sequenceId"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt int64           `json:"publishedAt"` // Unix ms
}
