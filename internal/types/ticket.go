package types

// TicketStatus represents the follow-up state of a missed-call ticket.
// Transitions only move forward: pending -> assigned -> called_back/resolved,
// or pending -> resolved directly when nobody is on duty.
type TicketStatus string

const (
	TicketPending    TicketStatus = "pending"
	TicketAssigned   TicketStatus = "assigned"
	TicketCalledBack TicketStatus = "called_back"
	TicketResolved   TicketStatus = "resolved"
)

// CanTransition reports whether moving from s to next is a legal forward
// step of the ticket state machine. resolved is terminal.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	switch s {
	case TicketPending:
		return next == TicketAssigned || next == TicketCalledBack || next == TicketResolved
	case TicketAssigned:
		return next == TicketCalledBack || next == TicketResolved
	case TicketCalledBack:
		return next == TicketResolved
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible from s.
func (s TicketStatus) Terminal() bool { return s == TicketResolved }

// MissedCallTicket is a queued follow-up obligation derived from a missed
// CallRecord. At most one non-resolved ticket exists per CallRecordID.
type MissedCallTicket struct {
	CallRecordID   string       `json:"callRecordId"`
	ProviderCallID string       `json:"providerCallId"`
	PhoneNumber    string       `json:"phoneNumber"`
	InternalNumber string       `json:"internalNumber,omitempty"`
	ContactName    string       `json:"contactName,omitempty"`
	IsDriver       bool         `json:"isDriver"`
	DriverName     string       `json:"driverName,omitempty"`
	StartedAt      int64        `json:"startedAt"`
	Status         TicketStatus `json:"status"`

	AssignedOperatorID string `json:"assignedOperatorId,omitempty"`
	AssignedOperator   string `json:"assignedOperator,omitempty"`
	AssignedAt         int64  `json:"assignedAt,omitempty"`

	CallbackBy string `json:"callbackBy,omitempty"`
	CallbackAt int64  `json:"callbackAt,omitempty"`
}
