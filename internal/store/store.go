// Package store persists the coordination engine's state in a keyed store.
//
// The store is an ad hoc relational layer: every record type keeps a primary
// JSON blob plus the secondary indexes its queries need (reverse provider-id
// index, date-ordered sets, per-phone sets, the active-call set, per-hour
// coverage sets). Each write path documents the indexes it must maintain;
// multi-key writes go through a transaction so a crash cannot leave an index
// pointing at a record that was never written.
package store

import (
	"context"

	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// CallStore owns call records and their indexes.
//
// Index obligations per write:
//   - CreateCall: record blob, provider-id reverse index (unique), date
//     zset, phone set, active set (iff unended), in one atomic batch.
//   - EndCall: record blob, active set removal.
//   - UpdateCall: record blob, region/operator set moves when those fields
//     change.
type CallStore interface {
	// CreateCall writes a new record. If the provider call id is already
	// mapped, the existing record is returned instead (webhook redelivery).
	CreateCall(ctx context.Context, rec types.CallRecord) (types.CallRecord, bool, error)

	// EndCall resolves the provider id and closes the record. Returns
	// (nil, nil) when the provider id is unknown: end events for calls the
	// engine never saw start are expected and must not error.
	EndCall(ctx context.Context, providerCallID string, endedAt int64, durationSeconds int) (*types.CallRecord, error)

	UpdateCall(ctx context.Context, id string, upd types.CallUpdate, updatedAt int64) (*types.CallRecord, error)
	GetCall(ctx context.Context, id string) (*types.CallRecord, error)
	GetCallByProviderID(ctx context.Context, providerCallID string) (*types.CallRecord, error)
	ActiveCalls(ctx context.Context) ([]types.CallRecord, error)

	// QueryCalls pages by the date index first and applies the remaining
	// filters in memory afterwards. A page can therefore come back short
	// when filters discard rows; callers accept this precision-vs-cost
	// tradeoff rather than scanning the full range.
	QueryCalls(ctx context.Context, f types.CallFilters) ([]types.CallRecord, error)

	// CallsByPhoneVariants unions the per-phone sets of all variants,
	// newest first.
	CallsByPhoneVariants(ctx context.Context, variants []string) ([]types.CallRecord, error)
}

// ShiftStore owns shifts and the materialized per-hour coverage sets.
// Callers compute the hour sets; the store guarantees the whole mutation
// (record write plus every set add/remove) is applied atomically, so a
// concurrent coverage reader never observes a half-applied update.
type ShiftStore interface {
	CreateShift(ctx context.Context, s types.Shift, coverHours []int) error

	// ReplaceShift removes the operator from every previously covered hour
	// and adds the new hours in the same transaction.
	ReplaceShift(ctx context.Context, old types.Shift, oldHours []int, s types.Shift, coverHours []int) error

	DeleteShift(ctx context.Context, s types.Shift, coverHours []int) error
	GetShift(ctx context.Context, id string) (*types.Shift, error)
	ShiftsByDate(ctx context.Context, date string) ([]types.Shift, error)
	ShiftsByOperator(ctx context.Context, operatorID string, fromMillis, toMillis int64) ([]types.Shift, error)
	AllShifts(ctx context.Context) ([]types.Shift, error)

	// OnDuty returns the coverage set for one (date, hour) pair.
	OnDuty(ctx context.Context, date string, hour int) ([]string, error)
}

// TicketStore owns missed-call tickets, keyed by call record id so at most
// one ticket can exist per call.
type TicketStore interface {
	SaveTicket(ctx context.Context, t types.MissedCallTicket) error
	GetTicket(ctx context.Context, callRecordID string) (*types.MissedCallTicket, error)
	ListTickets(ctx context.Context, limit int) ([]types.MissedCallTicket, error)
	DeleteTicket(ctx context.Context, callRecordID string) error

	// AssignTicket saves the ticket and appends it to the operator's
	// personal assigned index in one batch.
	AssignTicket(ctx context.Context, t types.MissedCallTicket) error

	// ResolveTicket saves the terminal ticket and removes it from the
	// assigned operator's open index.
	ResolveTicket(ctx context.Context, t types.MissedCallTicket) error

	AssignedTicketIDs(ctx context.Context, operatorID string) ([]string, error)

	// IncrementCursor atomically advances the round-robin cursor for one
	// (date, hour) coverage set and returns the new value. This must be a
	// single increment-and-fetch: concurrent assignments racing on a
	// read-then-write cursor would hand two calls to the same operator.
	IncrementCursor(ctx context.Context, date string, hour int) (int64, error)
}

// ContactStore owns saved caller names keyed by normalized phone number.
type ContactStore interface {
	SaveContact(ctx context.Context, c types.Contact) error
	GetContact(ctx context.Context, variants []string) (*types.Contact, error)
	DeleteContact(ctx context.Context, phoneNumber string) error
	AllContacts(ctx context.Context) ([]types.Contact, error)
}

// OperatorStore owns the operator directory.
type OperatorStore interface {
	SaveOperator(ctx context.Context, op types.OperatorInfo) error
	GetOperator(ctx context.Context, id string) (*types.OperatorInfo, error)
	AllOperators(ctx context.Context) ([]types.OperatorInfo, error)
	DeleteOperator(ctx context.Context, id string) error
}

// EventLog is the append-only, trimmed event transport. It is not a system
// of record: old entries are dropped and slow consumers must fall back to a
// full state refresh.
type EventLog interface {
	// AppendEvent assigns the next sequence id, appends the envelope and
	// trims the log to its bounded length.
	AppendEvent(ctx context.Context, eventType string, payload []byte, publishedAt int64) (types.EventEnvelope, error)

	// EventsSince returns envelopes strictly after lastSeq, oldest first.
	EventsSince(ctx context.Context, lastSeq int64, limit int) ([]types.EventEnvelope, error)

	// RecentEvents returns the newest envelopes published at or after the
	// given instant, oldest first. Used for consumer cold starts.
	RecentEvents(ctx context.Context, sinceMillis int64, limit int) ([]types.EventEnvelope, error)
}

// Store is the full persistence surface of the engine.
type Store interface {
	CallStore
	ShiftStore
	TicketStore
	ContactStore
	OperatorStore
	EventLog

	Ping(ctx context.Context) error
	Close() error
}
