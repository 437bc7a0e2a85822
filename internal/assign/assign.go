// Package assign turns missed calls into follow-up tickets and distributes
// them round-robin across the operators on duty in the hour the call came
// in. Fairness is tracked per (date, hour) duty set with an atomic cursor,
// so operators who join or leave a shift never skew another hour's rotation.
package assign

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/clock"
	"github.com/Muhiddinjon/call-center-crm/internal/store"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

var (
	ErrNotFound      = errors.New("ticket not found")
	ErrBadTransition = errors.New("illegal ticket transition")
)

// Engine assigns missed-call tickets to on-duty operators.
type Engine struct {
	store  store.Store
	clock  *clock.Clock
	logger zerolog.Logger
}

func New(st store.Store, ck *clock.Clock, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  st,
		clock:  ck,
		logger: logger.With().Str("component", "assign").Logger(),
	}
}

// HandleMissed creates a ticket for a missed call and assigns it to the
// next on-duty operator in rotation. With nobody on duty the ticket stays
// pending for manual pickup.
func (e *Engine) HandleMissed(ctx context.Context, call *types.CallRecord) (*types.MissedCallTicket, error) {
	if existing, err := e.store.GetTicket(ctx, call.ID); err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	} else if existing != nil {
		return existing, nil
	}

	ticket := types.MissedCallTicket{
		CallRecordID:   call.ID,
		ProviderCallID: call.ProviderCallID,
		PhoneNumber:    call.PhoneNumber,
		InternalNumber: call.InternalNumber,
		IsDriver:       call.IsDriver,
		DriverName:     call.DriverName,
		StartedAt:      call.StartedAt,
		Status:         types.TicketPending,
	}
	if contact, err := e.store.GetContact(ctx, []string{call.PhoneNumber}); err == nil && contact != nil {
		ticket.ContactName = contact.Name
	}

	date := e.clock.DateString(call.StartedAt)
	hour := e.clock.HourOf(call.StartedAt)

	operatorID, err := e.nextOperator(ctx, date, hour)
	if err != nil {
		return nil, err
	}
	if operatorID == "" {
		if err := e.store.SaveTicket(ctx, ticket); err != nil {
			return nil, fmt.Errorf("save ticket: %w", err)
		}
		e.logger.Warn().
			Str("call_id", call.ID).
			Str("date", date).
			Int("hour", hour).
			Msg("missed call with nobody on duty, ticket left pending")
		return &ticket, nil
	}

	ticket.Status = types.TicketAssigned
	ticket.AssignedOperatorID = operatorID
	ticket.AssignedAt = e.clock.NowMillis()
	if op, err := e.store.GetOperator(ctx, operatorID); err == nil && op != nil {
		ticket.AssignedOperator = op.Name
	}

	if err := e.store.AssignTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("assign ticket: %w", err)
	}

	e.logger.Info().
		Str("call_id", call.ID).
		Str("operator_id", operatorID).
		Str("date", date).
		Int("hour", hour).
		Msg("missed call assigned")
	return &ticket, nil
}

// nextOperator advances the (date, hour) rotation cursor and picks the
// operator it lands on. Ids are sorted so every process sees the same order
// regardless of how the duty set is stored.
func (e *Engine) nextOperator(ctx context.Context, date string, hour int) (string, error) {
	ids, err := e.store.OnDuty(ctx, date, hour)
	if err != nil {
		return "", fmt.Errorf("on duty: %w", err)
	}
	if len(ids) == 0 {
		return "", nil
	}
	sort.Strings(ids)

	n, err := e.store.IncrementCursor(ctx, date, hour)
	if err != nil {
		return "", fmt.Errorf("advance cursor: %w", err)
	}
	return ids[int((n-1)%int64(len(ids)))], nil
}

// AssignNext hands a pending ticket to the current hour's rotation, or to
// an explicit operator when one is named.
func (e *Engine) AssignNext(ctx context.Context, callRecordID, operatorID string) (*types.MissedCallTicket, error) {
	ticket, err := e.store.GetTicket(ctx, callRecordID)
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if ticket == nil {
		return nil, ErrNotFound
	}
	if !ticket.Status.CanTransition(types.TicketAssigned) {
		return nil, fmt.Errorf("%w: %s -> assigned", ErrBadTransition, ticket.Status)
	}

	if operatorID == "" {
		operatorID, err = e.nextOperator(ctx, e.clock.Today(), e.clock.CurrentHour())
		if err != nil {
			return nil, err
		}
		if operatorID == "" {
			return nil, errors.New("nobody on duty to assign to")
		}
	}

	ticket.Status = types.TicketAssigned
	ticket.AssignedOperatorID = operatorID
	ticket.AssignedAt = e.clock.NowMillis()
	if op, err := e.store.GetOperator(ctx, operatorID); err == nil && op != nil {
		ticket.AssignedOperator = op.Name
	}

	if err := e.store.AssignTicket(ctx, *ticket); err != nil {
		return nil, fmt.Errorf("assign ticket: %w", err)
	}
	return ticket, nil
}

// MarkCalledBack records that the operator reached the caller.
func (e *Engine) MarkCalledBack(ctx context.Context, callRecordID, byOperator string) (*types.MissedCallTicket, error) {
	ticket, err := e.store.GetTicket(ctx, callRecordID)
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if ticket == nil {
		return nil, ErrNotFound
	}
	if !ticket.Status.CanTransition(types.TicketCalledBack) {
		return nil, fmt.Errorf("%w: %s -> called_back", ErrBadTransition, ticket.Status)
	}

	ticket.Status = types.TicketCalledBack
	ticket.CallbackBy = byOperator
	ticket.CallbackAt = e.clock.NowMillis()

	if err := e.store.SaveTicket(ctx, *ticket); err != nil {
		return nil, fmt.Errorf("save ticket: %w", err)
	}
	return ticket, nil
}

// MarkResolved closes a ticket. resolved is terminal.
func (e *Engine) MarkResolved(ctx context.Context, callRecordID string) (*types.MissedCallTicket, error) {
	ticket, err := e.store.GetTicket(ctx, callRecordID)
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if ticket == nil {
		return nil, ErrNotFound
	}
	if !ticket.Status.CanTransition(types.TicketResolved) {
		return nil, fmt.Errorf("%w: %s -> resolved", ErrBadTransition, ticket.Status)
	}

	ticket.Status = types.TicketResolved
	if err := e.store.ResolveTicket(ctx, *ticket); err != nil {
		return nil, fmt.Errorf("resolve ticket: %w", err)
	}
	return ticket, nil
}

// Remove drops a ticket entirely, e.g. after a cleanup of stale entries.
func (e *Engine) Remove(ctx context.Context, callRecordID string) error {
	ticket, err := e.store.GetTicket(ctx, callRecordID)
	if err != nil {
		return fmt.Errorf("get ticket: %w", err)
	}
	if ticket == nil {
		return ErrNotFound
	}
	return e.store.DeleteTicket(ctx, callRecordID)
}

// List returns the newest tickets regardless of state.
func (e *Engine) List(ctx context.Context, limit int) ([]types.MissedCallTicket, error) {
	return e.store.ListTickets(ctx, limit)
}

// Unhandled returns tickets still waiting for a callback, newest first.
func (e *Engine) Unhandled(ctx context.Context, limit int) ([]types.MissedCallTicket, error) {
	tickets, err := e.store.ListTickets(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	open := tickets[:0]
	for _, t := range tickets {
		if t.Status == types.TicketPending || t.Status == types.TicketAssigned {
			open = append(open, t)
		}
	}
	return open, nil
}

// ForOperator returns one operator's open assigned tickets.
func (e *Engine) ForOperator(ctx context.Context, operatorID string) ([]types.MissedCallTicket, error) {
	ids, err := e.store.AssignedTicketIDs(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("assigned ids: %w", err)
	}
	tickets := make([]types.MissedCallTicket, 0, len(ids))
	for _, id := range ids {
		t, err := e.store.GetTicket(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get ticket: %w", err)
		}
		if t != nil {
			tickets = append(tickets, *t)
		}
	}
	return tickets, nil
}
