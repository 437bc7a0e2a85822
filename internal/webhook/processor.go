// Package webhook processes telephony events from the PBX. Events for the
// same provider call id are serialized so a start and its end can never
// interleave, while events for unrelated calls process concurrently.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/assign"
	"github.com/Muhiddinjon/call-center-crm/internal/bus"
	"github.com/Muhiddinjon/call-center-crm/internal/clock"
	"github.com/Muhiddinjon/call-center-crm/internal/lookup"
	"github.com/Muhiddinjon/call-center-crm/internal/metrics"
	"github.com/Muhiddinjon/call-center-crm/internal/phone"
	"github.com/Muhiddinjon/call-center-crm/internal/store"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// Event kinds accepted from the PBX.
const (
	EventStart = "start"
	EventEnd   = "end"
)

// ErrBadEvent marks a payload the processor cannot act on.
var ErrBadEvent = errors.New("invalid webhook event")

// Event is the normalized PBX payload.
type Event struct {
	Event           string          `json:"event"`
	ProviderCallID  string          `json:"providerCallId"`
	PhoneNumber     string          `json:"phoneNumber"`
	InternalNumber  string          `json:"internalNumber,omitempty"`
	Direction       types.Direction `json:"direction,omitempty"`
	DurationSeconds int             `json:"durationSeconds,omitempty"`
}

// lockStripes spreads per-call locks over a fixed set of mutexes.
const lockStripes = 64

// Processor applies PBX events to the call store and downstream engines.
type Processor struct {
	store  store.Store
	lookup *lookup.Client
	assign *assign.Engine
	bus    *bus.Bus
	clock  *clock.Clock
	logger zerolog.Logger

	locks [lockStripes]sync.Mutex
}

func New(st store.Store, lk *lookup.Client, as *assign.Engine, b *bus.Bus, ck *clock.Clock, logger zerolog.Logger) *Processor {
	return &Processor{
		store:  st,
		lookup: lk,
		assign: as,
		bus:    b,
		clock:  ck,
		logger: logger.With().Str("component", "webhook").Logger(),
	}
}

func (p *Processor) lockFor(providerCallID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(providerCallID))
	return &p.locks[h.Sum32()%lockStripes]
}

// Process applies one PBX event. Unknown provider ids on end events are
// absorbed; malformed payloads return ErrBadEvent.
func (p *Processor) Process(ctx context.Context, ev Event) (*types.CallRecord, error) {
	m := metrics.Get()
	m.RecordWebhookReceived()

	if ev.ProviderCallID == "" {
		m.RecordWebhookError()
		return nil, fmt.Errorf("%w: providerCallId required", ErrBadEvent)
	}

	mu := p.lockFor(ev.ProviderCallID)
	mu.Lock()
	defer mu.Unlock()

	var (
		rec *types.CallRecord
		err error
	)
	switch ev.Event {
	case EventStart:
		rec, err = p.handleStart(ctx, ev)
	case EventEnd:
		rec, err = p.handleEnd(ctx, ev)
	default:
		m.RecordWebhookError()
		return nil, fmt.Errorf("%w: unknown event %q", ErrBadEvent, ev.Event)
	}
	if err != nil {
		m.RecordWebhookError()
		return nil, err
	}
	m.RecordWebhookProcessed()
	return rec, nil
}

func (p *Processor) handleStart(ctx context.Context, ev Event) (*types.CallRecord, error) {
	if ev.PhoneNumber == "" {
		return nil, fmt.Errorf("%w: phoneNumber required on start", ErrBadEvent)
	}
	direction := ev.Direction
	if direction == "" {
		direction = types.DirectionIncoming
	}

	normalized := phone.Normalize(ev.PhoneNumber)
	result := p.lookup.Lookup(ctx, normalized)
	now := p.clock.NowMillis()

	rec := types.CallRecord{
		ID:             uuid.NewString(),
		ProviderCallID: ev.ProviderCallID,
		PhoneNumber:    normalized,
		InternalNumber: ev.InternalNumber,
		Direction:      direction,
		CallerType:     result.CallerType(),
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if result.Driver != nil && result.Driver.IsDriver {
		rec.IsDriver = true
		rec.DriverID = result.Driver.DriverID
		rec.DriverName = result.Driver.DriverName
		rec.DriverCar = result.Driver.DriverCar
		rec.DriverRating = result.Driver.DriverRating
	}

	stored, created, err := p.store.CreateCall(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create call: %w", err)
	}
	if !created {
		// Webhook redelivery; the first delivery already published.
		p.logger.Debug().
			Str("provider_call_id", ev.ProviderCallID).
			Str("call_id", stored.ID).
			Msg("duplicate start event ignored")
		return &stored, nil
	}

	metrics.Get().RecordCallStarted()
	p.logger.Info().
		Str("call_id", stored.ID).
		Str("provider_call_id", stored.ProviderCallID).
		Str("phone", stored.PhoneNumber).
		Str("direction", string(stored.Direction)).
		Msg("call started")

	if stored.Direction == types.DirectionIncoming {
		if _, err := p.bus.Publish(ctx, types.EventCallStarted, stored); err != nil {
			p.logger.Error().Err(err).Str("call_id", stored.ID).Msg("publish call.started")
		}
	}
	return &stored, nil
}

func (p *Processor) handleEnd(ctx context.Context, ev Event) (*types.CallRecord, error) {
	rec, err := p.store.EndCall(ctx, ev.ProviderCallID, p.clock.NowMillis(), ev.DurationSeconds)
	if err != nil {
		return nil, fmt.Errorf("end call: %w", err)
	}
	if rec == nil {
		// An end for a call we never saw start. Absorb it.
		p.logger.Warn().
			Str("provider_call_id", ev.ProviderCallID).
			Msg("end event for unknown call ignored")
		return nil, nil
	}

	metrics.Get().RecordCallEnded(rec.Missed())
	p.logger.Info().
		Str("call_id", rec.ID).
		Str("provider_call_id", rec.ProviderCallID).
		Int("duration_seconds", rec.DurationSeconds).
		Bool("missed", rec.Missed()).
		Msg("call ended")

	if rec.Missed() {
		ticket, err := p.assign.HandleMissed(ctx, rec)
		if err != nil {
			p.logger.Error().Err(err).Str("call_id", rec.ID).Msg("assign missed call")
		} else {
			m := metrics.Get()
			if ticket.Status == types.TicketAssigned {
				m.RecordTicketAssigned()
			} else {
				m.RecordTicketPending()
			}
			if _, err := p.bus.Publish(ctx, types.EventTicketAssigned, ticket); err != nil {
				p.logger.Error().Err(err).Str("call_id", rec.ID).Msg("publish ticket.assigned")
			}
		}
	}

	if _, err := p.bus.Publish(ctx, types.EventCallEnded, rec); err != nil {
		p.logger.Error().Err(err).Str("call_id", rec.ID).Msg("publish call.ended")
	}
	return rec, nil
}
