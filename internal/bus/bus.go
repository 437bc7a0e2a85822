// Package bus publishes engine events. Every event is appended to the
// durable store log first and only then fanned out to live subscribers, so
// a consumer that missed the broadcast can always catch up by sequence id.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/clock"
	"github.com/Muhiddinjon/call-center-crm/internal/metrics"
	"github.com/Muhiddinjon/call-center-crm/internal/store"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// Broadcaster pushes an encoded event envelope to live subscribers.
// The websocket hub implements it; a nil-safe no-op is used in tests.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Bus is the single publish path for engine events.
type Bus struct {
	store    store.EventLog
	hub      Broadcaster
	clock    *clock.Clock
	lookback time.Duration
	logger   zerolog.Logger
}

// New creates a Bus. lookback bounds how far back a fresh consumer with no
// sequence position reads on its first poll.
func New(st store.EventLog, hub Broadcaster, ck *clock.Clock, lookback time.Duration, logger zerolog.Logger) *Bus {
	if lookback <= 0 {
		lookback = 5 * time.Minute
	}
	return &Bus{
		store:    st,
		hub:      hub,
		clock:    ck,
		lookback: lookback,
		logger:   logger.With().Str("component", "bus").Logger(),
	}
}

// Publish appends an event to the log and broadcasts it. The append is the
// source of truth; a failed broadcast only degrades liveness and is logged,
// never returned. A failed append still broadcasts so live subscribers keep
// receiving, but the envelope carries no sequence id and the error is
// returned: pollers catching up by seq id will miss the event.
func (b *Bus) Publish(ctx context.Context, eventType string, payload any) (types.EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return types.EventEnvelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	env, appendErr := b.store.AppendEvent(ctx, eventType, data, b.clock.NowMillis())
	if appendErr != nil {
		b.logger.Error().Err(appendErr).
			Str("type", eventType).
			Msg("event log append failed, broadcasting without sequence id")
		env = types.EventEnvelope{
			Type:        eventType,
			Payload:     data,
			PublishedAt: b.clock.NowMillis(),
		}
	} else {
		metrics.Get().RecordEventPublished()
	}

	if b.hub != nil {
		encoded, err := json.Marshal(env)
		if err != nil {
			b.logger.Error().Err(err).Str("type", eventType).Msg("encode envelope for broadcast")
		} else {
			b.hub.Broadcast(encoded)
		}
	}

	if appendErr != nil {
		return env, fmt.Errorf("append %s: %w", eventType, appendErr)
	}

	b.logger.Debug().
		Str("type", eventType).
		Int64("seq", env.SequenceID).
		Msg("event published")
	return env, nil
}

// ReadSince returns events strictly after lastSeq. A consumer with no
// position (lastSeq <= 0) gets the recent window instead, oldest first.
func (b *Bus) ReadSince(ctx context.Context, lastSeq int64, limit int) ([]types.EventEnvelope, error) {
	if lastSeq > 0 {
		return b.store.EventsSince(ctx, lastSeq, limit)
	}
	since := b.clock.NowMillis() - b.lookback.Milliseconds()
	return b.store.RecentEvents(ctx, since, limit)
}
