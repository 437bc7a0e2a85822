package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// The event log is a sorted set scored by sequence id. Sequence ids come
// from a separate INCR counter, so concurrent publishers never collide and
// consumers get a strict total order to resume from.

func (s *RedisStore) AppendEvent(ctx context.Context, eventType string, payload []byte, publishedAt int64) (types.EventEnvelope, error) {
	seq, err := s.rdb.Incr(ctx, keyEventsSeq).Result()
	if err != nil {
		return types.EventEnvelope{}, fmt.Errorf("failed to allocate event sequence id: %w", err)
	}

	env := types.EventEnvelope{
		SequenceID:  seq,
		Type:        eventType,
		Payload:     payload,
		PublishedAt: publishedAt,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return types.EventEnvelope{}, fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, keyEventsLog, redis.Z{Score: float64(seq), Member: data})
	// The log is a transport, not a system of record: keep only the newest
	// eventLogMax entries.
	pipe.ZRemRangeByRank(ctx, keyEventsLog, 0, -(s.eventLogMax + 1))
	if _, err := pipe.Exec(ctx); err != nil {
		return types.EventEnvelope{}, fmt.Errorf("failed to append event: %w", err)
	}

	return env, nil
}

func (s *RedisStore) EventsSince(ctx context.Context, lastSeq int64, limit int) ([]types.EventEnvelope, error) {
	if limit <= 0 {
		limit = 100
	}

	raw, err := s.rdb.ZRangeByScore(ctx, keyEventsLog, &redis.ZRangeBy{
		Min:   "(" + strconv.FormatInt(lastSeq, 10),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return s.decodeEnvelopes(raw), nil
}

func (s *RedisStore) RecentEvents(ctx context.Context, sinceMillis int64, limit int) ([]types.EventEnvelope, error) {
	if limit <= 0 {
		limit = 100
	}

	raw, err := s.rdb.ZRevRange(ctx, keyEventsLog, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	envelopes := s.decodeEnvelopes(raw)

	// ZRevRange gave newest first; keep only those inside the lookback
	// window and restore oldest-first order.
	out := make([]types.EventEnvelope, 0, len(envelopes))
	for i := len(envelopes) - 1; i >= 0; i-- {
		if envelopes[i].PublishedAt >= sinceMillis {
			out = append(out, envelopes[i])
		}
	}
	return out, nil
}

func (s *RedisStore) decodeEnvelopes(raw []string) []types.EventEnvelope {
	envelopes := make([]types.EventEnvelope, 0, len(raw))
	for _, entry := range raw {
		var env types.EventEnvelope
		if err := json.Unmarshal([]byte(entry), &env); err != nil {
			s.logger.Warn().Err(err).Msg("skipping unreadable event envelope")
			continue
		}
		envelopes = append(envelopes, env)
	}
	return envelopes
}
