package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

func (s *RedisStore) SaveTicket(ctx context.Context, t types.MissedCallTicket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyTicket(t.CallRecordID), data, 0)
	pipe.ZAdd(ctx, keyTicketsList, redis.Z{Score: float64(t.StartedAt), Member: t.CallRecordID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	return nil
}

func (s *RedisStore) GetTicket(ctx context.Context, callRecordID string) (*types.MissedCallTicket, error) {
	data, err := s.rdb.Get(ctx, keyTicket(callRecordID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket %s: %w", callRecordID, err)
	}

	var t types.MissedCallTicket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket %s: %w", callRecordID, err)
	}
	return &t, nil
}

func (s *RedisStore) ListTickets(ctx context.Context, limit int) ([]types.MissedCallTicket, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	ids, err := s.rdb.ZRevRange(ctx, keyTicketsList, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tickets index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyTicket(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickets: %w", err)
	}

	tickets := make([]types.MissedCallTicket, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var t types.MissedCallTicket
		if err := json.Unmarshal([]byte(str), &t); err != nil {
			s.logger.Warn().Str("ticket_id", ids[i]).Err(err).Msg("skipping unreadable ticket")
			continue
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (s *RedisStore) DeleteTicket(ctx context.Context, callRecordID string) error {
	t, err := s.GetTicket(ctx, callRecordID)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keyTicket(callRecordID))
	pipe.ZRem(ctx, keyTicketsList, callRecordID)
	if t != nil && t.AssignedOperatorID != "" {
		pipe.ZRem(ctx, keyTicketsAssigned(t.AssignedOperatorID), callRecordID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	return nil
}

func (s *RedisStore) AssignTicket(ctx context.Context, t types.MissedCallTicket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyTicket(t.CallRecordID), data, 0)
	pipe.ZAdd(ctx, keyTicketsList, redis.Z{Score: float64(t.StartedAt), Member: t.CallRecordID})
	pipe.ZAdd(ctx, keyTicketsAssigned(t.AssignedOperatorID), redis.Z{Score: float64(t.AssignedAt), Member: t.CallRecordID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to assign ticket: %w", err)
	}
	return nil
}

func (s *RedisStore) ResolveTicket(ctx context.Context, t types.MissedCallTicket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyTicket(t.CallRecordID), data, 0)
	if t.AssignedOperatorID != "" {
		pipe.ZRem(ctx, keyTicketsAssigned(t.AssignedOperatorID), t.CallRecordID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to resolve ticket: %w", err)
	}
	return nil
}

func (s *RedisStore) AssignedTicketIDs(ctx context.Context, operatorID string) ([]string, error) {
	ids, err := s.rdb.ZRevRange(ctx, keyTicketsAssigned(operatorID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read assigned tickets: %w", err)
	}
	return ids, nil
}

// IncrementCursor is a single INCR: the atomic increment-and-fetch the
// round-robin fairness guarantee depends on.
func (s *RedisStore) IncrementCursor(ctx context.Context, date string, hour int) (int64, error) {
	key := keyCursor(date, hour)
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance round-robin cursor: %w", err)
	}
	if n == 1 {
		// First use of this hour's cursor; let it expire once it can no
		// longer be read.
		s.rdb.Expire(ctx, key, cursorTTL)
	}
	return n, nil
}
