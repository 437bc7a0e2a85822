package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 10000

	// Cursor keys are scoped to a (date, hour) pair; anything older than
	// two days can never be read again.
	cursorTTL = 48 * time.Hour
)

// Options configures the Redis-backed store.
type Options struct {
	Addr        string
	Password    string
	DB          int
	EventLogMax int64 // bounded event log length
}

// RedisStore implements Store on a Redis instance.
type RedisStore struct {
	rdb         *redis.Client
	eventLogMax int64
	logger      zerolog.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts Options, logger zerolog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	if opts.EventLogMax <= 0 {
		opts.EventLogMax = 1000
	}

	logger.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("redis store initialized")

	return &RedisStore{rdb: rdb, eventLogMax: opts.EventLogMax, logger: logger}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *RedisStore) Close() error { return s.rdb.Close() }

// ============= CALLS =============

func (s *RedisStore) CreateCall(ctx context.Context, rec types.CallRecord) (types.CallRecord, bool, error) {
	// Claim the provider id first. If another delivery of the same start
	// event won the race, return its record instead of writing a duplicate.
	claimed, err := s.rdb.SetNX(ctx, keyCallByProvider(rec.ProviderCallID), rec.ID, 0).Result()
	if err != nil {
		return types.CallRecord{}, false, fmt.Errorf("failed to claim provider call id: %w", err)
	}
	if !claimed {
		existing, err := s.GetCallByProviderID(ctx, rec.ProviderCallID)
		if err != nil {
			return types.CallRecord{}, false, err
		}
		if existing != nil {
			return *existing, false, nil
		}
		// Reverse index points at a record that was never written (crash
		// between sub-writes). Repair by taking over the mapping.
		if err := s.rdb.Set(ctx, keyCallByProvider(rec.ProviderCallID), rec.ID, 0).Err(); err != nil {
			return types.CallRecord{}, false, fmt.Errorf("failed to repair provider index: %w", err)
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return types.CallRecord{}, false, fmt.Errorf("failed to marshal call record: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyCall(rec.ID), data, 0)
	pipe.ZAdd(ctx, keyCallsByDate, redis.Z{Score: float64(rec.CreatedAt), Member: rec.ID})
	pipe.SAdd(ctx, keyCallsByPhone(rec.PhoneNumber), rec.ID)
	if !rec.Ended() {
		pipe.SAdd(ctx, keyCallsActive, rec.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return types.CallRecord{}, false, fmt.Errorf("failed to write call record: %w", err)
	}

	return rec, true, nil
}

func (s *RedisStore) EndCall(ctx context.Context, providerCallID string, endedAt int64, durationSeconds int) (*types.CallRecord, error) {
	id, err := s.rdb.Get(ctx, keyCallByProvider(providerCallID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve provider call id: %w", err)
	}

	rec, err := s.GetCall(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	rec.EndedAt = endedAt
	rec.DurationSeconds = durationSeconds
	rec.UpdatedAt = endedAt

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal call record: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyCall(id), data, 0)
	pipe.SRem(ctx, keyCallsActive, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to end call: %w", err)
	}

	return rec, nil
}

func (s *RedisStore) UpdateCall(ctx context.Context, id string, upd types.CallUpdate, updatedAt int64) (*types.CallRecord, error) {
	rec, err := s.GetCall(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	pipe := s.rdb.TxPipeline()

	if upd.Region != nil && *upd.Region != rec.Region {
		if rec.Region != "" {
			pipe.SRem(ctx, keyCallsByRegion(rec.Region), id)
		}
		if *upd.Region != "" {
			pipe.SAdd(ctx, keyCallsByRegion(*upd.Region), id)
		}
		rec.Region = *upd.Region
	}
	if upd.OperatorName != nil && *upd.OperatorName != rec.OperatorName {
		if rec.OperatorName != "" {
			pipe.SRem(ctx, keyCallsByOperator(rec.OperatorName), id)
		}
		if *upd.OperatorName != "" {
			pipe.SAdd(ctx, keyCallsByOperator(*upd.OperatorName), id)
		}
		rec.OperatorName = *upd.OperatorName
	}
	if upd.CallerType != nil {
		rec.CallerType = *upd.CallerType
	}
	if upd.Topic != nil {
		rec.Topic = *upd.Topic
	}
	if upd.Notes != nil {
		rec.Notes = *upd.Notes
	}
	rec.UpdatedAt = updatedAt

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal call record: %w", err)
	}
	pipe.Set(ctx, keyCall(id), data, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to update call: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) GetCall(ctx context.Context, id string) (*types.CallRecord, error) {
	data, err := s.rdb.Get(ctx, keyCall(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call %s: %w", id, err)
	}

	var rec types.CallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal call %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) GetCallByProviderID(ctx context.Context, providerCallID string) (*types.CallRecord, error) {
	id, err := s.rdb.Get(ctx, keyCallByProvider(providerCallID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve provider call id: %w", err)
	}
	return s.GetCall(ctx, id)
}

func (s *RedisStore) ActiveCalls(ctx context.Context) ([]types.CallRecord, error) {
	ids, err := s.rdb.SMembers(ctx, keyCallsActive).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read active set: %w", err)
	}
	return s.fetchCalls(ctx, ids)
}

func (s *RedisStore) QueryCalls(ctx context.Context, f types.CallFilters) ([]types.CallRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	var ids []string
	var err error
	if f.DateFrom > 0 || f.DateTo > 0 {
		max := "+inf"
		if f.DateTo > 0 {
			max = strconv.FormatInt(f.DateTo, 10)
		}
		ids, err = s.rdb.ZRevRangeByScore(ctx, keyCallsByDate, &redis.ZRangeBy{
			Min:    strconv.FormatInt(f.DateFrom, 10),
			Max:    max,
			Offset: int64(f.Offset),
			Count:  int64(limit),
		}).Result()
	} else {
		ids, err = s.rdb.ZRevRange(ctx, keyCallsByDate, int64(f.Offset), int64(f.Offset+limit-1)).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query date index: %w", err)
	}

	calls, err := s.fetchCalls(ctx, ids)
	if err != nil {
		return nil, err
	}
	return filterCalls(calls, f), nil
}

func (s *RedisStore) CallsByPhoneVariants(ctx context.Context, variants []string) ([]types.CallRecord, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, variant := range variants {
		members, err := s.rdb.SMembers(ctx, keyCallsByPhone(variant)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read phone index %s: %w", variant, err)
		}
		for _, id := range members {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	calls, err := s.fetchCalls(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortCallsNewestFirst(calls)
	return calls, nil
}

// fetchCalls loads call blobs in one round trip, dropping ids whose record
// is missing (a half-applied write being repaired).
func (s *RedisStore) fetchCalls(ctx context.Context, ids []string) ([]types.CallRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyCall(id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch call records: %w", err)
	}

	calls := make([]types.CallRecord, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec types.CallRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			s.logger.Warn().Str("call_id", ids[i]).Err(err).Msg("skipping unreadable call record")
			continue
		}
		calls = append(calls, rec)
	}
	return calls, nil
}
