package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// Shift writes bundle the record blob, the list/date/operator indexes and
// every coverage set touch into one transaction. A failed Exec leaves the
// previous state intact, which is exactly what the coverage invariant
// needs: no operator may ever cover zero or double hours mid-update.

func (s *RedisStore) CreateShift(ctx context.Context, sh types.Shift, coverHours []int) error {
	data, err := json.Marshal(sh)
	if err != nil {
		return fmt.Errorf("failed to marshal shift: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyShift(sh.ID), data, 0)
	pipe.SAdd(ctx, keyShiftsList, sh.ID)
	pipe.ZAdd(ctx, keyShiftsByDate(sh.Date), redis.Z{Score: float64(sh.StartsAt), Member: sh.ID})
	pipe.ZAdd(ctx, keyShiftsByOperator(sh.OperatorID), redis.Z{Score: float64(sh.StartsAt), Member: sh.ID})
	for _, hour := range coverHours {
		pipe.SAdd(ctx, keyCoverage(sh.Date, hour), sh.OperatorID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write shift: %w", err)
	}
	return nil
}

func (s *RedisStore) ReplaceShift(ctx context.Context, old types.Shift, oldHours []int, sh types.Shift, coverHours []int) error {
	data, err := json.Marshal(sh)
	if err != nil {
		return fmt.Errorf("failed to marshal shift: %w", err)
	}

	pipe := s.rdb.TxPipeline()

	// Remove every stale hour before adding the new set. Doing only the
	// addition would leave the operator covering hours their edited shift
	// no longer spans.
	for _, hour := range oldHours {
		pipe.SRem(ctx, keyCoverage(old.Date, hour), old.OperatorID)
	}
	if old.Date != sh.Date {
		pipe.ZRem(ctx, keyShiftsByDate(old.Date), old.ID)
	}

	pipe.Set(ctx, keyShift(sh.ID), data, 0)
	pipe.ZAdd(ctx, keyShiftsByDate(sh.Date), redis.Z{Score: float64(sh.StartsAt), Member: sh.ID})
	pipe.ZAdd(ctx, keyShiftsByOperator(sh.OperatorID), redis.Z{Score: float64(sh.StartsAt), Member: sh.ID})
	for _, hour := range coverHours {
		pipe.SAdd(ctx, keyCoverage(sh.Date, hour), sh.OperatorID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to replace shift: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteShift(ctx context.Context, sh types.Shift, coverHours []int) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keyShift(sh.ID))
	pipe.SRem(ctx, keyShiftsList, sh.ID)
	pipe.ZRem(ctx, keyShiftsByDate(sh.Date), sh.ID)
	pipe.ZRem(ctx, keyShiftsByOperator(sh.OperatorID), sh.ID)
	for _, hour := range coverHours {
		pipe.SRem(ctx, keyCoverage(sh.Date, hour), sh.OperatorID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	return nil
}

func (s *RedisStore) GetShift(ctx context.Context, id string) (*types.Shift, error) {
	data, err := s.rdb.Get(ctx, keyShift(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift %s: %w", id, err)
	}

	var sh types.Shift
	if err := json.Unmarshal(data, &sh); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shift %s: %w", id, err)
	}
	return &sh, nil
}

func (s *RedisStore) ShiftsByDate(ctx context.Context, date string) ([]types.Shift, error) {
	ids, err := s.rdb.ZRange(ctx, keyShiftsByDate(date), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read shifts date index: %w", err)
	}
	return s.fetchShifts(ctx, ids)
}

func (s *RedisStore) ShiftsByOperator(ctx context.Context, operatorID string, fromMillis, toMillis int64) ([]types.Shift, error) {
	min, max := "-inf", "+inf"
	if fromMillis > 0 {
		min = strconv.FormatInt(fromMillis, 10)
	}
	if toMillis > 0 {
		max = strconv.FormatInt(toMillis, 10)
	}

	ids, err := s.rdb.ZRangeByScore(ctx, keyShiftsByOperator(operatorID), &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read shifts operator index: %w", err)
	}
	return s.fetchShifts(ctx, ids)
}

func (s *RedisStore) AllShifts(ctx context.Context) ([]types.Shift, error) {
	ids, err := s.rdb.SMembers(ctx, keyShiftsList).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read shifts list: %w", err)
	}
	return s.fetchShifts(ctx, ids)
}

func (s *RedisStore) OnDuty(ctx context.Context, date string, hour int) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, keyCoverage(date, hour)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read coverage set: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) fetchShifts(ctx context.Context, ids []string) ([]types.Shift, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyShift(id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shifts: %w", err)
	}

	shifts := make([]types.Shift, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var sh types.Shift
		if err := json.Unmarshal([]byte(str), &sh); err != nil {
			s.logger.Warn().Str("shift_id", ids[i]).Err(err).Msg("skipping unreadable shift")
			continue
		}
		shifts = append(shifts, sh)
	}
	return shifts, nil
}
