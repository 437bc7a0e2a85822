package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// ============= CONTACTS =============

func (s *RedisStore) SaveContact(ctx context.Context, c types.Contact) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal contact: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyContact(c.PhoneNumber), data, 0)
	pipe.SAdd(ctx, keyContactsList, c.PhoneNumber)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}
	return nil
}

// GetContact tries each phone variant in order and returns the first match.
func (s *RedisStore) GetContact(ctx context.Context, variants []string) (*types.Contact, error) {
	for _, variant := range variants {
		data, err := s.rdb.Get(ctx, keyContact(variant)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get contact %s: %w", variant, err)
		}

		var c types.Contact
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contact %s: %w", variant, err)
		}
		return &c, nil
	}
	return nil, nil
}

func (s *RedisStore) DeleteContact(ctx context.Context, phoneNumber string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keyContact(phoneNumber))
	pipe.SRem(ctx, keyContactsList, phoneNumber)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return nil
}

func (s *RedisStore) AllContacts(ctx context.Context) ([]types.Contact, error) {
	phones, err := s.rdb.SMembers(ctx, keyContactsList).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts list: %w", err)
	}
	if len(phones) == 0 {
		return nil, nil
	}

	keys := make([]string, len(phones))
	for i, p := range phones {
		keys[i] = keyContact(p)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contacts: %w", err)
	}

	contacts := make([]types.Contact, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var c types.Contact
		if err := json.Unmarshal([]byte(str), &c); err != nil {
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

// ============= OPERATORS =============

func (s *RedisStore) SaveOperator(ctx context.Context, op types.OperatorInfo) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operator: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyOperator(op.ID), data, 0)
	pipe.SAdd(ctx, keyOperatorsList, op.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save operator: %w", err)
	}
	return nil
}

func (s *RedisStore) GetOperator(ctx context.Context, id string) (*types.OperatorInfo, error) {
	data, err := s.rdb.Get(ctx, keyOperator(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator %s: %w", id, err)
	}

	var op types.OperatorInfo
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operator %s: %w", id, err)
	}
	return &op, nil
}

func (s *RedisStore) AllOperators(ctx context.Context) ([]types.OperatorInfo, error) {
	ids, err := s.rdb.SMembers(ctx, keyOperatorsList).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read operators list: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyOperator(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch operators: %w", err)
	}

	ops := make([]types.OperatorInfo, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var op types.OperatorInfo
		if err := json.Unmarshal([]byte(str), &op); err != nil {
			continue
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (s *RedisStore) DeleteOperator(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keyOperator(id))
	pipe.SRem(ctx, keyOperatorsList, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete operator: %w", err)
	}
	return nil
}
