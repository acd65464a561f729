package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "agrirent:payment:idempotency:"

// RedisIdempotencyStore shares keys between API replicas.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) key(idempotencyKey string) string {
	return idempotencyKeyPrefix + idempotencyKey
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, idempotencyKey string) (*ChargeResult, error) {
	k := s.key(idempotencyKey)
	processing, err := json.Marshal(idempotencyState{Status: stateProcessing})
	if err != nil {
		return nil, err
	}

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		data, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			_, err := s.client.SetArgs(ctx, k, processing, redis.SetArgs{Mode: "NX", TTL: s.ttl}).Result()
			if errors.Is(err, redis.Nil) {
				// lost the race, read the winner's state
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("redis set: %w", err)
			}
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}

		var state idempotencyState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("redis unmarshal: %w", err)
		}

		switch state.Status {
		case stateSuccess:
			return state.Result, nil
		case stateProcessing:
			return nil, ErrPaymentInProgress
		default:
			if err := s.client.Set(ctx, k, processing, s.ttl).Err(); err != nil {
				return nil, fmt.Errorf("redis set: %w", err)
			}
			return nil, nil
		}
	}
}

func (s *RedisIdempotencyStore) MarkSuccess(ctx context.Context, idempotencyKey string, result *ChargeResult) error {
	raw, err := json.Marshal(idempotencyState{Status: stateSuccess, Result: result})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(idempotencyKey), raw, s.ttl).Err()
}

func (s *RedisIdempotencyStore) MarkFailure(ctx context.Context, idempotencyKey string) error {
	return s.client.Del(ctx, s.key(idempotencyKey)).Err()
}
