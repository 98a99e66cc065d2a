// Package idempotency remembers the response to a request carrying an
// Idempotency-Key so a retried request gets the same answer instead of
// creating a second order. A key is reserved before the order is created,
// so a retry that arrives while the first attempt is still running sees
// ErrInFlight instead of creating its own order.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrMiss     = errors.New("idempotency: no stored response")
	ErrInFlight = errors.New("idempotency: request still in flight")
)

const inFlightMarker = "in-flight"

type Response struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type Store interface {
	Get(ctx context.Context, key string) (Response, error)
	// Reserve claims key for a request about to run. It reports false when
	// the key is already reserved or holds a stored response.
	Reserve(ctx context.Context, key string) (bool, error)
	// Release drops a reservation whose request did not produce a response
	// worth replaying.
	Release(ctx context.Context, key string) error
	Save(ctx context.Context, key string, resp Response) error
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Response, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Response{}, ErrMiss
	}
	if err != nil {
		return Response{}, fmt.Errorf("redis get failed: %w", err)
	}
	if string(data) == inFlightMarker {
		return Response{}, ErrInFlight
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("unmarshal stored response failed: %w", err)
	}
	return resp, nil
}

func (s *RedisStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, inFlightMarker, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Save stores resp under key, replacing the reservation.
func (s *RedisStore) Save(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response failed: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Key scopes a client-supplied idempotency key to an operation and a user.
func Key(operation string, userID int64, clientKey string) string {
	return fmt.Sprintf("idempotency:%s:%d:%s", operation, userID, clientKey)
}
