package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aanand-mishra/students-registry/internal/types"
)

// KeyPrefix namespaces every key written by Redis.
const KeyPrefix = "student:"

// Redis implements Cache on top of a go-redis client. Records are stored
// as JSON under "student:<id>".
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing client. The Redis owns it from then on:
// Close closes the client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache.Dial: ping %s: %w", addr, err)
	}
	return client, nil
}

// Key returns the Redis key for a student id.
func Key(id int64) string {
	return KeyPrefix + strconv.FormatInt(id, 10)
}

func (r *Redis) Get(ctx context.Context, id int64) (types.Student, error) {
	data, err := r.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Student{}, ErrCacheMiss
	}
	if err != nil {
		return types.Student{}, fmt.Errorf("redis get: %w", err)
	}

	var st types.Student
	if err := json.Unmarshal(data, &st); err != nil {
		return types.Student{}, fmt.Errorf("redis get: decode: %w", err)
	}
	return st, nil
}

func (r *Redis) Set(ctx context.Context, st types.Student, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redis set: encode: %w", err)
	}
	if err := r.client.Set(ctx, Key(st.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id int64) error {
	if err := r.client.Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var (
	_ Cache     = (*Redis)(nil)
	_ io.Closer = (*Redis)(nil)
)
