package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"roulette-dozen/internal/dozen"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// RedisStore keeps the history in one hash (field = timestamp, value = JSON
// observation) and the model under "<key>:model".
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr and pings it.
func NewRedisStore(addr, password, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedisStoreWithClient(client, key), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) modelKey() string { return s.key + ":model" }

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Load(ctx context.Context) ([]dozen.Observation, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := make([]dozen.Observation, 0, len(fields))
	for ts, raw := range fields {
		var o dozen.Observation
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			log.Warn().Err(err).Str("timestamp", ts).Msg("Skipping undecodable observation")
			continue
		}
		history = append(history, o)
	}
	dozen.SortByTimestamp(history)
	return history, nil
}

func (s *RedisStore) Append(ctx context.Context, obs dozen.Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}
	added, err := s.client.HSetNX(ctx, s.key, obs.Timestamp, string(data)).Result()
	if err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	if !added {
		return ErrDuplicate
	}
	return nil
}

// Replace swaps the hash for history in one MULTI/EXEC, so a failed write
// leaves the previous history in place.
func (s *RedisStore) Replace(ctx context.Context, history []dozen.Observation) error {
	values := make([]interface{}, 0, 2*len(history))
	for _, o := range history {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal observation: %w", err)
		}
		values = append(values, o.Timestamp, string(data))
	}

	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.key)
		if len(values) > 0 {
			p.HSet(ctx, s.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveModel(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.modelKey(), string(data), 0).Err()
}

func (s *RedisStore) LoadModel(ctx context.Context) ([]byte, error) {
	v, err := s.client.Get(ctx, s.modelKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}
