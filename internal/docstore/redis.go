package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetline/internal/domain"
)

// RedisStore keeps each document as a JSON value under
// "fleetline:<collection>:<id>". Queries SCAN the collection prefix and
// filter client-side; fine for fleet-sized collections.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisStore(addr, password string, db int, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: "fleetline:",
		logger: logger.With("component", "redis_store"),
	}, nil
}

func (s *RedisStore) key(collection, id string) string {
	return s.prefix + collection + ":" + id
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	val, err := s.client.Get(ctx, s.key(collection, id)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s/%s: %w", collection, id, err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, collection, id string, doc any, mode SetMode) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}

	if mode == Merge {
		existing, err := s.client.Get(ctx, s.key(collection, id)).Bytes()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("redis get for merge %s/%s: %w", collection, id, err)
		}
		data, err = mergeDocs(existing, data)
		if err != nil {
			return fmt.Errorf("merge %s/%s: %w", collection, id, err)
		}
	}

	start := time.Now()
	if err := s.client.Set(ctx, s.key(collection, id), []byte(data), 0).Err(); err != nil {
		s.logger.Error("set failed", "collection", collection, "id", id, "error", err)
		return fmt.Errorf("redis set %s/%s: %w", collection, id, err)
	}
	s.logger.Debug("set", "collection", collection, "id", id, "size_bytes", len(data), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	return s.client.Del(ctx, s.key(collection, id)).Err()
}

func (s *RedisStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	return s.scan(ctx, collection, func([]byte) bool { return true })
}

func (s *RedisStore) QueryEquals(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	return s.scan(ctx, collection, func(doc []byte) bool { return fieldEquals(doc, field, value) })
}

func (s *RedisStore) QueryContains(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	return s.scan(ctx, collection, func(doc []byte) bool { return fieldContains(doc, field, value) })
}

func (s *RedisStore) scan(ctx context.Context, collection string, match func([]byte) bool) ([]json.RawMessage, error) {
	var result []json.RawMessage

	iter := s.client.Scan(ctx, 0, s.prefix+collection+":*", 0).Iterator()
	for iter.Next(ctx) {
		doc, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis scan get %s: %w", iter.Val(), err)
		}
		if match(doc) {
			result = append(result, doc)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", collection, err)
	}
	return result, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
