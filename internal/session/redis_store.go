package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samvad-hq/crm-bff/pkg/dto"
)

const redisKeyPrefix = "crm-bff:session:"

// redisStore keeps one JSON record per key with a native TTL, so several
// snapshotter replicas can share a session.
type redisStore struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

func openRedis(addr string, opts Options) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          opts.RedisDB,
		DialTimeout: opts.RedisTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.RedisTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisStore{client: client, ttl: opts.TTL, timeout: opts.RedisTimeout}, nil
}

func (r *redisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *redisStore) Load(key string) (dto.AuthTokens, bool, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	raw, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return dto.AuthTokens{}, false, nil
	}
	if err != nil {
		return dto.AuthTokens{}, false, fmt.Errorf("load session %q: %w", key, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		_ = r.client.Del(ctx, redisKey(key)).Err()
		return dto.AuthTokens{}, false, nil
	}
	return rec.tokens(), true, nil
}

func (r *redisStore) Save(key string, tokens dto.AuthTokens) error {
	payload, err := json.Marshal(recordOf(tokens))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.client.Set(ctx, redisKey(key), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %q: %w", key, err)
	}
	return nil
}

func (r *redisStore) Delete(key string) error {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("delete session %q: %w", key, err)
	}
	return nil
}

func (r *redisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}
