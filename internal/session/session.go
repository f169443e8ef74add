// Package session persists AuthTokens between runs of the BFF callers. Token
// refresh scheduling lives with the callers, not with the backend client.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/crm-bff/pkg/dto"
)

// DefaultKey is used by single-user callers such as the CLI.
const DefaultKey = "default"

// Supported store types.
const (
	TypeBolt  = "bbolt"
	TypeRedis = "redis"
	TypeNone  = "none"
)

// Store keeps AuthTokens keyed by an account label.
type Store interface {
	Close() error
	Load(key string) (dto.AuthTokens, bool, error)
	Save(key string, tokens dto.AuthTokens) error
	Delete(key string) error
}

// Options controls retention characteristics for concrete store implementations.
// CleanupInterval only applies to bbolt; redis expires keys itself.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	RedisDB         int
	RedisTimeout    time.Duration
}

const (
	defaultTTL             = 24 * time.Hour
	defaultCleanupInterval = time.Hour
	defaultRedisTimeout    = 5 * time.Second
)

// NewStore creates the configured session backend. location is the bbolt
// file path or the redis host:port.
func NewStore(typ, location string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	location = strings.TrimSpace(location)
	opts = normalizeOptions(opts)

	switch typ {
	case "", TypeNone, "disabled":
		return noopStore{}, nil
	case TypeBolt:
		if location == "" {
			return nil, fmt.Errorf("bbolt session store requires a path")
		}
		return openBolt(location, opts)
	case TypeRedis:
		if location == "" {
			return nil, fmt.Errorf("redis session store requires an address")
		}
		return openRedis(location, opts)
	default:
		return nil, fmt.Errorf("unsupported session store type %q", typ)
	}
}

// Location picks the store location argument for typ from the two configured values.
func Location(typ, path, redisAddr string) string {
	if strings.EqualFold(strings.TrimSpace(typ), TypeRedis) {
		return redisAddr
	}
	return path
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.RedisTimeout <= 0 {
		opts.RedisTimeout = defaultRedisTimeout
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                              { return nil }
func (noopStore) Load(string) (dto.AuthTokens, bool, error) { return dto.AuthTokens{}, false, nil }
func (noopStore) Save(string, dto.AuthTokens) error         { return nil }
func (noopStore) Delete(string) error                       { return nil }
