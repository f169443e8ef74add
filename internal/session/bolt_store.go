package session

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/crm-bff/pkg/dto"
	bolt "go.etcd.io/bbolt"
)

var sessionBucket = []byte("sessions")

// Stored values are an 8 byte big-endian unix expiry followed by the JSON
// encoded record.
const expiryPrefixLen = 8

var errBucketMissing = errors.New("session bucket missing")

// record is the persisted form of dto.AuthTokens.
type record struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func recordOf(t dto.AuthTokens) record {
	return record{Access: t.Access, Refresh: t.Refresh, UserID: t.UserID, FullName: t.FullName, Role: t.Role}
}

func (r record) tokens() dto.AuthTokens {
	return dto.AuthTokens{Access: r.Access, Refresh: r.Refresh, UserID: r.UserID, FullName: r.FullName, Role: r.Role}
}

type boltStore struct {
	db              *bolt.DB
	ttl             time.Duration
	cleanupInterval time.Duration
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	now             func() time.Time
}

func openBolt(path string, opts Options) (Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init session bucket: %w", err)
	}

	b := &boltStore{
		db:              db,
		ttl:             opts.TTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	b.lastCleanup.Store(b.now().Unix())
	return b, nil
}

func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Load returns the tokens stored under key. Expired or unreadable entries
// are dropped and reported as missing.
func (b *boltStore) Load(key string) (dto.AuthTokens, bool, error) {
	if b == nil || b.db == nil {
		return dto.AuthTokens{}, false, nil
	}
	now := b.now()
	if err := b.sweep(now); err != nil {
		return dto.AuthTokens{}, false, err
	}

	var (
		rec   record
		found bool
	)
	err := b.update(func(bucket *bolt.Bucket) error {
		k := []byte(key)
		value := bucket.Get(k)
		if value == nil {
			return nil
		}
		if !alive(value, now) || json.Unmarshal(value[expiryPrefixLen:], &rec) != nil {
			return bucket.Delete(k)
		}
		found = true
		return nil
	})
	if err != nil {
		return dto.AuthTokens{}, false, fmt.Errorf("load session %q: %w", key, err)
	}
	return rec.tokens(), found, nil
}

// Save replaces the session stored under key and restarts its TTL.
func (b *boltStore) Save(key string, tokens dto.AuthTokens) error {
	if b == nil || b.db == nil {
		return nil
	}
	now := b.now()
	if err := b.sweep(now); err != nil {
		return err
	}

	payload, err := json.Marshal(recordOf(tokens))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	value := make([]byte, expiryPrefixLen, expiryPrefixLen+len(payload))
	binary.BigEndian.PutUint64(value, uint64(now.Add(b.ttl).Unix()))
	value = append(value, payload...)

	return b.update(func(bucket *bolt.Bucket) error {
		return bucket.Put([]byte(key), value)
	})
}

func (b *boltStore) Delete(key string) error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.update(func(bucket *bolt.Bucket) error {
		return bucket.Delete([]byte(key))
	})
}

func (b *boltStore) update(fn func(*bolt.Bucket) error) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionBucket)
		if bucket == nil {
			return errBucketMissing
		}
		return fn(bucket)
	})
}

// sweep deletes expired sessions at most once per cleanup interval.
func (b *boltStore) sweep(now time.Time) error {
	due := func() bool {
		return now.Sub(time.Unix(b.lastCleanup.Load(), 0)) >= b.cleanupInterval
	}
	if !due() {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()
	if !due() {
		return nil
	}

	err := b.update(func(bucket *bolt.Bucket) error {
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if alive(v, now) {
				continue
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sweep expired sessions: %w", err)
	}
	b.lastCleanup.Store(now.Unix())
	return nil
}

// alive reports whether a stored value carries an expiry after now.
func alive(value []byte, now time.Time) bool {
	if len(value) < expiryPrefixLen {
		return false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryPrefixLen]))
	return unix > 0 && time.Unix(unix, 0).After(now)
}
