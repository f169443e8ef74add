package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/samvad-hq/crm-bff/pkg/dto"
	bolt "go.etcd.io/bbolt"
)

func TestBoltStoreSavesAndExpiresSessions(t *testing.T) {
	opts := Options{
		TTL:             time.Minute,
		CleanupInterval: time.Hour,
	}
	storeRaw, err := openBolt(filepath.Join(t.TempDir(), "session.db"), opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	clock := time.Now()
	store.now = func() time.Time { return clock }

	_, found, err := store.Load(DefaultKey)
	if err != nil || found {
		t.Fatalf("expected no session, found=%v err=%v", found, err)
	}

	want := dto.AuthTokens{Access: "a1", Refresh: "r1", UserID: "7", FullName: "Jane", Role: "ADMIN"}
	if err := store.Save(DefaultKey, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, found, err := store.Load(DefaultKey)
	if err != nil || !found {
		t.Fatalf("expected stored session, found=%v err=%v", found, err)
	}
	if got != want {
		t.Fatalf("Load = %#v, want %#v", got, want)
	}

	clock = clock.Add(2 * time.Minute)
	if _, found, err = store.Load(DefaultKey); err != nil || found {
		t.Fatalf("expected expired session to be dropped, found=%v err=%v", found, err)
	}
}

func TestBoltStoreSweepRemovesExpiredEntries(t *testing.T) {
	storeRaw, err := openBolt(filepath.Join(t.TempDir(), "session.db"), Options{TTL: time.Minute, CleanupInterval: time.Hour})
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	clock := time.Now()
	store.now = func() time.Time { return clock }
	for _, key := range []string{"a", "b"} {
		if err := store.Save(key, dto.AuthTokens{Access: key, Refresh: key}); err != nil {
			t.Fatalf("Save %s: %v", key, err)
		}
	}

	clock = clock.Add(2 * time.Hour)
	if err := store.Save("fresh", dto.AuthTokens{Access: "f", Refresh: "f"}); err != nil {
		t.Fatalf("Save fresh: %v", err)
	}

	var keys []string
	err = store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(keys) != 1 || keys[0] != "fresh" {
		t.Fatalf("expected only the fresh session after sweep, got %v", keys)
	}
}

func TestBoltStoreDelete(t *testing.T) {
	store, err := NewStore("bbolt", filepath.Join(t.TempDir(), "nested", "session.db"), Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if err := store.Save("ops", dto.AuthTokens{Access: "a", Refresh: "r"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete("ops"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := store.Load("ops"); found {
		t.Fatalf("expected deleted session to be gone")
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.Save("x", dto.AuthTokens{}); err != nil {
		t.Fatalf("noop store Save: %v", err)
	}
	if _, found, _ := store.Load("x"); found {
		t.Fatalf("noop store should never find sessions")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected error for empty bbolt path")
	}
}
