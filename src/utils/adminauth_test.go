package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()

	session, err := store.Create("admin@example.com", time.Minute)
	assert.Nil(t, err)
	assert.Len(t, session.Token, 64)
	assert.Equal(t, "admin@example.com", session.Email)

	got, ok := store.Get(session.Token)
	assert.True(t, ok)
	assert.Equal(t, session.Email, got.Email)

	_, ok = store.Get("deadbeef")
	assert.False(t, ok)

	store.Delete(session.Token)
	_, ok = store.Get(session.Token)
	assert.False(t, ok)
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	store := NewMemorySessionStore()

	session, err := store.Create("admin@example.com", -time.Second)
	assert.Nil(t, err)

	// Expired sessions are dropped on read.
	_, ok := store.Get(session.Token)
	assert.False(t, ok)
	_, ok = store.Get(session.Token)
	assert.False(t, ok)
}

func TestMemorySessionStorePurge(t *testing.T) {
	store := NewMemorySessionStore()

	stale, _ := store.Create("admin@example.com", time.Minute)
	live, _ := store.Create("admin@example.com", time.Hour)

	store.Purge(time.Now().Add(30 * time.Minute))

	_, ok := store.Get(stale.Token)
	assert.False(t, ok)
	_, ok = store.Get(live.Token)
	assert.True(t, ok)
}

func TestAttemptStoreThreshold(t *testing.T) {
	store := NewMemoryAttemptStore(15*time.Minute, 30*time.Minute)
	now := time.Now()

	lock := store.RegisterFailure("1.2.3.4", 3, now)
	assert.Equal(t, time.Duration(0), lock)
	lock = store.RegisterFailure("1.2.3.4", 3, now.Add(time.Second))
	assert.Equal(t, time.Duration(0), lock)

	lock = store.RegisterFailure("1.2.3.4", 3, now.Add(2*time.Second))
	assert.Equal(t, 30*time.Minute, lock)
	assert.Equal(t, 30*time.Minute, store.RemainingLock("1.2.3.4", now.Add(2*time.Second)))

	assert.Equal(t, time.Duration(0), store.RemainingLock("other", now))
}

func TestAttemptStoreEscalation(t *testing.T) {
	store := NewMemoryAttemptStore(15*time.Minute, 30*time.Minute)
	now := time.Now()

	fillWindow := func(at time.Time) time.Duration {
		var lock time.Duration
		for i := 0; i < 3; i++ {
			lock = store.RegisterFailure("key", 3, at.Add(time.Duration(i)*time.Second))
		}
		return lock
	}

	assert.Equal(t, 30*time.Minute, fillWindow(now))
	// Counted failures reset once a lock engages, so escalation needs a
	// fresh full window after the lock elapses.
	now = now.Add(31 * time.Minute)
	assert.Equal(t, time.Hour, fillWindow(now))
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 2*time.Hour, fillWindow(now))

	// The lock level caps out eventually.
	for i := 0; i < 10; i++ {
		now = now.Add(33 * time.Hour)
		fillWindow(now)
	}
	now = now.Add(33 * time.Hour)
	assert.Equal(t, 16*time.Hour, fillWindow(now))
}

func TestAttemptStoreWindowPruning(t *testing.T) {
	store := NewMemoryAttemptStore(15*time.Minute, 30*time.Minute)
	now := time.Now()

	store.RegisterFailure("key", 3, now)
	store.RegisterFailure("key", 3, now.Add(time.Second))

	// The first two failures fall out of the window, so this one does not
	// trip the lock.
	lock := store.RegisterFailure("key", 3, now.Add(20*time.Minute))
	assert.Equal(t, time.Duration(0), lock)
}

func TestAttemptStoreClearAndCleanup(t *testing.T) {
	store := NewMemoryAttemptStore(15*time.Minute, 30*time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		store.RegisterFailure("key", 3, now)
	}
	assert.Greater(t, store.RemainingLock("key", now), time.Duration(0))

	store.Clear("key")
	assert.Equal(t, time.Duration(0), store.RemainingLock("key", now))

	store.RegisterFailure("idle", 3, now)
	store.Cleanup(now.Add(2 * time.Hour))
	lock := store.RegisterFailure("idle", 2, now.Add(2*time.Hour))
	assert.Equal(t, time.Duration(0), lock, "cleanup dropped the stale bucket")
}

func TestScryptPasswordRoundTrip(t *testing.T) {
	hash, err := HashAdminPassword("hunter2!")
	assert.Nil(t, err)
	assert.True(t, len(hash) > len("scrypt$$"))

	assert.True(t, VerifyScryptPassword("hunter2!", hash))
	assert.False(t, VerifyScryptPassword("hunter3!", hash))
	assert.False(t, VerifyScryptPassword("hunter2!", "scrypt$zz$zz"))
	assert.False(t, VerifyScryptPassword("hunter2!", "bcrypt$aa$bb"))
	assert.False(t, VerifyScryptPassword("hunter2!", ""))
}

func TestVerifyAdminPassword(t *testing.T) {
	hash, _ := HashAdminPassword("s3cret")

	assert.True(t, VerifyAdminPassword("s3cret", hash, ""))
	assert.False(t, VerifyAdminPassword("wrong", hash, ""))
	// The hash takes precedence over the legacy plaintext.
	assert.False(t, VerifyAdminPassword("legacy", hash, "legacy"))
	assert.True(t, VerifyAdminPassword("legacy", "", "legacy"))
	assert.False(t, VerifyAdminPassword("anything", "", ""))
}

func TestSafeTimingEqualText(t *testing.T) {
	assert.True(t, SafeTimingEqualText("same", "same"))
	assert.False(t, SafeTimingEqualText("same", "different"))
	assert.False(t, SafeTimingEqualText("same", "sam"))
	assert.True(t, SafeTimingEqualText("", ""))
}
