package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/scrypt"
)

// AdminSession is an opaque bearer credential. Sessions live only in
// process memory, so a restart invalidates every outstanding token.
type AdminSession struct {
	Token     string
	Email     string
	ExpiresAt time.Time
}

// SessionStore manages admin sessions. The handlers depend on this
// interface so tests can inject a store with controlled clocks.
type SessionStore interface {
	Create(email string, ttl time.Duration) (*AdminSession, error)
	Get(token string) (*AdminSession, bool)
	Delete(token string)
	Purge(now time.Time)
}

type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*AdminSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]*AdminSession{}}
}

func (s *MemorySessionStore) Create(email string, ttl time.Duration) (*AdminSession, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	session := &AdminSession{
		Token:     hex.EncodeToString(raw),
		Email:     email,
		ExpiresAt: time.Now().Add(ttl),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = session
	return session, nil
}

// Get drops expired sessions on read, so a stale token can never
// authenticate even between purge runs.
func (s *MemorySessionStore) Get(token string) (*AdminSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, false
	}
	if !session.ExpiresAt.After(time.Now()) {
		delete(s.sessions, token)
		return nil, false
	}
	return session, true
}

func (s *MemorySessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

func (s *MemorySessionStore) Purge(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(now) {
			delete(s.sessions, token)
		}
	}
}

// AttemptStore throttles login failures per key (one store per
// dimension: client IP and submitted email).
type AttemptStore interface {
	RemainingLock(key string, now time.Time) time.Duration
	RegisterFailure(key string, maxAttempts int, now time.Time) time.Duration
	Clear(key string)
	Cleanup(now time.Time)
}

type attemptBucket struct {
	failures  []time.Time
	lockLevel int
	lockUntil time.Time
	lastSeen  time.Time
}

// MemoryAttemptStore implements sliding-window counting with an
// exponential lock: each time the window fills, the lock doubles, up to
// level maxLockLevel.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	window   time.Duration
	baseLock time.Duration
	buckets  map[string]*attemptBucket
}

const maxLockLevel = 6

func NewMemoryAttemptStore(window, baseLock time.Duration) *MemoryAttemptStore {
	return &MemoryAttemptStore{
		window:   window,
		baseLock: baseLock,
		buckets:  map[string]*attemptBucket{},
	}
}

func (s *MemoryAttemptStore) RemainingLock(key string, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.buckets[key]
	if !ok || !bucket.lockUntil.After(now) {
		return 0
	}
	return bucket.lockUntil.Sub(now)
}

// RegisterFailure records one failed attempt and returns the lock it
// caused, or zero while the key stays under the threshold. Counted
// failures reset when a lock engages, so the next escalation needs a
// fresh full window.
func (s *MemoryAttemptStore) RegisterFailure(key string, maxAttempts int, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.buckets[key]
	if !ok {
		bucket = &attemptBucket{}
		s.buckets[key] = bucket
	}
	bucket.lastSeen = now

	kept := bucket.failures[:0]
	for _, at := range bucket.failures {
		if now.Sub(at) < s.window {
			kept = append(kept, at)
		}
	}
	bucket.failures = append(kept, now)

	if len(bucket.failures) < maxAttempts {
		return 0
	}
	if bucket.lockLevel < maxLockLevel {
		bucket.lockLevel++
	}
	lock := s.baseLock * (1 << (bucket.lockLevel - 1))
	bucket.lockUntil = now.Add(lock)
	bucket.failures = nil
	return lock
}

func (s *MemoryAttemptStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
}

// Cleanup forgets buckets that have gone quiet long enough that neither
// their window nor a pending lock matters anymore.
func (s *MemoryAttemptStore) Cleanup(now time.Time) {
	retention := s.window * 6
	if lockSpan := s.baseLock * 2; lockSpan > retention {
		retention = lockSpan
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, bucket := range s.buckets {
		if bucket.lockUntil.After(now) {
			continue
		}
		if now.Sub(bucket.lastSeen) > retention {
			delete(s.buckets, key)
		}
	}
}

// SafeTimingEqualText compares two strings in constant time over a
// common padded length, then checks lengths.
func SafeTimingEqualText(a, b string) bool {
	size := len(a)
	if len(b) > size {
		size = len(b)
	}
	paddedA := make([]byte, size)
	paddedB := make([]byte, size)
	copy(paddedA, a)
	copy(paddedB, b)
	return subtle.ConstantTimeCompare(paddedA, paddedB) == 1 && len(a) == len(b)
}

const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
)

// HashAdminPassword produces a "scrypt$salthex$hashhex" credential
// string suitable for ADMIN_PASSWORD_HASH.
func HashAdminPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	derived, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("scrypt$%s$%s", hex.EncodeToString(salt), hex.EncodeToString(derived)), nil
}

// VerifyScryptPassword checks password against a stored
// "scrypt$salthex$hashhex" credential.
func VerifyScryptPassword(password, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 3 || parts[0] != "scrypt" {
		return false
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(parts[2])
	if err != nil || len(expected) == 0 {
		return false
	}
	derived, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, len(expected))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(derived, expected) == 1
}

// VerifyAdminPassword prefers the hashed credential and falls back to a
// legacy plaintext ADMIN_PASSWORD when no hash is configured.
func VerifyAdminPassword(password, storedHash, legacyPlain string) bool {
	if storedHash != "" {
		return VerifyScryptPassword(password, storedHash)
	}
	if legacyPlain != "" {
		return SafeTimingEqualText(password, legacyPlain)
	}
	return false
}
