package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// revocationCacheMax bounds the in-process read cache. Past this size expired
// entries are pruned before inserting; if nothing has expired an arbitrary
// entry is evicted so the map never grows beyond the cap.
const revocationCacheMax = 4096

// RevocationStore answers "is this token id revoked" against Redis, fronted
// by a small in-process cache. The cache TTL is the propagation interval: a
// freshly revoked token is honoured everywhere within one TTL.
type RevocationStore struct {
	client   *redis.Client
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]revocationEntry
}

type revocationEntry struct {
	revoked bool
	expires time.Time
}

// NewRevocationStore constructs the store. cacheTTL <= 0 disables the local
// cache so every check hits Redis.
func NewRevocationStore(client *redis.Client, cacheTTL time.Duration) *RevocationStore {
	return &RevocationStore{
		client:   client,
		cacheTTL: cacheTTL,
		now:      time.Now,
		cache:    make(map[string]revocationEntry),
	}
}

// IsRevoked reports whether the token id has been revoked. Redis is the
// source of truth; a missing key means not revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s == nil || s.client == nil {
		return false, errors.New("identity: revocation store not configured")
	}
	if s.cacheTTL > 0 {
		if revoked, ok := s.cachedState(tokenID); ok {
			return revoked, nil
		}
	}
	_, err := s.client.Get(ctx, revocationKey(tokenID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		s.remember(tokenID, false)
		return false, nil
	case err != nil:
		return false, err
	default:
		s.remember(tokenID, true)
		return true, nil
	}
}

// Revoke marks a token id as revoked. The Redis entry lives at least as long
// as the longest token lifetime so an unexpired token can never outlive its
// revocation record.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return errors.New("identity: revocation store not configured")
	}
	if err := s.client.Set(ctx, revocationKey(tokenID), "revoked", ttl).Err(); err != nil {
		return err
	}
	s.remember(tokenID, true)
	return nil
}

func (s *RevocationStore) cachedState(tokenID string) (revoked, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, found := s.cache[tokenID]
	if !found || s.now().After(entry.expires) {
		return false, false
	}
	return entry.revoked, true
}

func (s *RevocationStore) remember(tokenID string, revoked bool) {
	if s.cacheTTL <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[tokenID]; !ok && len(s.cache) >= revocationCacheMax {
		now := s.now()
		for id, entry := range s.cache {
			if now.After(entry.expires) {
				delete(s.cache, id)
			}
		}
		// All entries still live: drop one at random to stay bounded.
		if len(s.cache) >= revocationCacheMax {
			for id := range s.cache {
				delete(s.cache, id)
				break
			}
		}
	}
	s.cache[tokenID] = revocationEntry{revoked: revoked, expires: s.now().Add(s.cacheTTL)}
}

func revocationKey(tokenID string) string {
	return "revoked:" + tokenID
}
