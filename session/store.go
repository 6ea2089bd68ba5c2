package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no usable session exists under the id. A
// stored record in a terminal state or past its expiry reports not-found too.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable is an exported constant or variable used by the session store.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrConflict is returned when a check-and-set write lost against concurrent
// writers for every attempt in the retry budget.
var ErrConflict = errors.New("session write conflict")

// ErrImmediateExpiry is returned by Save for a record whose expiry is not in
// the future; storing it would create a key that dies at birth.
var ErrImmediateExpiry = errors.New("session expires at or before now")

const casAttempts = 3

// casSwapScript replaces the stored blob only when it still equals the blob
// the read phase saw. ARGV[3] is "keep" to preserve the remaining TTL
// (revoke, touch) or a millisecond count to install a new one (refresh).
const casSwapScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 0
end
if ARGV[3] == "keep" then
  local ttl = redis.call("PTTL", KEYS[1])
  if ttl > 0 then
    redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
  else
    redis.call("SET", KEYS[1], ARGV[2])
  end
else
  redis.call("SET", KEYS[1], ARGV[2], "PX", tonumber(ARGV[3]))
end
return 1
`

var casSwapLua = redis.NewScript(casSwapScript)

// Store is the Redis-backed TTL session store. One key per session under the
// configured prefix; the key's TTL mirrors the record's expiry so Redis
// evicts what the read path would mask anyway.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the key namespace, conventionally "session:".
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Save persists the record with TTL = expiry minus now. A non-positive TTL
// is rejected; avoiding it is the caller's job.
//
//	Performance: 1 Redis SET.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	now := s.now()
	ttl := sess.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return ErrImmediateExpiry
	}

	data, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sess.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Find returns the session only while it is usable: ACTIVE and unexpired.
// Terminal or expired records report [ErrNotFound] even if the key still
// physically exists.
//
//	Performance: 1 Redis GET.
func (s *Store) Find(ctx context.Context, sessionID string) (*Session, error) {
	sess, _, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsActive(s.now()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// FindActiveByUserAndBroker scans the whole session keyspace and filters.
// O(total sessions) — an accepted scaling limit, not a hot path.
func (s *Store) FindActiveByUserAndBroker(ctx context.Context, userID, broker string) ([]*Session, error) {
	return s.scanFilter(ctx, func(sess *Session, now time.Time) bool {
		return sess.IsActive(now) && sess.UserID == userID && strings.EqualFold(sess.Broker, broker)
	})
}

// FindActiveByUser returns every usable session the user holds, across all
// brokers. Same scan cost as FindActiveByUserAndBroker.
func (s *Store) FindActiveByUser(ctx context.Context, userID string) ([]*Session, error) {
	return s.scanFilter(ctx, func(sess *Session, now time.Time) bool {
		return sess.IsActive(now) && sess.UserID == userID
	})
}

// FindExpiringWithin returns active sessions whose remaining lifetime is at
// or under the given window. Used by the refresh sweep and monitoring.
func (s *Store) FindExpiringWithin(ctx context.Context, within time.Duration) ([]*Session, error) {
	return s.scanFilter(ctx, func(sess *Session, now time.Time) bool {
		return sess.NeedsRefresh(now, within)
	})
}

// CountActive counts usable sessions across the keyspace. Same scan cost as
// FindActiveByUserAndBroker.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	sessions, err := s.scanFilter(ctx, func(sess *Session, now time.Time) bool {
		return sess.IsActive(now)
	})
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// Revoke transitions the session to REVOKED, keeping the remaining TTL so
// the terminal record stays visible to direct reads until natural expiry.
// Returns false when no active session existed under the id.
func (s *Store) Revoke(ctx context.Context, sessionID string) (bool, error) {
	return s.mutateActive(ctx, sessionID, func(sess *Session, now time.Time) error {
		return sess.Revoke(now)
	})
}

// Touch updates the last-accessed stamp of an active session. Returns false
// when no active session existed under the id.
func (s *Store) Touch(ctx context.Context, sessionID string) (bool, error) {
	return s.mutateActive(ctx, sessionID, func(sess *Session, now time.Time) error {
		return sess.Touch(now)
	})
}

// Invalidate transitions the session to INVALID, terminally. Returns false
// when no active session existed under the id.
func (s *Store) Invalidate(ctx context.Context, sessionID string) (bool, error) {
	return s.mutateActive(ctx, sessionID, func(sess *Session, now time.Time) error {
		return sess.Invalidate(now)
	})
}

// MarkExpired transitions the session to EXPIRED, terminally. The refresh
// engine calls this when a broker refresh fails for good.
func (s *Store) MarkExpired(ctx context.Context, sessionID string) (bool, error) {
	return s.mutateActive(ctx, sessionID, func(sess *Session, now time.Time) error {
		return sess.Expire(now)
	})
}

// ApplyRefresh installs re-encrypted tokens and the new expiry under CAS,
// extending the key's TTL to match.
func (s *Store) ApplyRefresh(ctx context.Context, sessionID, encryptedAccess, encryptedRefresh string, expiresAt time.Time) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		sess, raw, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}

		now := s.now()
		if !sess.IsActive(now) {
			return ErrNotFound
		}
		if err := sess.ApplyRefresh(encryptedAccess, encryptedRefresh, expiresAt, now); err != nil {
			return err
		}
		sess.Version++

		ttl := expiresAt.Sub(now)
		if ttl <= 0 {
			return ErrImmediateExpiry
		}

		swapped, err := s.casSwap(ctx, sessionID, raw, sess, ttl)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return ErrConflict
}

// load fetches and decodes a record, returning the raw blob for CAS.
func (s *Store) load(ctx context.Context, sessionID string) (*Session, []byte, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return sess, data, nil
}

// mutateActive runs one read-modify-write under CAS with the TTL preserved.
func (s *Store) mutateActive(ctx context.Context, sessionID string, mutate func(*Session, time.Time) error) (bool, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		sess, raw, err := s.load(ctx, sessionID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, nil
			}
			return false, err
		}

		now := s.now()
		if !sess.IsActive(now) {
			return false, nil
		}
		if err := mutate(sess, now); err != nil {
			return false, err
		}
		sess.Version++

		swapped, err := s.casSwap(ctx, sessionID, raw, sess, 0)
		if err != nil {
			return false, err
		}
		if swapped {
			return true, nil
		}
	}
	return false, ErrConflict
}

// casSwap writes the mutated record only if the stored blob is untouched.
// ttl <= 0 preserves the key's remaining TTL.
func (s *Store) casSwap(ctx context.Context, sessionID string, oldRaw []byte, sess *Session, ttl time.Duration) (bool, error) {
	newRaw, err := Encode(sess)
	if err != nil {
		return false, err
	}

	ttlArg := "keep"
	if ttl > 0 {
		ttlArg = fmt.Sprintf("%d", ttl.Milliseconds())
	}

	res, err := casSwapLua.Run(ctx, s.redis, []string{s.key(sessionID)}, oldRaw, newRaw, ttlArg).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

// scanFilter walks the prefix keyspace in SCAN batches, loads each record,
// and keeps those matching the predicate. Corrupt blobs are skipped, not
// fatal: one bad record must not blind the sweep to the rest.
func (s *Store) scanFilter(ctx context.Context, keep func(*Session, time.Time) bool) ([]*Session, error) {
	var (
		cursor uint64
		out    []*Session
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+"*", 500).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		if len(keys) > 0 {
			pipe := s.redis.Pipeline()
			cmds := make([]*redis.StringCmd, len(keys))
			for i, key := range keys {
				cmds[i] = pipe.Get(ctx, key)
			}
			if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
				return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}

			now := s.now()
			for _, cmd := range cmds {
				data, cmdErr := cmd.Bytes()
				if cmdErr != nil {
					continue
				}
				sess, decErr := Decode(data)
				if decErr != nil {
					continue
				}
				if keep(sess, now) {
					out = append(out, sess)
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return out, nil
}
