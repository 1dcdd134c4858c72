package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no session exists under the given id.
	ErrNotFound = errors.New("session not found")
	// ErrRevoked is returned for sessions that were explicitly terminated.
	ErrRevoked = errors.New("session revoked")
	// ErrStale is returned by Rotate when the presented refresh id has
	// already been superseded by a prior rotation.
	ErrStale = errors.New("stale refresh rotation")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("session store unavailable")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusRevoked  int64 = 1
	rotateStatusStale    int64 = 2
	rotateStatusRotated  int64 = 3
)

// rotateScript is the one atomic compare-and-swap in the token path: it
// verifies the stored refresh id against the presented one and advances the
// pointer in a single Redis round trip. Exactly one of any number of
// concurrent rotations with the same old id observes status 3.
const rotateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 1
end
if redis.call("HGET", KEYS[1], "refresh_id") ~= ARGV[1] then
  return 2
end
redis.call("HSET", KEYS[1], "refresh_id", ARGV[2])
redis.call("HSET", KEYS[1], "expires_at", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
local subject = redis.call("HGET", KEYS[1], "subject_id")
if subject then
  local index = ARGV[5] .. subject
  redis.call("SADD", index, ARGV[6])
  redis.call("PEXPIRE", index, ARGV[4])
end
return 3
`

var rotateLua = redis.NewScript(rotateScript)

// Store tracks which refresh tokens are currently valid per session. It is
// the only mutable shared state in the token path; all writes go through the
// operations below.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore wraps a Redis client. The prefix namespaces all keys so several
// engines can share one database.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ids"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) sessionKey(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) subjectKey(subjectID string) string {
	return s.prefix + ":u:" + subjectID
}

// Open creates a new active session under the caller-chosen id and records
// the initial refresh-token id. The id is generated by the caller because the
// refresh token embedding it must be signed before anything is persisted.
func (s *Store) Open(ctx context.Context, sessionID, subjectID, refreshID string, ttl time.Duration) error {
	if sessionID == "" || subjectID == "" || refreshID == "" {
		return errors.New("session id, subject id and refresh id are required")
	}

	now := time.Now()
	fields := map[string]interface{}{
		fieldSubjectID: subjectID,
		fieldRefreshID: refreshID,
		fieldRevoked:   "0",
		fieldCreatedAt: strconv.FormatInt(now.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(now.Add(ttl).Unix(), 10),
	}

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, s.sessionKey(sessionID), fields)
	pipe.PExpire(ctx, s.sessionKey(sessionID), ttl)
	pipe.SAdd(ctx, s.subjectKey(subjectID), sessionID)
	pipe.PExpire(ctx, s.subjectKey(subjectID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Get loads a session without interpreting its revoked flag; callers that
// need liveness should use Live.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	createdAt, _ := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	expiresAt, _ := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)

	return &Session{
		SessionID: sessionID,
		SubjectID: fields[fieldSubjectID],
		RefreshID: fields[fieldRefreshID],
		Revoked:   fields[fieldRevoked] == "1",
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Live is the cheap existence-plus-revoked check used on the access-token
// path. Access tokens are not subject to rotation tracking, so no refresh-id
// comparison happens here.
func (s *Store) Live(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Revoked {
		return ErrRevoked
	}
	return nil
}

// CurrentRefreshID reports the refresh-token id the session currently
// accepts.
func (s *Store) CurrentRefreshID(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.Revoked {
		return "", ErrRevoked
	}
	return sess.RefreshID, nil
}

// Rotate atomically replaces the session's refresh id, provided the caller
// presents the id currently on record. A concurrent second rotation with the
// same superseded id fails with ErrStale; it never silently double-rotates.
// The session's lifetime is extended to cover the newly minted refresh token,
// and the subject index entry is refreshed with it so RevokeAllForSubject
// still sees sessions that rotate past their original login lifetime.
func (s *Store) Rotate(ctx context.Context, sessionID, oldRefreshID, newRefreshID string, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).Unix()
	status, err := rotateLua.Run(ctx, s.redis,
		[]string{s.sessionKey(sessionID)},
		oldRefreshID,
		newRefreshID,
		strconv.FormatInt(expiresAt, 10),
		strconv.FormatInt(ttl.Milliseconds(), 10),
		s.prefix+":u:",
		sessionID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusRevoked:
		return ErrRevoked
	case rotateStatusStale:
		return ErrStale
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrUnavailable, status)
	}
}

// Revoke marks the session permanently inactive. Revoking an already revoked
// or unknown session is not an error; the revoked hash keeps its TTL so
// post-logout refresh attempts stay distinguishable from natural expiry.
func (s *Store) Revoke(ctx context.Context, sessionID string) error {
	key := s.sessionKey(sessionID)
	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if exists == 0 {
		return nil
	}
	if err := s.redis.HSet(ctx, key, fieldRevoked, "1").Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForSubject terminates every session in the subject's index set.
// Used after password changes and resets.
func (s *Store) RevokeAllForSubject(ctx context.Context, subjectID string) error {
	ids, err := s.redis.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for _, id := range ids {
		if err := s.Revoke(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ActiveCount reports how many unexpired sessions the subject index still
// references. Revoked-but-unpurged sessions are excluded.
func (s *Store) ActiveCount(ctx context.Context, subjectID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	count := 0
	for _, id := range ids {
		err := s.Live(ctx, id)
		switch {
		case err == nil:
			count++
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrRevoked):
		default:
			return 0, err
		}
	}
	return count, nil
}
