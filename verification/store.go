package verification

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wizardcld/goidentity/internal"
)

var (
	// ErrNotFound is returned for unknown, superseded, or mismatched tokens.
	ErrNotFound = errors.New("verification record not found")
	// ErrExpired is returned when the record's expiry has passed.
	ErrExpired = errors.New("verification record expired")
	// ErrConsumed is returned on any consume after the first successful one.
	ErrConsumed = errors.New("verification record already consumed")
	// ErrPurposeMismatch is returned when the declared purpose does not match
	// the stored one. The record is left untouched.
	ErrPurposeMismatch = errors.New("verification record purpose mismatch")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("verification store unavailable")
)

// consumedGrace keeps consumed and expired records around past their expiry
// so repeat attempts report the precise failure instead of a generic miss.
const consumedGrace = 30 * time.Minute

const maxConsumeRetries = 4

// Store persists verification records in Redis: one JSON value per record id,
// plus a subject+purpose pointer key used for supersede-on-resend and for
// cancellation without the token value.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore wraps a Redis client under the given key prefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "idv"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) recordKey(id string) string {
	return s.prefix + ":t:" + id
}

func (s *Store) pointerKey(purpose Purpose, subjectID string) string {
	return s.prefix + ":p:" + string(purpose) + ":" + subjectID
}

// Create issues a fresh record and invalidates any outstanding record for the
// same subject and purpose, so only the newest token is usable. The returned
// Issued carries the only copy of the raw secret material.
func (s *Store) Create(ctx context.Context, in CreateInput) (*Issued, error) {
	if !in.Purpose.Valid() {
		return nil, errors.New("unknown verification purpose")
	}
	if in.SubjectID == "" || in.TTL <= 0 {
		return nil, errors.New("subject id and positive ttl are required")
	}

	id, err := internal.NewID()
	if err != nil {
		return nil, err
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return nil, err
	}
	tok, err := internal.EncodeOpaqueToken(id, secret)
	if err != nil {
		return nil, err
	}

	issued := &Issued{RecordID: id, Token: tok}
	secretHash := internal.HashSecret(secret)

	now := time.Now()
	record := &Record{
		ID:         id,
		SubjectID:  in.SubjectID,
		Email:      in.Email,
		Purpose:    in.Purpose,
		SecretHash: secretHash[:],
		CreatedAt:  now.UnixNano(),
		ExpiresAt:  now.Add(in.TTL).UnixNano(),
	}
	if in.Purpose == PurposeChangeEmail {
		record.PendingEmail = in.PendingEmail
	}
	if in.CodeDigits > 0 {
		code, err := internal.NewCode(in.CodeDigits)
		if err != nil {
			return nil, err
		}
		codeHash := internal.HashString(code)
		record.CodeHash = codeHash[:]
		issued.Code = code
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	pointer := s.pointerKey(in.Purpose, in.SubjectID)
	superseded, err := s.redis.Get(ctx, pointer).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	retention := in.TTL + consumedGrace
	pipe := s.redis.TxPipeline()
	if superseded != "" {
		pipe.Del(ctx, s.recordKey(superseded))
	}
	pipe.Set(ctx, s.recordKey(id), encoded, retention)
	pipe.Set(ctx, pointer, id, retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return issued, nil
}

// ConsumeToken validates and consumes an opaque token under the declared
// purpose. Success flips the consumed flag in the same atomic step as the
// lookup; there is no separate check-then-set window. A non-empty email
// additionally binds the consume to the address the record was issued for; a
// binding miss leaves the record unconsumed, same as a bad secret.
func (s *Store) ConsumeToken(ctx context.Context, tok string, purpose Purpose, email string) (*Record, error) {
	id, secret, err := internal.DecodeOpaqueToken(tok)
	if err != nil {
		return nil, ErrNotFound
	}
	secretHash := internal.HashSecret(secret)
	return s.consume(ctx, id, purpose, func(r *Record) bool {
		if email != "" && !strings.EqualFold(r.Email, email) {
			return false
		}
		return subtle.ConstantTimeCompare(r.SecretHash, secretHash[:]) == 1
	})
}

// ConsumeCode validates and consumes the numeric-code variant, located via
// the subject+purpose pointer since codes carry no record id.
func (s *Store) ConsumeCode(ctx context.Context, subjectID string, purpose Purpose, code string) (*Record, error) {
	id, err := s.redis.Get(ctx, s.pointerKey(purpose, subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	codeHash := internal.HashString(code)
	return s.consume(ctx, id, purpose, func(r *Record) bool {
		return len(r.CodeHash) > 0 && subtle.ConstantTimeCompare(r.CodeHash, codeHash[:]) == 1
	})
}

func (s *Store) consume(ctx context.Context, id string, purpose Purpose, matches func(*Record) bool) (*Record, error) {
	key := s.recordKey(id)

	for i := 0; i < maxConsumeRetries; i++ {
		var consumed *Record

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record := &Record{}
			if err := json.Unmarshal(data, record); err != nil {
				return err
			}

			// Purpose is checked before anything else and never consumes:
			// a mismatched purpose must not burn the token.
			if record.Purpose != purpose {
				return ErrPurposeMismatch
			}
			if record.Consumed {
				return ErrConsumed
			}
			if record.expired(time.Now()) {
				return ErrExpired
			}
			if !matches(record) {
				return ErrNotFound
			}

			record.Consumed = true
			updated, err := json.Marshal(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}

			consumed = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrNotFound
			case errors.Is(err, ErrNotFound),
				errors.Is(err, ErrExpired),
				errors.Is(err, ErrConsumed),
				errors.Is(err, ErrPurposeMismatch):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}

		return consumed, nil
	}

	// Every retry lost the optimistic transaction; whoever kept winning has
	// consumed the record by now.
	return nil, ErrConsumed
}

// Cancel invalidates the outstanding record for a subject+purpose without
// requiring the token value. Cancelling when nothing is outstanding is a
// no-op.
func (s *Store) Cancel(ctx context.Context, subjectID string, purpose Purpose) error {
	pointer := s.pointerKey(purpose, subjectID)
	id, err := s.redis.Get(ctx, pointer).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.recordKey(id))
	pipe.Del(ctx, pointer)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
