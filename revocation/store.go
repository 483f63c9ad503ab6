package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when the backing store cannot be reached or
// answers outside the configured timeout. It is an infrastructure failure,
// distinct from every security-relevant outcome, so callers can apply
// retry-with-backoff to it and only it.
var ErrUnavailable = errors.New("revocation store unavailable")

const minRecordTTL = time.Second

// RotateOutcome is the result of an atomic rotation attempt.
type RotateOutcome int

const (
	// RotateOK means this call claimed the token identifier first; the
	// caller may mint the successor.
	RotateOK RotateOutcome = iota
	// RotateReused means the identifier was already claimed: the token
	// was rotated or revoked before. The script has revoked the whole
	// family as a theft response.
	RotateReused
	// RotateFamilyRevoked means the family is revoked; no token in the
	// chain can rotate again.
	RotateFamilyRevoked
)

const (
	rotateStatusOK            int64 = 0
	rotateStatusReused        int64 = 1
	rotateStatusFamilyRevoked int64 = 2
)

// Reuse detection and family kill in one atomic step. A revoked family
// wins over everything, then claiming the token key with NX is the
// check-and-set: losing the claim proves prior rotation or revocation and
// condemns the family before anyone observes the loss.
const rotateScript = `
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 2
end
local claimed = redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2])
if not claimed then
  redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[3])
  return 1
end
return 0
`

var rotateLua = redis.NewScript(rotateScript)

// Store is a Redis-backed revocation record keyed by token and family
// identifiers. All records carry TTLs; absence of a record means "live".
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewStore creates a [Store] using the given Redis client. prefix sets the
// key namespace; timeout bounds every store round trip (it should be tens
// of milliseconds; a slow store must fail fast, not stall requests).
func NewStore(client redis.UniversalClient, prefix string, timeout time.Duration) *Store {
	if prefix == "" {
		prefix = "ac"
	}
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}

	return &Store{
		redis:   client,
		prefix:  prefix,
		timeout: timeout,
	}
}

func (s *Store) tokenKey(tokenID string) string {
	return s.prefix + ":t:" + tokenID
}

func (s *Store) familyKey(familyID string) string {
	return s.prefix + ":f:" + familyID
}

func (s *Store) subjectKey(subjectID string) string {
	return s.prefix + ":s:" + subjectID
}

func recordTTL(ttl time.Duration) time.Duration {
	if ttl < minRecordTTL {
		return minRecordTTL
	}
	return ttl
}

// Rotate atomically claims tokenID for rotation. Exactly one concurrent
// caller per tokenID observes [RotateOK]; every other observes
// [RotateReused] and the family is revoked for familyTTL as a side effect.
// tokenTTL should be the token's remaining lifetime, familyTTL the maximum
// refresh lifetime.
func (s *Store) Rotate(ctx context.Context, tokenID, familyID string, tokenTTL, familyTTL time.Duration) (RotateOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := strconv.FormatInt(time.Now().Unix(), 10)
	status, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.tokenKey(tokenID), s.familyKey(familyID)},
		now,
		recordTTL(tokenTTL).Milliseconds(),
		recordTTL(familyTTL).Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case rotateStatusOK:
		return RotateOK, nil
	case rotateStatusReused:
		return RotateReused, nil
	case rotateStatusFamilyRevoked:
		return RotateFamilyRevoked, nil
	default:
		return 0, fmt.Errorf("%w: unknown rotate script status %d", ErrUnavailable, status)
	}
}

// MarkRevoked records tokenID as revoked for ttl. The returned bool reports
// whether this call created the record; false means the identifier was
// already revoked.
func (s *Store) MarkRevoked(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	created, err := s.redis.SetNX(ctx, s.tokenKey(tokenID), time.Now().Unix(), recordTTL(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return created, nil
}

// IsRevoked reports whether tokenID has a live revocation record.
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.redis.Exists(ctx, s.tokenKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// MarkFamilyRevoked revokes a whole family for ttl. Idempotent.
func (s *Store) MarkFamilyRevoked(ctx context.Context, familyID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.redis.Set(ctx, s.familyKey(familyID), time.Now().Unix(), recordTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsFamilyRevoked reports whether familyID has a live revocation record.
func (s *Store) IsFamilyRevoked(ctx context.Context, familyID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.redis.Exists(ctx, s.familyKey(familyID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// RegisterFamily tracks familyID in the subject's active-family index so
// administrative revocation can find it. The index expires with the longest
// outstanding refresh token.
func (s *Store) RegisterFamily(ctx context.Context, subjectID, familyID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := s.subjectKey(subjectID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, familyID)
		pipe.Expire(ctx, key, recordTTL(ttl))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForSubject revokes every tracked family of a subject and clears
// the index. Returns the number of families revoked. This is the slow
// administrative path (forced logout, password change); it is not bounded
// by a single round trip and must stay off request hot paths.
func (s *Store) RevokeAllForSubject(ctx context.Context, subjectID string, ttl time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := s.subjectKey(subjectID)
	familyIDs, err := s.redis.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := time.Now().Unix()
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, familyID := range familyIDs {
			pipe.Set(ctx, s.familyKey(familyID), now, recordTTL(ttl))
		}
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return len(familyIDs), nil
}

// ActiveFamilyIDs returns the tracked family identifiers for a subject.
func (s *Store) ActiveFamilyIDs(ctx context.Context, subjectID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids, err := s.redis.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ids, nil
}

// Ping returns a point-in-time store availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
