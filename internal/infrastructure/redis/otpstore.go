package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/expo-registration-api/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// deleteIfUnchanged removes KEYS[1] only while it still holds ARGV[1].
var deleteIfUnchanged = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// OTPStore keeps each record as a JSON string under <prefix>:<email>. Lets
// several API instances share OTP state.
//
// Keys outlive the code: they expire once both the code and the send-quota
// window have passed, so verify can still tell an expired code from a missing
// one and the hourly quota survives code expiry. Expired codes are removed by
// Sweep and by the service's lazy delete.
type OTPStore struct {
	client goredis.UniversalClient
	prefix string
	window time.Duration
	now    func() time.Time
}

// NewOTPStore returns a store whose keys are retained for at least window
// after the record's quota window starts.
func NewOTPStore(client goredis.UniversalClient, prefix string, window time.Duration) *OTPStore {
	if prefix == "" {
		prefix = "otp"
	}
	return &OTPStore{client: client, prefix: prefix, window: window, now: time.Now}
}

func (s *OTPStore) key(email string) string {
	return s.prefix + ":" + email
}

func (s *OTPStore) Get(ctx context.Context, email string) (*domain.OTPRecord, error) {
	raw, err := s.client.Get(ctx, s.key(email)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var rec domain.OTPRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode otp record: %w", err)
	}
	return &rec, nil
}

func (s *OTPStore) Set(ctx context.Context, rec *domain.OTPRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode otp record: %w", err)
	}
	return s.client.Set(ctx, s.key(rec.Email), raw, s.ttl(rec)).Err()
}

func (s *OTPStore) ttl(rec *domain.OTPRecord) time.Duration {
	until := rec.ExpiresAt
	if w := rec.WindowStart.Add(s.window); w.After(until) {
		until = w
	}
	if rec.CooldownUntil.After(until) {
		until = rec.CooldownUntil
	}
	ttl := until.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *OTPStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, s.key(email)).Err()
}

// Sweep deletes records whose code has expired. A record rewritten by another
// instance between the read and the delete is left alone.
func (s *OTPStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 200).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		raw, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return removed, err
		}
		var rec domain.OTPRecord
		if err := json.Unmarshal(raw, &rec); err != nil || rec.Expired(now) {
			n, err := deleteIfUnchanged.Run(ctx, s.client, []string{k}, raw).Int()
			if err != nil {
				return removed, err
			}
			removed += n
		}
	}
	return removed, iter.Err()
}
