// Package memory holds process-local store implementations for single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/expo-registration-api/internal/domain"
)

// OTPStore keeps OTP records in a map. Records are copied in and out so
// callers never share memory with the store.
type OTPStore struct {
	mu   sync.RWMutex
	recs map[string]domain.OTPRecord
}

func NewOTPStore() *OTPStore {
	return &OTPStore{recs: make(map[string]domain.OTPRecord)}
}

func (s *OTPStore) Get(_ context.Context, email string) (*domain.OTPRecord, error) {
	s.mu.RLock()
	rec, ok := s.recs[email]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	return &rec, nil
}

func (s *OTPStore) Set(_ context.Context, rec *domain.OTPRecord) error {
	s.mu.Lock()
	s.recs[rec.Email] = *rec
	s.mu.Unlock()
	return nil
}

func (s *OTPStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	delete(s.recs, email)
	s.mu.Unlock()
	return nil
}

func (s *OTPStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for email, rec := range s.recs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if rec.Expired(now) {
			delete(s.recs, email)
			n++
		}
	}
	return n, nil
}

// Len reports how many records are held.
func (s *OTPStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}
