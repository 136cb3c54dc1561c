package dynamo

import (
	"testing"
	"time"

	"github.com/expo-registration-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewOTPItem_RetainsRecordForQuotaWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	rec := &domain.OTPRecord{
		Email:         "guest@expo.io",
		ExpiresAt:     now.Add(5 * time.Minute),
		CooldownUntil: now.Add(time.Minute),
		WindowStart:   now,
	}

	it := newOTPItem(rec, time.Hour)
	assert.Equal(t, now.Add(5*time.Minute).Unix(), it.ExpiresEpoch)
	assert.Equal(t, now.Add(time.Hour).Unix(), it.TTL)
}

func TestNewOTPItem_CodeOutlivesWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	rec := &domain.OTPRecord{
		Email:       "guest@expo.io",
		ExpiresAt:   now.Add(5 * time.Minute),
		WindowStart: now.Add(-58 * time.Minute),
	}

	it := newOTPItem(rec, time.Hour)
	assert.Equal(t, it.ExpiresEpoch, it.TTL)
}
