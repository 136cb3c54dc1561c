package domain

import "time"

// OTPRecord is the live one-time-code state for a single normalized email.
type OTPRecord struct {
	Email         string    `json:"email" dynamodbav:"email"`
	Code          string    `json:"code" dynamodbav:"code"`
	ExpiresAt     time.Time `json:"expires_at" dynamodbav:"expires_at"`
	Attempts      int       `json:"attempts" dynamodbav:"attempts"`
	LastSentAt    time.Time `json:"last_sent_at" dynamodbav:"last_sent_at"`
	CooldownUntil time.Time `json:"cooldown_until" dynamodbav:"cooldown_until"`
	WindowStart   time.Time `json:"window_start" dynamodbav:"window_start"`
	SendCount     int       `json:"send_count" dynamodbav:"send_count"`
	LastRequestID string    `json:"last_request_id,omitempty" dynamodbav:"last_request_id,omitempty"`
}

// Expired reports whether the code is no longer usable at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
