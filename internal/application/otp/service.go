package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/expo-registration-api/internal/domain"
	"github.com/expo-registration-api/internal/pkg/logger"
	pkgtoken "github.com/expo-registration-api/internal/pkg/token"
	"github.com/expo-registration-api/internal/pkg/validate"
	"go.uber.org/zap"
)

const (
	CodeTTL           = 5 * time.Minute
	ResendCooldown    = 60 * time.Second
	SendWindow        = time.Hour
	MaxSendsPerWindow = 5
	MaxVerifyAttempts = 5
	ReplayWindow      = 2 * time.Minute
	codeLength        = 6
	channelEmail      = "email"
)

const (
	msgNotFound       = "OTP not found or expired"
	msgExpired        = "OTP expired"
	msgIncorrect      = "Incorrect OTP"
	msgTooManyAttempt = "Too many incorrect attempts. Please request a new OTP."
)

// Store holds at most one live OTP record per normalized email.
type Store interface {
	// Get returns a domain.ErrNotFound-wrapped error when no record exists.
	Get(ctx context.Context, email string) (*domain.OTPRecord, error)
	Set(ctx context.Context, rec *domain.OTPRecord) error
	Delete(ctx context.Context, email string) error
	// Sweep removes every record whose ExpiresAt is not after now.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// ExistenceLookup finds a prior registration for an email in a category.
// A nil record with a nil error means none exists.
type ExistenceLookup interface {
	FindExistingByEmail(ctx context.Context, t domain.RegistrationType, email string) (*domain.ExistingRegistration, error)
}

type Mailer interface {
	SendMail(ctx context.Context, msg domain.MailMessage) error
}

type SendRequest struct {
	Type             string `json:"type"`
	Value            string `json:"value"`
	RequestID        string `json:"requestId"`
	RegistrationType string `json:"registrationType"`
}

type SendResult struct {
	Success           bool                    `json:"success"`
	Email             string                  `json:"email"`
	RegistrationType  domain.RegistrationType `json:"registrationType"`
	ExpiresInSec      int                     `json:"expiresInSec"`
	ResendCooldownSec int                     `json:"resendCooldownSec"`
	Idempotent        bool                    `json:"idempotent,omitempty"`
}

type VerifyRequest struct {
	Value            string `json:"value"`
	OTP              string `json:"otp"`
	RegistrationType string `json:"registrationType"`
}

// VerifyResult reports wrong, expired and unknown codes through Success=false
// rather than an error; callers inspect the boolean.
type VerifyResult struct {
	Success          bool                         `json:"success"`
	Email            string                       `json:"email"`
	RegistrationType domain.RegistrationType      `json:"registrationType"`
	Existing         *domain.ExistingRegistration `json:"existing,omitempty"`
	Error            string                       `json:"error,omitempty"`
}

type Service interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	Sweep(ctx context.Context) (int, error)
}

type ServiceDeps struct {
	Store        Store
	Lookup       ExistenceLookup
	Mailer       Mailer
	Logger       *zap.Logger
	Clock        func() time.Time
	GenerateCode func() (string, error)
}

type service struct {
	store  Store
	lookup ExistenceLookup
	mailer Mailer
	log    *zap.Logger
	now    func() time.Time
	gen    func() (string, error)
	locks  *keyedMutex
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:  deps.Store,
		lookup: deps.Lookup,
		mailer: deps.Mailer,
		log:    logger.OrNop(deps.Logger),
		now:    deps.Clock,
		gen:    deps.GenerateCode,
		locks:  newKeyedMutex(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.gen == nil {
		s.gen = pkgtoken.NewNumericCode
	}
	return s
}

func (s *service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if req.Type != channelEmail || !validate.EmailShape(strings.TrimSpace(req.Value)) {
		return nil, badRequest(CodeInvalidEmail, "A valid email address is required")
	}
	email := validate.NormalizeEmail(req.Value)
	rt, verr := parseType(req.RegistrationType)
	if verr != nil {
		return nil, verr
	}

	// Lookup failures fail open: an unreachable store must not block OTP delivery.
	existing, err := s.lookup.FindExistingByEmail(ctx, rt, email)
	if err != nil {
		s.log.Warn("existence lookup failed, continuing without duplicate check",
			zap.String("email", email), zap.String("registration_type", string(rt)), zap.Error(err))
		existing = nil
	}
	if existing != nil {
		return nil, &Error{
			Code:     CodeAlreadyRegistered,
			Message:  "This email is already registered",
			Existing: existing,
			Kind:     domain.ErrConflict,
		}
	}

	issued, replay, err := s.issue(ctx, email, req.RequestID)
	if err != nil {
		return nil, err
	}
	if replay {
		return sendResult(email, rt, true), nil
	}

	if err := s.mailer.SendMail(ctx, otpMessage(email, rt, issued.Code)); err != nil {
		s.discard(ctx, issued)
		s.log.Error("otp email send failed", zap.String("email", email), zap.Error(err))
		return nil, internal(CodeSendFailed, "Failed to send OTP")
	}
	s.log.Info("otp issued", zap.String("email", email), zap.String("registration_type", string(rt)), zap.Int("send_count", issued.SendCount))
	return sendResult(email, rt, false), nil
}

// issue applies replay, cooldown and quota rules and stores a fresh record.
// The bool result is true for an idempotent replay, in which case no record is written.
func (s *service) issue(ctx context.Context, email, requestID string) (*domain.OTPRecord, bool, error) {
	unlock := s.locks.Lock(email)
	defer unlock()

	now := s.now()
	prev, err := s.get(ctx, email)
	if err != nil {
		s.log.Error("otp store read failed", zap.String("email", email), zap.Error(err))
		return nil, false, internal(CodeSendFailed, "Failed to send OTP")
	}

	if prev != nil && requestID != "" && prev.LastRequestID == requestID && now.Sub(prev.LastSentAt) <= ReplayWindow {
		return prev, true, nil
	}
	if prev != nil && now.Before(prev.CooldownUntil) {
		wait := ceilSeconds(prev.CooldownUntil.Sub(now))
		return nil, false, rateLimited(CodeResendCooldown,
			fmt.Sprintf("Please wait %d seconds before requesting a new code", wait), wait)
	}

	windowStart, sendCount := now, 0
	if prev != nil && now.Sub(prev.WindowStart) <= SendWindow {
		windowStart, sendCount = prev.WindowStart, prev.SendCount
	}
	if sendCount >= MaxSendsPerWindow {
		wait := ceilSeconds(windowStart.Add(SendWindow).Sub(now))
		return nil, false, rateLimited(CodeSendLimit, "Too many codes requested. Please try again later.", wait)
	}

	code, err := s.gen()
	if err != nil {
		return nil, false, internal(CodeSendFailed, "Failed to send OTP")
	}
	rec := &domain.OTPRecord{
		Email:         email,
		Code:          code,
		ExpiresAt:     now.Add(CodeTTL),
		Attempts:      0,
		LastSentAt:    now,
		CooldownUntil: now.Add(ResendCooldown),
		WindowStart:   windowStart,
		SendCount:     sendCount + 1,
		LastRequestID: requestID,
	}
	if err := s.store.Set(ctx, rec); err != nil {
		s.log.Error("otp store write failed", zap.String("email", email), zap.Error(err))
		return nil, false, internal(CodeSendFailed, "Failed to send OTP")
	}
	return rec, false, nil
}

// discard rolls back a record whose email never left, unless a newer send replaced it.
func (s *service) discard(ctx context.Context, issued *domain.OTPRecord) {
	unlock := s.locks.Lock(issued.Email)
	defer unlock()

	cur, err := s.get(ctx, issued.Email)
	if err != nil || cur == nil {
		return
	}
	if cur.Code != issued.Code || !cur.LastSentAt.Equal(issued.LastSentAt) {
		return
	}
	if err := s.store.Delete(ctx, issued.Email); err != nil {
		s.log.Error("otp rollback failed", zap.String("email", issued.Email), zap.Error(err))
	}
}

func (s *service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if !validate.EmailShape(strings.TrimSpace(req.Value)) {
		return nil, badRequest(CodeInvalidEmail, "A valid email address is required")
	}
	email := validate.NormalizeEmail(req.Value)
	rt, verr := parseType(req.RegistrationType)
	if verr != nil {
		return nil, verr
	}
	if req.OTP == "" {
		return nil, badRequest(CodeInvalidOTP, "otp is required")
	}

	matched, res, err := s.consume(ctx, email, rt, req.OTP)
	if err != nil || !matched {
		return res, err
	}

	// The final confirmation fails closed: a store error must not look like a clean success.
	existing, err := s.lookup.FindExistingByEmail(ctx, rt, email)
	if err != nil {
		s.log.Error("existence lookup failed after otp verification", zap.String("email", email), zap.Error(err))
		return nil, internal(CodeServerError, "Server error")
	}
	return &VerifyResult{Success: true, Email: email, RegistrationType: rt, Existing: existing}, nil
}

// consume checks the submitted code against the stored record under the per-email lock.
func (s *service) consume(ctx context.Context, email string, rt domain.RegistrationType, code string) (bool, *VerifyResult, error) {
	unlock := s.locks.Lock(email)
	defer unlock()

	fail := func(msg string) *VerifyResult {
		return &VerifyResult{Success: false, Email: email, RegistrationType: rt, Error: msg}
	}

	rec, err := s.get(ctx, email)
	if err != nil {
		s.log.Error("otp store read failed", zap.String("email", email), zap.Error(err))
		return false, nil, internal(CodeServerError, "Server error")
	}
	if rec == nil {
		return false, fail(msgNotFound), nil
	}
	if rec.Expired(s.now()) {
		s.delete(ctx, email)
		return false, fail(msgExpired), nil
	}
	if rec.Attempts >= MaxVerifyAttempts {
		s.delete(ctx, email)
		return false, nil, rateLimited(CodeTooManyAttempts, msgTooManyAttempt, 0)
	}
	if len(code) != codeLength || subtle.ConstantTimeCompare([]byte(code), []byte(rec.Code)) != 1 {
		rec.Attempts++
		if err := s.store.Set(ctx, rec); err != nil {
			s.log.Error("otp attempt update failed", zap.String("email", email), zap.Error(err))
			return false, nil, internal(CodeServerError, "Server error")
		}
		return false, fail(msgIncorrect), nil
	}
	s.delete(ctx, email)
	return true, nil, nil
}

func (s *service) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.Sweep(ctx, s.now())
	if err != nil {
		return n, fmt.Errorf("sweep otp records: %w", err)
	}
	if n > 0 {
		s.log.Info("expired otp records swept", zap.Int("count", n))
	}
	return n, nil
}

func (s *service) get(ctx context.Context, email string) (*domain.OTPRecord, error) {
	rec, err := s.store.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *service) delete(ctx context.Context, email string) {
	if err := s.store.Delete(ctx, email); err != nil {
		s.log.Warn("otp delete failed", zap.String("email", email), zap.Error(err))
	}
}

func parseType(raw string) (domain.RegistrationType, *Error) {
	if strings.TrimSpace(raw) == "" {
		return "", badRequest(CodeMissingRegistrationType, "registrationType is required")
	}
	rt, err := domain.ParseRegistrationType(raw)
	if err != nil {
		return "", badRequest(CodeUnknownRegistrationType, "Unknown registration type")
	}
	return rt, nil
}

func sendResult(email string, rt domain.RegistrationType, idempotent bool) *SendResult {
	return &SendResult{
		Success:           true,
		Email:             email,
		RegistrationType:  rt,
		ExpiresInSec:      int(CodeTTL / time.Second),
		ResendCooldownSec: int(ResendCooldown / time.Second),
		Idempotent:        idempotent,
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
