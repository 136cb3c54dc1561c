package admin

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/expo-registration-api/internal/domain"
	"github.com/expo-registration-api/internal/infrastructure/google"
	"github.com/expo-registration-api/internal/pkg/logger"
	"github.com/expo-registration-api/internal/pkg/validate"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// Token is the bearer handed back to the console.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*Token, error)
	LoginWithGoogle(ctx context.Context, req GoogleLoginRequest) (*Token, error)
}

type tokenSigner interface {
	Sign(email, role string) (string, error)
	Expiry() time.Duration
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}

type ServiceDeps struct {
	Emails         []string // lowercased allowlist
	PasswordHash   string   // bcrypt; empty disables password sign-in
	Signer         tokenSigner
	GoogleVerifier googleVerifier // nil disables Google sign-in
	Logger         *zap.Logger
}

type service struct {
	emails         []string
	passwordHash   []byte
	signer         tokenSigner
	googleVerifier googleVerifier
	log            *zap.Logger
}

func NewService(deps ServiceDeps) Service {
	return &service{
		emails:         deps.Emails,
		passwordHash:   []byte(deps.PasswordHash),
		signer:         deps.Signer,
		googleVerifier: deps.GoogleVerifier,
		log:            logger.OrNop(deps.Logger).Named("admin"),
	}
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Token, error) {
	req.Email = validate.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	if len(s.passwordHash) == 0 {
		return nil, fmt.Errorf("password sign-in disabled: %w", domain.ErrUnavailable)
	}
	// Compare before the allowlist check so every attempt costs one bcrypt round.
	pwErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password))
	if !s.allowed(req.Email) || pwErr != nil {
		s.log.Info("admin sign-in rejected", zap.String("email", req.Email))
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return s.issue(req.Email)
}

func (s *service) LoginWithGoogle(ctx context.Context, req GoogleLoginRequest) (*Token, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	if s.googleVerifier == nil {
		return nil, fmt.Errorf("google sign-in disabled: %w", domain.ErrUnavailable)
	}
	p, err := s.googleVerifier.Verify(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}
	email := validate.NormalizeEmail(p.Email)
	if !p.EmailVerified {
		return nil, fmt.Errorf("google email not verified: %w", domain.ErrUnauthorized)
	}
	if !s.allowed(email) {
		s.log.Info("google sign-in for non-admin", zap.String("email", email))
		return nil, fmt.Errorf("%s is not an admin: %w", email, domain.ErrForbidden)
	}
	return s.issue(email)
}

func (s *service) allowed(email string) bool {
	return email != "" && slices.Contains(s.emails, email)
}

func (s *service) issue(email string) (*Token, error) {
	if s.signer == nil {
		return nil, fmt.Errorf("token signing not configured: %w", domain.ErrUnavailable)
	}
	tok, err := s.signer.Sign(email, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}
	return &Token{AccessToken: tok, ExpiresIn: int64(s.signer.Expiry() / time.Second)}, nil
}
