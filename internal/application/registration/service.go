package registration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/expo-registration-api/internal/application/fieldsync"
	"github.com/expo-registration-api/internal/domain"
	"github.com/expo-registration-api/internal/pkg/id"
	"github.com/expo-registration-api/internal/pkg/logger"
	pkgtoken "github.com/expo-registration-api/internal/pkg/token"
	"github.com/expo-registration-api/internal/pkg/validate"
	"go.uber.org/zap"
)

// Attribute names used in partial update maps.
const (
	fieldEmail   = "email"
	fieldName    = "name"
	fieldPhone   = "phone"
	fieldCompany = "company"
	fieldStatus  = "status"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// DuplicateError reports that the email already holds a registration of this type.
type DuplicateError struct {
	Existing domain.ExistingRegistration
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("email already registered as %s", e.Existing.ID)
}

func (e *DuplicateError) Unwrap() error { return domain.ErrConflict }

type Service interface {
	Create(ctx context.Context, t domain.RegistrationType, req domain.CreateRegistrationRequest) (*domain.Registration, error)
	Get(ctx context.Context, t domain.RegistrationType, id string) (*domain.Registration, error)
	List(ctx context.Context, t domain.RegistrationType, limit int, cursor string) ([]domain.Registration, string, error)
	Update(ctx context.Context, t domain.RegistrationType, id string, req domain.UpdateRegistrationRequest) (*domain.Registration, error)
	Delete(ctx context.Context, t domain.RegistrationType, id string) error
	FindExistingByEmail(ctx context.Context, t domain.RegistrationType, email string) (*domain.ExistingRegistration, error)
}

type registrationStore interface {
	Put(ctx context.Context, r *domain.Registration) error
	Get(ctx context.Context, t domain.RegistrationType, id string) (*domain.Registration, error)
	FindByEmail(ctx context.Context, t domain.RegistrationType, email string) (*domain.Registration, error)
	QueryPage(ctx context.Context, t domain.RegistrationType, limit int32, cursor string) ([]domain.Registration, string, error)
	Update(ctx context.Context, t domain.RegistrationType, id string, updates map[string]any) (*domain.Registration, error)
	Delete(ctx context.Context, t domain.RegistrationType, id string) error
}

type mailer interface {
	SendMail(ctx context.Context, msg domain.MailMessage) error
}

type eventPublisher interface {
	Publish(ctx context.Context, ev domain.RegistrationEvent) error
}

type service struct {
	repo   registrationStore
	mailer mailer
	events eventPublisher
	log    *zap.Logger
	now    func() time.Time
}

// ServiceDeps wires the registration service. Mailer and Events are optional.
type ServiceDeps struct {
	Repo   registrationStore
	Mailer mailer
	Events eventPublisher
	Logger *zap.Logger
	Clock  func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:   deps.Repo,
		mailer: deps.Mailer,
		events: deps.Events,
		log:    logger.OrNop(deps.Logger),
		now:    deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Create(ctx context.Context, t domain.RegistrationType, req domain.CreateRegistrationRequest) (*domain.Registration, error) {
	req.Email = validate.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	if err := s.ensureUnique(ctx, t, req.Email, ""); err != nil {
		return nil, err
	}
	ticket, err := pkgtoken.NewTicketCode(t.TicketPrefix())
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	reg := &domain.Registration{
		ID:         id.New(),
		Type:       t,
		Email:      req.Email,
		Name:       req.Name,
		Phone:      strings.TrimSpace(req.Phone),
		Company:    strings.TrimSpace(req.Company),
		TicketCode: ticket,
		Status:     domain.StatusRegistered,
		Fields:     normalizeFields(req.Fields, false),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Put(ctx, reg); err != nil {
		return nil, err
	}
	s.log.Info("registration created",
		zap.String("registration_type", string(t)), zap.String("id", reg.ID), zap.String("email", reg.Email))

	// Side effects must not fail a registration that is already stored.
	bg := context.WithoutCancel(ctx)
	s.sendConfirmation(bg, reg)
	s.publish(bg, reg, domain.EventRegistrationCreated)
	return reg, nil
}

func (s *service) Get(ctx context.Context, t domain.RegistrationType, id string) (*domain.Registration, error) {
	return s.repo.Get(ctx, t, id)
}

func (s *service) List(ctx context.Context, t domain.RegistrationType, limit int, cursor string) ([]domain.Registration, string, error) {
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.repo.QueryPage(ctx, t, int32(limit), cursor)
}

func (s *service) Update(ctx context.Context, t domain.RegistrationType, id string, req domain.UpdateRegistrationRequest) (*domain.Registration, error) {
	if req.Email != nil {
		e := validate.NormalizeEmail(*req.Email)
		req.Email = &e
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	updates := map[string]any{}
	if req.Email != nil {
		if err := s.ensureUnique(ctx, t, *req.Email, id); err != nil {
			return nil, err
		}
		updates[fieldEmail] = *req.Email
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("name must not be empty: %w", domain.ErrBadRequest)
		}
		updates[fieldName] = name
	}
	if req.Phone != nil {
		updates[fieldPhone] = strings.TrimSpace(*req.Phone)
	}
	if req.Company != nil {
		updates[fieldCompany] = strings.TrimSpace(*req.Company)
	}
	if req.Status != nil {
		updates[fieldStatus] = *req.Status
	}
	for k, v := range normalizeFields(req.Fields, true) {
		updates[k] = v
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	return s.repo.Update(ctx, t, id, updates)
}

func (s *service) Delete(ctx context.Context, t domain.RegistrationType, id string) error {
	if err := s.repo.Delete(ctx, t, id); err != nil {
		return err
	}
	s.log.Info("registration deleted", zap.String("registration_type", string(t)), zap.String("id", id))
	return nil
}

// FindExistingByEmail returns nil, nil when email has no registration of type t.
func (s *service) FindExistingByEmail(ctx context.Context, t domain.RegistrationType, email string) (*domain.ExistingRegistration, error) {
	reg, err := s.repo.FindByEmail(ctx, t, validate.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.ExistingRegistration{ID: reg.ID, TicketCode: reg.TicketCode}, nil
}

// ensureUnique fails with a DuplicateError when email belongs to a registration other than selfID.
func (s *service) ensureUnique(ctx context.Context, t domain.RegistrationType, email, selfID string) error {
	existing, err := s.repo.FindByEmail(ctx, t, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return &DuplicateError{Existing: domain.ExistingRegistration{ID: existing.ID, TicketCode: existing.TicketCode}}
}

func (s *service) sendConfirmation(ctx context.Context, reg *domain.Registration) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendMail(ctx, confirmationMessage(reg)); err != nil {
		s.log.Warn("registration confirmation email failed", zap.String("id", reg.ID), zap.Error(err))
	}
}

func (s *service) publish(ctx context.Context, reg *domain.Registration, event string) {
	if s.events == nil {
		return
	}
	ev := domain.RegistrationEvent{
		Event:            event,
		RegistrationID:   reg.ID,
		RegistrationType: reg.Type,
		Email:            reg.Email,
		TicketCode:       reg.TicketCode,
		OccurredAt:       s.now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("registration event publish failed", zap.String("id", reg.ID), zap.String("event", event), zap.Error(err))
	}
}

// normalizeFields rewrites answer keys to their normalized field names. Keys
// that normalize to nothing or onto a fixed attribute are dropped; on
// collisions the lexically first raw key wins. Nil values are kept only when
// keepNil is set, where they mean "clear this answer".
func normalizeFields(in map[string]any, keepNil bool) map[string]any {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(in))
	for _, k := range keys {
		v := in[k]
		if v == nil && !keepNil {
			continue
		}
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		name := fieldsync.Normalize(k)
		if name == "" || domain.IsReservedField(name) {
			continue
		}
		if _, dup := out[name]; dup {
			continue
		}
		out[name] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
