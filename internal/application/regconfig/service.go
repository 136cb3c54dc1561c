package regconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expo-registration-api/internal/application/fieldsync"
	"github.com/expo-registration-api/internal/domain"
	"github.com/expo-registration-api/internal/pkg/logger"
	"github.com/expo-registration-api/internal/pkg/validate"
	"go.uber.org/zap"
)

const defaultFieldType = "text"

type Service interface {
	Get(ctx context.Context, t domain.RegistrationType) (*domain.RegistrationConfig, error)
	Save(ctx context.Context, t domain.RegistrationType, req domain.SaveConfigRequest) (*domain.RegistrationConfig, *domain.SyncResult, error)
	DynamicFields(ctx context.Context, t domain.RegistrationType) ([]domain.DynamicField, error)
}

type configStore interface {
	Get(ctx context.Context, t domain.RegistrationType) (*domain.RegistrationConfig, error)
	Put(ctx context.Context, c *domain.RegistrationConfig) error
}

type fieldSyncer interface {
	Sync(ctx context.Context, collection string, fields []domain.FormField) (*domain.SyncResult, error)
	Tracked(ctx context.Context, collection string) ([]domain.DynamicField, error)
}

type service struct {
	repo   configStore
	syncer fieldSyncer
	log    *zap.Logger
	now    func() time.Time
}

type ServiceDeps struct {
	Repo   configStore
	Syncer fieldSyncer
	Logger *zap.Logger
	Clock  func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.Repo, syncer: deps.Syncer, log: logger.OrNop(deps.Logger), now: deps.Clock}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Get returns the stored form definition, or an empty one if none was saved yet.
func (s *service) Get(ctx context.Context, t domain.RegistrationType) (*domain.RegistrationConfig, error) {
	c, err := s.repo.Get(ctx, t)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.RegistrationConfig{Type: t, Fields: []domain.FormField{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Fields == nil {
		c.Fields = []domain.FormField{}
	}
	return c, nil
}

// Save stores the canonical form definition and then brings the collection's
// dynamic fields in line with it. The config stays saved if synchronization fails.
func (s *service) Save(ctx context.Context, t domain.RegistrationType, req domain.SaveConfigRequest) (*domain.RegistrationConfig, *domain.SyncResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	c := &domain.RegistrationConfig{
		Type:        t,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Fields:      Canonicalize(req.Fields),
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.repo.Put(ctx, c); err != nil {
		return nil, nil, err
	}
	res, err := s.syncer.Sync(ctx, t.Collection(), c.Fields)
	if err != nil {
		s.log.Error("dynamic field sync failed", zap.String("registration_type", string(t)), zap.Error(err))
		return c, nil, fmt.Errorf("sync dynamic fields: %w", err)
	}
	return c, res, nil
}

func (s *service) DynamicFields(ctx context.Context, t domain.RegistrationType) ([]domain.DynamicField, error) {
	return s.syncer.Tracked(ctx, t.Collection())
}

// Canonicalize trims every field, drops ones without a usable name, defaults
// type and label, and keeps only the first field per normalized name.
func Canonicalize(fields []domain.FormField) []domain.FormField {
	out := make([]domain.FormField, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f.Name = strings.TrimSpace(f.Name)
		key := fieldsync.Normalize(f.Name)
		if key == "" || domain.IsReservedField(key) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		f.Label = strings.TrimSpace(f.Label)
		if f.Label == "" {
			f.Label = f.Name
		}
		f.Type = strings.ToLower(strings.TrimSpace(f.Type))
		if f.Type == "" {
			f.Type = defaultFieldType
		}
		f.Placeholder = strings.TrimSpace(f.Placeholder)
		var opts []string
		for _, o := range f.Options {
			if o = strings.TrimSpace(o); o != "" {
				opts = append(opts, o)
			}
		}
		f.Options = opts
		out = append(out, f)
	}
	return out
}
