package fieldsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/expo-registration-api/internal/domain"
	"github.com/expo-registration-api/internal/pkg/logger"
	"go.uber.org/zap"
)

const (
	ActionAdd    = "add"
	ActionIndex  = "index"
	ActionRemove = "remove"
)

// FieldTracker persists which dynamic fields are active per collection.
type FieldTracker interface {
	ListByCollection(ctx context.Context, collection string) ([]domain.DynamicField, error)
	Upsert(ctx context.Context, f *domain.DynamicField) error
	Delete(ctx context.Context, collection, fieldName string) error
}

// IndexManager maintains sparse single-field indexes on a collection.
type IndexManager interface {
	CreateSparseIndex(ctx context.Context, collection, field, indexName string) error
	IndexExists(ctx context.Context, collection, indexName string) (bool, error)
	DropIndex(ctx context.Context, collection, indexName string) error
}

// Synchronizer reconciles an admin's field list with tracking records and indexes.
type Synchronizer struct {
	tracker FieldTracker
	indexes IndexManager
	log     *zap.Logger
	now     func() time.Time
}

func NewSynchronizer(tracker FieldTracker, indexes IndexManager, log *zap.Logger) *Synchronizer {
	return &Synchronizer{tracker: tracker, indexes: indexes, log: logger.OrNop(log), now: time.Now}
}

type desiredField struct {
	name     string
	origName string
	kind     string
}

// Sync converges the tracked set for collection onto the normalized names in
// fields. It is safe to re-run after a partial failure. Index maintenance is
// best-effort: failures are reported in the result but never undo tracking
// changes, so a non-empty Errors slice does not mean nothing was applied.
//
// Fields whose normalized name is unchanged keep their original metadata; a
// missing index for such a field is recreated.
func (s *Synchronizer) Sync(ctx context.Context, collection string, fields []domain.FormField) (*domain.SyncResult, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("collection name is required: %w", domain.ErrBadRequest)
	}

	desired := make([]desiredField, 0, len(fields))
	wanted := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			continue
		}
		name := Normalize(f.Name)
		if name == "" {
			continue
		}
		if _, dup := wanted[name]; dup {
			continue
		}
		wanted[name] = struct{}{}
		desired = append(desired, desiredField{name: name, origName: f.Name, kind: f.Type})
	}

	tracked, err := s.tracker.ListByCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("load tracked fields for %s: %w", collection, err)
	}
	have := make(map[string]struct{}, len(tracked))
	for _, t := range tracked {
		have[t.FieldName] = struct{}{}
	}

	res := &domain.SyncResult{Added: []string{}, Removed: []string{}, Errors: []domain.SyncError{}}

	for _, d := range desired {
		if _, ok := have[d.name]; ok {
			s.repairIndex(ctx, collection, d.name, res)
			continue
		}
		rec := &domain.DynamicField{
			CollectionName: collection,
			FieldName:      d.name,
			OrigName:       d.origName,
			FieldType:      d.kind,
			CreatedAt:      s.now().UTC(),
		}
		if err := s.tracker.Upsert(ctx, rec); err != nil {
			res.Errors = append(res.Errors, domain.SyncError{Action: ActionAdd, Field: d.name, Error: err.Error()})
			continue
		}
		res.Added = append(res.Added, d.name)
		if err := s.indexes.CreateSparseIndex(ctx, collection, d.name, IndexName(d.name)); err != nil {
			s.log.Warn("dynamic field index create failed",
				zap.String("collection", collection), zap.String("field", d.name), zap.Error(err))
			res.Errors = append(res.Errors, domain.SyncError{Action: ActionIndex, Field: d.name, Error: err.Error()})
		}
	}

	for _, t := range tracked {
		if _, ok := wanted[t.FieldName]; ok {
			continue
		}
		s.dropIndexQuietly(ctx, collection, t.FieldName)
		if err := s.tracker.Delete(ctx, collection, t.FieldName); err != nil {
			res.Errors = append(res.Errors, domain.SyncError{Action: ActionRemove, Field: t.FieldName, Error: err.Error()})
			continue
		}
		res.Removed = append(res.Removed, t.FieldName)
	}

	s.log.Info("dynamic fields synchronized",
		zap.String("collection", collection),
		zap.Strings("added", res.Added),
		zap.Strings("removed", res.Removed),
		zap.Int("errors", len(res.Errors)))
	return res, nil
}

// repairIndex recreates the index of an already tracked field when it is
// missing, e.g. because an earlier create was rejected. Tracking metadata is
// not touched. A failed lookup is skipped; a failed create is reported.
func (s *Synchronizer) repairIndex(ctx context.Context, collection, field string, res *domain.SyncResult) {
	name := IndexName(field)
	exists, err := s.indexes.IndexExists(ctx, collection, name)
	if err != nil || exists {
		if err != nil {
			s.log.Debug("dynamic field index lookup failed", zap.String("collection", collection), zap.String("index", name), zap.Error(err))
		}
		return
	}
	if err := s.indexes.CreateSparseIndex(ctx, collection, field, name); err != nil {
		s.log.Warn("dynamic field index repair failed",
			zap.String("collection", collection), zap.String("field", field), zap.Error(err))
		res.Errors = append(res.Errors, domain.SyncError{Action: ActionIndex, Field: field, Error: err.Error()})
		return
	}
	s.log.Info("dynamic field index repaired", zap.String("collection", collection), zap.String("field", field))
}

// dropIndexQuietly removes the field's index if present. Inspection and drop
// errors are not reported: the tracking record goes away regardless.
func (s *Synchronizer) dropIndexQuietly(ctx context.Context, collection, field string) {
	name := IndexName(field)
	exists, err := s.indexes.IndexExists(ctx, collection, name)
	if err != nil {
		s.log.Debug("dynamic field index lookup failed", zap.String("collection", collection), zap.String("index", name), zap.Error(err))
		return
	}
	if !exists {
		return
	}
	if err := s.indexes.DropIndex(ctx, collection, name); err != nil {
		s.log.Debug("dynamic field index drop failed", zap.String("collection", collection), zap.String("index", name), zap.Error(err))
	}
}

// Tracked returns the active dynamic fields for collection.
func (s *Synchronizer) Tracked(ctx context.Context, collection string) ([]domain.DynamicField, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("collection name is required: %w", domain.ErrBadRequest)
	}
	return s.tracker.ListByCollection(ctx, collection)
}
