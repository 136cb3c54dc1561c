package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/expo-registration-api/internal/domain"
	"github.com/expo-registration-api/internal/pkg/id"
)

// MaxUploadSize caps a single attachment.
const MaxUploadSize = 10 << 20

// urlTTL is how long a presigned download link stays valid.
const urlTTL = 7 * 24 * time.Hour

type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

type Service interface {
	Upload(ctx context.Context, input UploadInput) (*domain.Attachment, error)
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type service struct {
	store objectStore
	now   func() time.Time
}

func NewService(store objectStore) Service {
	return &service{store: store, now: time.Now}
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*domain.Attachment, error) {
	if input.Size <= 0 {
		return nil, fmt.Errorf("empty file: %w", domain.ErrBadRequest)
	}
	if input.Size > MaxUploadSize {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", MaxUploadSize, domain.ErrBadRequest)
	}
	safeName := sanitizeFilename(input.Filename)
	contentType := input.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromName(safeName)
	}
	now := s.now().UTC()
	key := fmt.Sprintf("uploads/%04d/%02d/%s-%s", now.Year(), int(now.Month()), strings.ToLower(id.New()), safeName)

	hasher := sha256.New()
	tee := io.TeeReader(io.LimitReader(input.Reader, input.Size), hasher)
	if err := s.store.Upload(ctx, key, tee, input.Size, contentType); err != nil {
		return nil, err
	}
	url, err := s.store.URL(ctx, key, urlTTL)
	if err != nil {
		return nil, err
	}
	return &domain.Attachment{
		Key:         key,
		URL:         url,
		Name:        safeName,
		Size:        input.Size,
		ContentType: contentType,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		UploadedAt:  now,
	}, nil
}

func contentTypeFromName(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) to prevent path traversal in S3 keys.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "_"
}
