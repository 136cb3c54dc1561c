package file

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/expo-registration-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	key         string
	body        []byte
	contentType string
	err         error
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.key, f.body, f.contentType = key, b, contentType
	return nil
}

func (f *fakeObjectStore) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.expo.io/" + key, nil
}

func TestUpload_StoresUnderDatedKey(t *testing.T) {
	store := &fakeObjectStore{}
	svc := &service{store: store, now: func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }}
	data := []byte("%PDF-1.7 brochure")

	att, err := svc.Upload(context.Background(), UploadInput{
		Reader:   bytes.NewReader(data),
		Filename: "../../etc/Company Brochure.pdf",
		Size:     int64(len(data)),
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^uploads/2026/03/[0-9a-z]{26}-Company_Brochure\.pdf$`), att.Key)
	assert.Equal(t, store.key, att.Key)
	assert.Equal(t, data, store.body)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, "https://cdn.expo.io/"+att.Key, att.URL)
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), att.SHA256)
}

func TestUpload_RejectsSize(t *testing.T) {
	svc := NewService(&fakeObjectStore{})
	_, err := svc.Upload(context.Background(), UploadInput{Reader: strings.NewReader(""), Filename: "a.png", Size: 0})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	_, err = svc.Upload(context.Background(), UploadInput{Reader: strings.NewReader("x"), Filename: "a.png", Size: MaxUploadSize + 1})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestUpload_StoreError(t *testing.T) {
	svc := NewService(&fakeObjectStore{err: errors.New("access denied")})
	_, err := svc.Upload(context.Background(), UploadInput{Reader: strings.NewReader("x"), Filename: "a.png", Size: 1})
	assert.EqualError(t, err, "access denied")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "logo.png", sanitizeFilename(`C:\Users\me\logo.png`))
	assert.Equal(t, "_", sanitizeFilename(".."))
	assert.Equal(t, "caf__menu.pdf", sanitizeFilename("café menu.pdf"))
}
