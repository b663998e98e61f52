// Package storage holds user avatars in object storage behind a
// backend-agnostic interface (MinIO or GCS, picked at startup).
package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// AvatarStore wraps an ObjectStorage backend with avatar-shaped helpers.
// Keys are content-addressed per upload so a replaced avatar never serves
// a stale cached object.
type AvatarStore struct {
	backend ObjectStorage
}

// NewAvatarStore constructs an AvatarStore for the provided backend.
func NewAvatarStore(backend ObjectStorage) *AvatarStore {
	return &AvatarStore{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *AvatarStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// PutAvatar uploads a new avatar object for a user and returns its key.
func (s *AvatarStore) PutAvatar(ctx context.Context, userID int, r io.Reader, size int64, contentType string) (string, error) {
	ext := ""
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	default:
		return "", fmt.Errorf("unsupported avatar content type %q", contentType)
	}

	key := path.Join("avatars", fmt.Sprintf("%d", userID), uuid.NewString()+ext)
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// GetAvatar opens a reader for the stored avatar object.
func (s *AvatarStore) GetAvatar(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// DeleteAvatar removes the stored avatar object.
func (s *AvatarStore) DeleteAvatar(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *AvatarStore) Bucket() string {
	return s.backend.Bucket()
}
