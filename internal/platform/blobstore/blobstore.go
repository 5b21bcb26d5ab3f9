// Package blobstore stores clinic assets in S3-compatible object storage. It
// defines the ObjectStore interface, a MinIO-backed implementation and an
// in-memory implementation for tests and development.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrFileTooLarge   = errors.New("file exceeds maximum allowed size")
	ErrEmptyKey       = errors.New("object key is required")
)

// Object describes a stored object.
type Object struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ObjectStore is the contract for object storage backends. Keys are paths
// inside a single bucket.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, content io.Reader, size int64) (*Object, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// PublicURL joins base, bucket and key into the object's public address.
func PublicURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.TrimLeft(key, "/")
}

type storedObject struct {
	object  Object
	content []byte
}

// InMemoryStore is a thread-safe, in-memory ObjectStore for testing/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
	baseURL string
	bucket  string
	maxSize int64

	// FailUploads makes every Upload fail with the given error.
	FailUploads error
}

func NewInMemoryStore(baseURL, bucket string, maxSize int64) *InMemoryStore {
	return &InMemoryStore{
		objects: make(map[string]*storedObject),
		baseURL: baseURL,
		bucket:  bucket,
		maxSize: maxSize,
	}
}

// Upload reads the content, computes a SHA-256 hash and keeps the object in
// memory.
func (s *InMemoryStore) Upload(_ context.Context, key, contentType string, content io.Reader, _ int64) (*Object, error) {
	if s.FailUploads != nil {
		return nil, s.FailUploads
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	reader := content
	if s.maxSize > 0 {
		reader = io.LimitReader(content, s.maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)
	obj := Object{
		Key:         key,
		URL:         s.PublicURL(key),
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", h),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.objects[key] = &storedObject{object: obj, content: data}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

// Download returns the object content and its metadata.
func (s *InMemoryStore) Download(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	stored, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrObjectNotFound
	}
	obj := stored.object
	return io.NopCloser(bytes.NewReader(stored.content)), &obj, nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *InMemoryStore) PublicURL(key string) string {
	return PublicURL(s.baseURL, s.bucket, key)
}

// Len returns the number of stored objects.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
