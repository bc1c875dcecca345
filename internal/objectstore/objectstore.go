// Package objectstore keeps uploaded documents in a bucket-style object store.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Backend is a single bucket of uniquely keyed objects.
type Backend interface {
	ListKeys(ctx context.Context) ([]string, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Kind tells which adapter operation failed.
type Kind string

const (
	KindList   Kind = "list"
	KindUpload Kind = "upload"
	KindFetch  Kind = "fetch"
)

// Error is returned by every Adapter operation that fails.
type Error struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s objects: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s object %q: %v", e.Kind, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UploadResult reports the key a document is stored under and whether it was
// already present before the upload was attempted.
type UploadResult struct {
	Key     string
	Existed bool
}

// Adapter implements the list / upload / fetch contract on top of a Backend.
type Adapter struct {
	backend Backend
	log     *slog.Logger
}

func NewAdapter(backend Backend, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{backend: backend, log: log}
}

// ListKeys returns every key currently in the bucket.
func (a *Adapter) ListKeys(ctx context.Context) (map[string]struct{}, error) {
	keys, err := a.backend.ListKeys(ctx)
	if err != nil {
		return nil, &Error{Kind: KindList, Err: err}
	}

	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// Upload stores data under key unless the key already exists, in which case the
// stored bytes are left untouched and the existing key is returned.
func (a *Adapter) Upload(ctx context.Context, key string, data []byte, contentType string) (UploadResult, error) {
	if strings.TrimSpace(key) == "" {
		return UploadResult{}, &Error{Kind: KindUpload, Err: ErrInvalidKey}
	}

	keys, err := a.ListKeys(ctx)
	if err != nil {
		return UploadResult{}, err
	}
	if _, ok := keys[key]; ok {
		a.log.InfoContext(ctx, "Object already exists, upload is skipped",
			"key", key)

		return UploadResult{Key: key, Existed: true}, nil
	}

	if err := a.backend.Put(ctx, key, data, contentType); err != nil {
		return UploadResult{}, &Error{Kind: KindUpload, Key: key, Err: err}
	}
	a.log.InfoContext(ctx, "Object is uploaded",
		"key", key,
		"size", len(data),
		"contentType", contentType)

	return UploadResult{Key: key}, nil
}

// Fetch returns the full content stored under key.
func (a *Adapter) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := a.backend.Get(ctx, key)
	if err != nil {
		return nil, &Error{Kind: KindFetch, Key: key, Err: err}
	}
	return data, nil
}
