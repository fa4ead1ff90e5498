package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
)

const (
	csvContentType  = "text/csv"
	maxNameAttempts = 10000
)

// Blobs stores uploaded files in one bucket under collision-free names and
// stages them on local disk for processing.
type Blobs struct {
	storage    Storage
	bucket     string
	scratchDir string
}

func NewBlobs(store Storage, bucket, scratchDir string) *Blobs {
	return &Blobs{storage: store, bucket: bucket, scratchDir: scratchDir}
}

// Store uploads data under suggestedName, or under name-1.ext, name-2.ext, ...
// when an object with that name already exists. It returns the stored name.
func (b *Blobs) Store(ctx context.Context, data io.Reader, suggestedName string) (string, error) {
	name, err := b.availableName(ctx, suggestedName)
	if err != nil {
		return "", err
	}

	if err := b.storage.Upload(ctx, b.bucket, name, data, csvContentType); err != nil {
		return "", err
	}

	slog.Info("stored upload", "bucket", b.bucket, "name", name)
	return name, nil
}

func (b *Blobs) availableName(ctx context.Context, suggested string) (string, error) {
	base := path.Base(strings.ReplaceAll(suggested, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, suggested)
	}

	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := base
	for n := 1; n <= maxNameAttempts; n++ {
		exists, err := b.storage.Exists(ctx, b.bucket, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	return "", fmt.Errorf("%w: no free name for %q", ErrInvalidName, base)
}

// Delete removes a stored object. A missing object is not an error.
func (b *Blobs) Delete(ctx context.Context, name string) error {
	err := b.storage.Delete(ctx, b.bucket, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Fetch downloads the object into a fresh scratch file and returns its path
// together with a cleanup func that removes it.
func (b *Blobs) Fetch(ctx context.Context, name string) (string, func(), error) {
	rc, err := b.storage.Download(ctx, b.bucket, name)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	f, err := os.CreateTemp(b.scratchDir, "upload-*"+path.Ext(name))
	if err != nil {
		return "", nil, fmt.Errorf("create scratch file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("remove scratch file", "path", f.Name(), "error", err)
		}
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		cleanup()
		return "", nil, unavailable("download", name, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close scratch file: %w", err)
	}

	return f.Name(), cleanup, nil
}
