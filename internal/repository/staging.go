package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"genico/internal/config"
)

var ErrNotStaged = errors.New("staged upload not found")

// StagingRepository holds uploaded bytes for the lifetime of a single request.
type StagingRepository interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// Sweep removes uploads staged before the cutoff. Newer ones may belong
	// to another instance sharing the same storage and are kept.
	Sweep(ctx context.Context, before time.Time) (int, error)
}

// isStale reports whether an upload last modified at modified was staged
// before the cutoff. An unknown modification time counts as stale.
func isStale(modified *time.Time, before time.Time) bool {
	return modified == nil || modified.Before(before)
}

func NewStagingRepository(cfg *config.Config, log *zap.Logger) (StagingRepository, error) {
	switch cfg.Staging.Backend {
	case config.BackendMemory, "":
		return NewMemoryRepository(), nil
	case config.BackendDisk:
		return NewDiskRepository(cfg.Staging.Dir, log)
	case config.BackendS3:
		return NewS3Repository(&cfg.S3, log)
	}
	return nil, fmt.Errorf("unknown staging backend %q", cfg.Staging.Backend)
}

type stagedFile struct {
	data     []byte
	stagedAt time.Time
}

type memoryRepository struct {
	mu    sync.Mutex
	files map[string]stagedFile
}

func NewMemoryRepository() StagingRepository {
	return &memoryRepository{files: make(map[string]stagedFile)}
}

func (r *memoryRepository) Put(_ context.Context, key string, body io.Reader, size int64) error {
	data, err := io.ReadAll(io.LimitReader(body, size))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.files[key] = stagedFile{data: data, stagedAt: time.Now()}
	r.mu.Unlock()
	return nil
}

func (r *memoryRepository) Open(_ context.Context, key string) (io.ReadCloser, error) {
	r.mu.Lock()
	file, ok := r.files[key]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotStaged)
	}
	return io.NopCloser(bytes.NewReader(file.data)), nil
}

func (r *memoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.files, key)
	r.mu.Unlock()
	return nil
}

func (r *memoryRepository) Sweep(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, file := range r.files {
		if isStale(&file.stagedAt, before) {
			delete(r.files, key)
			removed++
		}
	}
	return removed, nil
}

type diskRepository struct {
	dir string
	log *zap.Logger
}

func NewDiskRepository(dir string, log *zap.Logger) (StagingRepository, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create staging directory %s: %w", dir, err)
	}
	return &diskRepository{dir: dir, log: log}, nil
}

func (r *diskRepository) path(key string) (string, error) {
	if !filepath.IsLocal(key) || filepath.Base(key) != key {
		return "", fmt.Errorf("invalid staging key %q", key)
	}
	return filepath.Join(r.dir, key+".upload"), nil
}

func (r *diskRepository) Put(_ context.Context, key string, body io.Reader, size int64) error {
	path, err := r.path(key)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, io.LimitReader(body, size)); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return err
	}

	r.log.Debug("Upload staged", zap.String("path", path), zap.Int64("size", size))
	return nil
}

func (r *diskRepository) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := r.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotStaged)
	}
	return file, err
}

func (r *diskRepository) Delete(_ context.Context, key string) error {
	path, err := r.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (r *diskRepository) Sweep(_ context.Context, before time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*.upload"))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if modified := info.ModTime(); !isStale(&modified, before) {
			continue
		}
		if err := os.Remove(path); err != nil {
			r.log.Warn("Failed to remove stale upload", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
