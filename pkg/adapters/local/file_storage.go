package local

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/synote/pkg/core"
)

const blobExt = ".json"

// FileStorage keeps one file per key under Dir.
type FileStorage struct {
	Dir    string
	logger *slog.Logger

	mu      sync.Mutex
	written map[string][sha256.Size]byte // checksum of our own last write per key
}

// NewFileStorage creates Dir if needed.
func NewFileStorage(dir string, logger *slog.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileStorage{
		Dir:     dir,
		logger:  logger,
		written: make(map[string][sha256.Size]byte),
	}, nil
}

func (s *FileStorage) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.Dir, key+blobExt), nil
}

func (s *FileStorage) GetItem(key string) (string, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), true, nil
}

func (s *FileStorage) SetItem(key, value string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(p, []byte(value), 0o600); err != nil {
		return err
	}
	s.written[key] = sha256.Sum256([]byte(value))
	return nil
}

func (s *FileStorage) RemoveItem(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	delete(s.written, key)
	return nil
}

// Watch reports keys matching pattern (a doublestar glob over keys) that were
// changed by someone other than this FileStorage.
func (s *FileStorage) Watch(ctx context.Context, pattern string, fn func(key string)) (core.Unsubscribe, error) {
	w := newWatchWorker(s, pattern, fn, 50*time.Millisecond)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := w.Stop(stopCtx); err != nil {
				s.logger.Debug("guest watcher stop", "error", err)
			}
		})
	}, nil
}

// isOwnWrite reports whether the current content of key is what we last wrote.
func (s *FileStorage) isOwnWrite(key string) bool {
	value, ok, err := s.GetItem(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	sum, known := s.written[key]
	if !ok || err != nil {
		// Deleted: ours only if we removed it.
		return !known
	}
	return known && sum == sha256.Sum256([]byte(value))
}

var (
	_ Storage   = (*FileStorage)(nil)
	_ Watchable = (*FileStorage)(nil)
)
