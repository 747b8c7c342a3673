package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// Store serves bundled plugin assets from a directory. Only files present
// when the store was opened and admitted by the allowlist are served.
type Store struct {
	dir    string
	allow  func(name string) bool
	logger *zap.Logger

	mu    sync.RWMutex
	index map[string]int64
}

// OpenStore indexes dir. allow may be nil to admit every file.
func OpenStore(ctx context.Context, dir string, allow func(name string) bool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		dir:    dir,
		allow:  allow,
		logger: logger.Named("assets.store"),
	}
	if err := s.Reindex(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reindex rescans the asset directory.
func (s *Store) Reindex(ctx context.Context) error {
	index := make(map[string]int64)
	var mu sync.Mutex

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.dir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return nil
		}
		name := filepath.ToSlash(rel)
		if s.allow != nil && !s.allow(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		mu.Lock()
		index[name] = info.Size()
		mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("index assets in %s: %w", s.dir, err)
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()

	s.logger.Debug("assets indexed", zap.String("dir", s.dir), zap.Int("count", len(index)))
	return nil
}

// Names returns the indexed asset names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.index))
	for name := range s.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Asset reads a bundled asset by its slash-separated name.
func (s *Store) Asset(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.allow != nil && !s.allow(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotAllowed, name)
	}

	s.mu.RLock()
	_, ok := s.index[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", name, err)
	}
	return data, nil
}
