package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/patrickmn/go-cache"
)

// KeyValueStore keeps values in a go-cache and snapshots the whole cache to
// a file after every write. An empty file path keeps it in memory only.
type KeyValueStore struct {
	cache    *cache.Cache
	filePath string
	saveMu   sync.Mutex
}

func NewKeyValueStore(filePath string) (*KeyValueStore, error) {
	// Entries never expire and no janitor is needed.
	c := cache.New(cache.NoExpiration, 0)

	if filePath != "" {
		if err := c.LoadFile(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load local store %s: %w", filePath, err)
		}
	}

	return &KeyValueStore{
		cache:    c,
		filePath: filePath,
	}, nil
}

func (s *KeyValueStore) Get(_ context.Context, key string) (string, bool, error) {
	x, found := s.cache.Get(key)
	if !found {
		return "", false, nil
	}
	value, ok := x.(string)
	if !ok {
		return "", false, fmt.Errorf("local store key %s holds %T", key, x)
	}
	return value, true, nil
}

func (s *KeyValueStore) Set(_ context.Context, key, value string) error {
	s.cache.Set(key, value, cache.NoExpiration)
	return s.persist()
}

func (s *KeyValueStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return s.persist()
}

func (s *KeyValueStore) persist() error {
	if s.filePath == "" {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if dir := filepath.Dir(s.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create local store dir: %w", err)
		}
	}
	if err := s.cache.SaveFile(s.filePath); err != nil {
		return fmt.Errorf("save local store %s: %w", s.filePath, err)
	}
	return nil
}
