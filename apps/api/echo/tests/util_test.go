package tests

import (
	"context"
	"io"
	"sync"
)

// memStore is a catalog.ThumbnailStore keeping uploads in memory.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStore) Upload(_ context.Context, object string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[object] = data
	return "https://cdn.test/" + object, nil
}

func (s *memStore) get(object string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[object]
	return data, ok
}
