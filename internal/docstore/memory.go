package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"fleetline/internal/domain"
)

// MemoryStore is an in-process Store used in tests and as the default
// driver when no backend is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	out := make(json.RawMessage, len(doc))
	copy(out, doc)
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc any, mode SetMode) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]json.RawMessage)
	}

	if mode == Merge {
		merged, err := mergeDocs(s.docs[collection][id], data)
		if err != nil {
			return fmt.Errorf("merge %s/%s: %w", collection, id, err)
		}
		data = merged
	}

	s.docs[collection][id] = data
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[collection], id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	return s.scan(collection, func([]byte) bool { return true })
}

func (s *MemoryStore) QueryEquals(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	return s.scan(collection, func(doc []byte) bool { return fieldEquals(doc, field, value) })
}

func (s *MemoryStore) QueryContains(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	return s.scan(collection, func(doc []byte) bool { return fieldContains(doc, field, value) })
}

func (s *MemoryStore) scan(collection string, match func([]byte) bool) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.docs[collection]))
	for id := range s.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var result []json.RawMessage
	for _, id := range ids {
		doc := s.docs[collection][id]
		if match(doc) {
			out := make(json.RawMessage, len(doc))
			copy(out, doc)
			result = append(result, out)
		}
	}
	return result, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
