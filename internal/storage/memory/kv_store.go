package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

// keyValueStoreInMemory — key-value хранилище состояния в памяти процесса.
type keyValueStoreInMemory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewKeyValueStore возвращает in-memory хранилище для локального запуска и тестов.
func NewKeyValueStore() domain.KeyValueStore {
	return &keyValueStoreInMemory{values: make(map[string][]byte)}
}

// Get возвращает копию значения или ErrKeyNotFound.
func (s *keyValueStoreInMemory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Put сохраняет копию значения.
func (s *keyValueStoreInMemory) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}

// PutMany сохраняет все значения под одной блокировкой.
func (s *keyValueStoreInMemory) PutMany(ctx context.Context, values map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range values {
		s.values[key] = append([]byte(nil), value...)
	}
	return nil
}

var _ domain.KeyValueStore = (*keyValueStoreInMemory)(nil)
