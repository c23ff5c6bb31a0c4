package store

import (
	"context"
	"sync"
)

// MemoryRepository keeps values in process memory. MaxBytes bounds the total size of all
// values, which makes quota behaviour reproducible in tests.
type MemoryRepository struct {
	MaxBytes int64

	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryRepository returns an empty repository limited to maxBytes (0 means unlimited).
func NewMemoryRepository(maxBytes int64) *MemoryRepository {
	return &MemoryRepository{MaxBytes: maxBytes, values: make(map[string][]byte)}
}

func (r *MemoryRepository) Get(_ context.Context, key string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (r *MemoryRepository) Put(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values == nil {
		r.values = make(map[string][]byte)
	}
	total := len(value)
	for k, v := range r.values {
		if k != key {
			total += len(v)
		}
	}
	if err := checkQuota(r.MaxBytes, total); err != nil {
		return err
	}
	r.values[key] = append([]byte(nil), value...)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}
