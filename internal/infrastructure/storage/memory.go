package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/erp/retail/internal/domain/shared"
)

// MemoryAttachmentStorage keeps attachments in process memory. Used in
// development and tests; nothing survives a restart.
type MemoryAttachmentStorage struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	contentType string
	data        []byte
}

// NewMemoryAttachmentStorage creates an empty storage
func NewMemoryAttachmentStorage() *MemoryAttachmentStorage {
	return &MemoryAttachmentStorage{objects: make(map[string]object)}
}

// Check always succeeds
func (m *MemoryAttachmentStorage) Check(context.Context) error {
	return nil
}

// Put stores a copy of data under key
func (m *MemoryAttachmentStorage) Put(_ context.Context, key, contentType string, data []byte) error {
	if key == "" {
		return errKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{contentType: contentType, data: append([]byte(nil), data...)}
	return nil
}

// Get returns a copy of the data stored under key
func (m *MemoryAttachmentStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("attachment %s not found", key))
	}
	return append([]byte(nil), obj.data...), nil
}

// Delete removes key
func (m *MemoryAttachmentStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// ContentType returns the content type recorded for key
func (m *MemoryAttachmentStorage) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].contentType
}

// Len returns the number of stored objects
func (m *MemoryAttachmentStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
