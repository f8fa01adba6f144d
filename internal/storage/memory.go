package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/chunkvault/chunkvault/internal/common"
)

// InMemoryBackend is a map-backed Backend used in tests and local runs.
// Every credential reference authenticates into the same shared object
// space, with one namespace per reference.
type InMemoryBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	// GetCalls counts Get invocations per object id.
	GetCalls map[string]int
	// FailPuts makes every Put fail with common.ErrBackendIO.
	FailPuts bool
	// FailPutsAfter, when positive, lets that many Puts succeed and fails
	// the rest.
	FailPutsAfter int
	putCalls      int
	// DenyRefs lists credential references that fail authentication.
	DenyRefs map[string]bool
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		objects:  make(map[string][]byte),
		GetCalls: make(map[string]int),
		DenyRefs: make(map[string]bool),
	}
}

func (b *InMemoryBackend) Authenticate(ctx context.Context, credentialRef string) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DenyRefs[credentialRef] {
		return nil, fmt.Errorf("%w: denied for %s", common.ErrBackendAuth, credentialRef)
	}
	return &memSession{backend: b, ref: credentialRef}, nil
}

// Object returns the stored bytes for an object id, for test assertions.
func (b *InMemoryBackend) Object(objectID string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[objectID]
	return data, ok
}

// Remove drops an object, simulating external data loss.
func (b *InMemoryBackend) Remove(objectID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, objectID)
}

type memSession struct {
	backend *InMemoryBackend
	ref     string
}

func (s *memSession) Put(ctx context.Context, name string, data []byte) (string, error) {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putCalls++
	if b.FailPuts || (b.FailPutsAfter > 0 && b.putCalls > b.FailPutsAfter) {
		return "", fmt.Errorf("%w: put rejected", common.ErrBackendIO)
	}
	objectID := s.ref + "/" + uuid.New().String() + "_" + name
	b.objects[objectID] = append([]byte(nil), data...)
	return objectID, nil
}

func (s *memSession) Get(ctx context.Context, objectID string) ([]byte, error) {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	b.GetCalls[objectID]++
	data, ok := b.objects[objectID]
	if !ok {
		return nil, fmt.Errorf("%w: no such object %s", common.ErrBackendIO, objectID)
	}
	return append([]byte(nil), data...), nil
}

func (s *memSession) Delete(ctx context.Context, objectID string) error {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, objectID)
	return nil
}

func (s *memSession) Quota(ctx context.Context) (Quota, error) {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	var used int64
	prefix := s.ref + "/"
	for id, data := range b.objects {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			used += int64(len(data))
		}
	}
	return Quota{Used: used, Limit: 1 << 40}, nil
}
