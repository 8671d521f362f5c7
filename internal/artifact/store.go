// Package artifact keeps generated files in memory behind short-lived
// handles. A handle stays downloadable until it is released.
package artifact

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle addresses one stored artifact.
type Handle struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

type Artifact struct {
	Handle
	Data []byte
}

type Store struct {
	mu       sync.RWMutex
	items    map[string]*Artifact
	total    int64
	maxTotal int64
}

// NewStore returns an empty store. maxTotal <= 0 disables the byte cap.
func NewStore(maxTotal int64) *Store {
	return &Store{
		items:    make(map[string]*Artifact),
		maxTotal: maxTotal,
	}
}

func (s *Store) Put(name, contentType string, data []byte) (*Handle, error) {
	size := int64(len(data))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxTotal > 0 && s.total+size > s.maxTotal {
		return nil, fmt.Errorf("%w: %d bytes held, %d requested", ErrCapacity, s.total, size)
	}

	a := &Artifact{
		Handle: Handle{
			ID:          uuid.New().String(),
			Name:        name,
			ContentType: contentType,
			Size:        size,
			CreatedAt:   time.Now(),
		},
		Data: data,
	}
	s.items[a.ID] = a
	s.total += size

	h := a.Handle
	return &h, nil
}

func (s *Store) Open(id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// Release frees the artifact. Releasing an unknown id is a no-op and
// reports false.
func (s *Store) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items[id]
	if !ok {
		return false
	}
	delete(s.items, id)
	s.total -= a.Size
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Bytes reports the memory currently held by live artifacts.
func (s *Store) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
