package transcript

import (
	"context"
	"sync"

	"github.com/savaki/linebot-assistant/pkg/models"
)

// MemoryStore keeps transcripts in process memory. Used for local
// development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]models.Transcript
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]models.Transcript)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (models.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.items[Path(userID)]
	out := make(models.Transcript, len(t))
	copy(out, t)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, userID string, t models.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(models.Transcript, len(t))
	copy(cp, t)
	s.items[Path(userID)] = cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, Path(userID))
	return nil
}
