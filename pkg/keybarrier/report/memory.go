package report

import (
	"sort"
	"sync"
)

// MemoryStore keeps reports in process memory.
// Saved reports are stored encoded, so later changes to a *Report passed to
// Save do not leak into the store.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string][]byte
	infos   map[string]Info
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string][]byte),
		infos:   make(map[string]Info),
	}
}

// Save implements Store.
func (s *MemoryStore) Save(r *Report) error {
	if err := validate(r); err != nil {
		return err
	}
	data, err := r.Marshal()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.reports[r.ID] = data
	s.infos[r.ID] = r.Info()
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	data, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return Unmarshal(data)
}

// List implements Store.
func (s *MemoryStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	infos := make([]Info, 0, len(s.infos))
	for _, info := range s.infos {
		infos = append(infos, info)
	}
	sortInfos(infos)
	return infos, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	delete(s.reports, id)
	delete(s.infos, id)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.reports = nil
	s.infos = nil
	return nil
}

// sortInfos orders infos by start time, then ID for a stable order.
func sortInfos(infos []Info) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].StartedAt.Before(infos[j].StartedAt)
		}
		return infos[i].ID < infos[j].ID
	})
}
