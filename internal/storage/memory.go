package storage

import (
	"context"
	"sync"
)

// Memory keeps the items of all sessions in process memory. It is lost on restart.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]map[string]string
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]map[string]string)}
}

// Session returns the storage of the session with the given id.
func (m *Memory) Session(id string) Storage {
	return &memorySession{memory: m, id: id}
}

// EndSession deletes all items of the session.
func (m *Memory) EndSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

type memorySession struct {
	memory *Memory
	id     string
}

func (s *memorySession) GetItem(_ context.Context, name string) (string, bool, error) {
	s.memory.mu.Lock()
	defer s.memory.mu.Unlock()
	value, ok := s.memory.sessions[s.id][name]
	return value, ok, nil
}

func (s *memorySession) SetItem(_ context.Context, name string, value string) error {
	s.memory.mu.Lock()
	defer s.memory.mu.Unlock()
	items, ok := s.memory.sessions[s.id]
	if !ok {
		items = make(map[string]string)
		s.memory.sessions[s.id] = items
	}
	items[name] = value
	return nil
}

func (s *memorySession) RemoveItem(_ context.Context, name string) error {
	s.memory.mu.Lock()
	defer s.memory.mu.Unlock()
	delete(s.memory.sessions[s.id], name)
	return nil
}
