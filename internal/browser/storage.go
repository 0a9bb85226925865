package browser

import "sync"

// LocalStorage is one tab's key/value storage. It is safe for concurrent
// use.
type LocalStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewLocalStorage() *LocalStorage {
	return &LocalStorage{items: make(map[string]string)}
}

func (s *LocalStorage) GetItem(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *LocalStorage) SetItem(key, value string) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

func (s *LocalStorage) RemoveItem(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len returns the number of stored keys.
func (s *LocalStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
