package memory

import (
	"context"
	"sync"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/repository"
)

// Area is a tab-scoped key-value area with browser session storage
// semantics: string items, lost with the process.
type Area struct {
	mu    sync.RWMutex
	items map[string]string
}

func newArea() *Area {
	return &Area{items: make(map[string]string)}
}

// GetItem returns the value stored under key.
func (a *Area) GetItem(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.items[key]
	return v, ok
}

// SetItem stores value under key.
func (a *Area) SetItem(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items[key] = value
}

// RemoveItem deletes key if present.
func (a *Area) RemoveItem(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.items, key)
}

// Len returns the number of stored items.
func (a *Area) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// SessionStorage keeps one Area per tab in process memory.
type SessionStorage struct {
	baseName string

	mu    sync.Mutex
	areas map[string]*Area
}

// NewSessionStorage creates an in-memory storage using base as the slot base name.
func NewSessionStorage(base string) *SessionStorage {
	return &SessionStorage{
		baseName: base,
		areas:    make(map[string]*Area),
	}
}

// Area returns the raw area of tabID, creating it on first use.
func (s *SessionStorage) Area(tabID string) *Area {
	s.mu.Lock()
	defer s.mu.Unlock()

	area, ok := s.areas[tabID]
	if !ok {
		area = newArea()
		s.areas[tabID] = area
	}
	return area
}

// Scope implements repository.SessionStorage.
func (s *SessionStorage) Scope(tabID string) repository.SessionStore {
	ct, key, nonce := repository.SlotNames(s.baseName)
	return &sessionStore{
		area:          s.Area(tabID),
		ciphertextKey: ct,
		keyKey:        key,
		nonceKey:      nonce,
	}
}

type sessionStore struct {
	area          *Area
	ciphertextKey string
	keyKey        string
	nonceKey      string
}

func (s *sessionStore) Put(_ context.Context, material domain.CipherMaterial) error {
	if !material.Complete() {
		return domain.ErrInvalidPayload
	}

	s.area.mu.Lock()
	defer s.area.mu.Unlock()
	s.area.items[s.ciphertextKey] = material.Ciphertext
	s.area.items[s.keyKey] = material.Key
	s.area.items[s.nonceKey] = material.Nonce
	return nil
}

func (s *sessionStore) Read(_ context.Context) (domain.CipherMaterial, error) {
	s.area.mu.RLock()
	material := domain.CipherMaterial{
		Ciphertext: s.area.items[s.ciphertextKey],
		Key:        s.area.items[s.keyKey],
		Nonce:      s.area.items[s.nonceKey],
	}
	s.area.mu.RUnlock()

	if !material.Complete() {
		return domain.CipherMaterial{}, domain.ErrMissingSession
	}
	return material, nil
}

func (s *sessionStore) Clear(_ context.Context) error {
	s.area.mu.Lock()
	defer s.area.mu.Unlock()
	delete(s.area.items, s.ciphertextKey)
	delete(s.area.items, s.keyKey)
	delete(s.area.items, s.nonceKey)
	return nil
}

var _ repository.SessionStorage = (*SessionStorage)(nil)

// Reset drops every tab area and returns how many of them held items.
// Sessions do not outlive the process.
func (s *SessionStorage) Reset() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var live int
	for _, area := range s.areas {
		if area.Len() > 0 {
			live++
		}
	}
	s.areas = make(map[string]*Area)
	return live
}
