package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/rollcall/pkg/cryptox"
)

// Memory is a process-local Registry. Revoke takes the write lock, so any
// IsRevoked that starts after Revoke returns observes the entry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

var _ Registry = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]time.Time)}
}

func (m *Memory) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	fp := cryptox.FingerprintToken(token)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[fp]; !ok {
		m.entries[fp] = expiresAt
	}
	return nil
}

func (m *Memory) IsRevoked(_ context.Context, token string) (bool, error) {
	fp := cryptox.FingerprintToken(token)

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[fp]
	return ok, nil
}

func (m *Memory) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for fp, exp := range m.entries {
		if exp.Before(now) {
			delete(m.entries, fp)
			n++
		}
	}
	return n, nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
