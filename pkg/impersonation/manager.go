// Package impersonation tracks addresses whose transactions are submitted
// without a real signature.
package impersonation

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// Manager tracks impersonated accounts.
type Manager struct {
	impersonated    mapset.Set[common.Address]
	autoImpersonate bool

	mu sync.RWMutex
}

// NewManager creates a new impersonation manager.
func NewManager(autoImpersonate bool) *Manager {
	return &Manager{
		impersonated:    mapset.NewThreadUnsafeSet[common.Address](),
		autoImpersonate: autoImpersonate,
	}
}

// Impersonate enables impersonation for an address. It reports whether the
// address was newly added.
func (m *Manager) Impersonate(addr common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.impersonated.Add(addr)
}

// StopImpersonating disables impersonation for an address.
func (m *Manager) StopImpersonating(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.impersonated.Remove(addr)
}

// SetAutoImpersonate enables or disables impersonation of every address.
func (m *Manager) SetAutoImpersonate(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.autoImpersonate = enabled
}

// IsAutoImpersonate returns true if auto-impersonation is enabled.
func (m *Manager) IsAutoImpersonate() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.autoImpersonate
}

// IsImpersonated returns true if transactions from addr skip signing.
func (m *Manager) IsImpersonated(addr common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.autoImpersonate || m.impersonated.Contains(addr)
}

// Accounts returns the explicitly impersonated addresses.
func (m *Manager) Accounts() []common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.impersonated.ToSlice()
}

// Clear removes every impersonated address and disables auto-impersonation.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.impersonated.Clear()
	m.autoImpersonate = false
}
