package sandbox

import (
	"slices"
	"sync"
)

// Manager owns the preview surfaces, one per id. Callers build ids that
// include the user so surfaces are never shared between users.
type Manager struct {
	runner *Runner

	mu       sync.Mutex
	surfaces map[string]*Surface
}

func NewManager(runner *Runner) *Manager {
	return &Manager{
		runner:   runner,
		surfaces: make(map[string]*Surface),
	}
}

// SurfaceID joins a user and a surface name into a manager key.
func SurfaceID(userID, name string) string {
	if name == "" {
		name = "default"
	}
	return userID + "/" + name
}

// Surface returns the surface for id, creating it on first use.
func (m *Manager) Surface(id string) *Surface {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sf, ok := m.surfaces[id]; ok {
		return sf
	}
	sf := NewSurface(id, m.runner)
	m.surfaces[id] = sf
	return sf
}

// Lookup returns an existing surface without creating one.
func (m *Manager) Lookup(id string) (*Surface, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sf, ok := m.surfaces[id]
	return sf, ok
}

// Drop closes and forgets the surface for id.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	sf, ok := m.surfaces[id]
	delete(m.surfaces, id)
	m.mu.Unlock()

	if ok {
		sf.Close()
	}
}

func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.surfaces))
	for id := range m.surfaces {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close drops every surface.
func (m *Manager) Close() {
	for _, id := range m.IDs() {
		m.Drop(id)
	}
}
