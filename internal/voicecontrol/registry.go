package voicecontrol

import (
	"strings"
	"sync"
)

// Registry tracks live parent measures so children can find them at creation time.
type Registry struct {
	parents []*Measure
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a parent. Duplicate names are allowed; the first one wins on Resolve.
func (r *Registry) Register(m *Measure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parents = append(r.parents, m)
}

// Resolve finds a top-level parent by case-insensitive name within scope.
func (r *Registry) Resolve(name string, scope Scope) (*Measure, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.parents {
		if m.scope != scope || m.parent != nil || m.State() == StateReleased {
			continue
		}
		if strings.EqualFold(m.name, name) {
			return m, true
		}
	}
	return nil, false
}

// Unregister removes m by identity. Unknown measures are ignored.
func (r *Registry) Unregister(m *Measure) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cur := range r.parents {
		if cur == m {
			r.parents = append(r.parents[:i], r.parents[i+1:]...)
			return
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parents)
}
