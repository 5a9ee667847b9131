package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the clients constructed at startup and tracks which one is
// active. Switching modes only changes the key lookup; clients are never
// rebuilt at request time.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	active  string
}

// NewRegistry creates a Registry from an initial set of clients and the mode
// to start on. Returns ErrUnknownMode if active names no client.
func NewRegistry(clients map[string]Client, active string) (*Registry, error) {
	cs := make(map[string]Client, len(clients))
	for k, v := range clients {
		cs[k] = v
	}
	r := &Registry{clients: cs, active: active}
	if _, ok := cs[active]; !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownMode, active, r.Modes())
	}
	return r, nil
}

// Active returns the current mode name and its client.
func (r *Registry) Active() (string, Client) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, r.clients[r.active]
}

// SetActive switches the active mode. Returns ErrUnknownMode and leaves the
// mode unchanged if no client is registered under it.
func (r *Registry) SetActive(mode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[mode]; !ok {
		return fmt.Errorf("%w: %q (available: %v)", ErrUnknownMode, mode, r.modesLocked())
	}
	r.active = mode
	return nil
}

// Modes returns the registered mode names, sorted for stable output.
func (r *Registry) Modes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modesLocked()
}

func (r *Registry) modesLocked() []string {
	out := make([]string, 0, len(r.clients))
	for k := range r.clients {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
