package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status tracks a participant's connection lifecycle. A participant whose
// socket drops becomes pending-disconnect and stays in the world until the
// next turn boundary removes them.
type Status string

const (
	StatusConnected         Status = "connected"
	StatusPendingDisconnect Status = "pending-disconnect"
)

// Participant is one registered client. The connection handle itself is
// owned by the listener; the registry only tracks identity and status.
type Participant struct {
	ID       string
	Name     string
	Status   Status
	JoinedAt time.Time
}

// Registry is the explicit roster owned by the session. Components receive
// it by reference; nothing reaches participants through ambient state.
type Registry struct {
	mu   sync.RWMutex
	max  int
	byID map[string]*Participant
	// order preserves join order for roster displays.
	order []string
}

func NewRegistry(max int) *Registry {
	return &Registry{
		max:  max,
		byID: map[string]*Participant{},
	}
}

// Add registers a new connected participant and assigns its id. Display
// names are unique among connected participants, case-insensitively; a
// name held by a departing participant is free to reuse.
func (r *Registry) Add(name string) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connectedCountLocked() >= r.max {
		return Participant{}, fmt.Errorf("%w: %d participants", ErrSessionFull, r.max)
	}
	for _, p := range r.byID {
		if p.Status == StatusConnected && strings.EqualFold(p.Name, name) {
			return Participant{}, fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
	}

	p := &Participant{
		ID:       uuid.NewString(),
		Name:     name,
		Status:   StatusConnected,
		JoinedAt: time.Now(),
	}
	r.byID[p.ID] = p
	r.order = append(r.order, p.ID)
	return *p, nil
}

// Get returns a copy of the participant, or false if absent.
func (r *Registry) Get(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// SetStatus updates a participant's status.
func (r *Registry) SetStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	p.Status = status
	return nil
}

// Remove drops a participant from the roster entirely.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// IsConnected reports whether the participant exists and is connected.
func (r *Registry) IsConnected(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	return ok && p.Status == StatusConnected
}

// Connected returns copies of the connected participants in join order.
func (r *Registry) Connected() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Participant
	for _, id := range r.order {
		if p := r.byID[id]; p != nil && p.Status == StatusConnected {
			out = append(out, *p)
		}
	}
	return out
}

// ConnectedCount returns the number of connected participants.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectedCountLocked()
}

func (r *Registry) connectedCountLocked() int {
	n := 0
	for _, p := range r.byID {
		if p.Status == StatusConnected {
			n++
		}
	}
	return n
}

// Names returns connected display names in join order.
func (r *Registry) Names() []string {
	conns := r.Connected()
	names := make([]string, len(conns))
	for i, p := range conns {
		names[i] = p.Name
	}
	return names
}
