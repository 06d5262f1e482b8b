package world

import (
	"sort"
	"sync"
)

// Store is the single source of truth for the world. All access goes through
// its methods. The turn scheduler is the only writer during normal play, but
// the admin console reads concurrently, so reads take the lock too.
type Store struct {
	mu   sync.RWMutex
	turn int
	st   *state
}

// NewStore creates an empty world at turn zero.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Turn returns the current turn counter.
func (s *Store) Turn() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turn
}

// AdvanceTurn increments the turn counter and returns the new value. The
// counter advances even for discarded turns so stale submissions can never
// replay into a later turn.
func (s *Store) AdvanceTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turn++
	return s.turn
}

// Reset discards all world content. The turn counter keeps its value so a
// session restarted on the same process can never reuse a turn number.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = newState()
}

// Apply performs a single mutation against the live state. It is the final
// integrity check even for pre-validated batches, because bootstrap mutations
// reach the store without going through the narrator parser.
func (s *Store) Apply(m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.apply(&m)
}

// ApplyBatch applies mutations in order, all-or-nothing. The batch runs
// against a clone first; a rejection leaves the live state untouched.
func (s *Store) ApplyBatch(muts []Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	for i := range muts {
		if err := next.apply(&muts[i]); err != nil {
			return err
		}
	}
	s.st = next
	return nil
}

// Snapshot returns a deep copy of the world at the current turn.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.snapshot(s.turn)
}

// ExpireEffects decrements every expiring effect and removes the ones that
// reach zero. The removals are returned as mutations so they ride along in
// the turn's delta, and as effects so the session can announce them.
func (s *Store) ExpireEffects() ([]Mutation, []Effect) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []Effect
	for _, e := range s.st.effects {
		if e.ExpiresIn == 0 {
			continue
		}
		e.ExpiresIn--
		if e.ExpiresIn == 0 {
			expired = append(expired, *e)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })

	muts := make([]Mutation, 0, len(expired))
	for _, e := range expired {
		delete(s.st.effects, e.ID)
		muts = append(muts, Mutation{Kind: MutateRemoveEffect, EffectID: e.ID})
	}
	return muts, expired
}

// GetParticipant returns a copy of the participant, or false if absent.
func (s *Store) GetParticipant(id string) (Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.participants[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Inventory returns a copy of a participant's items.
func (s *Store) Inventory(id string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv := s.st.inventories[id]
	out := make([]Item, len(inv))
	copy(out, inv)
	return out
}

// Stats summarizes the world for the operator console.
func (s *Store) Stats() (locations, participants, effects int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.locations), len(s.st.participants), len(s.st.effects)
}
