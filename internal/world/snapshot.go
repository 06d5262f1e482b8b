package world

import (
	"slices"
	"sort"
)

// Snapshot is an immutable copy of the world at a turn boundary. It is what
// the narrator prompt is built from and what newly joined clients receive.
type Snapshot struct {
	Turn         int                    `json:"turn"`
	Locations    map[string]Location    `json:"locations"`
	Participants map[string]Participant `json:"participants"`
	Inventories  map[string][]Item      `json:"inventories"`
	Effects      map[string]Effect      `json:"effects"`
}

// DryRun applies the batch to a scratch copy of the snapshot. It returns the
// first rejection without touching the snapshot, giving the narrator parser
// its referential-integrity check before anything reaches the live store.
func (s *Snapshot) DryRun(muts []Mutation) error {
	st := s.toState()
	for i := range muts {
		if err := st.apply(&muts[i]); err != nil {
			return err
		}
	}
	return nil
}

// ParticipantsAt returns the participants in a location, ordered by name.
func (s *Snapshot) ParticipantsAt(locationID string) []Participant {
	var out []Participant
	for _, p := range s.Participants {
		if p.LocationID == locationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Snapshot) toState() *state {
	st := newState()
	for id, l := range s.Locations {
		cp := l
		cp.Connections = slices.Clone(l.Connections)
		st.locations[id] = &cp
	}
	for id, p := range s.Participants {
		cp := p
		st.participants[id] = &cp
	}
	for id, inv := range s.Inventories {
		st.inventories[id] = slices.Clone(inv)
		for _, it := range inv {
			st.itemOwners[it.InstanceID] = id
		}
	}
	for id, e := range s.Effects {
		cp := e
		st.effects[id] = &cp
	}
	return st
}

func (st *state) snapshot(turn int) *Snapshot {
	s := &Snapshot{
		Turn:         turn,
		Locations:    map[string]Location{},
		Participants: map[string]Participant{},
		Inventories:  map[string][]Item{},
		Effects:      map[string]Effect{},
	}
	for id, l := range st.locations {
		cp := *l
		cp.Connections = slices.Clone(l.Connections)
		s.Locations[id] = cp
	}
	for id, p := range st.participants {
		s.Participants[id] = *p
	}
	for id, inv := range st.inventories {
		s.Inventories[id] = slices.Clone(inv)
	}
	for id, e := range st.effects {
		s.Effects[id] = *e
	}
	return s
}
