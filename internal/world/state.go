package world

import (
	"fmt"
	"slices"
)

// state is the raw entity graph. Store wraps it with locking; batch
// application clones it so a rejected batch leaves nothing behind.
type state struct {
	locations    map[string]*Location
	participants map[string]*Participant
	inventories  map[string][]Item
	effects      map[string]*Effect
	// itemOwners maps item instance ids to the owning participant id.
	itemOwners map[string]string
}

func newState() *state {
	return &state{
		locations:    map[string]*Location{},
		participants: map[string]*Participant{},
		inventories:  map[string][]Item{},
		effects:      map[string]*Effect{},
		itemOwners:   map[string]string{},
	}
}

func (st *state) clone() *state {
	next := newState()
	for id, l := range st.locations {
		cp := *l
		cp.Connections = slices.Clone(l.Connections)
		next.locations[id] = &cp
	}
	for id, p := range st.participants {
		cp := *p
		next.participants[id] = &cp
	}
	for id, inv := range st.inventories {
		next.inventories[id] = slices.Clone(inv)
	}
	for id, e := range st.effects {
		cp := *e
		next.effects[id] = &cp
	}
	for item, owner := range st.itemOwners {
		next.itemOwners[item] = owner
	}
	return next
}

// apply performs one structurally valid mutation, enforcing referential
// integrity. Errors wrap the sentinel for the failing reference so callers
// can classify rejections.
func (st *state) apply(m *Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}

	switch m.Kind {
	case MutateSetLocation:
		if existing, ok := st.locations[m.Location.ID]; ok {
			existing.Name = m.Location.Name
			existing.Description = m.Location.Description
			return nil
		}
		cp := *m.Location
		st.locations[cp.ID] = &cp

	case MutateDeleteLocation:
		loc, ok := st.locations[m.LocationID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLocation, m.LocationID)
		}
		for _, p := range st.participants {
			if p.LocationID == m.LocationID {
				return fmt.Errorf("%w: participant %s is in %s", ErrLocationOccupied, p.ID, m.LocationID)
			}
		}
		for _, e := range st.effects {
			if e.LocationID == m.LocationID {
				return fmt.Errorf("%w: effect %s is scoped to %s", ErrLocationOccupied, e.ID, m.LocationID)
			}
		}
		for _, other := range loc.Connections {
			st.sever(other, m.LocationID)
		}
		delete(st.locations, m.LocationID)

	case MutateConnectLocations:
		a, ok := st.locations[m.LocationID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLocation, m.LocationID)
		}
		b, ok := st.locations[m.TargetID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLocation, m.TargetID)
		}
		a.Connections = addConnection(a.Connections, m.TargetID)
		b.Connections = addConnection(b.Connections, m.LocationID)

	case MutateDisconnectLocations:
		if _, ok := st.locations[m.LocationID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLocation, m.LocationID)
		}
		if _, ok := st.locations[m.TargetID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLocation, m.TargetID)
		}
		st.sever(m.LocationID, m.TargetID)
		st.sever(m.TargetID, m.LocationID)

	case MutateMoveParticipant:
		p, ok := st.participants[m.ParticipantID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParticipant, m.ParticipantID)
		}
		if _, ok := st.locations[m.LocationID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLocation, m.LocationID)
		}
		p.LocationID = m.LocationID

	case MutateGiveItem:
		if _, ok := st.participants[m.ParticipantID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParticipant, m.ParticipantID)
		}
		if owner, ok := st.itemOwners[m.Item.InstanceID]; ok {
			return fmt.Errorf("%w: %s already held by %s", ErrDuplicateItem, m.Item.InstanceID, owner)
		}
		st.inventories[m.ParticipantID] = append(st.inventories[m.ParticipantID], *m.Item)
		st.itemOwners[m.Item.InstanceID] = m.ParticipantID

	case MutateTakeItem:
		if _, ok := st.participants[m.ParticipantID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParticipant, m.ParticipantID)
		}
		owner, ok := st.itemOwners[m.ItemID]
		if !ok || owner != m.ParticipantID {
			return fmt.Errorf("%w: %s not held by %s", ErrUnknownItem, m.ItemID, m.ParticipantID)
		}
		inv := st.inventories[owner]
		st.inventories[owner] = slices.DeleteFunc(inv, func(it Item) bool {
			return it.InstanceID == m.ItemID
		})
		delete(st.itemOwners, m.ItemID)

	case MutateSetEffect:
		if m.Effect.ParticipantID != "" {
			if _, ok := st.participants[m.Effect.ParticipantID]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownParticipant, m.Effect.ParticipantID)
			}
		}
		if m.Effect.LocationID != "" {
			if _, ok := st.locations[m.Effect.LocationID]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownLocation, m.Effect.LocationID)
			}
		}
		cp := *m.Effect
		st.effects[cp.ID] = &cp

	case MutateRemoveEffect:
		if _, ok := st.effects[m.EffectID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEffect, m.EffectID)
		}
		delete(st.effects, m.EffectID)

	case MutateAddParticipant:
		if _, ok := st.participants[m.Participant.ID]; ok {
			return fmt.Errorf("%w: %s", ErrParticipantExists, m.Participant.ID)
		}
		if m.Participant.LocationID != "" {
			if _, ok := st.locations[m.Participant.LocationID]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownLocation, m.Participant.LocationID)
			}
		}
		cp := *m.Participant
		st.participants[cp.ID] = &cp

	case MutateRemoveParticipant:
		if _, ok := st.participants[m.ParticipantID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParticipant, m.ParticipantID)
		}
		for _, e := range st.effects {
			if e.ParticipantID == m.ParticipantID {
				delete(st.effects, e.ID)
			}
		}
		for _, it := range st.inventories[m.ParticipantID] {
			delete(st.itemOwners, it.InstanceID)
		}
		delete(st.inventories, m.ParticipantID)
		delete(st.participants, m.ParticipantID)
	}

	return nil
}

func (st *state) sever(fromID, removeID string) {
	loc, ok := st.locations[fromID]
	if !ok {
		return
	}
	loc.Connections = slices.DeleteFunc(loc.Connections, func(id string) bool {
		return id == removeID
	})
}

func addConnection(conns []string, id string) []string {
	if slices.Contains(conns, id) {
		return conns
	}
	conns = append(conns, id)
	slices.Sort(conns)
	return conns
}
