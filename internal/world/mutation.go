package world

import "fmt"

// MutationKind identifies one of the closed set of state change variants.
type MutationKind string

const (
	MutateSetLocation         MutationKind = "set_location"
	MutateDeleteLocation      MutationKind = "delete_location"
	MutateConnectLocations    MutationKind = "connect_locations"
	MutateDisconnectLocations MutationKind = "disconnect_locations"
	MutateMoveParticipant     MutationKind = "move_participant"
	MutateGiveItem            MutationKind = "give_item"
	MutateTakeItem            MutationKind = "take_item"
	MutateSetEffect           MutationKind = "set_effect"
	MutateRemoveEffect        MutationKind = "remove_effect"

	// Bootstrap-only kinds. The narrator parser rejects these; they are
	// produced by the session when participants enter or leave the world.
	MutateAddParticipant    MutationKind = "add_participant"
	MutateRemoveParticipant MutationKind = "remove_participant"
)

// Mutation is one atomic change to the world. Which fields are required
// depends on Kind; Validate checks the shape before any state is touched.
type Mutation struct {
	Kind MutationKind `json:"kind"`

	Location   *Location `json:"location,omitempty"`
	LocationID string    `json:"location_id,omitempty"`
	// TargetID is the second location for connect/disconnect kinds.
	TargetID string `json:"target_id,omitempty"`

	Participant   *Participant `json:"participant,omitempty"`
	ParticipantID string       `json:"participant_id,omitempty"`

	Item   *Item  `json:"item,omitempty"`
	ItemID string `json:"item_id,omitempty"`

	Effect   *Effect `json:"effect,omitempty"`
	EffectID string  `json:"effect_id,omitempty"`
}

// Bootstrap reports whether the mutation kind is reserved for internal use.
func (m *Mutation) Bootstrap() bool {
	return m.Kind == MutateAddParticipant || m.Kind == MutateRemoveParticipant
}

// Validate checks the mutation is structurally complete for its kind. It does
// not check references against any world state; that happens on apply.
func (m *Mutation) Validate() error {
	switch m.Kind {
	case MutateSetLocation:
		if m.Location == nil || m.Location.ID == "" || m.Location.Name == "" {
			return fmt.Errorf("%w: %s requires a location with id and name", ErrMalformedMutation, m.Kind)
		}
		if len(m.Location.Connections) > 0 {
			return fmt.Errorf("%w: %s may not set connections directly", ErrMalformedMutation, m.Kind)
		}
	case MutateDeleteLocation:
		if m.LocationID == "" {
			return fmt.Errorf("%w: %s requires location_id", ErrMalformedMutation, m.Kind)
		}
	case MutateConnectLocations, MutateDisconnectLocations:
		if m.LocationID == "" || m.TargetID == "" {
			return fmt.Errorf("%w: %s requires location_id and target_id", ErrMalformedMutation, m.Kind)
		}
		if m.LocationID == m.TargetID {
			return fmt.Errorf("%w: %s endpoints must differ", ErrMalformedMutation, m.Kind)
		}
	case MutateMoveParticipant:
		if m.ParticipantID == "" || m.LocationID == "" {
			return fmt.Errorf("%w: %s requires participant_id and location_id", ErrMalformedMutation, m.Kind)
		}
	case MutateGiveItem:
		if m.ParticipantID == "" || m.Item == nil || m.Item.InstanceID == "" || m.Item.Name == "" {
			return fmt.Errorf("%w: %s requires participant_id and an item with instance_id and name", ErrMalformedMutation, m.Kind)
		}
	case MutateTakeItem:
		if m.ParticipantID == "" || m.ItemID == "" {
			return fmt.Errorf("%w: %s requires participant_id and item_id", ErrMalformedMutation, m.Kind)
		}
	case MutateSetEffect:
		if m.Effect == nil || m.Effect.ID == "" || m.Effect.Name == "" {
			return fmt.Errorf("%w: %s requires an effect with id and name", ErrMalformedMutation, m.Kind)
		}
		if (m.Effect.ParticipantID == "") == (m.Effect.LocationID == "") {
			return fmt.Errorf("%w: effect must be scoped to exactly one participant or location", ErrMalformedMutation)
		}
		if m.Effect.ExpiresIn < 0 {
			return fmt.Errorf("%w: effect expires_in may not be negative", ErrMalformedMutation)
		}
	case MutateRemoveEffect:
		if m.EffectID == "" {
			return fmt.Errorf("%w: %s requires effect_id", ErrMalformedMutation, m.Kind)
		}
	case MutateAddParticipant:
		if m.Participant == nil || m.Participant.ID == "" || m.Participant.Name == "" {
			return fmt.Errorf("%w: %s requires a participant with id and name", ErrMalformedMutation, m.Kind)
		}
	case MutateRemoveParticipant:
		if m.ParticipantID == "" {
			return fmt.Errorf("%w: %s requires participant_id", ErrMalformedMutation, m.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedMutation, m.Kind)
	}
	return nil
}
