package world

// Location is a shared space participants can occupy. Connections holds the
// ids of directly reachable locations and is maintained only through
// connect/disconnect mutations.
type Location struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Connections []string `json:"connections,omitempty"`
}

// Item is a single carried object instance.
type Item struct {
	InstanceID  string `json:"instance_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Effect is a condition scoped to exactly one participant or one location.
// ExpiresIn counts remaining turns; zero means the effect never expires.
type Effect struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
	LocationID    string `json:"location_id,omitempty"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// Participant is the world-visible portion of a connected player. Connection
// handles and status live in the session registry, not here.
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LocationID string `json:"location_id,omitempty"`
}
