package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-storyteller/internal/world"
)

// Kind discriminates wire messages.
type Kind string

const (
	// Client → server.
	KindJoin    Kind = "join"
	KindAction  Kind = "action"
	KindCommand Kind = "command"

	// Server → client.
	KindWelcome  Kind = "welcome"
	KindSnapshot Kind = "snapshot"
	KindDelta    Kind = "delta"
	KindNotice   Kind = "notice"
	KindError    Kind = "error"
	KindRoster   Kind = "roster"
)

// Error codes returned to clients. Codes are stable protocol surface;
// messages are advisory text.
const (
	CodeStaleTurn          = "stale_turn"
	CodeUnknownParticipant = "unknown_participant"
	CodeNameTaken          = "name_taken"
	CodeSessionFull        = "session_full"
	CodeBadMessage         = "bad_message"
	CodeNotAllowed         = "not_allowed"
)

// Message is any frame payload that knows its own kind.
type Message interface {
	Kind() Kind
}

// Join is the first frame a client sends.
type Join struct {
	Name string `json:"name"`
}

// Action submits free-form input for a specific turn.
type Action struct {
	Turn int    `json:"turn"`
	Text string `json:"text"`
}

// Command carries slash commands such as /start and /end.
type Command struct {
	Name string `json:"name"`
}

// Welcome acknowledges a join with the assigned participant id.
type Welcome struct {
	ParticipantID string `json:"participant_id"`
}

// Snapshot carries the full world state, sent on join and on demand.
type Snapshot struct {
	State *world.Snapshot `json:"state"`
}

// Delta carries one turn's ordered mutations.
type Delta struct {
	Turn      int              `json:"turn"`
	Mutations []world.Mutation `json:"mutations"`
}

// Notice is narration or system text addressed to players.
type Notice struct {
	Text string `json:"text"`
}

// Error reports a protocol-level rejection to the offending client only.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Roster lists the display names of connected participants in join order.
type Roster struct {
	Names []string `json:"names"`
}

func (Join) Kind() Kind     { return KindJoin }
func (Action) Kind() Kind   { return KindAction }
func (Command) Kind() Kind  { return KindCommand }
func (Welcome) Kind() Kind  { return KindWelcome }
func (Snapshot) Kind() Kind { return KindSnapshot }
func (Delta) Kind() Kind    { return KindDelta }
func (Notice) Kind() Kind   { return KindNotice }
func (Error) Kind() Kind    { return KindError }
func (Roster) Kind() Kind   { return KindRoster }

type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Marshal wraps a message in its envelope.
func Marshal(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s payload: %w", msg.Kind(), err)
	}
	return json.Marshal(envelope{Kind: msg.Kind(), Payload: payload})
}

// Unmarshal decodes an envelope into its concrete message type.
func Unmarshal(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}

	var msg Message
	switch env.Kind {
	case KindJoin:
		msg = &Join{}
	case KindAction:
		msg = &Action{}
	case KindCommand:
		msg = &Command{}
	case KindWelcome:
		msg = &Welcome{}
	case KindSnapshot:
		msg = &Snapshot{}
	case KindDelta:
		msg = &Delta{}
	case KindNotice:
		msg = &Notice{}
	case KindError:
		msg = &Error{}
	case KindRoster:
		msg = &Roster{}
	default:
		return nil, fmt.Errorf("unknown message kind %q", env.Kind)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", env.Kind, err)
		}
	}
	return msg, nil
}
