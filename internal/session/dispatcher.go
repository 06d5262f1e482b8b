package session

import (
	"fmt"

	"github.com/pixil98/go-storyteller/internal/messaging"
	"github.com/pixil98/go-storyteller/internal/protocol"
	"github.com/pixil98/go-storyteller/internal/world"
)

// Dispatcher turns protocol messages into published frames. Messages are
// marshaled once and fanned out through the broker, so every subscriber
// sees identical bytes in identical order.
type Dispatcher struct {
	pub messaging.Publisher
}

func NewDispatcher(pub messaging.Publisher) *Dispatcher {
	return &Dispatcher{pub: pub}
}

func (d *Dispatcher) publish(subject string, msg protocol.Message) error {
	data, err := protocol.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", msg.Kind(), err)
	}
	if err := d.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s: %w", msg.Kind(), err)
	}
	return nil
}

// Broadcast sends a message to every connected client.
func (d *Dispatcher) Broadcast(msg protocol.Message) error {
	return d.publish(messaging.BroadcastSubject, msg)
}

// Send addresses a message to a single participant.
func (d *Dispatcher) Send(participantID string, msg protocol.Message) error {
	return d.publish(messaging.ParticipantSubject(participantID), msg)
}

// Delta broadcasts a completed turn's mutation batch.
func (d *Dispatcher) Delta(turn int, muts []world.Mutation) error {
	return d.Broadcast(&protocol.Delta{Turn: turn, Mutations: muts})
}

// Notice broadcasts narrative or status text to every client.
func (d *Dispatcher) Notice(text string) error {
	return d.Broadcast(&protocol.Notice{Text: text})
}

// NoticeTo sends status text to one participant.
func (d *Dispatcher) NoticeTo(participantID, text string) error {
	return d.Send(participantID, &protocol.Notice{Text: text})
}

// Roster broadcasts the current participant names.
func (d *Dispatcher) Roster(names []string) error {
	return d.Broadcast(&protocol.Roster{Names: names})
}

// SnapshotTo sends the full world state to one participant.
func (d *Dispatcher) SnapshotTo(participantID string, snap *world.Snapshot) error {
	return d.Send(participantID, &protocol.Snapshot{State: snap})
}

// ErrorTo sends an error message to one participant.
func (d *Dispatcher) ErrorTo(participantID, code, message string) error {
	return d.Send(participantID, &protocol.Error{Code: code, Message: message})
}
