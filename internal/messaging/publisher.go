package messaging

import "fmt"

// BroadcastSubject carries frames addressed to every connected client. A
// single publisher connection feeds it, so all subscribers observe the same
// frame order.
const BroadcastSubject = "session.broadcast"

// ParticipantSubject returns the subject carrying frames addressed to one
// participant only.
func ParticipantSubject(id string) string {
	return fmt.Sprintf("participant.%s", id)
}

// Publisher is the subset of NatsServer the session needs to send frames.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Subscriber provides the ability to subscribe to message subjects.
type Subscriber interface {
	Subscribe(subject string, handler func(data []byte)) (unsubscribe func(), err error)
}
