package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pixil98/go-storyteller/internal/messaging"
	"github.com/pixil98/go-storyteller/internal/protocol"
	"github.com/pixil98/go-storyteller/internal/session"
)

// handshakeTimeout bounds how long a fresh connection may sit before
// sending its join frame.
const handshakeTimeout = 30 * time.Second

// ConnectionManager runs the framed game protocol over accepted
// connections: join handshake, inbound action loop, and the outbound
// write loop fed by broker subscriptions.
type ConnectionManager struct {
	sess *session.Session
	sub  messaging.Subscriber
}

func NewConnectionManager(sess *session.Session, sub messaging.Subscriber) *ConnectionManager {
	return &ConnectionManager{
		sess: sess,
		sub:  sub,
	}
}

// AcceptConnection owns the connection until the participant leaves or the
// transport fails. Each connection is independent; an error here never
// touches another participant.
func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	cw := &connWriter{conn: conn}

	// Outbound: the broker delivers pre-marshalled envelopes; frame and
	// forward. The broadcast subscription opens before the join so the
	// client misses nothing from its own join notice onward.
	forward := func(data []byte) {
		if err := cw.writeRaw(data); err != nil {
			conn.Close()
		}
	}
	unsubBroadcast, err := m.sub.Subscribe(messaging.BroadcastSubject, forward)
	if err != nil {
		slog.ErrorContext(ctx, "subscribing broadcast", "error", err)
		return
	}
	defer unsubBroadcast()

	p, err := m.handshake(conn, cw)
	if err != nil {
		slog.WarnContext(ctx, "join handshake", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	defer m.sess.Leave(p.ID)

	slog.InfoContext(ctx, "participant joined", "name", p.Name, "id", p.ID)

	unsubDirect, err := m.sub.Subscribe(messaging.ParticipantSubject(p.ID), forward)
	if err != nil {
		slog.ErrorContext(ctx, "subscribing participant subject", "error", err)
		return
	}
	defer unsubDirect()

	m.sess.BindCloser(p.ID, func() { conn.Close() })

	// Drop the connection when the server shuts down.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	m.readLoop(ctx, conn, cw, p)
	slog.InfoContext(ctx, "participant disconnected", "name", p.Name, "id", p.ID)
}

// handshake reads the join frame and registers the participant, answering
// with a welcome and the current world snapshot.
func (m *ConnectionManager) handshake(conn net.Conn, cw *connWriter) (session.Participant, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	msg, err := protocol.ReadFrame(conn)
	if err != nil {
		return session.Participant{}, fmt.Errorf("reading join frame: %w", err)
	}
	join, ok := msg.(*protocol.Join)
	if !ok || join.Name == "" {
		cw.write(&protocol.Error{Code: protocol.CodeBadMessage, Message: "expected a join frame with a name"})
		return session.Participant{}, fmt.Errorf("expected join, got %s", msg.Kind())
	}

	p, snap, err := m.sess.Join(join.Name)
	if err != nil {
		cw.write(&protocol.Error{Code: joinErrorCode(err), Message: err.Error()})
		return session.Participant{}, fmt.Errorf("joining as %q: %w", join.Name, err)
	}

	if err := cw.write(&protocol.Welcome{ParticipantID: p.ID}); err != nil {
		m.sess.Leave(p.ID)
		return session.Participant{}, fmt.Errorf("writing welcome: %w", err)
	}
	if err := cw.write(&protocol.Snapshot{State: snap}); err != nil {
		m.sess.Leave(p.ID)
		return session.Participant{}, fmt.Errorf("writing snapshot: %w", err)
	}
	return p, nil
}

// readLoop consumes inbound frames until the connection drops.
func (m *ConnectionManager) readLoop(ctx context.Context, conn net.Conn, cw *connWriter, p session.Participant) {
	for {
		msg, err := protocol.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				slog.WarnContext(ctx, "reading frame", "participant", p.ID, "error", err)
			}
			return
		}

		switch t := msg.(type) {
		case *protocol.Action:
			if err := m.sess.Submit(p.ID, t.Turn, t.Text); err != nil {
				cw.write(&protocol.Error{Code: submitErrorCode(err), Message: err.Error()})
			}
		case *protocol.Command:
			if err := m.sess.Command(p.ID, t.Name); err != nil {
				cw.write(&protocol.Error{Code: commandErrorCode(err), Message: err.Error()})
			}
		default:
			cw.write(&protocol.Error{Code: protocol.CodeBadMessage, Message: fmt.Sprintf("unexpected %s frame", msg.Kind())})
		}
	}
}

func joinErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionFull):
		return protocol.CodeSessionFull
	case errors.Is(err, session.ErrNameTaken):
		return protocol.CodeNameTaken
	default:
		return protocol.CodeBadMessage
	}
}

func submitErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrStaleTurn):
		return protocol.CodeStaleTurn
	case errors.Is(err, session.ErrUnknownParticipant):
		return protocol.CodeUnknownParticipant
	default:
		return protocol.CodeNotAllowed
	}
}

func commandErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrUnknownParticipant):
		return protocol.CodeUnknownParticipant
	case errors.Is(err, session.ErrUnknownCommand):
		return protocol.CodeBadMessage
	default:
		return protocol.CodeNotAllowed
	}
}

// connWriter serializes frame writes. The read loop and the two broker
// subscriptions all write to the same socket.
type connWriter struct {
	mu   sync.Mutex
	conn net.Conn
}

func (w *connWriter) write(msg protocol.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return protocol.WriteFrame(w.conn, msg)
}

func (w *connWriter) writeRaw(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return protocol.WriteRawFrame(w.conn, data)
}
