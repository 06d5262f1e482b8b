package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-storyteller/internal/messaging"
	"github.com/pixil98/go-storyteller/internal/narrator"
	"github.com/pixil98/go-storyteller/internal/protocol"
	"github.com/pixil98/go-storyteller/internal/world"
)

// capturePublisher records every published frame, decoded.
type capturePublisher struct {
	mu   sync.Mutex
	msgs []captured
}

type captured struct {
	subject string
	msg     protocol.Message
}

func (p *capturePublisher) Publish(subject string, data []byte) error {
	msg, err := protocol.Unmarshal(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, captured{subject: subject, msg: msg})
	return nil
}

func (p *capturePublisher) broadcasts(kind protocol.Kind) []protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []protocol.Message
	for _, c := range p.msgs {
		if c.subject == messaging.BroadcastSubject && c.msg.Kind() == kind {
			out = append(out, c.msg)
		}
	}
	return out
}

func (p *capturePublisher) sentTo(id string, kind protocol.Kind) []protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []protocol.Message
	for _, c := range p.msgs {
		if c.subject == messaging.ParticipantSubject(id) && c.msg.Kind() == kind {
			out = append(out, c.msg)
		}
	}
	return out
}

// scriptedNarrator returns canned outputs in order, then errors.
type scriptedNarrator struct {
	mu      sync.Mutex
	outputs []*narrator.Output
	errs    []error
	inputs  []*narrator.TurnInput
}

func (n *scriptedNarrator) Turn(_ context.Context, input *narrator.TurnInput) (*narrator.Output, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inputs = append(n.inputs, input)

	if len(n.errs) > 0 {
		err := n.errs[0]
		n.errs = n.errs[1:]
		return nil, err
	}
	if len(n.outputs) == 0 {
		return nil, errors.New("no scripted output left")
	}
	out := n.outputs[0]
	n.outputs = n.outputs[1:]
	return out, nil
}

func testScenario() *Scenario {
	return &Scenario{
		Spec: &world.ScenarioSpec{
			Title:   "Metro",
			Brief:   "Survive the tunnels.",
			Opening: "The lights flicker out.",
		},
		Locations: map[string]*world.LocationSpec{
			"platform": {Name: "Platform", Opening: true, Connections: []string{"tunnel"}},
			"tunnel":   {Name: "Tunnel"},
		},
		Items: map[string]*world.ItemSpec{
			"torch": {Name: "Torch"},
		},
	}
}

func newTestSession(n Narrator) (*Session, *capturePublisher) {
	pub := &capturePublisher{}
	s := New(testScenario(), n, NewDispatcher(pub), Options{
		MaxParticipants: 4,
		Window:          20 * time.Millisecond,
		HistoryChars:    2000,
	})
	return s, pub
}

func TestSession_StartPlacesParticipants(t *testing.T) {
	s, pub := newTestSession(&scriptedNarrator{})

	alice, snap, err := s.Join("Alice")
	if err != nil {
		t.Fatalf("joining: %v", err)
	}
	testutil.AssertEqual(t, "lobby world empty", len(snap.Locations), 0)

	if _, _, err := s.Join("Bob"); err != nil {
		t.Fatalf("joining bob: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("starting: %v", err)
	}
	testutil.AssertEqual(t, "phase", s.Phase(), PhaseActive)

	if err := s.Start(); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}

	p, ok := s.Store().GetParticipant(alice.ID)
	if !ok {
		t.Fatal("alice missing from world")
	}
	testutil.AssertEqual(t, "opening location", p.LocationID, "platform")

	inv := s.Store().Inventory(alice.ID)
	testutil.AssertEqual(t, "starting items", len(inv), 1)
	testutil.AssertEqual(t, "item name", inv[0].Name, "Torch")

	notices := pub.broadcasts(protocol.KindNotice)
	var opening bool
	for _, m := range notices {
		if m.(*protocol.Notice).Text == "The lights flicker out." {
			opening = true
		}
	}
	testutil.AssertEqual(t, "opening narrated", opening, true)
}

func TestSession_JoinDuringActivePlay(t *testing.T) {
	s, _ := newTestSession(&scriptedNarrator{})

	if _, _, err := s.Join("Alice"); err != nil {
		t.Fatalf("joining: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("starting: %v", err)
	}

	carol, snap, err := s.Join("Carol")
	if err != nil {
		t.Fatalf("joining mid-game: %v", err)
	}
	testutil.AssertEqual(t, "sees world", len(snap.Locations), 2)

	p, ok := s.Store().GetParticipant(carol.ID)
	if !ok {
		t.Fatal("carol missing from world")
	}
	testutil.AssertEqual(t, "placed at opening", p.LocationID, "platform")
}

func TestSession_RunTurnAppliesAndBroadcasts(t *testing.T) {
	n := &scriptedNarrator{outputs: []*narrator.Output{{
		Narration: "Alice lights the torch; shadows scatter.",
		Mutations: []world.Mutation{{
			Kind: world.MutateSetEffect,
			Effect: &world.Effect{
				ID:         "torchlight",
				Name:       "Torchlight",
				LocationID: "platform",
				ExpiresIn:  3,
			},
		}},
	}}}
	s, pub := newTestSession(n)

	alice, _, err := s.Join("Alice")
	if err != nil {
		t.Fatalf("joining: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("starting: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The queue opens inside runTurn; retry until it accepts.
		for {
			err := s.Submit(alice.ID, 0, "light the torch")
			if err == nil || !errors.Is(err, ErrStaleTurn) {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	if err := s.runTurn(context.Background()); err != nil {
		t.Fatalf("running turn: %v", err)
	}
	<-done

	testutil.AssertEqual(t, "turn advanced", s.Store().Turn(), 1)

	snap := s.Store().Snapshot()
	testutil.AssertEqual(t, "effect applied", snap.Effects["torchlight"].Name, "Torchlight")

	deltas := pub.broadcasts(protocol.KindDelta)
	testutil.AssertEqual(t, "delta count", len(deltas), 1)
	delta := deltas[0].(*protocol.Delta)
	testutil.AssertEqual(t, "delta turn", delta.Turn, 0)

	// The first delta carries the seed placements plus the generated batch.
	last := delta.Mutations[len(delta.Mutations)-1]
	testutil.AssertEqual(t, "generated last", last.Kind, world.MutateSetEffect)

	rec := s.Ledger().Current()
	testutil.AssertEqual(t, "ledger turn", rec.Turn, 0)
}

func TestSession_DiscardedTurnStillAdvances(t *testing.T) {
	n := &scriptedNarrator{errs: []error{narrator.ErrGenerationTimeout}}
	s, pub := newTestSession(n)
	s.SetWindow(5 * time.Millisecond)

	if _, _, err := s.Join("Alice"); err != nil {
		t.Fatalf("joining: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("starting: %v", err)
	}

	if err := s.runTurn(context.Background()); err != nil {
		t.Fatalf("running turn: %v", err)
	}

	testutil.AssertEqual(t, "counter advanced", s.Store().Turn(), 1)

	deltas := pub.broadcasts(protocol.KindDelta)
	testutil.AssertEqual(t, "delta count", len(deltas), 1)
	delta := deltas[0].(*protocol.Delta)
	testutil.AssertEqual(t, "delta turn", delta.Turn, 0)
	for _, m := range delta.Mutations {
		if m.Kind == world.MutateSetEffect {
			t.Fatal("discarded turn leaked generated mutations")
		}
	}

	var fellBack bool
	for _, m := range pub.broadcasts(protocol.KindNotice) {
		if strings.Contains(m.(*protocol.Notice).Text, "falters") {
			fellBack = true
		}
	}
	testutil.AssertEqual(t, "fallback notice", fellBack, true)

	// Clients observed the turn, so the ledger keeps a record of it.
	rec := s.Ledger().Current()
	if rec == nil {
		t.Fatal("discarded turn should still be recorded")
	}
	testutil.AssertEqual(t, "ledger turn", rec.Turn, 0)
	testutil.AssertEqual(t, "ledger mutations", len(rec.Mutations), len(delta.Mutations))
}

func TestSession_IdleParticipantsBackfilled(t *testing.T) {
	n := &scriptedNarrator{outputs: []*narrator.Output{{Narration: "Nothing stirs."}}}
	s, _ := newTestSession(n)
	s.SetWindow(5 * time.Millisecond)

	if _, _, err := s.Join("Alice"); err != nil {
		t.Fatalf("joining: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("starting: %v", err)
	}
	if err := s.runTurn(context.Background()); err != nil {
		t.Fatalf("running turn: %v", err)
	}

	if len(n.inputs) != 1 {
		t.Fatalf("expected one narrator call, got %d", len(n.inputs))
	}
	actions := n.inputs[0].Actions
	testutil.AssertEqual(t, "action count", len(actions), 1)
	testutil.AssertEqual(t, "name", actions[0].Name, "Alice")
	testutil.AssertEqual(t, "backfilled", actions[0].Text, idleAction)
}

func TestSession_LeaveRemovedAtTurnBoundary(t *testing.T) {
	n := &scriptedNarrator{outputs: []*narrator.Output{{Narration: "The dust settles."}}}
	s, pub := newTestSession(n)
	s.SetWindow(5 * time.Millisecond)

	if _, _, err := s.Join("Alice"); err != nil {
		t.Fatalf("joining: %v", err)
	}
	bob, _, err := s.Join("Bob")
	if err != nil {
		t.Fatalf("joining bob: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("starting: %v", err)
	}

	s.Leave(bob.ID)

	if _, ok := s.Store().GetParticipant(bob.ID); !ok {
		t.Fatal("bob should stay in the world until the turn boundary")
	}

	if err := s.runTurn(context.Background()); err != nil {
		t.Fatalf("running turn: %v", err)
	}

	if _, ok := s.Store().GetParticipant(bob.ID); ok {
		t.Fatal("bob should be removed from the world")
	}
	if _, ok := s.Registry().Get(bob.ID); ok {
		t.Fatal("bob should be removed from the roster")
	}

	delta := pub.broadcasts(protocol.KindDelta)[0].(*protocol.Delta)
	var removed bool
	for _, m := range delta.Mutations {
		if m.Kind == world.MutateRemoveParticipant && m.ParticipantID == bob.ID {
			removed = true
		}
	}
	testutil.AssertEqual(t, "removal in delta", removed, true)
}

func TestSession_SubmitRequiresActiveGame(t *testing.T) {
	s, _ := newTestSession(&scriptedNarrator{})

	alice, _, err := s.Join("Alice")
	if err != nil {
		t.Fatalf("joining: %v", err)
	}

	if err := s.Submit(alice.ID, 0, "act"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if err := s.Submit("ghost", 0, "act"); !errors.Is(err, ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}
}

func TestSession_EndReturnsToLobby(t *testing.T) {
	s, _ := newTestSession(&scriptedNarrator{})

	if _, _, err := s.Join("Alice"); err != nil {
		t.Fatalf("joining: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("starting: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("ending: %v", err)
	}

	testutil.AssertEqual(t, "phase", s.Phase(), PhaseLobby)
	locs, parts, effects := s.Store().Stats()
	testutil.AssertEqual(t, "locations", locs, 0)
	testutil.AssertEqual(t, "participants", parts, 0)
	testutil.AssertEqual(t, "effects", effects, 0)

	if err := s.End(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestSession_Kick(t *testing.T) {
	s, pub := newTestSession(&scriptedNarrator{})

	alice, _, err := s.Join("Alice")
	if err != nil {
		t.Fatalf("joining: %v", err)
	}

	var closed bool
	s.BindCloser(alice.ID, func() { closed = true })

	if err := s.Kick(alice.ID); err != nil {
		t.Fatalf("kicking: %v", err)
	}
	testutil.AssertEqual(t, "connection closed", closed, true)
	if _, ok := s.Registry().Get(alice.ID); ok {
		t.Fatal("kicked lobby participant should leave the roster")
	}

	errs := pub.sentTo(alice.ID, protocol.KindError)
	testutil.AssertEqual(t, "error sent", len(errs), 1)
	testutil.AssertEqual(t, "code", errs[0].(*protocol.Error).Code, protocol.CodeNotAllowed)

	if err := s.Kick("ghost"); !errors.Is(err, ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}
}

func TestSession_CommandEndReturnsToLobby(t *testing.T) {
	s, _ := newTestSession(&scriptedNarrator{})

	alice, _, err := s.Join("Alice")
	if err != nil {
		t.Fatalf("joining: %v", err)
	}
	if err := s.Command(alice.ID, "start"); err != nil {
		t.Fatalf("starting: %v", err)
	}
	testutil.AssertEqual(t, "phase after start", s.Phase(), PhaseActive)

	if err := s.Command(alice.ID, "end"); err != nil {
		t.Fatalf("ending: %v", err)
	}
	testutil.AssertEqual(t, "phase after end", s.Phase(), PhaseLobby)
}

func TestSession_KickAnnouncesDepartureOnce(t *testing.T) {
	s, pub := newTestSession(&scriptedNarrator{})

	if _, _, err := s.Join("Alice"); err != nil {
		t.Fatalf("joining: %v", err)
	}
	bob, _, err := s.Join("Bob")
	if err != nil {
		t.Fatalf("joining bob: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("starting: %v", err)
	}

	if err := s.Kick(bob.ID); err != nil {
		t.Fatalf("kicking: %v", err)
	}
	// The listener's deferred Leave fires once the closed connection's
	// read loop exits.
	s.Leave(bob.ID)

	var left int
	for _, m := range pub.broadcasts(protocol.KindNotice) {
		if strings.Contains(m.(*protocol.Notice).Text, "Bob has left.") {
			left++
		}
	}
	testutil.AssertEqual(t, "departure notices", left, 1)
}

func TestSession_CommandUnknown(t *testing.T) {
	s, _ := newTestSession(&scriptedNarrator{})

	alice, _, err := s.Join("Alice")
	if err != nil {
		t.Fatalf("joining: %v", err)
	}
	if err := s.Command(alice.ID, "dance"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}
