package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixil98/go-storyteller/internal/narrator"
	"github.com/pixil98/go-storyteller/internal/protocol"
	"github.com/pixil98/go-storyteller/internal/world"
)

// Phase is the session lifecycle. Participants gather in the lobby; the
// world only exists while the session is active.
type Phase string

const (
	PhaseLobby  Phase = "lobby"
	PhaseActive Phase = "active"
)

// Narrator produces one turn's narration and mutation batch. The production
// implementation is narrator.Engine.
type Narrator interface {
	Turn(ctx context.Context, input *narrator.TurnInput) (*narrator.Output, error)
}

// Scenario bundles the authored assets a session plays.
type Scenario struct {
	Spec      *world.ScenarioSpec
	Locations map[string]*world.LocationSpec
	Items     map[string]*world.ItemSpec
}

// Options tune a session.
type Options struct {
	// MaxParticipants caps concurrent connected participants.
	MaxParticipants int
	// Window is how long each turn collects input before closing.
	Window time.Duration
	// HistoryChars bounds the narrative history fed back into prompts.
	HistoryChars int
}

// Session is the central authority for one running game. It owns the world
// store, the roster, and the per-turn command queue; the scheduler loop in
// Run drives turns through it.
type Session struct {
	scenario *Scenario
	store    *world.Store
	ledger   *world.Ledger
	registry *Registry
	queue    *CommandQueue
	dispatch *Dispatcher
	narrate  Narrator
	history  *narrator.History

	mu           sync.Mutex
	phase        Phase
	window       time.Duration
	historyChars int
	opening      string
	pending      []world.Mutation
	departed     map[string]bool
	closers      map[string]func()

	// wake nudges the scheduler loop when there is something to run.
	wake chan struct{}
}

func New(scenario *Scenario, narrate Narrator, dispatch *Dispatcher, opts Options) *Session {
	return &Session{
		scenario:     scenario,
		store:        world.NewStore(),
		ledger:       &world.Ledger{},
		registry:     NewRegistry(opts.MaxParticipants),
		queue:        NewCommandQueue(),
		dispatch:     dispatch,
		narrate:      narrate,
		history:      narrator.NewHistory(opts.HistoryChars),
		phase:        PhaseLobby,
		window:       opts.Window,
		historyChars: opts.HistoryChars,
		departed:     map[string]bool{},
		closers:      map[string]func(){},
		wake:         make(chan struct{}, 1),
	}
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Window returns the current input collection window.
func (s *Session) Window() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// SetWindow changes the collection window for subsequent turns.
func (s *Session) SetWindow(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = d
}

// Registry exposes the roster for the admin console.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Store exposes the world for the admin console's read-only views.
func (s *Session) Store() *world.Store {
	return s.store
}

// Ledger exposes the retained turn records.
func (s *Session) Ledger() *world.Ledger {
	return s.ledger
}

// Join registers a new participant. During active play the participant is
// placed in the world immediately and the placement rides along in the next
// turn's delta. The returned snapshot is the participant's starting view.
func (s *Session) Join(name string) (Participant, *world.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.registry.Add(name)
	if err != nil {
		return Participant{}, nil, err
	}

	if s.phase == PhaseActive {
		muts := s.entryMutations(p)
		if err := s.store.ApplyBatch(muts); err != nil {
			s.registry.Remove(p.ID)
			return Participant{}, nil, fmt.Errorf("placing participant: %w", err)
		}
		s.pending = append(s.pending, muts...)
	}

	s.dispatch.Notice(fmt.Sprintf("%s has joined.", p.Name))
	s.dispatch.Roster(s.registry.Names())
	s.signal()
	return p, s.store.Snapshot(), nil
}

// entryMutations places a participant at the opening location and grants
// the scenario's starting items. Caller holds s.mu.
func (s *Session) entryMutations(p Participant) []world.Mutation {
	muts := []world.Mutation{{
		Kind: world.MutateAddParticipant,
		Participant: &world.Participant{
			ID:         p.ID,
			Name:       p.Name,
			LocationID: s.opening,
		},
	}}

	ids := make([]string, 0, len(s.scenario.Items))
	for id := range s.scenario.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		spec := s.scenario.Items[id]
		muts = append(muts, world.Mutation{
			Kind:          world.MutateGiveItem,
			ParticipantID: p.ID,
			Item: &world.Item{
				InstanceID:  uuid.NewString(),
				Name:        spec.Name,
				Description: spec.Description,
			},
		})
	}
	return muts
}

// BindCloser registers the function that force-closes a participant's
// connection. The listener calls it after the handshake; Kick uses it.
func (s *Session) BindCloser(id string, closeFn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers[id] = closeFn
}

// Leave marks a participant as departing. Their world presence is removed
// at the next turn boundary so the removal rides in that turn's delta; a
// lobby participant is dropped immediately.
func (s *Session) Leave(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveLocked(id)
}

func (s *Session) leaveLocked(id string) {
	p, ok := s.registry.Get(id)
	if !ok || p.Status != StatusConnected {
		// Already departing. Kick runs this first; the listener's deferred
		// Leave must not announce the departure a second time.
		return
	}
	delete(s.closers, id)
	s.queue.Drop(id)

	if s.phase == PhaseActive {
		s.registry.SetStatus(id, StatusPendingDisconnect)
		s.departed[id] = true
	} else {
		s.registry.Remove(id)
	}

	s.dispatch.Notice(fmt.Sprintf("%s has left.", p.Name))
	s.dispatch.Roster(s.registry.Names())
}

// Kick forcibly removes a participant and closes their connection.
func (s *Session) Kick(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	s.dispatch.ErrorTo(id, protocol.CodeNotAllowed, "removed by operator")
	if closeFn := s.closers[id]; closeFn != nil {
		closeFn()
	}
	s.leaveLocked(p.ID)
	return nil
}

// Submit records a participant's action for the open turn.
func (s *Session) Submit(id string, turn int, text string) error {
	if !s.registry.IsConnected(id) {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	s.mu.Lock()
	active := s.phase == PhaseActive
	s.mu.Unlock()
	if !active {
		return ErrNotActive
	}
	return s.queue.Submit(id, turn, text)
}

// Command handles the slash commands participants can send.
func (s *Session) Command(id, name string) error {
	if !s.registry.IsConnected(id) {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}

	switch name {
	case "start":
		return s.Start()
	case "end":
		return s.End()
	case "who":
		names := s.registry.Names()
		return s.dispatch.NoticeTo(id, fmt.Sprintf("Present: %s", joinNames(names)))
	case "look":
		return s.dispatch.SnapshotTo(id, s.store.Snapshot())
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "nobody"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

// Start seeds the world from the scenario, places every lobby participant
// at the opening location, and begins collecting turns.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseActive {
		return ErrAlreadyActive
	}

	muts, opening, err := world.Seed(s.scenario.Locations)
	if err != nil {
		return fmt.Errorf("seeding world: %w", err)
	}
	s.opening = opening

	for _, p := range s.registry.Connected() {
		muts = append(muts, s.entryMutations(p)...)
	}
	if err := s.store.ApplyBatch(muts); err != nil {
		return fmt.Errorf("applying seed: %w", err)
	}

	s.phase = PhaseActive
	s.pending = append(s.pending, muts...)

	if s.scenario.Spec.Opening != "" {
		s.dispatch.Notice(s.scenario.Spec.Opening)
		s.history.Add(s.scenario.Spec.Opening)
	}
	s.signal()
	return nil
}

// End returns the session to the lobby. The world is discarded but the turn
// counter keeps counting, so submissions from the ended game stay stale.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return ErrNotActive
	}

	s.phase = PhaseLobby
	s.store.Reset()
	s.history = narrator.NewHistory(s.historyChars)
	s.pending = nil
	s.opening = ""

	// Departures normally resolve at the next turn boundary, but there are
	// no more turns; drop them from the roster now.
	for id := range s.departed {
		s.registry.Remove(id)
	}
	s.departed = map[string]bool{}

	s.dispatch.Notice("The story has ended. Waiting in the lobby.")
	return nil
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
