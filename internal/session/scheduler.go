package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pixil98/go-storyteller/internal/narrator"
	"github.com/pixil98/go-storyteller/internal/world"
)

// idleAction is recorded for participants who let the window close without
// submitting, so the narration still accounts for everyone.
const idleAction = "waits quietly, taking in the scene"

// fallbackNotice is broadcast when a turn is discarded.
const fallbackNotice = "The story falters for a moment. Nothing happens. Try again."

// Run is the scheduler loop. It sleeps until the session is active with at
// least one participant, then drives turns until that stops being true.
// Run blocks until the context is canceled; it is the session's worker
// entrypoint.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}

		for s.runnable() {
			if err := s.runTurn(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.ErrorContext(ctx, "running turn", "error", err)
			}
		}
	}
}

func (s *Session) runnable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseActive && s.registry.ConnectedCount() > 0
}

// runTurn drives one full turn: resolve departures, expire effects, collect
// input, generate, validate, apply, broadcast. The turn counter advances
// exactly once whether the turn lands or is discarded.
func (s *Session) runTurn(ctx context.Context) error {
	carried := s.takeCarried()
	expiryMuts, expired := s.store.ExpireEffects()
	carried = append(carried, expiryMuts...)
	for _, e := range expired {
		s.dispatch.Notice(fmt.Sprintf("The effect %q has worn off.", e.Name))
	}

	turn := s.store.Turn()
	actions := s.collect(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	snap := s.store.Snapshot()
	input := &narrator.TurnInput{
		Scenario: s.scenario.Spec,
		Snapshot: snap,
		Actions:  actions,
		History:  s.historyLines(),
	}

	out, err := s.narrate.Turn(ctx, input)
	if err == nil {
		if applyErr := s.store.ApplyBatch(out.Mutations); applyErr != nil {
			err = fmt.Errorf("applying turn batch: %w", applyErr)
		}
	}

	// The counter moves past the collected turn whether or not it landed, so
	// a resubmission for it can never replay later.
	s.store.AdvanceTurn()

	if err != nil {
		slog.WarnContext(ctx, "turn discarded", "turn", turn, "error", err)
		// Clients still observe this turn, so it still gets a record,
		// holding only the boundary mutations.
		s.ledger.Record(&world.TurnRecord{Turn: turn, Mutations: carried})
		s.dispatch.Delta(turn, carried)
		s.dispatch.Notice(fallbackNotice)
		return nil
	}

	muts := append(carried, out.Mutations...)
	s.ledger.Record(&world.TurnRecord{Turn: turn, Mutations: muts})
	s.dispatch.Delta(turn, muts)
	s.dispatch.Notice(out.Narration)
	s.appendHistory(actions, out.Narration)
	return nil
}

// takeCarried drains the mutations that must ride in the next delta:
// placements applied at join or start, and the world removal of departed
// participants, which is applied here.
func (s *Session) takeCarried() []world.Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()

	muts := s.pending
	s.pending = nil

	ids := make([]string, 0, len(s.departed))
	for id := range s.departed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		delete(s.departed, id)
		s.registry.Remove(id)
		if _, ok := s.store.GetParticipant(id); !ok {
			continue
		}
		m := world.Mutation{Kind: world.MutateRemoveParticipant, ParticipantID: id}
		if err := s.store.Apply(m); err != nil {
			continue
		}
		muts = append(muts, m)
	}
	return muts
}

// collect opens the input window for the current turn and blocks until
// every connected participant has submitted or the window elapses. Idle
// participants are backfilled so the prompt covers everyone.
func (s *Session) collect(ctx context.Context) []narrator.PlayerAction {
	connected := s.registry.Connected()
	ids := make([]string, len(connected))
	names := make(map[string]string, len(connected))
	for i, p := range connected {
		ids[i] = p.ID
		names[p.ID] = p.Name
	}

	ready := s.queue.Open(s.store.Turn(), ids)

	timer := time.NewTimer(s.Window())
	defer timer.Stop()
	select {
	case <-ready:
	case <-timer.C:
	case <-ctx.Done():
	}

	actions, idle := s.queue.Close(names)
	for _, id := range idle {
		name, ok := names[id]
		if !ok || !s.registry.IsConnected(id) {
			continue
		}
		actions = append(actions, narrator.PlayerAction{Name: name, Text: idleAction})
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Name < actions[j].Name })
	return actions
}

func (s *Session) historyLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Lines()
}

func (s *Session) appendHistory(actions []narrator.PlayerAction, narration string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		s.history.Add(fmt.Sprintf("%s: %s", a.Name, a.Text))
	}
	s.history.Add(narration)
}
