package narrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pixil98/go-storyteller/internal/world"
	"github.com/pixil98/go-testutil"
)

// stubGenerator returns canned output, optionally blocking past any timeout.
type stubGenerator struct {
	output string
	err    error
	hang   bool

	prompt string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	if g.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.output, g.err
}

func testInput(t *testing.T) *TurnInput {
	t.Helper()
	s := world.NewStore()
	for _, m := range []world.Mutation{
		{Kind: world.MutateSetLocation, Location: &world.Location{ID: "metro", Name: "Endless Metro", Description: "Rails vanish into the dark."}},
		{Kind: world.MutateAddParticipant, Participant: &world.Participant{ID: "p1", Name: "Alice", LocationID: "metro"}},
		{Kind: world.MutateAddParticipant, Participant: &world.Participant{ID: "p2", Name: "Bob", LocationID: "metro"}},
	} {
		if err := s.Apply(m); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}
	return &TurnInput{
		Scenario: &world.ScenarioSpec{Title: "Endless Metro", Brief: "A horror story set in an infinite subway."},
		Snapshot: s.Snapshot(),
		Actions: []PlayerAction{
			{Name: "Alice", Text: "search the bench"},
			{Name: "Bob", Text: "listen at the tunnel mouth"},
		},
		History: []string{"NARRATE The train doors sealed behind you."},
	}
}

func TestEngine_Turn(t *testing.T) {
	gen := &stubGenerator{
		output: `{"narration":"Alice finds a torch wedged under the bench.","mutations":[{"kind":"give_item","participant_id":"p1","item":{"instance_id":"torch-1","name":"torch"}}]}`,
	}
	e, err := NewEngine(gen, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := e.Turn(context.Background(), testInput(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "mutations", len(out.Mutations), 1)
	testutil.AssertEqual(t, "kind", out.Mutations[0].Kind, world.MutateGiveItem)

	// The prompt should carry the scenario, the world, and the actions.
	for _, want := range []string{"Endless Metro", "Alice", "search the bench", "sealed behind you"} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt does not contain %q", want)
		}
	}
}

func TestEngine_TurnTimeout(t *testing.T) {
	e, err := NewEngine(&stubGenerator{hang: true}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = e.Turn(context.Background(), testInput(t))
	if !errors.Is(err, ErrGenerationTimeout) {
		t.Errorf("error = %v, expected %v", err, ErrGenerationTimeout)
	}
}

func TestEngine_TurnRejectsDanglingReference(t *testing.T) {
	gen := &stubGenerator{
		output: `{"narration":"A door appears.","mutations":[{"kind":"move_participant","participant_id":"p1","location_id":"nowhere"}]}`,
	}
	e, err := NewEngine(gen, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = e.Turn(context.Background(), testInput(t))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, expected *ParseError", err)
	}
	if !errors.Is(err, world.ErrUnknownLocation) {
		t.Errorf("error = %v, expected to wrap %v", err, world.ErrUnknownLocation)
	}
}

func TestEngine_TurnAllowsCreateThenReference(t *testing.T) {
	gen := &stubGenerator{
		output: `{"narration":"A hidden platform opens.","mutations":[
			{"kind":"set_location","location":{"id":"platform","name":"Hidden Platform"}},
			{"kind":"connect_locations","location_id":"metro","target_id":"platform"},
			{"kind":"move_participant","participant_id":"p2","location_id":"platform"}
		]}`,
	}
	e, err := NewEngine(gen, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := e.Turn(context.Background(), testInput(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "mutations", len(out.Mutations), 3)
}

func TestHistory_Budget(t *testing.T) {
	h := NewHistory(20)
	h.Add("aaaaaaaaaa") // 10 chars
	h.Add("bbbbbbbbbb") // 10 chars
	h.Add("cccccccccc") // evicts the first line

	lines := h.Lines()
	testutil.AssertEqual(t, "lines", len(lines), 2)
	testutil.AssertEqual(t, "oldest", lines[0], "bbbbbbbbbb")
}

func TestHistory_OversizedLineKept(t *testing.T) {
	h := NewHistory(5)
	h.Add("a line far beyond the budget")

	testutil.AssertEqual(t, "lines", len(h.Lines()), 1)
}
