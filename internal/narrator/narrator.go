package narrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pixil98/go-storyteller/internal/world"
)

// ErrGenerationTimeout marks a generation call that exceeded its budget. The
// scheduler treats it the same as unparseable output: discard the turn.
var ErrGenerationTimeout = errors.New("generation timed out")

// Generator produces free-form text for a prompt. The production
// implementation wraps a remote model; tests substitute their own.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PlayerAction pairs a display name with the text a participant submitted.
type PlayerAction struct {
	Name string
	Text string
}

// TurnInput is everything the narrator sees for one turn.
type TurnInput struct {
	Scenario *world.ScenarioSpec
	Snapshot *world.Snapshot
	Actions  []PlayerAction
	History  []string
}

// Output is a validated turn result: narration for the players and the
// mutation batch that backs it.
type Output struct {
	Narration string
	Mutations []world.Mutation
}

// Engine drives one generation round trip: prompt, call, parse, validate.
type Engine struct {
	gen     Generator
	prompts *promptBuilder
	timeout time.Duration
}

// NewEngine wraps a generator with prompt construction and output
// validation. The timeout bounds each Generate call.
func NewEngine(gen Generator, timeout time.Duration) (*Engine, error) {
	prompts, err := newPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("building prompt templates: %w", err)
	}
	return &Engine{
		gen:     gen,
		prompts: prompts,
		timeout: timeout,
	}, nil
}

// Turn runs one full narration round. The generator's output is untrusted:
// it is decoded strictly and dry-run against the snapshot before anything
// is returned. Any violation rejects the whole batch.
func (e *Engine) Turn(ctx context.Context, input *TurnInput) (*Output, error) {
	prompt, err := e.prompts.turnPrompt(input)
	if err != nil {
		return nil, fmt.Errorf("building turn prompt: %w", err)
	}

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.gen.Generate(genCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || genCtx.Err() != nil {
			return nil, fmt.Errorf("%w: after %s", ErrGenerationTimeout, e.timeout)
		}
		return nil, fmt.Errorf("calling generator: %w", err)
	}

	out, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if err := input.Snapshot.DryRun(out.Mutations); err != nil {
		return nil, &ParseError{Reason: "mutation batch failed integrity check", Err: err}
	}

	return out, nil
}
