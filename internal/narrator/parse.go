package narrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pixil98/go-storyteller/internal/world"
)

// ParseError reports generator output that could not become a valid turn.
// The turn is discarded; the reason is logged, never shown to players.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing generator output: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parsing generator output: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// rawOutput mirrors the JSON shape the prompt demands from the model.
type rawOutput struct {
	Narration string           `json:"narration"`
	Mutations []world.Mutation `json:"mutations"`
}

// Parse decodes generator output into narration plus a mutation batch.
// Decoding is strict: unknown fields, unknown mutation kinds, structurally
// incomplete mutations, and bootstrap-only kinds all reject the whole batch.
// Referential checks against the world happen separately via DryRun.
func Parse(raw string) (*Output, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, &ParseError{Reason: "empty response"}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()

	var out rawOutput
	if err := dec.Decode(&out); err != nil {
		return nil, &ParseError{Reason: "not valid JSON", Err: err}
	}
	// Anything after the closing brace is suspicious enough to reject.
	if dec.More() {
		return nil, &ParseError{Reason: "trailing content after JSON object"}
	}

	if strings.TrimSpace(out.Narration) == "" {
		return nil, &ParseError{Reason: "missing narration"}
	}

	for i := range out.Mutations {
		m := &out.Mutations[i]
		if m.Bootstrap() {
			return nil, &ParseError{Reason: fmt.Sprintf("mutation %d uses reserved kind %q", i, m.Kind)}
		}
		if err := m.Validate(); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("mutation %d is malformed", i), Err: err}
		}
	}

	return &Output{
		Narration: strings.TrimSpace(out.Narration),
		Mutations: out.Mutations,
	}, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one, a habit these models never quite lose.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
