package narrator

import (
	"errors"
	"testing"

	"github.com/pixil98/go-storyteller/internal/world"
	"github.com/pixil98/go-testutil"
)

func TestParse(t *testing.T) {
	tests := map[string]struct {
		raw          string
		expNarration string
		expMutations int
		expErr       bool
	}{
		"plain json": {
			raw:          `{"narration":"The torch gutters.","mutations":[]}`,
			expNarration: "The torch gutters.",
		},
		"fenced json": {
			raw:          "```json\n" + `{"narration":"A door creaks open.","mutations":[{"kind":"give_item","participant_id":"p1","item":{"instance_id":"torch-1","name":"torch"}}]}` + "\n```",
			expNarration: "A door creaks open.",
			expMutations: 1,
		},
		"bare fence": {
			raw:          "```\n" + `{"narration":"Silence.","mutations":[]}` + "\n```",
			expNarration: "Silence.",
		},
		"empty response": {
			raw:    "",
			expErr: true,
		},
		"prose instead of json": {
			raw:    "The party walks deeper into the dark.",
			expErr: true,
		},
		"missing narration": {
			raw:    `{"mutations":[]}`,
			expErr: true,
		},
		"unknown top-level field": {
			raw:    `{"narration":"hm","mutations":[],"mood":["dark"]}`,
			expErr: true,
		},
		"unknown mutation field": {
			raw:    `{"narration":"hm","mutations":[{"kind":"remove_effect","effect_id":"e1","power":9}]}`,
			expErr: true,
		},
		"unknown mutation kind": {
			raw:    `{"narration":"hm","mutations":[{"kind":"summon_dragon"}]}`,
			expErr: true,
		},
		"incomplete mutation": {
			raw:    `{"narration":"hm","mutations":[{"kind":"move_participant","participant_id":"p1"}]}`,
			expErr: true,
		},
		"bootstrap kind rejected": {
			raw:    `{"narration":"hm","mutations":[{"kind":"add_participant","participant":{"id":"x","name":"Eve"}}]}`,
			expErr: true,
		},
		"trailing content": {
			raw:    `{"narration":"hm","mutations":[]} and then some`,
			expErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := Parse(tt.raw)

			if tt.expErr {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Errorf("error = %v, expected *ParseError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "narration", out.Narration, tt.expNarration)
			testutil.AssertEqual(t, "mutations", len(out.Mutations), tt.expMutations)
		})
	}
}

func TestParse_MutationPayload(t *testing.T) {
	out, err := Parse(`{
		"narration": "Alice scoops up the torch.",
		"mutations": [
			{"kind":"give_item","participant_id":"p1","item":{"instance_id":"torch-1","name":"torch","description":"A guttering torch."}},
			{"kind":"set_effect","effect":{"id":"warm","name":"warmed","participant_id":"p1","expires_in":2}}
		]
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "first kind", out.Mutations[0].Kind, world.MutateGiveItem)
	testutil.AssertEqual(t, "item name", out.Mutations[0].Item.Name, "torch")
	testutil.AssertEqual(t, "second kind", out.Mutations[1].Kind, world.MutateSetEffect)
	testutil.AssertEqual(t, "expiry", out.Mutations[1].Effect.ExpiresIn, 2)
}
