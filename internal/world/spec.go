package world

import (
	"fmt"
	"sort"

	"github.com/pixil98/go-errors"
)

// LocationSpec is a scenario asset describing one authored location.
// Runtime locations beyond these are created by the narrator during play.
type LocationSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Connections []string `json:"connections,omitempty"`
	// Opening marks the location participants start in. Exactly one
	// location in a scenario may set it.
	Opening bool `json:"opening,omitempty"`
}

func (l *LocationSpec) Validate() error {
	el := errors.NewErrorList()
	if l.Name == "" {
		el.Add(fmt.Errorf("name is required"))
	}
	for i, c := range l.Connections {
		if c == "" {
			el.Add(fmt.Errorf("connection %d: id is empty", i))
		}
	}
	return el.Err()
}

// ItemSpec is a scenario asset describing one item granted to every
// participant when the session starts.
type ItemSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (i *ItemSpec) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// ScenarioSpec is the framing material fed into narrator prompts.
type ScenarioSpec struct {
	Title   string `json:"title"`
	Brief   string `json:"brief"`
	Opening string `json:"opening,omitempty"`
}

func (s *ScenarioSpec) Validate() error {
	el := errors.NewErrorList()
	if s.Title == "" {
		el.Add(fmt.Errorf("title is required"))
	}
	if s.Brief == "" {
		el.Add(fmt.Errorf("brief is required"))
	}
	return el.Err()
}

// Seed converts location assets into the bootstrap mutation sequence and
// returns the opening location id. Mutations are emitted in sorted id order
// so seeding is deterministic.
func Seed(locations map[string]*LocationSpec) ([]Mutation, string, error) {
	ids := make([]string, 0, len(locations))
	for id := range locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var opening string
	var muts []Mutation
	for _, id := range ids {
		spec := locations[id]
		if spec.Opening {
			if opening != "" {
				return nil, "", fmt.Errorf("locations %s and %s both marked opening", opening, id)
			}
			opening = id
		}
		muts = append(muts, Mutation{
			Kind: MutateSetLocation,
			Location: &Location{
				ID:          id,
				Name:        spec.Name,
				Description: spec.Description,
			},
		})
	}

	seen := map[string]bool{}
	for _, id := range ids {
		for _, other := range locations[id].Connections {
			if _, ok := locations[other]; !ok {
				return nil, "", fmt.Errorf("location %s connects to unknown location %s", id, other)
			}
			key := pairKey(id, other)
			if seen[key] {
				continue
			}
			seen[key] = true
			muts = append(muts, Mutation{Kind: MutateConnectLocations, LocationID: id, TargetID: other})
		}
	}

	if opening == "" {
		return nil, "", fmt.Errorf("no location marked opening")
	}
	return muts, opening, nil
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
