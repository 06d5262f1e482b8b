package narrator

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pixil98/go-storyteller/internal/world"
)

//go:embed prompts/turn.txt
var turnPromptText string

type promptBuilder struct {
	turn *template.Template
}

func newPromptBuilder() (*promptBuilder, error) {
	turn, err := template.New("turn").Funcs(sprig.TxtFuncMap()).Parse(turnPromptText)
	if err != nil {
		return nil, fmt.Errorf("parsing turn template: %w", err)
	}
	return &promptBuilder{turn: turn}, nil
}

type promptData struct {
	Title     string
	Brief     string
	Turn      int
	Locations []promptLocation
	History   []string
	Actions   []PlayerAction
}

type promptLocation struct {
	ID           string
	Name         string
	Description  string
	Connections  []string
	Effects      []string
	Participants []promptParticipant
}

type promptParticipant struct {
	ID      string
	Name    string
	Items   []string
	Effects []string
}

func (b *promptBuilder) turnPrompt(input *TurnInput) (string, error) {
	data := promptData{
		Turn:    input.Snapshot.Turn,
		History: input.History,
		Actions: input.Actions,
	}
	if input.Scenario != nil {
		data.Title = input.Scenario.Title
		data.Brief = input.Scenario.Brief
	}

	snap := input.Snapshot
	locIDs := make([]string, 0, len(snap.Locations))
	for id := range snap.Locations {
		locIDs = append(locIDs, id)
	}
	sort.Strings(locIDs)

	for _, id := range locIDs {
		loc := snap.Locations[id]
		pl := promptLocation{
			ID:          loc.ID,
			Name:        loc.Name,
			Description: loc.Description,
			Connections: loc.Connections,
		}
		for _, e := range sortedEffects(snap) {
			if e.LocationID == id {
				pl.Effects = append(pl.Effects, e.Name)
			}
		}
		for _, p := range snap.ParticipantsAt(id) {
			pp := promptParticipant{ID: p.ID, Name: p.Name}
			for _, it := range snap.Inventories[p.ID] {
				pp.Items = append(pp.Items, fmt.Sprintf("%s (%s)", it.Name, it.InstanceID))
			}
			for _, e := range sortedEffects(snap) {
				if e.ParticipantID == p.ID {
					pp.Effects = append(pp.Effects, e.Name)
				}
			}
			pl.Participants = append(pl.Participants, pp)
		}
		data.Locations = append(data.Locations, pl)
	}

	var buf bytes.Buffer
	if err := b.turn.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sortedEffects(snap *world.Snapshot) []world.Effect {
	out := make([]world.Effect, 0, len(snap.Effects))
	for _, e := range snap.Effects {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
