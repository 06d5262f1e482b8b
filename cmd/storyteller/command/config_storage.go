package command

import (
	"fmt"
	"os"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-storyteller/internal/session"
	"github.com/pixil98/go-storyteller/internal/storage"
	"github.com/pixil98/go-storyteller/internal/world"
)

type StorageConfig struct {
	// ScenarioID selects which scenario asset to play.
	ScenarioID string                           `json:"scenario_id"`
	Scenarios  AssetConfig[*world.ScenarioSpec] `json:"scenarios"`
	Locations  AssetConfig[*world.LocationSpec] `json:"locations"`
	Items      AssetConfig[*world.ItemSpec]     `json:"items"`
}

func (c *StorageConfig) Validate() error {
	el := errors.NewErrorList()

	if c.ScenarioID == "" {
		el.Add(fmt.Errorf("scenario_id is required"))
	}
	el.Add(c.Scenarios.Validate("scenarios"))
	el.Add(c.Locations.Validate("locations"))
	el.Add(c.Items.Validate("items"))

	return el.Err()
}

// BuildScenario loads the selected scenario and its location and item
// assets into the bundle the session plays.
func (c *StorageConfig) BuildScenario() (*session.Scenario, error) {
	scenarios, err := c.Scenarios.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating scenario store: %w", err)
	}
	locations, err := c.Locations.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating location store: %w", err)
	}
	items, err := c.Items.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating item store: %w", err)
	}

	spec := scenarios.Get(c.ScenarioID)
	if spec == nil {
		return nil, fmt.Errorf("scenario %q not found", c.ScenarioID)
	}

	return &session.Scenario{
		Spec:      spec,
		Locations: locations.GetAll(),
		Items:     items.GetAll(),
	}, nil
}

type AssetConfig[T storage.ValidatingSpec] struct {
	Path string `json:"path"`
}

func (c *AssetConfig[T]) Validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	_, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", name, c.Path, err)
	}

	return nil
}

func (c *AssetConfig[T]) BuildFileStore() (*storage.FileStore[T], error) {
	return storage.NewFileStore[T](c.Path)
}
