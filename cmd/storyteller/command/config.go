package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

type Config struct {
	GamePort uint16                `json:"game_port"`
	Admin    []AdminListenerConfig `json:"admin_listeners,omitempty"`
	Storage  StorageConfig         `json:"storage"`
	Nats     NatsConfig            `json:"nats"`
	Narrator NarratorConfig        `json:"narrator"`
	Session  SessionConfig         `json:"session"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.GamePort == 0 {
		el.Add(fmt.Errorf("game_port must be set to a positive integer"))
	}

	for i, l := range c.Admin {
		err := l.Validate()
		if err != nil {
			el.Add(fmt.Errorf("admin listener %d: %w", i, err))
		}
	}

	el.Add(c.Storage.Validate())
	el.Add(c.Nats.Validate())
	el.Add(c.Narrator.Validate())
	el.Add(c.Session.Validate())

	return el.Err()
}
