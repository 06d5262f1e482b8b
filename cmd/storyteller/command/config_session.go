package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-storyteller/internal/session"
)

const (
	defaultMaxParticipants = 8
	defaultWindow          = 60 * time.Second
	defaultHistoryChars    = 12000
)

type SessionConfig struct {
	MaxParticipants int    `json:"max_participants,omitempty"`
	Window          string `json:"window,omitempty"`
	HistoryChars    int    `json:"history_chars,omitempty"`
}

func (s *SessionConfig) Validate() error {
	el := errors.NewErrorList()

	if s.MaxParticipants < 0 {
		el.Add(fmt.Errorf("max_participants must not be negative"))
	}
	if s.Window != "" {
		d, err := time.ParseDuration(s.Window)
		if err != nil {
			el.Add(fmt.Errorf("parsing window: %w", err))
		} else if d < time.Second {
			el.Add(fmt.Errorf("window must be at least 1 second"))
		}
	}
	if s.HistoryChars < 0 {
		el.Add(fmt.Errorf("history_chars must not be negative"))
	}

	return el.Err()
}

func (s *SessionConfig) BuildOptions() session.Options {
	opts := session.Options{
		MaxParticipants: defaultMaxParticipants,
		Window:          defaultWindow,
		HistoryChars:    defaultHistoryChars,
	}
	if s.MaxParticipants > 0 {
		opts.MaxParticipants = s.MaxParticipants
	}
	if s.Window != "" {
		if d, err := time.ParseDuration(s.Window); err == nil {
			opts.Window = d
		}
	}
	if s.HistoryChars > 0 {
		opts.HistoryChars = s.HistoryChars
	}
	return opts
}
