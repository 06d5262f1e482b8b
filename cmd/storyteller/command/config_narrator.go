package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-storyteller/internal/narrator"
)

const (
	defaultModel      = "gemini-2.0-flash"
	defaultAPIKeyEnv  = "GEMINI_API_KEY"
	defaultGenTimeout = 30 * time.Second
)

type NarratorConfig struct {
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `json:"api_key_env,omitempty"`
	Model     string `json:"model,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

func (n *NarratorConfig) Validate() error {
	el := errors.NewErrorList()

	if os.Getenv(n.keyEnv()) == "" {
		el.Add(fmt.Errorf("environment variable %s must hold the narrator api key", n.keyEnv()))
	}
	if n.Timeout != "" {
		if _, err := time.ParseDuration(n.Timeout); err != nil {
			el.Add(fmt.Errorf("parsing timeout: %w", err))
		}
	}

	return el.Err()
}

func (n *NarratorConfig) keyEnv() string {
	if n.APIKeyEnv != "" {
		return n.APIKeyEnv
	}
	return defaultAPIKeyEnv
}

func (n *NarratorConfig) BuildEngine(ctx context.Context) (*narrator.Engine, error) {
	model := n.Model
	if model == "" {
		model = defaultModel
	}

	client, err := narrator.NewClient(ctx, os.Getenv(n.keyEnv()), model)
	if err != nil {
		return nil, fmt.Errorf("creating narrator client: %w", err)
	}

	timeout := defaultGenTimeout
	if n.Timeout != "" {
		timeout, err = time.ParseDuration(n.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing timeout: %w", err)
		}
	}

	return narrator.NewEngine(client, timeout)
}
