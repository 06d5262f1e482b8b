package command

import (
	"context"
	"fmt"

	"github.com/pixil98/go-service"
	"github.com/pixil98/go-storyteller/internal/admin"
	"github.com/pixil98/go-storyteller/internal/listener"
	"github.com/pixil98/go-storyteller/internal/session"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	// Embedded broker for broadcast fan-out
	nats, err := cfg.Nats.BuildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	// Scenario assets
	scenario, err := cfg.Storage.BuildScenario()
	if err != nil {
		return nil, fmt.Errorf("loading scenario: %w", err)
	}

	// Narrative engine
	engine, err := cfg.Narrator.BuildEngine(context.Background())
	if err != nil {
		return nil, fmt.Errorf("creating narrator: %w", err)
	}

	// The session and its turn scheduler
	sess := session.New(scenario, engine, session.NewDispatcher(nats), cfg.Session.BuildOptions())

	// Game listener
	cm := listener.NewConnectionManager(sess, nats)
	game := listener.NewTcpListener(cfg.GamePort, cm)

	// Operator console listeners
	console := admin.NewConsole(sess)
	adminListeners := make(service.WorkerList, len(cfg.Admin))
	for i, l := range cfg.Admin {
		al, err := l.BuildListener(console)
		if err != nil {
			return nil, fmt.Errorf("creating admin listener %d: %w", i, err)
		}
		adminListeners[fmt.Sprintf("admin-%d", i)] = al
	}

	workers := service.WorkerList{
		"nats":      nats,
		"session":   &sessionWorker{sess: sess},
		"game":      game,
		"listeners": &adminListeners,
	}
	return workers, nil
}

// sessionWorker adapts the scheduler loop to the worker interface.
type sessionWorker struct {
	sess *session.Session
}

func (w *sessionWorker) Start(ctx context.Context) error {
	return w.sess.Run(ctx)
}
