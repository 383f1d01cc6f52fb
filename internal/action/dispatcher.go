package action

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/metrics"
	"github.com/grabngo/loaner/internal/taskqueue"
)

// Dispatcher runs actions by name. It is the handler of the process-action queue.
type Dispatcher struct {
	registry *Registry
	env      *Env
}

func NewDispatcher(registry *Registry, env *Env) *Dispatcher {
	return &Dispatcher{registry: registry, env: env}
}

// Registry returns the registry the dispatcher resolves names against
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// NewTask wraps an action call for the process-action queue
func NewTask(name string, args Args) (*taskqueue.Task, error) {
	return taskqueue.NewTask(taskqueue.ProcessAction, name, Payload{Action: name, Args: args})
}

// Handle decodes a queued action call and runs it.
// Unreadable payloads, unknown names and invalid arguments are permanent failures.
func (d *Dispatcher) Handle(ctx context.Context, t *taskqueue.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		log.Printf("❌ Task %s has an unreadable payload: %v", t.ID, err)
		return taskqueue.Permanent(apperr.ErrBadInput.Wrap(err))
	}
	if p.Action == "" {
		p.Action = t.Name
	}

	err := d.Run(ctx, p.Action, p.Args)
	if err != nil && isValidationError(err) {
		return taskqueue.Permanent(err)
	}
	return err
}

// Run executes one action in the calling goroutine
func (d *Dispatcher) Run(ctx context.Context, name string, args Args) error {
	a, err := d.registry.Get(name)
	if err != nil {
		log.Printf("⚠️  %v", err)
		return err
	}

	err = a.Run(ctx, d.env, args)
	result := "ok"
	if err != nil {
		result = "error"
		log.Printf("❌ Action %s failed: %v", name, err)
	}
	metrics.ActionsRun.WithLabelValues(name, string(a.Kind), result).Inc()
	return err
}

func isValidationError(err error) bool {
	return errors.Is(err, apperr.ErrUnknownAction) ||
		errors.Is(err, apperr.ErrMissingDevice) ||
		errors.Is(err, apperr.ErrMissingShelf) ||
		errors.Is(err, apperr.ErrBadDevice)
}
