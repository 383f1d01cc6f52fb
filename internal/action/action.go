// Package action holds the registry of side effects that run when events fire.
//
// An action is a named handler with a kind. SYNC actions run in the raising
// request once its state is committed; ASYNC actions travel through the
// process-action queue and run on a worker.
package action

import (
	"context"
	"time"

	"github.com/grabngo/loaner/internal/directory"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/settings"
	"github.com/grabngo/loaner/pkg/mailer"
)

// Kind selects how an action is executed
type Kind string

const (
	Sync  Kind = "SYNC"
	Async Kind = "ASYNC"
)

// Handler is the body of an action
type Handler func(ctx context.Context, env *Env, args Args) error

// Action is one registry entry
type Action struct {
	Name         string
	FriendlyName string
	Kind         Kind
	Run          Handler
}

// Args are the named arguments an event hands to its actions.
// Device and Shelf are snapshots taken right after the transition committed.
type Args struct {
	Device     *model.Device `json:"device,omitempty"`
	Shelf      *model.Shelf  `json:"shelf,omitempty"`
	Event      string        `json:"event,omitempty"`
	ActingUser string        `json:"acting_user,omitempty"`
	// User is the borrower the event concerns when it is no longer on the device
	User string `json:"user,omitempty"`
}

// Payload is the queued form of an action call, tagged by action name
type Payload struct {
	Action string `json:"action"`
	Args   Args   `json:"args"`
}

// Env carries the collaborators actions may use
type Env struct {
	Devices   *repository.DeviceRepository
	Shelves   *repository.ShelfRepository
	Reminders *repository.ReminderRepository
	Settings  *settings.Store
	Directory directory.Client
	Mail      mailer.Sender
	ManageURL string
	Now       func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}
