package action

import (
	"log"
	"sort"

	"github.com/grabngo/loaner/internal/apperr"
)

// Registry maps action names to actions. It is immutable once built.
type Registry struct {
	actions map[string]Action
	order   []string
}

// NewRegistry validates entries and builds a registry.
// Duplicate names keep the first entry. An invalid entry is logged and skipped
// when logExceptions is set and fails the load otherwise.
func NewRegistry(entries []Action, logExceptions bool) (*Registry, error) {
	r := &Registry{actions: make(map[string]Action, len(entries))}
	for _, a := range entries {
		if err := validate(a); err != nil {
			if !logExceptions {
				return nil, err
			}
			log.Printf("⚠️  Skipping action: %v", err)
			continue
		}
		if a.Kind == "" {
			a.Kind = Async
		}
		if _, dup := r.actions[a.Name]; dup {
			log.Printf("⚠️  Duplicate action %q ignored, keeping the first registration", a.Name)
			continue
		}
		r.actions[a.Name] = a
		r.order = append(r.order, a.Name)
	}
	return r, nil
}

func validate(a Action) error {
	switch {
	case a.Name == "":
		return apperr.ErrActionLoader.Withf("action %q has no name", a.FriendlyName)
	case a.FriendlyName == "":
		return apperr.ErrActionLoader.Withf("action %q has no friendly name", a.Name)
	case a.Run == nil:
		return apperr.ErrActionLoader.Withf("action %q has no run function", a.Name)
	case a.Kind != "" && a.Kind != Sync && a.Kind != Async:
		return apperr.ErrActionLoader.Withf("action %q has unknown kind %q", a.Name, a.Kind)
	}
	return nil
}

// Get looks up an action by name
func (r *Registry) Get(name string) (Action, error) {
	a, ok := r.actions[name]
	if !ok {
		return Action{}, apperr.ErrUnknownAction.Withf("action %q is not registered", name)
	}
	return a, nil
}

// Names returns registered names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Info describes a registered action for listings
type Info struct {
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name"`
	Kind         Kind   `json:"kind"`
}

// List returns every action sorted by name
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.actions))
	for _, a := range r.actions {
		out = append(out, Info{Name: a.Name, FriendlyName: a.FriendlyName, Kind: a.Kind})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
