package action

import (
	"context"
	"testing"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *Env, Args) error { return nil }

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name  string
		entry Action
	}{
		{name: "missing name", entry: Action{FriendlyName: "Label", Run: noop}},
		{name: "missing friendly name", entry: Action{Name: "a", Run: noop}},
		{name: "missing run", entry: Action{Name: "a", FriendlyName: "Label"}},
		{name: "unknown kind", entry: Action{Name: "a", FriendlyName: "Label", Kind: "LATER", Run: noop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry([]Action{tt.entry}, false)
			assert.ErrorIs(t, err, apperr.ErrActionLoader)

			r, err := NewRegistry([]Action{tt.entry}, true)
			require.NoError(t, err)
			assert.Empty(t, r.Names())
		})
	}
}

func TestNewRegistry_FirstRegistrationWins(t *testing.T) {
	first := Action{Name: "notify", FriendlyName: "First", Kind: Sync, Run: noop}
	second := Action{Name: "notify", FriendlyName: "Second", Run: noop}

	r, err := NewRegistry([]Action{first, second}, false)
	require.NoError(t, err)

	got, err := r.Get("notify")
	require.NoError(t, err)
	assert.Equal(t, "First", got.FriendlyName)
	assert.Equal(t, []string{"notify"}, r.Names())
}

func TestNewRegistry_KindDefaultsToAsync(t *testing.T) {
	r, err := NewRegistry([]Action{{Name: "a", FriendlyName: "A", Run: noop}}, false)
	require.NoError(t, err)

	a, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, Async, a.Kind)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r, err := NewRegistry(nil, false)
	require.NoError(t, err)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, apperr.ErrUnknownAction)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestBuiltins_AllRegister(t *testing.T) {
	r, err := NewRegistry(Builtins(), false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		LockDevice, SendReminder, SendWelcome, SendReturnThanks, RequestShelfAudit, GuestModeExpired,
	}, r.Names())
	assert.Len(t, r.List(), 6)
}
