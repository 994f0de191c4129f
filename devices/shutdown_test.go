package devices

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownHook_RegisterAndShutdown(t *testing.T) {
	hook := NewShutdownHook()

	called := false
	hook.Register("sync-session", func() error {
		called = true
		return nil
	})
	assert.Equal(t, 1, hook.Count())

	assert.NoError(t, hook.Shutdown())
	assert.True(t, called)
	assert.Equal(t, 0, hook.Count())
}

func TestShutdownHook_RunsInReverseOrder(t *testing.T) {
	hook := NewShutdownHook()

	var order []string
	hook.Register("server", func() error { order = append(order, "server"); return nil })
	hook.Register("session", func() error { order = append(order, "session"); return nil })

	assert.NoError(t, hook.Shutdown())
	assert.Equal(t, []string{"session", "server"}, order)
}

func TestShutdownHook_ErrorHandling(t *testing.T) {
	hook := NewShutdownHook()

	ran := 0
	hook.Register("success", func() error { ran++; return nil })
	hook.Register("failure", func() error { ran++; return errors.New("cleanup failed") })
	hook.Register("success2", func() error { ran++; return nil })

	err := hook.Shutdown()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failure: cleanup failed")
	assert.Equal(t, 3, ran)
	assert.Equal(t, 0, hook.Count())
}

func TestShutdownHook_EmptyShutdown(t *testing.T) {
	assert.NoError(t, NewShutdownHook().Shutdown())
}
