package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_RequiresInitialize(t *testing.T) {
	manager := NewSessionManager(nil)

	_, err := manager.StartSession("watch", SessionOptions{Headless: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestSessionManager_UnknownSession(t *testing.T) {
	manager := NewSessionManager(nil)

	_, err := manager.GetSession("missing")
	assert.Error(t, err)
	assert.Error(t, manager.CloseSession("missing"))
	assert.Empty(t, manager.ListSessions())
	assert.NoError(t, manager.Shutdown())
}

func TestSessionManager_MaxSessions(t *testing.T) {
	manager := NewSessionManager(nil)
	manager.SetMaxSessions(0)

	_, err := manager.StartSession("watch", SessionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum number of sessions")
}

func TestWithDefaults(t *testing.T) {
	opts := withDefaults(SessionOptions{Headless: true})
	require.NotNil(t, opts.Viewport)
	assert.Equal(t, DefaultViewportWidth, opts.Viewport.Width)
	assert.Equal(t, DefaultViewportHeight, opts.Viewport.Height)
	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.True(t, opts.Headless)

	custom := withDefaults(SessionOptions{Viewport: &Viewport{Width: 10, Height: 20}, Timeout: 5})
	assert.Equal(t, 10, custom.Viewport.Width)
	assert.Equal(t, 5.0, custom.Timeout)
}
