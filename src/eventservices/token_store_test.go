package eventservices

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

func Test_FileTokenStore(t *testing.T) {
	expiresAt := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	t.Run("missing file reads as no token", func(t *testing.T) {
		store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.yaml"))

		state, err := store.Get()

		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("state survives a new store on the same file", func(t *testing.T) {
		// arrange
		path := filepath.Join(t.TempDir(), "session", "token.yaml")
		expected := &eventmodels.TokenState{
			Token:          "abc",
			Endpoint:       "https://api.example.com/",
			TradingEnabled: true,
			ExpiresAt:      expiresAt,
		}

		// act
		require.NoError(t, NewFileTokenStore(path).Set(expected))
		state, err := NewFileTokenStore(path).Get()

		// assert
		require.NoError(t, err)
		assert.Equal(t, expected.Token, state.Token)
		assert.Equal(t, expected.Endpoint, state.Endpoint)
		assert.True(t, state.TradingEnabled)
		assert.True(t, expected.ExpiresAt.Equal(state.ExpiresAt))
	})

	t.Run("clear removes the token and is idempotent", func(t *testing.T) {
		// arrange
		store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.yaml"))
		require.NoError(t, store.Set(&eventmodels.TokenState{Token: "abc"}))

		// act
		require.NoError(t, store.Clear())
		require.NoError(t, store.Clear())
		state, err := store.Get()

		// assert
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("nil state is rejected", func(t *testing.T) {
		err := NewFileTokenStore(filepath.Join(t.TempDir(), "token.yaml")).Set(nil)
		assert.True(t, errors.Is(err, eventmodels.ErrInvalidArgument))
	})
}

func Test_MemoryTokenStore(t *testing.T) {
	// arrange
	store := NewMemoryTokenStore(&eventmodels.TokenState{Token: "abc"})

	// act
	state, err := store.Get()
	require.NoError(t, err)
	state.Token = "mutated"
	again, _ := store.Get()

	// assert
	assert.Equal(t, "abc", again.Token)

	require.NoError(t, store.Clear())
	cleared, err := store.Get()
	require.NoError(t, err)
	assert.Nil(t, cleared)
}
