package eventmodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_EmbedConfig_ApplyDefaults(t *testing.T) {
	config := &EmbedConfig{UpdateIntervalMillis: 250}

	config.ApplyDefaults()

	assert.Equal(t, 250*time.Millisecond, config.UpdateInterval())
	assert.Equal(t, 300*time.Second, config.TokenWillExpireThreshold())
	assert.Equal(t, 10*time.Second, config.TokenCheckInterval())
	assert.Equal(t, 10*time.Second, config.RequestTimeout())
	assert.Equal(t, ":8085", config.BridgeAddr)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "text", config.LogFormat)
}

func Test_EmbedConfig_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, NewEmbedConfig().Validate())
	})

	cases := map[string]func(c *EmbedConfig){
		"bad url":              func(c *EmbedConfig) { c.ApiURL = "not a url" },
		"negative interval":    func(c *EmbedConfig) { c.UpdateIntervalMillis = -1 },
		"negative threshold":   func(c *EmbedConfig) { c.TokenWillExpireThresholdSeconds = -1 },
		"zero check interval":  func(c *EmbedConfig) { c.TokenCheckIntervalSeconds = 0 },
		"zero request timeout": func(c *EmbedConfig) { c.RequestTimeoutSeconds = 0 },
		"unknown log format":   func(c *EmbedConfig) { c.LogFormat = "xml" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			// arrange
			config := NewEmbedConfig()
			mutate(config)

			// act
			err := config.Validate()

			// assert
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func Test_TokenState_IsExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no expiry never expires", func(t *testing.T) {
		state := &TokenState{Token: "t"}

		assert.False(t, state.IsExpired(now))
		assert.Equal(t, time.Duration(0), state.Remaining(now))
	})

	t.Run("expiry is inclusive", func(t *testing.T) {
		state := &TokenState{Token: "t", ExpiresAt: now}

		assert.True(t, state.IsExpired(now))
		assert.False(t, state.IsExpired(now.Add(-time.Second)))
		assert.Equal(t, time.Minute, state.Remaining(now.Add(-time.Minute)))
	})

	t.Run("oauth2 token", func(t *testing.T) {
		token := (&TokenState{Token: "abc", ExpiresAt: now}).ToOAuth2()

		assert.Equal(t, "abc", token.AccessToken)
		assert.Equal(t, "Bearer", token.TokenType)
		assert.Equal(t, now, token.Expiry)
	})
}
