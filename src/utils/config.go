package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

const (
	EnvApiURL               = "TRADABLE_API_URL"
	EnvAccessToken          = "TRADABLE_ACCESS_TOKEN"
	EnvTokenExpiresIn       = "TRADABLE_TOKEN_EXPIRES_IN_SECONDS"
	EnvAccountID            = "TRADABLE_ACCOUNT_ID"
	EnvUpdateIntervalMillis = "TRADABLE_UPDATE_INTERVAL_MILLIS"
	EnvTokenFile            = "TRADABLE_TOKEN_FILE"
	EnvLogLevel             = "LOG_LEVEL"
)

// LoadEmbedConfig reads the yaml config at path (optional), applies environment
// overrides and defaults, then validates the result.
func LoadEmbedConfig(path string) (*eventmodels.EmbedConfig, error) {
	config := &eventmodels.EmbedConfig{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("LoadEmbedConfig: failed to read %s: %w", path, err)
		}

		if len(data) > 0 {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("LoadEmbedConfig: failed to decode %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("LoadEmbedConfig: %w", err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("LoadEmbedConfig: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *eventmodels.EmbedConfig) error {
	if v := os.Getenv(EnvApiURL); v != "" {
		config.ApiURL = v
	}

	if v := os.Getenv(EnvAccountID); v != "" {
		config.AccountID = v
	}

	if v := os.Getenv(EnvTokenFile); v != "" {
		config.TokenFile = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		config.LogLevel = v
	}

	if v := os.Getenv(EnvUpdateIntervalMillis); v != "" {
		millis, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not a number: %w", EnvUpdateIntervalMillis, v, eventmodels.ErrInvalidArgument)
		}

		config.UpdateIntervalMillis = millis
	}

	return nil
}

// TokenFromEnv builds a token state from TRADABLE_ACCESS_TOKEN, or returns nil
// when the variable is unset.
func TokenFromEnv(config *eventmodels.EmbedConfig, now time.Time) (*eventmodels.TokenState, error) {
	token := os.Getenv(EnvAccessToken)
	if token == "" {
		return nil, nil
	}

	state := &eventmodels.TokenState{
		Token:          token,
		Endpoint:       config.ApiURL,
		TradingEnabled: true,
	}

	if v := os.Getenv(EnvTokenExpiresIn); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TokenFromEnv: %s=%q is not a number: %w", EnvTokenExpiresIn, v, eventmodels.ErrInvalidArgument)
		}

		state.ExpiresAt = now.Add(time.Duration(seconds) * time.Second)
	}

	return state, nil
}
