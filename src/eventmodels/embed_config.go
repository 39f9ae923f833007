package eventmodels

import (
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultUpdateIntervalMillis            = 700
	DefaultTokenWillExpireThresholdSeconds = 300
	DefaultTokenCheckIntervalSeconds       = 10
	DefaultRequestTimeoutSeconds           = 10
)

type EmbedConfig struct {
	ApiURL                          string `yaml:"api_url"`
	AccountID                       string `yaml:"account_id"`
	UpdateIntervalMillis            int    `yaml:"update_interval_millis"`
	TokenWillExpireThresholdSeconds int    `yaml:"token_will_expire_threshold_seconds"`
	TokenCheckIntervalSeconds       int    `yaml:"token_check_interval_seconds"`
	RequestTimeoutSeconds           int    `yaml:"request_timeout_seconds"`
	TokenFile                       string `yaml:"token_file"`
	BridgeAddr                      string `yaml:"bridge_addr"`
	LogLevel                        string `yaml:"log_level"`
	LogFormat                       string `yaml:"log_format"`
}

// ApplyDefaults fills zero values with the defaults.
func (c *EmbedConfig) ApplyDefaults() {
	if c.UpdateIntervalMillis == 0 {
		c.UpdateIntervalMillis = DefaultUpdateIntervalMillis
	}

	if c.TokenWillExpireThresholdSeconds == 0 {
		c.TokenWillExpireThresholdSeconds = DefaultTokenWillExpireThresholdSeconds
	}

	if c.TokenCheckIntervalSeconds == 0 {
		c.TokenCheckIntervalSeconds = DefaultTokenCheckIntervalSeconds
	}

	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}

	if c.BridgeAddr == "" {
		c.BridgeAddr = ":8085"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c *EmbedConfig) Validate() error {
	if c.ApiURL != "" {
		if _, err := url.ParseRequestURI(c.ApiURL); err != nil {
			return fmt.Errorf("EmbedConfig.Validate: invalid api_url %q: %w", c.ApiURL, ErrInvalidArgument)
		}
	}

	if c.UpdateIntervalMillis <= 0 {
		return fmt.Errorf("EmbedConfig.Validate: update_interval_millis must be positive, got %d: %w", c.UpdateIntervalMillis, ErrInvalidArgument)
	}

	if c.TokenWillExpireThresholdSeconds < 0 {
		return fmt.Errorf("EmbedConfig.Validate: token_will_expire_threshold_seconds cannot be negative: %w", ErrInvalidArgument)
	}

	if c.TokenCheckIntervalSeconds <= 0 {
		return fmt.Errorf("EmbedConfig.Validate: token_check_interval_seconds must be positive: %w", ErrInvalidArgument)
	}

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("EmbedConfig.Validate: request_timeout_seconds must be positive: %w", ErrInvalidArgument)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("EmbedConfig.Validate: unknown log_format %q: %w", c.LogFormat, ErrInvalidArgument)
	}

	return nil
}

func (c *EmbedConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMillis) * time.Millisecond
}

func (c *EmbedConfig) TokenWillExpireThreshold() time.Duration {
	return time.Duration(c.TokenWillExpireThresholdSeconds) * time.Second
}

func (c *EmbedConfig) TokenCheckInterval() time.Duration {
	return time.Duration(c.TokenCheckIntervalSeconds) * time.Second
}

func (c *EmbedConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func NewEmbedConfig() *EmbedConfig {
	c := &EmbedConfig{}
	c.ApplyDefaults()
	return c
}
