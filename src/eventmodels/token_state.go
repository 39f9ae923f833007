package eventmodels

import (
	"time"

	"golang.org/x/oauth2"
)

type TokenState struct {
	Token          string    `json:"token" yaml:"token"`
	Endpoint       string    `json:"endpoint" yaml:"endpoint"`
	TradingEnabled bool      `json:"tradingEnabled" yaml:"trading_enabled"`
	ExpiresAt      time.Time `json:"expiresAt" yaml:"expires_at"`
}

func (t *TokenState) IsExpired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}

	return !now.Before(t.ExpiresAt)
}

func (t *TokenState) Remaining(now time.Time) time.Duration {
	if t.ExpiresAt.IsZero() {
		return 0
	}

	return t.ExpiresAt.Sub(now)
}

func (t *TokenState) ToOAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: t.Token,
		TokenType:   "Bearer",
		Expiry:      t.ExpiresAt,
	}
}
